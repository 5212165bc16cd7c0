package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the HTTP surface, the sweep
// engine and outbound notifications.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	sweepRuns     map[string]int64
	sweepWarned   map[string]int64
	eventCount    map[string]int64
	notifySent    map[string]int64
	notifyDropped map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		sweepRuns:     make(map[string]int64),
		sweepWarned:   make(map[string]int64),
		eventCount:    make(map[string]int64),
		notifySent:    make(map[string]int64),
		notifyDropped: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep counts one sweep pass and how many orders it flagged.
func (m *Metrics) RecordSweep(name string, flagged int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns[name]++
	m.sweepWarned[name] += int64(flagged)
}

// RecordEvent counts one published domain event per type.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[kind]++
}

// RecordNotification counts one delivered chat message per notification kind.
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifySent[kind]++
}

// RecordNotificationDrop counts a failed, non-retried delivery.
func (m *Metrics) RecordNotificationDrop(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyDropped[kind]++
}

// Snapshot returns a copy of all counters for the admin API.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"requests":              copyCounters(m.requestCount),
		"errors":                copyCounters(m.errorCount),
		"sweep_runs":            copyCounters(m.sweepRuns),
		"sweep_flagged":         copyCounters(m.sweepWarned),
		"events":                copyCounters(m.eventCount),
		"notifications_sent":    copyCounters(m.notifySent),
		"notifications_dropped": copyCounters(m.notifyDropped),
	}
}

func copyCounters(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
