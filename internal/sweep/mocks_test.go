package sweep

import (
	"context"
	"sync"

	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/repository"
	"github.com/supportdesk/orderbot/internal/service"
)

// fakeOrders serves canned sweep candidates and records latch writes. The
// embedded interface panics on anything a sweep should never call.
type fakeOrders struct {
	repository.OrderRepository

	unassigned []domain.OrderView
	overdue    []domain.OrderView
	fanout     []domain.OrderView
	inWork     []domain.OrderView
	closed     []domain.OrderView

	mu               sync.Mutex
	notTakenAlerted  []string
	lateAlerted      []string
	assignedInformed []string
	allInformed      []string
	inWorkInformed   []string
	closedInformed   []string
}

func (f *fakeOrders) ListUnassignedUnalerted(context.Context) ([]domain.OrderView, error) {
	return f.pending(f.unassigned, f.notTakenAlerted), nil
}

func (f *fakeOrders) ListOverdueCandidates(context.Context) ([]domain.OrderView, error) {
	return f.pending(f.overdue, f.lateAlerted), nil
}

func (f *fakeOrders) ListFanoutCandidates(context.Context) ([]domain.OrderView, error) {
	views := f.pending(f.fanout, f.allInformed)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range views {
		for _, id := range f.assignedInformed {
			if views[i].ID == id {
				views[i].AssignedContractorsInformed = true
			}
		}
	}
	return views, nil
}

func (f *fakeOrders) ListInWorkClientUninformed(context.Context) ([]domain.OrderView, error) {
	return f.pending(f.inWork, f.inWorkInformed), nil
}

func (f *fakeOrders) ListClosedClientUninformed(context.Context) ([]domain.OrderView, error) {
	return f.pending(f.closed, f.closedInformed), nil
}

// pending filters canned views the way the SQL latch predicates do, so an
// order marked by one pass drops out of the next.
func (f *fakeOrders) pending(views []domain.OrderView, marked []string) []domain.OrderView {
	f.mu.Lock()
	defer f.mu.Unlock()
	done := make(map[string]bool, len(marked))
	for _, id := range marked {
		done[id] = true
	}
	var out []domain.OrderView
	for _, v := range views {
		if !done[v.ID] {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeOrders) MarkNotTakenAlerted(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notTakenAlerted = append(f.notTakenAlerted, ids...)
	return nil
}

func (f *fakeOrders) MarkLateAlerted(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lateAlerted = append(f.lateAlerted, ids...)
	return nil
}

func (f *fakeOrders) MarkAssignedInformed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignedInformed = append(f.assignedInformed, id)
	return nil
}

func (f *fakeOrders) MarkAllInformed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allInformed = append(f.allInformed, id)
	return nil
}

func (f *fakeOrders) MarkInWorkClientInformed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inWorkInformed = append(f.inWorkInformed, id)
	return nil
}

func (f *fakeOrders) MarkClosedClientInformed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedInformed = append(f.closedInformed, id)
	return nil
}

// fakeParties serves fixed rosters.
type fakeParties struct {
	repository.PartyRepository

	managers  []domain.Party
	available []domain.Party
	reserved  map[string][]domain.Party
}

func (f *fakeParties) ListActiveByRole(_ context.Context, role domain.Role) ([]domain.Party, error) {
	if role == domain.RoleManager {
		return f.managers, nil
	}
	return nil, nil
}

func (f *fakeParties) ListAvailableContractors(context.Context) ([]domain.Party, error) {
	return f.available, nil
}

func (f *fakeParties) ReservedContractors(_ context.Context, clientID string) ([]domain.Party, error) {
	return f.reserved[clientID], nil
}

// sentMessage is one recorded delivery.
type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeGateway records sends and can fail selected chats.
type fakeGateway struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]error
}

func (g *fakeGateway) Send(_ context.Context, chatID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failFor[chatID]; ok {
		return err
	}
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (g *fakeGateway) chats() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int64, 0, len(g.sent))
	for _, m := range g.sent {
		out = append(out, m.ChatID)
	}
	return out
}

// fixedSettings is a static provider.
type fixedSettings struct {
	settings domain.RuntimeSettings
}

func (s fixedSettings) Current() domain.RuntimeSettings { return s.settings }

var _ service.SettingsProvider = fixedSettings{}
