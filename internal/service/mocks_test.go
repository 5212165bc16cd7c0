package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/events"
	"github.com/supportdesk/orderbot/internal/repository"
)

// memPartyRepo is an in-memory PartyRepository.
type memPartyRepo struct {
	mu       sync.Mutex
	parties  map[string]*domain.Party
	clients  map[string]*domain.Client
	reserved map[string][]string
	busy     map[string]bool
	orders   *memOrderRepo
}

func newMemPartyRepo() *memPartyRepo {
	return &memPartyRepo{
		parties:  make(map[string]*domain.Party),
		clients:  make(map[string]*domain.Client),
		reserved: make(map[string][]string),
		busy:     make(map[string]bool),
	}
}

func (r *memPartyRepo) addParty(p domain.Party) *domain.Party {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := p
	r.parties[p.ID] = &stored
	return &stored
}

func (r *memPartyRepo) addClient(p domain.Party, paid bool, tariff domain.Tariff) {
	r.addParty(p)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[p.ID] = &domain.Client{Party: p, Paid: paid, Tariff: tariff}
}

func (r *memPartyRepo) Create(_ context.Context, party *domain.Party) error {
	r.addParty(*party)
	return nil
}

func (r *memPartyRepo) GetByID(_ context.Context, id string) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parties[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPartyRepo) GetActiveByChatID(_ context.Context, chatID int64) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.parties {
		if p.IsActive() && p.ChatID != nil && *p.ChatID == chatID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPartyRepo) GetActiveByNick(_ context.Context, nick string) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.parties {
		if p.IsActive() && p.Nick == nick {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPartyRepo) UpdateContact(_ context.Context, id string, chatID *int64, nick string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parties[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ChatID = chatID
	p.Nick = nick
	return nil
}

func (r *memPartyRepo) UpdateBotState(_ context.Context, id string, state *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parties[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.BotState = state
	return nil
}

func (r *memPartyRepo) ListActiveByRole(_ context.Context, role domain.Role) ([]domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Party
	for _, p := range r.parties {
		if p.IsActive() && p.Role == role {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPartyRepo) ListAvailableContractors(_ context.Context) ([]domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Party
	for _, p := range r.parties {
		if p.IsActive() && p.Role == domain.RoleContractor && !r.busy[p.ID] {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPartyRepo) GetClient(_ context.Context, partyID string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[partyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memPartyRepo) ReservedContractors(_ context.Context, clientID string) ([]domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Party
	for _, id := range r.reserved[clientID] {
		if p, ok := r.parties[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPartyRepo) ReserveContractor(_ context.Context, clientID, contractorID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.reserved[clientID] {
		if id == contractorID {
			return false, nil
		}
	}
	r.reserved[clientID] = append(r.reserved[clientID], contractorID)
	return true, nil
}

func (r *memPartyRepo) DeactivateContractor(_ context.Context, contractorID string) error {
	if r.orders != nil {
		r.orders.releaseByContractor(contractorID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parties[contractorID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = domain.PartyStatusInactive
	return nil
}

// memOrderRepo is an in-memory OrderRepository with the same conditional
// transition semantics as the SQL implementation.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	seq    int
	now    func() time.Time

	parties *memPartyRepo
}

func newMemOrderRepo(parties *memPartyRepo, now func() time.Time) *memOrderRepo {
	if now == nil {
		now = time.Now
	}
	r := &memOrderRepo{orders: make(map[string]*domain.Order), now: now, parties: parties}
	if parties != nil {
		parties.orders = r
	}
	return r
}

// releaseByContractor mirrors the release half of the deactivation
// transaction: in_work orders go back to the open pool with the assignment
// fields and the related latches reset.
func (r *memOrderRepo) releaseByContractor(contractorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusInWork && o.ContractorID != nil && *o.ContractorID == contractorID {
			o.Status = domain.OrderStatusCreated
			o.ContractorID = nil
			o.AssignedAt = nil
			o.EstimatedHours = nil
			o.NotTakenManagerInformed = false
			o.LateWorkManagerInformed = false
			o.InWorkClientInformed = false
		}
	}
}

func (r *memOrderRepo) seed(order domain.Order) *domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if order.ID == "" {
		order.ID = fmt.Sprintf("order-%d", r.seq)
	}
	stored := order
	r.orders[stored.ID] = &stored
	return &stored
}

func (r *memOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	order.ID = fmt.Sprintf("order-%d", r.seq)
	order.CreatedAt = r.now()
	stored := *order
	r.orders[stored.ID] = &stored
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ActiveByClient(_ context.Context, clientID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ClientID == clientID && !o.Status.Terminal() {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memOrderRepo) InWorkByContractor(_ context.Context, contractorID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusInWork && o.ContractorID != nil && *o.ContractorID == contractorID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memOrderRepo) ListOpen(_ context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusCreated {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrderRepo) CountCreatedSince(_ context.Context, clientID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, o := range r.orders {
		if o.ClientID == clientID && o.Status != domain.OrderStatusCancelled && !o.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memOrderRepo) LastClosedContractorID(_ context.Context, clientID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.Order
	for _, o := range r.orders {
		if o.ClientID != clientID || o.Status != domain.OrderStatusClosed || o.ContractorID == nil {
			continue
		}
		if best == nil || (o.ClosedAt != nil && best.ClosedAt != nil && o.ClosedAt.After(*best.ClosedAt)) {
			best = o
		}
	}
	if best == nil {
		return "", domain.ErrNotFound
	}
	return *best.ContractorID, nil
}

func (r *memOrderRepo) ContractorsOfClosedOrders(ctx context.Context, clientID string) ([]domain.Party, error) {
	r.mu.Lock()
	seen := make(map[string]bool)
	var ids []string
	for _, o := range r.orders {
		if o.ClientID == clientID && o.Status == domain.OrderStatusClosed && o.ContractorID != nil && !seen[*o.ContractorID] {
			seen[*o.ContractorID] = true
			ids = append(ids, *o.ContractorID)
		}
	}
	r.mu.Unlock()

	sort.Strings(ids)
	var out []domain.Party
	for _, id := range ids {
		if p, err := r.parties.GetByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memOrderRepo) TakeInWork(_ context.Context, orderID, contractorID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != domain.OrderStatusCreated {
		return false, nil
	}
	o.Status = domain.OrderStatusInWork
	o.ContractorID = &contractorID
	o.AssignedAt = &at
	o.NotTakenManagerInformed = false
	o.LateWorkManagerInformed = false
	o.EstimatedHours = nil
	return true, nil
}

func (r *memOrderRepo) Close(_ context.Context, orderID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != domain.OrderStatusInWork {
		return false, nil
	}
	o.Status = domain.OrderStatusClosed
	o.ClosedAt = &at
	o.Creds = ""
	return true, nil
}

func (r *memOrderRepo) Cancel(_ context.Context, orderID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status.Terminal() {
		return false, nil
	}
	o.Status = domain.OrderStatusCancelled
	o.ClosedAt = &at
	o.Creds = ""
	return true, nil
}

func (r *memOrderRepo) SetEstimate(_ context.Context, orderID string, hours int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != domain.OrderStatusInWork {
		return false, nil
	}
	o.EstimatedHours = &hours
	return true, nil
}

func (r *memOrderRepo) ListUnassignedUnalerted(context.Context) ([]domain.OrderView, error) {
	return nil, nil
}

func (r *memOrderRepo) ListOverdueCandidates(context.Context) ([]domain.OrderView, error) {
	return nil, nil
}

func (r *memOrderRepo) ListFanoutCandidates(context.Context) ([]domain.OrderView, error) {
	return nil, nil
}

func (r *memOrderRepo) ListInWorkClientUninformed(context.Context) ([]domain.OrderView, error) {
	return nil, nil
}

func (r *memOrderRepo) ListClosedClientUninformed(context.Context) ([]domain.OrderView, error) {
	return nil, nil
}

func (r *memOrderRepo) MarkNotTakenAlerted(_ context.Context, ids []string) error {
	return r.mark(ids, func(o *domain.Order) { o.NotTakenManagerInformed = true })
}

func (r *memOrderRepo) MarkLateAlerted(_ context.Context, ids []string) error {
	return r.mark(ids, func(o *domain.Order) { o.LateWorkManagerInformed = true })
}

func (r *memOrderRepo) MarkAssignedInformed(_ context.Context, id string) error {
	return r.mark([]string{id}, func(o *domain.Order) { o.AssignedContractorsInformed = true })
}

func (r *memOrderRepo) MarkAllInformed(_ context.Context, id string) error {
	return r.mark([]string{id}, func(o *domain.Order) {
		o.AssignedContractorsInformed = true
		o.AllContractorsInformed = true
	})
}

func (r *memOrderRepo) MarkInWorkClientInformed(_ context.Context, id string) error {
	return r.mark([]string{id}, func(o *domain.Order) { o.InWorkClientInformed = true })
}

func (r *memOrderRepo) MarkClosedClientInformed(_ context.Context, id string) error {
	return r.mark([]string{id}, func(o *domain.Order) { o.ClosedClientInformed = true })
}

func (r *memOrderRepo) mark(ids []string, apply func(*domain.Order)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if o, ok := r.orders[id]; ok {
			apply(o)
		}
	}
	return nil
}

func (r *memOrderRepo) FirstOrderAt(context.Context) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first *time.Time
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		if first == nil || o.CreatedAt.Before(*first) {
			t := o.CreatedAt
			first = &t
		}
	}
	return first, nil
}

func (r *memOrderRepo) ClientCountsBetween(_ context.Context, from, to time.Time) ([]repository.ClientOrderCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, o := range r.orders {
		if o.Status != domain.OrderStatusCancelled && o.CreatedAt.After(from) && !o.CreatedAt.After(to) {
			counts[r.nick(o.ClientID)]++
		}
	}
	var out []repository.ClientOrderCount
	for nick, n := range counts {
		out = append(out, repository.ClientOrderCount{ClientNick: nick, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientNick < out[j].ClientNick })
	return out, nil
}

// nick resolves a party id to its handle, falling back to the id. Callers
// hold r.mu, so the party map is read directly.
func (r *memOrderRepo) nick(partyID string) string {
	r.parties.mu.Lock()
	defer r.parties.mu.Unlock()
	if p, ok := r.parties.parties[partyID]; ok {
		return p.Nick
	}
	return partyID
}

func (r *memOrderRepo) ContractorClosedCountsBetween(_ context.Context, from, to time.Time) ([]repository.ContractorOrderCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, o := range r.orders {
		if o.Status == domain.OrderStatusClosed && o.ContractorID != nil &&
			o.ClosedAt != nil && o.ClosedAt.After(from) && !o.ClosedAt.After(to) {
			counts[r.nick(*o.ContractorID)]++
		}
	}
	var out []repository.ContractorOrderCount
	for nick, n := range counts {
		out = append(out, repository.ContractorOrderCount{ContractorNick: nick, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractorNick < out[j].ContractorNick })
	return out, nil
}

// memSettingsRepo is an in-memory SettingsRepository.
type memSettingsRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSettingsRepo(values map[string]string) *memSettingsRepo {
	if values == nil {
		values = make(map[string]string)
	}
	return &memSettingsRepo{values: values}
}

func (r *memSettingsRepo) Get(_ context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (r *memSettingsRepo) List(context.Context) ([]domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Setting
	for name, value := range r.values {
		out = append(out, domain.Setting{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memSettingsRepo) Upsert(_ context.Context, setting domain.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[setting.Name] = setting.Value
	return nil
}

// staticSettings is a fixed SettingsProvider for tests.
type staticSettings struct {
	settings domain.RuntimeSettings
}

func (s staticSettings) Current() domain.RuntimeSettings { return s.settings }

// recordingDispatcher collects published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}
