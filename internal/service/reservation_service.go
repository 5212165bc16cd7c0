package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk/orderbot/internal/domain"
	"github.com/supportdesk/orderbot/internal/events"
	"github.com/supportdesk/orderbot/internal/repository"
)

// ReservationService binds contractors to clients under tariff-gated rules.
type ReservationService struct {
	parties    repository.PartyRepository
	orders     repository.OrderRepository
	dispatcher events.Dispatcher
}

// NewReservationService constructs the service.
func NewReservationService(parties repository.PartyRepository, orders repository.OrderRepository, dispatcher events.Dispatcher) *ReservationService {
	return &ReservationService{parties: parties, orders: orders, dispatcher: dispatcher}
}

// ReserveLastContractor binds the contractor of the client's most recently
// closed order. Requires the reserve-a-contractor tariff capability and at
// least one closed order. Rebinding an already-reserved contractor is a
// no-op reported through the second return value, not an error.
func (s *ReservationService) ReserveLastContractor(ctx context.Context, clientID string) (*domain.Party, bool, error) {
	client, err := s.parties.GetClient(ctx, clientID)
	if err != nil {
		return nil, false, err
	}
	if !client.Tariff.CanReserveContractor {
		return nil, false, domain.ErrTariffForbids
	}

	contractorID, err := s.orders.LastClosedContractorID(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.ErrNoClosedOrders
		}
		return nil, false, err
	}

	bound, err := s.parties.ReserveContractor(ctx, clientID, contractorID)
	if err != nil {
		return nil, false, err
	}
	contractor, err := s.parties.GetByID(ctx, contractorID)
	if err != nil {
		return nil, false, err
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventContractorReserved,
			ActorID:   clientID,
			ActorRole: domain.RoleClient,
			Timestamp: time.Now(),
			Payload: events.ContractorReservedPayload{
				ClientID:     clientID,
				ContractorID: contractorID,
				AlreadyBound: !bound,
			},
		})
	}
	return contractor, !bound, nil
}

// HelpedContractors lists the distinct contractors of the client's closed
// orders. Gated by the view-contractor-contacts tariff capability.
func (s *ReservationService) HelpedContractors(ctx context.Context, clientID string) ([]domain.Party, error) {
	client, err := s.parties.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Tariff.CanSeeContractorContacts {
		return nil, domain.ErrTariffForbids
	}
	return s.orders.ContractorsOfClosedOrders(ctx, clientID)
}

// ReservedContractors lists the client's current reservations.
func (s *ReservationService) ReservedContractors(ctx context.Context, clientID string) ([]domain.Party, error) {
	return s.parties.ReservedContractors(ctx, clientID)
}
