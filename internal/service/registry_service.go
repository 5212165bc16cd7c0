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

// RegistryService resolves acting parties for inbound chat events and answers
// availability queries over the party registry.
type RegistryService struct {
	parties    repository.PartyRepository
	dispatcher events.Dispatcher
}

// NewRegistryService constructs the service.
func NewRegistryService(parties repository.PartyRepository, dispatcher events.Dispatcher) *RegistryService {
	return &RegistryService{parties: parties, dispatcher: dispatcher}
}

// ResolveParty finds the active party for an inbound event, trying the chat id
// first and the nickname second. Nickname and chat-id drift is repaired in
// place: people rename their accounts and first contact happens before the
// chat id is known. Returns ErrUnknownParty when neither key matches.
func (s *RegistryService) ResolveParty(ctx context.Context, chatID int64, nick string) (*domain.Party, error) {
	party, err := s.parties.GetActiveByChatID(ctx, chatID)
	if err == nil {
		if nick != "" && party.Nick != nick {
			if err := s.parties.UpdateContact(ctx, party.ID, party.ChatID, nick); err != nil {
				return nil, err
			}
			party.Nick = nick
		}
		return party, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if nick == "" {
		return nil, domain.ErrUnknownParty
	}
	party, err = s.parties.GetActiveByNick(ctx, nick)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownParty
		}
		return nil, err
	}
	if party.ChatID == nil || *party.ChatID != chatID {
		if err := s.parties.UpdateContact(ctx, party.ID, &chatID, party.Nick); err != nil {
			return nil, err
		}
		party.ChatID = &chatID
	}
	return party, nil
}

// SetConversationState persists the opaque state label the session driver
// writes after every handled event. The engine never interprets its values.
func (s *RegistryService) SetConversationState(ctx context.Context, partyID string, state *string) error {
	return s.parties.UpdateBotState(ctx, partyID, state)
}

// Party loads any party by id.
func (s *RegistryService) Party(ctx context.Context, id string) (*domain.Party, error) {
	return s.parties.GetByID(ctx, id)
}

// Client loads a client party joined with its tariff attachment.
func (s *RegistryService) Client(ctx context.Context, partyID string) (*domain.Client, error) {
	return s.parties.GetClient(ctx, partyID)
}

// ActiveManagers lists managers eligible for escalation alerts.
func (s *RegistryService) ActiveManagers(ctx context.Context) ([]domain.Party, error) {
	return s.parties.ListActiveByRole(ctx, domain.RoleManager)
}

// AvailableContractors lists active contractors not currently holding an
// in_work order. Derived on demand, never stored.
func (s *RegistryService) AvailableContractors(ctx context.Context) ([]domain.Party, error) {
	return s.parties.ListAvailableContractors(ctx)
}

// DeactivateContractor retires a contractor: their in_work orders go back to
// the open pool with assignment fields and notification latches reset, and
// the party becomes inactive. One atomic unit.
func (s *RegistryService) DeactivateContractor(ctx context.Context, contractorID string) error {
	if err := s.parties.DeactivateContractor(ctx, contractorID); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventContractorDeactivated,
		ActorID:   contractorID,
		ActorRole: domain.RoleContractor,
		Timestamp: time.Now(),
		Payload:   events.ContractorDeactivatedPayload{ContractorID: contractorID},
	})
	return nil
}

func (s *RegistryService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
