package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportdesk/orderbot/internal/domain"
)

// PartyRepository handles persistence for bot parties and contractor reservations.
type PartyRepository interface {
	Create(ctx context.Context, party *domain.Party) error
	GetByID(ctx context.Context, id string) (*domain.Party, error)
	GetActiveByChatID(ctx context.Context, chatID int64) (*domain.Party, error)
	GetActiveByNick(ctx context.Context, nick string) (*domain.Party, error)
	UpdateContact(ctx context.Context, id string, chatID *int64, nick string) error
	UpdateBotState(ctx context.Context, id string, state *string) error
	ListActiveByRole(ctx context.Context, role domain.Role) ([]domain.Party, error)
	ListAvailableContractors(ctx context.Context) ([]domain.Party, error)
	GetClient(ctx context.Context, partyID string) (*domain.Client, error)
	ReservedContractors(ctx context.Context, clientID string) ([]domain.Party, error)
	ReserveContractor(ctx context.Context, clientID, contractorID string) (bool, error)
	DeactivateContractor(ctx context.Context, contractorID string) error
}

const partyColumns = `id, tg_nick, chat_id, role, status, bot_state, created_at`

type partyRepository struct {
	pool *pgxpool.Pool
}

// NewPartyRepository instantiates the repository.
func NewPartyRepository(pool *pgxpool.Pool) PartyRepository {
	return &partyRepository{pool: pool}
}

func (r *partyRepository) Create(ctx context.Context, party *domain.Party) error {
	const query = `
        INSERT INTO parties (tg_nick, chat_id, role, status, bot_state)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		party.Nick,
		party.ChatID,
		party.Role,
		party.Status,
		party.BotState,
	).Scan(&party.ID, &party.CreatedAt)
}

func (r *partyRepository) GetByID(ctx context.Context, id string) (*domain.Party, error) {
	const query = `SELECT ` + partyColumns + ` FROM parties WHERE id=$1`
	return scanParty(r.pool.QueryRow(ctx, query, id))
}

func (r *partyRepository) GetActiveByChatID(ctx context.Context, chatID int64) (*domain.Party, error) {
	const query = `SELECT ` + partyColumns + ` FROM parties WHERE chat_id=$1 AND status=$2`
	return scanParty(r.pool.QueryRow(ctx, query, chatID, domain.PartyStatusActive))
}

func (r *partyRepository) GetActiveByNick(ctx context.Context, nick string) (*domain.Party, error) {
	const query = `SELECT ` + partyColumns + ` FROM parties WHERE tg_nick=$1 AND status=$2`
	return scanParty(r.pool.QueryRow(ctx, query, nick, domain.PartyStatusActive))
}

func (r *partyRepository) UpdateContact(ctx context.Context, id string, chatID *int64, nick string) error {
	const query = `UPDATE parties SET chat_id=$1, tg_nick=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, chatID, nick, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *partyRepository) UpdateBotState(ctx context.Context, id string, state *string) error {
	const query = `UPDATE parties SET bot_state=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, state, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *partyRepository) ListActiveByRole(ctx context.Context, role domain.Role) ([]domain.Party, error) {
	const query = `SELECT ` + partyColumns + ` FROM parties WHERE role=$1 AND status=$2 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, role, domain.PartyStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParties(rows)
}

// ListAvailableContractors returns active contractors not holding an in_work
// order. Availability is derived here, never stored.
func (r *partyRepository) ListAvailableContractors(ctx context.Context) ([]domain.Party, error) {
	const query = `
        SELECT ` + partyColumns + ` FROM parties
        WHERE role=$1 AND status=$2
          AND id NOT IN (SELECT contractor_id FROM orders WHERE status=$3 AND contractor_id IS NOT NULL)
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, domain.RoleContractor, domain.PartyStatusActive, domain.OrderStatusInWork)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParties(rows)
}

func (r *partyRepository) GetClient(ctx context.Context, partyID string) (*domain.Client, error) {
	const query = `
        SELECT p.id, p.tg_nick, p.chat_id, p.role, p.status, p.bot_state, p.created_at,
               cp.paid,
               t.id, t.name, t.orders_limit, t.reaction_time_minutes,
               t.can_reserve_contractor, t.can_see_contractor_contacts, t.price
        FROM parties p
        JOIN client_profiles cp ON cp.party_id = p.id
        JOIN tariffs t ON t.id = cp.tariff_id
        WHERE p.id = $1`
	client := &domain.Client{}
	err := r.pool.QueryRow(ctx, query, partyID).Scan(
		&client.ID,
		&client.Nick,
		&client.ChatID,
		&client.Role,
		&client.Status,
		&client.BotState,
		&client.CreatedAt,
		&client.Paid,
		&client.Tariff.ID,
		&client.Tariff.Name,
		&client.Tariff.OrdersLimit,
		&client.Tariff.ReactionTimeMinutes,
		&client.Tariff.CanReserveContractor,
		&client.Tariff.CanSeeContractorContacts,
		&client.Tariff.Price,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return client, nil
}

func (r *partyRepository) ReservedContractors(ctx context.Context, clientID string) ([]domain.Party, error) {
	const query = `
        SELECT p.id, p.tg_nick, p.chat_id, p.role, p.status, p.bot_state, p.created_at
        FROM reserved_contractors rc
        JOIN parties p ON p.id = rc.contractor_id
        WHERE rc.client_id = $1
        ORDER BY rc.created_at`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParties(rows)
}

// ReserveContractor reports false when the pair already existed, which callers
// surface as an idempotent no-op.
func (r *partyRepository) ReserveContractor(ctx context.Context, clientID, contractorID string) (bool, error) {
	const query = `
        INSERT INTO reserved_contractors (client_id, contractor_id)
        VALUES ($1,$2)
        ON CONFLICT (client_id, contractor_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, clientID, contractorID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// DeactivateContractor releases the contractor's in_work orders back to the
// open pool and marks the party inactive, all in one transaction.
func (r *partyRepository) DeactivateContractor(ctx context.Context, contractorID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const releaseQuery = `
        UPDATE orders SET
            status=$1, contractor_id=NULL, assigned_at=NULL, estimated_hours=NULL,
            not_taken_manager_informed=FALSE, late_work_manager_informed=FALSE,
            in_work_client_informed=FALSE
        WHERE contractor_id=$2 AND status=$3`
	if _, err := tx.Exec(ctx, releaseQuery, domain.OrderStatusCreated, contractorID, domain.OrderStatusInWork); err != nil {
		return err
	}

	const deactivateQuery = `UPDATE parties SET status=$1 WHERE id=$2 AND role=$3`
	cmd, err := tx.Exec(ctx, deactivateQuery, domain.PartyStatusInactive, contractorID, domain.RoleContractor)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit(ctx)
}

func scanParty(row pgx.Row) (*domain.Party, error) {
	party := &domain.Party{}
	err := row.Scan(
		&party.ID,
		&party.Nick,
		&party.ChatID,
		&party.Role,
		&party.Status,
		&party.BotState,
		&party.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return party, nil
}

func scanParties(rows pgx.Rows) ([]domain.Party, error) {
	var parties []domain.Party
	for rows.Next() {
		var party domain.Party
		if err := rows.Scan(
			&party.ID,
			&party.Nick,
			&party.ChatID,
			&party.Role,
			&party.Status,
			&party.BotState,
			&party.CreatedAt,
		); err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}
	return parties, rows.Err()
}
