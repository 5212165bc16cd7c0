package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportdesk/orderbot/internal/domain"
)

// TariffRepository reads the immutable tariff catalog.
type TariffRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Tariff, error)
	List(ctx context.Context) ([]domain.Tariff, error)
}

const tariffColumns = `
    id, name, orders_limit, reaction_time_minutes,
    can_reserve_contractor, can_see_contractor_contacts, price`

type tariffRepository struct {
	pool *pgxpool.Pool
}

// NewTariffRepository instantiates the repository.
func NewTariffRepository(pool *pgxpool.Pool) TariffRepository {
	return &tariffRepository{pool: pool}
}

func (r *tariffRepository) GetByID(ctx context.Context, id string) (*domain.Tariff, error) {
	const query = `SELECT` + tariffColumns + ` FROM tariffs WHERE id=$1`
	tariff := &domain.Tariff{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tariff.ID,
		&tariff.Name,
		&tariff.OrdersLimit,
		&tariff.ReactionTimeMinutes,
		&tariff.CanReserveContractor,
		&tariff.CanSeeContractorContacts,
		&tariff.Price,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return tariff, nil
}

func (r *tariffRepository) List(ctx context.Context) ([]domain.Tariff, error) {
	const query = `SELECT` + tariffColumns + ` FROM tariffs ORDER BY price`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tariffs []domain.Tariff
	for rows.Next() {
		var tariff domain.Tariff
		if err := rows.Scan(
			&tariff.ID,
			&tariff.Name,
			&tariff.OrdersLimit,
			&tariff.ReactionTimeMinutes,
			&tariff.CanReserveContractor,
			&tariff.CanSeeContractorContacts,
			&tariff.Price,
		); err != nil {
			return nil, err
		}
		tariffs = append(tariffs, tariff)
	}
	return tariffs, rows.Err()
}
