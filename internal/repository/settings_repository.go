package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportdesk/orderbot/internal/domain"
)

// SettingsRepository reads and writes the sparse system_settings override table.
type SettingsRepository interface {
	Get(ctx context.Context, name string) (string, error)
	List(ctx context.Context) ([]domain.Setting, error)
	Upsert(ctx context.Context, setting domain.Setting) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository instantiates the repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Get(ctx context.Context, name string) (string, error) {
	const query = `SELECT parameter_value FROM system_settings WHERE parameter_name=$1`
	var value string
	err := r.pool.QueryRow(ctx, query, name).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *settingsRepository) List(ctx context.Context) ([]domain.Setting, error) {
	const query = `SELECT parameter_name, parameter_value, description FROM system_settings ORDER BY parameter_name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []domain.Setting
	for rows.Next() {
		var setting domain.Setting
		if err := rows.Scan(&setting.Name, &setting.Value, &setting.Description); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

func (r *settingsRepository) Upsert(ctx context.Context, setting domain.Setting) error {
	const query = `
        INSERT INTO system_settings (parameter_name, parameter_value, description)
        VALUES ($1,$2,$3)
        ON CONFLICT (parameter_name) DO UPDATE
            SET parameter_value = EXCLUDED.parameter_value,
                description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description
                                   ELSE system_settings.description END`
	_, err := r.pool.Exec(ctx, query, setting.Name, setting.Value, setting.Description)
	return err
}
