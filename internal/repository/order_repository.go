package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportdesk/orderbot/internal/domain"
)

// ClientOrderCount is one row of the per-client order statistics.
type ClientOrderCount struct {
	ClientNick string
	Count      int
}

// ContractorOrderCount is one row of the per-contractor billing statistics.
type ContractorOrderCount struct {
	ContractorNick string
	Count          int
}

// OrderRepository handles persistence for orders. Every mutation is a single
// SQL statement guarded by a status predicate, so concurrent lifecycle calls
// and sweeps serialize at the database and partial writes are never visible.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ActiveByClient(ctx context.Context, clientID string) (*domain.Order, error)
	InWorkByContractor(ctx context.Context, contractorID string) (*domain.Order, error)
	ListOpen(ctx context.Context) ([]domain.Order, error)
	CountCreatedSince(ctx context.Context, clientID string, since time.Time) (int, error)
	LastClosedContractorID(ctx context.Context, clientID string) (string, error)
	ContractorsOfClosedOrders(ctx context.Context, clientID string) ([]domain.Party, error)

	TakeInWork(ctx context.Context, orderID, contractorID string, at time.Time) (bool, error)
	Close(ctx context.Context, orderID string, at time.Time) (bool, error)
	Cancel(ctx context.Context, orderID string, at time.Time) (bool, error)
	SetEstimate(ctx context.Context, orderID string, hours int) (bool, error)

	ListUnassignedUnalerted(ctx context.Context) ([]domain.OrderView, error)
	ListOverdueCandidates(ctx context.Context) ([]domain.OrderView, error)
	ListFanoutCandidates(ctx context.Context) ([]domain.OrderView, error)
	ListInWorkClientUninformed(ctx context.Context) ([]domain.OrderView, error)
	ListClosedClientUninformed(ctx context.Context) ([]domain.OrderView, error)

	MarkNotTakenAlerted(ctx context.Context, ids []string) error
	MarkLateAlerted(ctx context.Context, ids []string) error
	MarkAssignedInformed(ctx context.Context, id string) error
	MarkAllInformed(ctx context.Context, id string) error
	MarkInWorkClientInformed(ctx context.Context, id string) error
	MarkClosedClientInformed(ctx context.Context, id string) error

	FirstOrderAt(ctx context.Context) (*time.Time, error)
	ClientCountsBetween(ctx context.Context, from, to time.Time) ([]ClientOrderCount, error)
	ContractorClosedCountsBetween(ctx context.Context, from, to time.Time) ([]ContractorOrderCount, error)
}

const orderColumns = `
    id, task, client_id, contractor_id, status, created_at, assigned_at, closed_at,
    not_taken_manager_informed, late_work_manager_informed,
    in_work_client_informed, closed_client_informed,
    assigned_contractors_informed, all_contractors_informed,
    creds, estimated_hours`

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates the repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	const query = `
        INSERT INTO orders (task, client_id, status, creds)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		order.Task,
		order.ClientID,
		order.Status,
		order.Creds,
	).Scan(&order.ID, &order.CreatedAt)
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	const query = `SELECT` + orderColumns + ` FROM orders WHERE id=$1`
	return scanOrderRow(r.pool.QueryRow(ctx, query, id))
}

func (r *orderRepository) ActiveByClient(ctx context.Context, clientID string) (*domain.Order, error) {
	const query = `
        SELECT` + orderColumns + `
        FROM orders WHERE client_id=$1 AND status IN ($2,$3)
        ORDER BY created_at DESC LIMIT 1`
	return scanOrderRow(r.pool.QueryRow(ctx, query, clientID, domain.OrderStatusCreated, domain.OrderStatusInWork))
}

func (r *orderRepository) InWorkByContractor(ctx context.Context, contractorID string) (*domain.Order, error) {
	const query = `
        SELECT` + orderColumns + `
        FROM orders WHERE contractor_id=$1 AND status=$2
        ORDER BY assigned_at DESC LIMIT 1`
	return scanOrderRow(r.pool.QueryRow(ctx, query, contractorID, domain.OrderStatusInWork))
}

func (r *orderRepository) ListOpen(ctx context.Context) ([]domain.Order, error) {
	const query = `SELECT` + orderColumns + ` FROM orders WHERE status=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, domain.OrderStatusCreated)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// CountCreatedSince counts the client's non-cancelled orders created at or
// after the billing-cycle start; cancelled orders give the slot back.
func (r *orderRepository) CountCreatedSince(ctx context.Context, clientID string, since time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM orders
        WHERE client_id=$1 AND created_at >= $2 AND status <> $3`
	var count int
	err := r.pool.QueryRow(ctx, query, clientID, since, domain.OrderStatusCancelled).Scan(&count)
	return count, err
}

func (r *orderRepository) LastClosedContractorID(ctx context.Context, clientID string) (string, error) {
	const query = `
        SELECT contractor_id FROM orders
        WHERE client_id=$1 AND status=$2 AND contractor_id IS NOT NULL
        ORDER BY closed_at DESC LIMIT 1`
	var contractorID string
	err := r.pool.QueryRow(ctx, query, clientID, domain.OrderStatusClosed).Scan(&contractorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return contractorID, nil
}

func (r *orderRepository) ContractorsOfClosedOrders(ctx context.Context, clientID string) ([]domain.Party, error) {
	const query = `
        SELECT DISTINCT p.id, p.tg_nick, p.chat_id, p.role, p.status, p.bot_state, p.created_at
        FROM orders o
        JOIN parties p ON p.id = o.contractor_id
        WHERE o.client_id=$1 AND o.status=$2`
	rows, err := r.pool.Query(ctx, query, clientID, domain.OrderStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParties(rows)
}

// TakeInWork moves created -> in_work in one statement: sets the contractor
// and assignment time, resets both manager latches and any stale estimate.
// Reports false when the order was not in created status anymore.
func (r *orderRepository) TakeInWork(ctx context.Context, orderID, contractorID string, at time.Time) (bool, error) {
	const query = `
        UPDATE orders SET
            contractor_id=$1, assigned_at=$2, status=$3,
            not_taken_manager_informed=FALSE, late_work_manager_informed=FALSE,
            estimated_hours=NULL
        WHERE id=$4 AND status=$5`
	cmd, err := r.pool.Exec(ctx, query, contractorID, at, domain.OrderStatusInWork, orderID, domain.OrderStatusCreated)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *orderRepository) Close(ctx context.Context, orderID string, at time.Time) (bool, error) {
	const query = `
        UPDATE orders SET closed_at=$1, status=$2, creds=''
        WHERE id=$3 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query, at, domain.OrderStatusClosed, orderID, domain.OrderStatusInWork)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *orderRepository) Cancel(ctx context.Context, orderID string, at time.Time) (bool, error) {
	const query = `
        UPDATE orders SET closed_at=$1, status=$2, creds=''
        WHERE id=$3 AND status IN ($4,$5)`
	cmd, err := r.pool.Exec(ctx, query, at, domain.OrderStatusCancelled, orderID, domain.OrderStatusCreated, domain.OrderStatusInWork)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *orderRepository) SetEstimate(ctx context.Context, orderID string, hours int) (bool, error) {
	const query = `UPDATE orders SET estimated_hours=$1 WHERE id=$2 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, hours, orderID, domain.OrderStatusInWork)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

const orderViewQuery = `
    SELECT o.id, o.task, o.client_id, o.contractor_id, o.status, o.created_at, o.assigned_at, o.closed_at,
           o.not_taken_manager_informed, o.late_work_manager_informed,
           o.in_work_client_informed, o.closed_client_informed,
           o.assigned_contractors_informed, o.all_contractors_informed,
           o.creds, o.estimated_hours,
           c.tg_nick, c.chat_id, t.reaction_time_minutes,
           COALESCE(ct.tg_nick, ''), ct.chat_id
    FROM orders o
    JOIN parties c ON c.id = o.client_id
    JOIN client_profiles cp ON cp.party_id = o.client_id
    JOIN tariffs t ON t.id = cp.tariff_id
    LEFT JOIN parties ct ON ct.id = o.contractor_id`

func (r *orderRepository) ListUnassignedUnalerted(ctx context.Context) ([]domain.OrderView, error) {
	const query = orderViewQuery + `
        WHERE o.status=$1 AND o.not_taken_manager_informed=FALSE
        ORDER BY o.created_at`
	return r.queryViews(ctx, query, domain.OrderStatusCreated)
}

func (r *orderRepository) ListOverdueCandidates(ctx context.Context) ([]domain.OrderView, error) {
	const query = orderViewQuery + `
        WHERE o.status=$1 AND o.late_work_manager_informed=FALSE
        ORDER BY o.assigned_at`
	return r.queryViews(ctx, query, domain.OrderStatusInWork)
}

func (r *orderRepository) ListFanoutCandidates(ctx context.Context) ([]domain.OrderView, error) {
	const query = orderViewQuery + `
        WHERE o.status=$1 AND o.all_contractors_informed=FALSE
        ORDER BY o.created_at`
	return r.queryViews(ctx, query, domain.OrderStatusCreated)
}

func (r *orderRepository) ListInWorkClientUninformed(ctx context.Context) ([]domain.OrderView, error) {
	const query = orderViewQuery + `
        WHERE o.status=$1 AND o.in_work_client_informed=FALSE
        ORDER BY o.assigned_at`
	return r.queryViews(ctx, query, domain.OrderStatusInWork)
}

func (r *orderRepository) ListClosedClientUninformed(ctx context.Context) ([]domain.OrderView, error) {
	const query = orderViewQuery + `
        WHERE o.status=$1 AND o.closed_client_informed=FALSE
        ORDER BY o.closed_at`
	return r.queryViews(ctx, query, domain.OrderStatusClosed)
}

func (r *orderRepository) MarkNotTakenAlerted(ctx context.Context, ids []string) error {
	const query = `UPDATE orders SET not_taken_manager_informed=TRUE WHERE id = ANY($1)`
	return r.bulkMark(ctx, query, ids)
}

func (r *orderRepository) MarkLateAlerted(ctx context.Context, ids []string) error {
	const query = `UPDATE orders SET late_work_manager_informed=TRUE WHERE id = ANY($1)`
	return r.bulkMark(ctx, query, ids)
}

func (r *orderRepository) MarkAssignedInformed(ctx context.Context, id string) error {
	const query = `UPDATE orders SET assigned_contractors_informed=TRUE WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *orderRepository) MarkAllInformed(ctx context.Context, id string) error {
	const query = `
        UPDATE orders SET assigned_contractors_informed=TRUE, all_contractors_informed=TRUE
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *orderRepository) MarkInWorkClientInformed(ctx context.Context, id string) error {
	const query = `UPDATE orders SET in_work_client_informed=TRUE WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *orderRepository) MarkClosedClientInformed(ctx context.Context, id string) error {
	const query = `UPDATE orders SET closed_client_informed=TRUE WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *orderRepository) FirstOrderAt(ctx context.Context) (*time.Time, error) {
	const query = `SELECT MIN(created_at) FROM orders WHERE status <> $1`
	var first *time.Time
	if err := r.pool.QueryRow(ctx, query, domain.OrderStatusCancelled).Scan(&first); err != nil {
		return nil, err
	}
	return first, nil
}

func (r *orderRepository) ClientCountsBetween(ctx context.Context, from, to time.Time) ([]ClientOrderCount, error) {
	const query = `
        SELECT p.tg_nick, COUNT(o.id)
        FROM orders o
        JOIN parties p ON p.id = o.client_id
        WHERE o.status <> $1 AND o.created_at > $2 AND o.created_at <= $3
        GROUP BY p.tg_nick
        ORDER BY p.tg_nick`
	rows, err := r.pool.Query(ctx, query, domain.OrderStatusCancelled, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ClientOrderCount
	for rows.Next() {
		var row ClientOrderCount
		if err := rows.Scan(&row.ClientNick, &row.Count); err != nil {
			return nil, err
		}
		counts = append(counts, row)
	}
	return counts, rows.Err()
}

func (r *orderRepository) ContractorClosedCountsBetween(ctx context.Context, from, to time.Time) ([]ContractorOrderCount, error) {
	const query = `
        SELECT p.tg_nick, COUNT(o.id)
        FROM orders o
        JOIN parties p ON p.id = o.contractor_id
        WHERE o.status = $1 AND o.closed_at > $2 AND o.closed_at <= $3
        GROUP BY p.tg_nick
        ORDER BY p.tg_nick`
	rows, err := r.pool.Query(ctx, query, domain.OrderStatusClosed, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ContractorOrderCount
	for rows.Next() {
		var row ContractorOrderCount
		if err := rows.Scan(&row.ContractorNick, &row.Count); err != nil {
			return nil, err
		}
		counts = append(counts, row)
	}
	return counts, rows.Err()
}

func (r *orderRepository) bulkMark(ctx context.Context, query string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, query, ids)
	return err
}

func (r *orderRepository) queryViews(ctx context.Context, query string, args ...any) ([]domain.OrderView, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []domain.OrderView
	for rows.Next() {
		var view domain.OrderView
		if err := rows.Scan(
			&view.ID,
			&view.Task,
			&view.ClientID,
			&view.ContractorID,
			&view.Status,
			&view.CreatedAt,
			&view.AssignedAt,
			&view.ClosedAt,
			&view.NotTakenManagerInformed,
			&view.LateWorkManagerInformed,
			&view.InWorkClientInformed,
			&view.ClosedClientInformed,
			&view.AssignedContractorsInformed,
			&view.AllContractorsInformed,
			&view.Creds,
			&view.EstimatedHours,
			&view.ClientNick,
			&view.ClientChatID,
			&view.ReactionTimeMinutes,
			&view.ContractorNick,
			&view.ContractorChatID,
		); err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func scanOrderRow(row pgx.Row) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.Task,
		&order.ClientID,
		&order.ContractorID,
		&order.Status,
		&order.CreatedAt,
		&order.AssignedAt,
		&order.ClosedAt,
		&order.NotTakenManagerInformed,
		&order.LateWorkManagerInformed,
		&order.InWorkClientInformed,
		&order.ClosedClientInformed,
		&order.AssignedContractorsInformed,
		&order.AllContractorsInformed,
		&order.Creds,
		&order.EstimatedHours,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func scanOrders(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.Task,
			&order.ClientID,
			&order.ContractorID,
			&order.Status,
			&order.CreatedAt,
			&order.AssignedAt,
			&order.ClosedAt,
			&order.NotTakenManagerInformed,
			&order.LateWorkManagerInformed,
			&order.InWorkClientInformed,
			&order.ClosedClientInformed,
			&order.AssignedContractorsInformed,
			&order.AllContractorsInformed,
			&order.Creds,
			&order.EstimatedHours,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
