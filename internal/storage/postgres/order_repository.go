package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Ukt21/avia/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository is the durable order ledger plus the per-order set of
// applied provider event refs.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, user_ref, amount, currency, status, provider_ref, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`

	_, err := r.exec(ctx, stmt,
		order.ID, order.UserRef, order.Amount, order.Currency,
		string(order.Status), order.ProviderRef, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_ref, amount, currency, status, COALESCE(provider_ref, ''), created_at, updated_at`

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrder(r.queryRow(ctx, query, orderID))
}

// GetOrderForUpdate locks the order row so concurrent webhook deliveries for
// the same order serialize on the ledger.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.scanOrder(r.queryRow(ctx, query, orderID))
}

func (r *OrderRepository) scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.UserRef, &o.Amount, &o.Currency, &status, &o.ProviderRef, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error {
	const stmt = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, orderID, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) HasProviderEvent(ctx context.Context, orderID, eventRef string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM order_events WHERE order_id = $1 AND event_ref = $2)`

	var seen bool
	if err := r.queryRow(ctx, query, orderID, eventRef).Scan(&seen); err != nil {
		return false, fmt.Errorf("check provider event: %w", err)
	}
	return seen, nil
}

func (r *OrderRepository) RecordProviderEvent(ctx context.Context, orderID, eventRef string, kind domain.EventKind, appliedAt time.Time) error {
	const stmt = `
INSERT INTO order_events (order_id, event_ref, kind, applied_at)
VALUES ($1, $2, $3, $4)`

	_, err := r.exec(ctx, stmt, orderID, eventRef, string(kind), appliedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("record provider event: %w", err)
	}
	return nil
}

// ExpireCreatedBefore cancels Created orders older than the cutoff and
// returns how many were swept.
func (r *OrderRepository) ExpireCreatedBefore(ctx context.Context, cutoff, updatedAt time.Time) (int64, error) {
	const stmt = `
UPDATE orders SET status = 'cancelled', updated_at = $2
WHERE status = 'created' AND created_at < $1`

	tag, err := r.exec(ctx, stmt, cutoff, updatedAt)
	if err != nil {
		return 0, fmt.Errorf("expire created orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *OrderRepository) ListOrdersByUser(ctx context.Context, userRef string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_ref = $1 ORDER BY created_at DESC`

	rows, err := r.query(ctx, query, userRef)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserRef, &o.Amount, &o.Currency, &status, &o.ProviderRef, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OrderRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *OrderRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
