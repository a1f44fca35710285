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

// EntitlementRepository tracks per-user paid-tier unlocks and the operator
// queue of conflicting paid orders.
type EntitlementRepository struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepository(pool *pgxpool.Pool) *EntitlementRepository {
	return &EntitlementRepository{pool: pool}
}

func (r *EntitlementRepository) IsUnlocked(ctx context.Context, userRef string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_ref = $1)`

	var unlocked bool
	if err := r.queryRow(ctx, query, userRef).Scan(&unlocked); err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return unlocked, nil
}

func (r *EntitlementRepository) Get(ctx context.Context, userRef string) (*domain.Entitlement, error) {
	const query = `SELECT user_ref, unlocked_by, unlocked_at FROM entitlements WHERE user_ref = $1`

	var e domain.Entitlement
	err := r.queryRow(ctx, query, userRef).Scan(&e.UserRef, &e.UnlockedBy, &e.UnlockedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	return &e, nil
}

// Unlock grants the paid tier once. A repeat unlock by the same order is a
// no-op. An unlock attempt by a different order reports a conflict only while
// the holding order is still Paid; once the holder is refunded, the new order
// takes the grant over.
func (r *EntitlementRepository) Unlock(ctx context.Context, userRef, orderID string, at time.Time) error {
	const stmt = `
INSERT INTO entitlements (user_ref, unlocked_by, unlocked_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_ref) DO NOTHING`

	tag, err := r.exec(ctx, stmt, userRef, orderID, at)
	if err != nil {
		return fmt.Errorf("unlock entitlement: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var holder string
	if err := r.queryRow(ctx, `SELECT unlocked_by FROM entitlements WHERE user_ref = $1`, userRef).Scan(&holder); err != nil {
		return fmt.Errorf("read existing entitlement: %w", err)
	}
	if holder == orderID {
		return nil
	}

	const takeover = `
UPDATE entitlements e SET unlocked_by = $2, unlocked_at = $3
FROM orders o
WHERE e.user_ref = $1 AND o.id = e.unlocked_by AND o.status <> 'paid'`

	tag, err = r.exec(ctx, takeover, userRef, orderID, at)
	if err != nil {
		return fmt.Errorf("take over entitlement: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return domain.ErrConflictingEntitlement
}

// Lock removes a user's unlock. Administrative reset only.
func (r *EntitlementRepository) Lock(ctx context.Context, userRef string) error {
	if _, err := r.exec(ctx, `DELETE FROM entitlements WHERE user_ref = $1`, userRef); err != nil {
		return fmt.Errorf("lock entitlement: %w", err)
	}
	return nil
}

func (r *EntitlementRepository) RecordConflict(ctx context.Context, c domain.EntitlementConflict) error {
	const stmt = `
INSERT INTO entitlement_conflicts (user_ref, holding_order_id, rejected_order_id, created_at)
VALUES ($1, NULLIF($2, ''), $3, $4)`

	if _, err := r.exec(ctx, stmt, c.UserRef, c.HoldingOrderID, c.RejectedOrderID, c.CreatedAt); err != nil {
		return fmt.Errorf("record conflict: %w", err)
	}
	return nil
}

func (r *EntitlementRepository) ListConflicts(ctx context.Context) ([]domain.EntitlementConflict, error) {
	const query = `
SELECT user_ref, COALESCE(holding_order_id::text, ''), rejected_order_id, created_at
FROM entitlement_conflicts
ORDER BY created_at`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []domain.EntitlementConflict
	for rows.Next() {
		var c domain.EntitlementConflict
		if err := rows.Scan(&c.UserRef, &c.HoldingOrderID, &c.RejectedOrderID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

func (r *EntitlementRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *EntitlementRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *EntitlementRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
