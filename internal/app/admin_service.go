package app

import (
	"context"

	"github.com/Ukt21/avia/internal/domain"
)

// AdminLedger is the read side of the ledger exposed to operators.
type AdminLedger interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrdersByUser(ctx context.Context, userRef string) ([]domain.Order, error)
}

// AdminEntitlements covers the operator-only entitlement operations.
type AdminEntitlements interface {
	Get(ctx context.Context, userRef string) (*domain.Entitlement, error)
	Lock(ctx context.Context, userRef string) error
	ListConflicts(ctx context.Context) ([]domain.EntitlementConflict, error)
}

// AdminService backs the operator surface used to inspect orders and
// reconcile entitlement conflicts. It is never reachable from the payment
// flow.
type AdminService struct {
	ledger       AdminLedger
	entitlements AdminEntitlements
}

func NewAdminService(ledger AdminLedger, entitlements AdminEntitlements) *AdminService {
	return &AdminService{
		ledger:       ledger,
		entitlements: entitlements,
	}
}

func (s *AdminService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrInvalidID
	}
	return s.ledger.GetOrder(ctx, orderID)
}

func (s *AdminService) ListOrdersByUser(ctx context.Context, userRef string) ([]domain.Order, error) {
	if userRef == "" {
		return nil, domain.ErrUserRefRequired
	}
	return s.ledger.ListOrdersByUser(ctx, userRef)
}

func (s *AdminService) GetEntitlement(ctx context.Context, userRef string) (*domain.Entitlement, error) {
	if userRef == "" {
		return nil, domain.ErrUserRefRequired
	}
	return s.entitlements.Get(ctx, userRef)
}

// LockEntitlement re-locks a user's paid tier. Administrative reset only.
func (s *AdminService) LockEntitlement(ctx context.Context, userRef string) error {
	if userRef == "" {
		return domain.ErrUserRefRequired
	}
	return s.entitlements.Lock(ctx, userRef)
}

func (s *AdminService) ListConflicts(ctx context.Context) ([]domain.EntitlementConflict, error) {
	return s.entitlements.ListConflicts(ctx)
}
