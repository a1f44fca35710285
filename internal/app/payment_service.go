package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Ukt21/avia/internal/clock"
	"github.com/Ukt21/avia/internal/domain"
)

// LedgerRepository is the durable order store the payment state machine
// operates on. All mutations for one order happen inside WithTx with the
// order row locked, so concurrent webhook deliveries serialize per order.
type LedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) error
	HasProviderEvent(ctx context.Context, orderID, eventRef string) (bool, error)
	RecordProviderEvent(ctx context.Context, orderID, eventRef string, kind domain.EventKind, appliedAt time.Time) error
	ExpireCreatedBefore(ctx context.Context, cutoff, updatedAt time.Time) (int64, error)
}

// EntitlementStore tracks which users have unlocked the paid tier.
type EntitlementStore interface {
	Get(ctx context.Context, userRef string) (*domain.Entitlement, error)
	Unlock(ctx context.Context, userRef, orderID string, at time.Time) error
	RecordConflict(ctx context.Context, conflict domain.EntitlementConflict) error
}

// PaymentConfig carries the provider credentials and service fee terms.
type PaymentConfig struct {
	SigningSecret   string
	FeeAmount       int64
	FeeCurrency     string
	CallbackBaseURL string
	OrderExpiry     time.Duration
}

type PaymentService struct {
	ledger       LedgerRepository
	entitlements EntitlementStore
	clock        clock.Clock
	secret       []byte
	cfg          PaymentConfig
}

func NewPaymentService(ledger LedgerRepository, entitlements EntitlementStore, clk clock.Clock, cfg PaymentConfig) *PaymentService {
	return &PaymentService{
		ledger:       ledger,
		entitlements: entitlements,
		clock:        clk,
		secret:       []byte(cfg.SigningSecret),
		cfg:          cfg,
	}
}

type CreateOrderResult struct {
	Order  domain.Order
	PayURL string
}

// CreateOrder opens a service-fee order in the Created state and returns the
// URL the user completes payment at.
func (s *PaymentService) CreateOrder(ctx context.Context, userRef string) (CreateOrderResult, error) {
	if userRef == "" {
		return CreateOrderResult{}, domain.ErrUserRefRequired
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:        newOrderID(),
		UserRef:   userRef,
		Amount:    s.cfg.FeeAmount,
		Currency:  s.cfg.FeeCurrency,
		Status:    domain.OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ledger.CreateOrder(ctx, order); err != nil {
		return CreateOrderResult{}, fmt.Errorf("create order: %w", err)
	}

	return CreateOrderResult{
		Order:  order,
		PayURL: s.cfg.CallbackBaseURL + "/pay/" + order.ID,
	}, nil
}

// MarkPending moves an order from Created to Pending once the provider has
// acknowledged the invoice. Any other starting state is a logic bug upstream.
func (s *PaymentService) MarkPending(ctx context.Context, orderID string) (domain.Order, error) {
	var result domain.Order
	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.ledger.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusCreated {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		if err := s.ledger.UpdateOrderStatus(txCtx, orderID, domain.OrderStatusPending, now); err != nil {
			return err
		}
		order.Status = domain.OrderStatusPending
		order.UpdatedAt = now
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return result, nil
}

type ApplyEventInput struct {
	OrderID  string
	Kind     domain.EventKind
	EventRef string
	// Payload is the raw provider body the signature covers.
	Payload   []byte
	Signature string
}

type ApplyEventResult struct {
	Status  domain.OrderStatus
	Applied bool
	// Unlocked is set when this event granted the paid-tier entitlement.
	Unlocked bool
	// UnlockErr surfaces an entitlement-side failure after a committed Paid
	// transition. The payment itself stands; only the unlock step is retried.
	UnlockErr error
}

// ApplyProviderEvent runs one payment notification through the state machine.
// The signature check is the sole gate against forged unlocks and happens
// before any ledger read. Replayed event refs are acknowledged without
// mutation.
func (s *PaymentService) ApplyProviderEvent(ctx context.Context, in ApplyEventInput) (ApplyEventResult, error) {
	if !s.verify(in.Payload, in.Signature) {
		return ApplyEventResult{}, domain.ErrUnauthenticated
	}

	target, ok := in.Kind.TargetStatus()
	if !ok {
		return ApplyEventResult{}, domain.ErrUnknownEventKind
	}

	var (
		result     ApplyEventResult
		unlockUser string
	)
	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.ledger.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			return err
		}

		seen, err := s.ledger.HasProviderEvent(txCtx, in.OrderID, in.EventRef)
		if err != nil {
			return err
		}
		if seen {
			result = ApplyEventResult{Status: order.Status, Applied: false}
			return nil
		}

		if !order.Status.CanTransition(target) {
			// A second success for an already-paid order is a benign
			// provider duplicate, not an inconsistency.
			if target == domain.OrderStatusPaid && order.Status == domain.OrderStatusPaid {
				result = ApplyEventResult{Status: order.Status, Applied: false}
				return nil
			}
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		if err := s.ledger.UpdateOrderStatus(txCtx, in.OrderID, target, now); err != nil {
			return err
		}
		if err := s.ledger.RecordProviderEvent(txCtx, in.OrderID, in.EventRef, in.Kind, now); err != nil {
			return err
		}

		result = ApplyEventResult{Status: target, Applied: true}
		if target == domain.OrderStatusPaid {
			unlockUser = order.UserRef
		}
		return nil
	})
	if err != nil {
		return ApplyEventResult{}, err
	}

	// The ledger transition is committed at this point; an unlock failure is
	// surfaced for retry but never reverses the payment.
	if unlockUser != "" {
		result = s.unlock(ctx, unlockUser, in.OrderID, result)
	}
	return result, nil
}

func (s *PaymentService) unlock(ctx context.Context, userRef, orderID string, result ApplyEventResult) ApplyEventResult {
	err := s.entitlements.Unlock(ctx, userRef, orderID, s.clock.Now())
	if err == nil {
		result.Unlocked = true
		return result
	}

	result.UnlockErr = err
	if errors.Is(err, domain.ErrConflictingEntitlement) {
		conflict := domain.EntitlementConflict{
			UserRef:         userRef,
			RejectedOrderID: orderID,
			CreatedAt:       s.clock.Now(),
		}
		if holder, getErr := s.entitlements.Get(ctx, userRef); getErr == nil && holder != nil {
			conflict.HoldingOrderID = holder.UnlockedBy
		}
		if recordErr := s.entitlements.RecordConflict(ctx, conflict); recordErr != nil {
			result.UnlockErr = fmt.Errorf("record entitlement conflict: %w", recordErr)
		}
	}
	return result
}

// ExpireStaleOrders cancels Created orders abandoned before payment for
// longer than the configured expiry.
func (s *PaymentService) ExpireStaleOrders(ctx context.Context) (int64, error) {
	if s.cfg.OrderExpiry <= 0 {
		return 0, nil
	}
	now := s.clock.Now()
	return s.ledger.ExpireCreatedBefore(ctx, now.Add(-s.cfg.OrderExpiry), now)
}

func (s *PaymentService) verify(payload []byte, signature string) bool {
	expected := Sign(s.secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the webhook signature the provider attaches to a delivery:
// hex HMAC-SHA256 of the raw event body under the shared secret. Signing the
// raw bytes lets the gateway authenticate a delivery before parsing it.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
