package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Order tracks a service-fee payment intent. It is owned by the ledger and
// mutated only through payment state machine transitions.
type Order struct {
	ID          string
	UserRef     string
	Amount      int64
	Currency    string
	Status      OrderStatus
	ProviderRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// allowedTransitions is the full edge set of the order lifecycle. Failed,
// Cancelled and Refunded are terminal; Paid only leads to Refunded.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s OrderStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// EventKind is the provider-agnostic classification of a payment notification.
type EventKind string

const (
	EventKindSuccess EventKind = "success"
	EventKindFailure EventKind = "failure"
	EventKindCancel  EventKind = "cancel"
	EventKindRefund  EventKind = "refund"
)

// TargetStatus maps an event kind to the status it drives an order into.
func (k EventKind) TargetStatus() (OrderStatus, bool) {
	switch k {
	case EventKindSuccess:
		return OrderStatusPaid, true
	case EventKindFailure:
		return OrderStatusFailed, true
	case EventKindCancel:
		return OrderStatusCancelled, true
	case EventKindRefund:
		return OrderStatusRefunded, true
	default:
		return "", false
	}
}
