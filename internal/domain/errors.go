package domain

import "errors"

var (
	ErrNoOffers               = errors.New("no offers to rank")
	ErrInvalidPrice           = errors.New("offer price must be positive")
	ErrInvalidRoute           = errors.New("origin and destination must be 3-letter IATA codes")
	ErrInvalidDate            = errors.New("date must be in YYYY-MM-DD format")
	ErrUserRefRequired        = errors.New("user reference required")
	ErrOrderNotFound          = errors.New("order not found")
	ErrResultNotFound         = errors.New("result not found")
	ErrInvalidID              = errors.New("invalid id")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrInvalidTransition      = errors.New("invalid order status transition")
	ErrUnknownEventKind       = errors.New("unknown event kind")
	ErrDuplicateEvent         = errors.New("event already applied")
	ErrConflictingEntitlement = errors.New("entitlement already unlocked by another order")
)
