package domain

import "time"

// Entitlement grants a user access to the paid tier of ranked results.
// Unlocking is monotonic: once set it is only reset through the admin path.
type Entitlement struct {
	UserRef    string
	UnlockedBy string
	UnlockedAt time.Time
}

// EntitlementConflict records a paid order that could not unlock because a
// different order already holds the entitlement. First successful order wins;
// the rest are queued here for operator reconciliation.
type EntitlementConflict struct {
	UserRef         string
	HoldingOrderID  string
	RejectedOrderID string
	CreatedAt       time.Time
}
