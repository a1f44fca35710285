package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Offer is a single priced flight itinerary. Immutable once ranked.
type Offer struct {
	ID           string
	Price        int64
	Currency     string
	Origin       string
	Destination  string
	Carrier      string
	FlightNumber string
	DepartAt     time.Time
	Duration     time.Duration
	Transfers    int
	Link         string
}

// OfferID derives the deduplication identifier for an itinerary. Price is
// deliberately excluded so that the same flight quoted at different prices
// collapses to one offer (the cheapest quote wins during ranking).
func OfferID(origin, destination, carrier, flightNumber string, departAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf(
		"%s|%s|%s|%s|%s",
		origin, destination, carrier, flightNumber, departAt.UTC().Format(time.RFC3339),
	)))
	return hex.EncodeToString(sum[:16])
}

// RankedResult is an ordered, deduplicated offer set partitioned into a free
// preview and an entitlement-gated remainder.
type RankedResult struct {
	Fingerprint  string
	Offers       []Offer
	FreeBoundary int
	Total        int
}

// FreeTier returns the unconditionally visible offers.
func (r RankedResult) FreeTier() []Offer {
	return r.Offers[:r.FreeBoundary]
}

// PaidTier returns the offers that require an unlocked entitlement.
func (r RankedResult) PaidTier() []Offer {
	return r.Offers[r.FreeBoundary:]
}
