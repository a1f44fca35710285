package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Ukt21/avia/internal/domain"
	"github.com/Ukt21/avia/internal/ranking"
)

// SearchParams identifies one offer search against the provider.
type SearchParams struct {
	Origin      string
	Destination string
	DepartDate  string
	Currency    string
}

// Fingerprint hashes the normalized parameters; it keys the result cache and
// ties a later paid fetch back to the original search.
func (p SearchParams) Fingerprint() string {
	sum := sha256.Sum256([]byte(p.Origin + "|" + p.Destination + "|" + p.DepartDate + "|" + p.Currency))
	return hex.EncodeToString(sum[:16])
}

// OfferSource supplies raw offers for given search parameters. How they are
// fetched is the collaborator's concern.
type OfferSource interface {
	FetchOffers(ctx context.Context, params SearchParams) ([]domain.Offer, error)
}

// EntitlementChecker is the read side of the entitlement store.
type EntitlementChecker interface {
	IsUnlocked(ctx context.Context, userRef string) (bool, error)
}

// ResultCache stores full ranked sets between the free preview and a later
// entitled fetch.
type ResultCache interface {
	Put(result domain.RankedResult)
	Get(fingerprint string) (domain.RankedResult, bool)
}

type SearchService struct {
	source       OfferSource
	results      ResultCache
	entitlements EntitlementChecker
	currency     string
	paidCap      int
}

type SearchServiceOption func(*SearchService)

// WithPaidCap bounds the paid tier size passed to the ranker.
func WithPaidCap(n int) SearchServiceOption {
	return func(s *SearchService) {
		if n > 0 {
			s.paidCap = n
		}
	}
}

func NewSearchService(source OfferSource, results ResultCache, entitlements EntitlementChecker, currency string, opts ...SearchServiceOption) *SearchService {
	svc := &SearchService{
		source:       source,
		results:      results,
		entitlements: entitlements,
		currency:     strings.ToUpper(currency),
		paidCap:      7,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SearchInput struct {
	UserRef     string
	Origin      string
	Destination string
	DepartDate  string
}

// ResultView is what the front-end renders: the free tier always, the paid
// tier only for entitled users, otherwise just how many offers stay locked.
type ResultView struct {
	Fingerprint string
	Free        []domain.Offer
	Paid        []domain.Offer
	LockedCount int
	Unlocked    bool
	Total       int
}

// Search fetches, ranks and caches offers for the request, returning the view
// appropriate to the caller's entitlement.
func (s *SearchService) Search(ctx context.Context, in SearchInput) (ResultView, error) {
	if in.UserRef == "" {
		return ResultView{}, domain.ErrUserRefRequired
	}
	origin, err := ensureIATA(in.Origin)
	if err != nil {
		return ResultView{}, err
	}
	destination, err := ensureIATA(in.Destination)
	if err != nil {
		return ResultView{}, err
	}
	if _, err := time.Parse("2006-01-02", in.DepartDate); err != nil {
		return ResultView{}, domain.ErrInvalidDate
	}

	params := SearchParams{
		Origin:      origin,
		Destination: destination,
		DepartDate:  in.DepartDate,
		Currency:    s.currency,
	}

	offers, err := s.source.FetchOffers(ctx, params)
	if err != nil {
		return ResultView{}, fmt.Errorf("fetch offers: %w", err)
	}

	ranked, err := ranking.Rank(offers, ranking.WithPaidCap(s.paidCap))
	if err != nil {
		return ResultView{}, err
	}
	ranked.Fingerprint = params.Fingerprint()
	s.results.Put(ranked)

	return s.view(ctx, ranked, in.UserRef)
}

// Results re-serves a cached ranked set, typically after the user paid.
func (s *SearchService) Results(ctx context.Context, fingerprint, userRef string) (ResultView, error) {
	if userRef == "" {
		return ResultView{}, domain.ErrUserRefRequired
	}
	ranked, ok := s.results.Get(fingerprint)
	if !ok {
		return ResultView{}, domain.ErrResultNotFound
	}
	return s.view(ctx, ranked, userRef)
}

func (s *SearchService) view(ctx context.Context, ranked domain.RankedResult, userRef string) (ResultView, error) {
	unlocked, err := s.entitlements.IsUnlocked(ctx, userRef)
	if err != nil {
		return ResultView{}, fmt.Errorf("check entitlement: %w", err)
	}

	view := ResultView{
		Fingerprint: ranked.Fingerprint,
		Free:        ranked.FreeTier(),
		Unlocked:    unlocked,
		Total:       ranked.Total,
	}
	if unlocked {
		view.Paid = ranked.PaidTier()
	} else {
		view.LockedCount = len(ranked.PaidTier())
	}
	return view, nil
}

func ensureIATA(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", domain.ErrInvalidRoute
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", domain.ErrInvalidRoute
		}
	}
	return c, nil
}
