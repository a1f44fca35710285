package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ukt21/avia/internal/domain"
)

type fakeOfferSource struct {
	offers  []domain.Offer
	err     error
	fetches int
	last    SearchParams
}

func (f *fakeOfferSource) FetchOffers(_ context.Context, params SearchParams) ([]domain.Offer, error) {
	f.fetches++
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return f.offers, nil
}

type fakeResultCache struct {
	entries map[string]domain.RankedResult
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{entries: make(map[string]domain.RankedResult)}
}

func (f *fakeResultCache) Put(result domain.RankedResult) {
	f.entries[result.Fingerprint] = result
}

func (f *fakeResultCache) Get(fingerprint string) (domain.RankedResult, bool) {
	r, ok := f.entries[fingerprint]
	return r, ok
}

type fakeChecker struct {
	unlocked map[string]bool
	err      error
}

func (f *fakeChecker) IsUnlocked(_ context.Context, userRef string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.unlocked[userRef], nil
}

func searchOffers(n int) []domain.Offer {
	offers := make([]domain.Offer, 0, n)
	for i := 0; i < n; i++ {
		offers = append(offers, domain.Offer{
			ID:       string(rune('a' + i)),
			Price:    int64(100000 + i*5000),
			Currency: "UZS",
			Carrier:  "HY",
			Duration: time.Hour,
		})
	}
	return offers
}

func TestSearchService_Search(t *testing.T) {
	t.Parallel()

	t.Run("locked user sees the free tier only", func(t *testing.T) {
		t.Parallel()

		source := &fakeOfferSource{offers: searchOffers(10)}
		cache := newFakeResultCache()
		svc := NewSearchService(source, cache, &fakeChecker{unlocked: map[string]bool{}}, "uzs")

		view, err := svc.Search(context.Background(), SearchInput{
			UserRef: "user-1", Origin: "tas", Destination: "IST", DepartDate: "2025-04-01",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(view.Free) != 3 {
			t.Fatalf("expected 3 free offers, got %d", len(view.Free))
		}
		if len(view.Paid) != 0 {
			t.Fatalf("expected no paid offers for locked user, got %d", len(view.Paid))
		}
		if view.LockedCount != 7 {
			t.Fatalf("expected 7 locked offers, got %d", view.LockedCount)
		}
		if view.Unlocked {
			t.Fatalf("expected locked view")
		}
		if view.Fingerprint == "" {
			t.Fatalf("expected fingerprint set")
		}
		if source.last.Origin != "TAS" || source.last.Destination != "IST" {
			t.Fatalf("expected normalized IATA codes, got %+v", source.last)
		}
		if source.last.Currency != "UZS" {
			t.Fatalf("expected uppercased currency, got %s", source.last.Currency)
		}
		if _, ok := cache.Get(view.Fingerprint); !ok {
			t.Fatalf("expected ranked result cached")
		}
	})

	t.Run("unlocked user sees both tiers", func(t *testing.T) {
		t.Parallel()

		source := &fakeOfferSource{offers: searchOffers(10)}
		checker := &fakeChecker{unlocked: map[string]bool{"user-1": true}}
		svc := NewSearchService(source, newFakeResultCache(), checker, "UZS")

		view, err := svc.Search(context.Background(), SearchInput{
			UserRef: "user-1", Origin: "TAS", Destination: "IST", DepartDate: "2025-04-01",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !view.Unlocked {
			t.Fatalf("expected unlocked view")
		}
		if len(view.Free) != 3 || len(view.Paid) != 7 {
			t.Fatalf("expected 3 free and 7 paid, got %d and %d", len(view.Free), len(view.Paid))
		}
		if view.LockedCount != 0 {
			t.Fatalf("expected no locked count for unlocked user, got %d", view.LockedCount)
		}
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		svc := NewSearchService(&fakeOfferSource{}, newFakeResultCache(), &fakeChecker{}, "UZS")

		cases := []struct {
			name string
			in   SearchInput
			want error
		}{
			{"missing user ref", SearchInput{Origin: "TAS", Destination: "IST", DepartDate: "2025-04-01"}, domain.ErrUserRefRequired},
			{"bad origin", SearchInput{UserRef: "u", Origin: "TASH", Destination: "IST", DepartDate: "2025-04-01"}, domain.ErrInvalidRoute},
			{"numeric destination", SearchInput{UserRef: "u", Origin: "TAS", Destination: "1ST", DepartDate: "2025-04-01"}, domain.ErrInvalidRoute},
			{"bad date", SearchInput{UserRef: "u", Origin: "TAS", Destination: "IST", DepartDate: "01-04-2025"}, domain.ErrInvalidDate},
		}
		for _, tc := range cases {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				if _, err := svc.Search(context.Background(), tc.in); err != tc.want {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})

	t.Run("no offers from provider", func(t *testing.T) {
		t.Parallel()

		svc := NewSearchService(&fakeOfferSource{}, newFakeResultCache(), &fakeChecker{}, "UZS")
		_, err := svc.Search(context.Background(), SearchInput{
			UserRef: "u", Origin: "TAS", Destination: "IST", DepartDate: "2025-04-01",
		})
		if err != domain.ErrNoOffers {
			t.Fatalf("expected ErrNoOffers, got %v", err)
		}
	})

	t.Run("provider failure is wrapped", func(t *testing.T) {
		t.Parallel()

		source := &fakeOfferSource{err: errors.New("upstream 503")}
		svc := NewSearchService(source, newFakeResultCache(), &fakeChecker{}, "UZS")
		_, err := svc.Search(context.Background(), SearchInput{
			UserRef: "u", Origin: "TAS", Destination: "IST", DepartDate: "2025-04-01",
		})
		if err == nil || !errors.Is(err, source.err) {
			t.Fatalf("expected wrapped provider error, got %v", err)
		}
	})

	t.Run("respects the paid cap option", func(t *testing.T) {
		t.Parallel()

		source := &fakeOfferSource{offers: searchOffers(12)}
		checker := &fakeChecker{unlocked: map[string]bool{"user-1": true}}
		svc := NewSearchService(source, newFakeResultCache(), checker, "UZS", WithPaidCap(4))

		view, err := svc.Search(context.Background(), SearchInput{
			UserRef: "user-1", Origin: "TAS", Destination: "IST", DepartDate: "2025-04-01",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(view.Paid) != 4 {
			t.Fatalf("expected 4 paid offers, got %d", len(view.Paid))
		}
	})
}

func TestSearchService_Results(t *testing.T) {
	t.Parallel()

	t.Run("serves the paid tier after unlock without re-fetching", func(t *testing.T) {
		t.Parallel()

		source := &fakeOfferSource{offers: searchOffers(10)}
		cache := newFakeResultCache()
		checker := &fakeChecker{unlocked: map[string]bool{}}
		svc := NewSearchService(source, cache, checker, "UZS")

		view, err := svc.Search(context.Background(), SearchInput{
			UserRef: "user-1", Origin: "TAS", Destination: "IST", DepartDate: "2025-04-01",
		})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if source.fetches != 1 {
			t.Fatalf("expected one fetch, got %d", source.fetches)
		}

		// The user pays; the same fingerprint now yields the full set.
		checker.unlocked = map[string]bool{"user-1": true}

		full, err := svc.Results(context.Background(), view.Fingerprint, "user-1")
		if err != nil {
			t.Fatalf("results: %v", err)
		}
		if !full.Unlocked || len(full.Paid) != 7 {
			t.Fatalf("expected full unlocked view, got %+v", full)
		}
		if source.fetches != 1 {
			t.Fatalf("expected cached fetch, provider called %d times", source.fetches)
		}
	})

	t.Run("unknown fingerprint", func(t *testing.T) {
		t.Parallel()

		svc := NewSearchService(&fakeOfferSource{}, newFakeResultCache(), &fakeChecker{}, "UZS")
		if _, err := svc.Results(context.Background(), "deadbeef", "user-1"); err != domain.ErrResultNotFound {
			t.Fatalf("expected ErrResultNotFound, got %v", err)
		}
	})

	t.Run("missing user ref", func(t *testing.T) {
		t.Parallel()

		svc := NewSearchService(&fakeOfferSource{}, newFakeResultCache(), &fakeChecker{}, "UZS")
		if _, err := svc.Results(context.Background(), "deadbeef", ""); err != domain.ErrUserRefRequired {
			t.Fatalf("expected ErrUserRefRequired, got %v", err)
		}
	})
}

func TestSearchParams_Fingerprint(t *testing.T) {
	t.Parallel()

	a := SearchParams{Origin: "TAS", Destination: "IST", DepartDate: "2025-04-01", Currency: "UZS"}
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected identical params to share a fingerprint")
	}

	c := a
	c.DepartDate = "2025-04-02"
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("expected different dates to produce different fingerprints")
	}
	if len(a.Fingerprint()) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a.Fingerprint()))
	}
}
