package ranking

import (
	"sort"

	"github.com/Ukt21/avia/internal/domain"
)

// FreeTierSize is the number of offers shown without payment.
const FreeTierSize = 3

const defaultPaidCap = 7

type Option func(*ranker)

// WithPaidCap bounds the number of offers kept behind the paywall.
func WithPaidCap(n int) Option {
	return func(r *ranker) {
		if n > 0 {
			r.paidCap = n
		}
	}
}

type ranker struct {
	paidCap int
}

// Rank deduplicates, orders and partitions a batch of offers. It is pure:
// identical input always yields identical output, which the result cache and
// the entitlement gate depend on.
func Rank(offers []domain.Offer, opts ...Option) (domain.RankedResult, error) {
	if len(offers) == 0 {
		return domain.RankedResult{}, domain.ErrNoOffers
	}

	r := ranker{paidCap: defaultPaidCap}
	for _, opt := range opts {
		opt(&r)
	}

	byID := make(map[string]domain.Offer, len(offers))
	for _, offer := range offers {
		if offer.Price <= 0 {
			return domain.RankedResult{}, domain.ErrInvalidPrice
		}
		existing, seen := byID[offer.ID]
		if !seen || offer.Price < existing.Price {
			byID[offer.ID] = offer
		}
	}

	ranked := make([]domain.Offer, 0, len(byID))
	for _, offer := range byID {
		ranked = append(ranked, offer)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		if a.Duration != b.Duration {
			return a.Duration < b.Duration
		}
		if a.Carrier != b.Carrier {
			return a.Carrier < b.Carrier
		}
		return a.ID < b.ID
	})

	boundary := FreeTierSize
	if len(ranked) < boundary {
		boundary = len(ranked)
	}
	if max := boundary + r.paidCap; len(ranked) > max {
		ranked = ranked[:max]
	}

	return domain.RankedResult{
		Offers:       ranked,
		FreeBoundary: boundary,
		Total:        len(ranked),
	}, nil
}
