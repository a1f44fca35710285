package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Ukt21/avia/internal/app"
	"github.com/Ukt21/avia/internal/domain"
)

// OfferSearcher is the minimal interface the search endpoints need.
type OfferSearcher interface {
	Search(ctx context.Context, in app.SearchInput) (app.ResultView, error)
	Results(ctx context.Context, fingerprint, userRef string) (app.ResultView, error)
}

// HandleSearch returns an HTTP handler for running an offer search.
func HandleSearch(svc OfferSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req searchRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		view, err := svc.Search(r.Context(), app.SearchInput{
			UserRef:     req.UserRef,
			Origin:      req.Origin,
			Destination: req.Destination,
			DepartDate:  req.DepartDate,
		})
		if err != nil {
			writeSearchError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newResultResponse(view))
	}
}

// HandleResults returns an HTTP handler re-serving a cached ranked set, with
// the paid tier included once the caller's entitlement is unlocked.
func HandleResults(svc OfferSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		fingerprint, ok := parseResultsPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		view, err := svc.Results(r.Context(), fingerprint, r.URL.Query().Get("user_ref"))
		if err != nil {
			writeSearchError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, newResultResponse(view))
	}
}

func writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserRefRequired):
		writeError(w, http.StatusBadRequest, codeUserRefRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidRoute):
		writeError(w, http.StatusBadRequest, codeInvalidRoute, err.Error())
	case errors.Is(err, domain.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, codeInvalidDate, err.Error())
	case errors.Is(err, domain.ErrNoOffers):
		writeError(w, http.StatusNotFound, codeNoOffers, err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadGateway, codeInvalidOffers, "offer source returned invalid offers")
	case errors.Is(err, domain.ErrResultNotFound):
		writeError(w, http.StatusNotFound, codeResultNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func parseResultsPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "results" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type searchRequest struct {
	UserRef     string `json:"user_ref"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DepartDate  string `json:"depart_date"`
}

type offerResponse struct {
	Price        int64     `json:"price"`
	Currency     string    `json:"currency"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	Carrier      string    `json:"carrier"`
	FlightNumber string    `json:"flight_number"`
	DepartAt     time.Time `json:"depart_at"`
	Transfers    int       `json:"transfers"`
	Link         string    `json:"link"`
}

type resultResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Free        []offerResponse `json:"free"`
	Paid        []offerResponse `json:"paid,omitempty"`
	LockedCount int             `json:"locked_count"`
	Unlocked    bool            `json:"unlocked"`
	Total       int             `json:"total"`
}

func newResultResponse(view app.ResultView) resultResponse {
	return resultResponse{
		Fingerprint: view.Fingerprint,
		Free:        toOfferResponses(view.Free),
		Paid:        toOfferResponses(view.Paid),
		LockedCount: view.LockedCount,
		Unlocked:    view.Unlocked,
		Total:       view.Total,
	}
}

func toOfferResponses(offers []domain.Offer) []offerResponse {
	if len(offers) == 0 {
		return nil
	}
	out := make([]offerResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, offerResponse{
			Price:        o.Price,
			Currency:     o.Currency,
			Origin:       o.Origin,
			Destination:  o.Destination,
			Carrier:      o.Carrier,
			FlightNumber: o.FlightNumber,
			DepartAt:     o.DepartAt,
			Transfers:    o.Transfers,
			Link:         o.Link,
		})
	}
	return out
}
