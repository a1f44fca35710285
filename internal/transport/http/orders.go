package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Ukt21/avia/internal/app"
	"github.com/Ukt21/avia/internal/domain"
)

// OrderOpener is the minimal interface needed to open a service-fee order.
type OrderOpener interface {
	CreateOrder(ctx context.Context, userRef string) (app.CreateOrderResult, error)
}

// HandleCreateOrder returns an HTTP handler opening a service-fee order and
// returning the URL the user pays at.
func HandleCreateOrder(svc OrderOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.CreateOrder(r.Context(), req.UserRef)
		if err != nil {
			if errors.Is(err, domain.ErrUserRefRequired) {
				writeError(w, http.StatusBadRequest, codeUserRefRequired, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, orderResponse{
			ID:        res.Order.ID,
			Amount:    res.Order.Amount,
			Currency:  res.Order.Currency,
			Status:    string(res.Order.Status),
			PayURL:    res.PayURL,
			CreatedAt: res.Order.CreatedAt,
		})
	}
}

type createOrderRequest struct {
	UserRef string `json:"user_ref"`
}

type orderResponse struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	PayURL    string    `json:"pay_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
