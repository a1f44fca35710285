package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Ukt21/avia/internal/domain"
)

// AdminBackend is the minimal interface the operator endpoints need.
type AdminBackend interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrdersByUser(ctx context.Context, userRef string) ([]domain.Order, error)
	GetEntitlement(ctx context.Context, userRef string) (*domain.Entitlement, error)
	LockEntitlement(ctx context.Context, userRef string) error
	ListConflicts(ctx context.Context) ([]domain.EntitlementConflict, error)
}

// AdminAuth guards the operator surface with a shared bearer token.
func AdminAuth(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleAdminOrders returns the handler for GET /admin/orders/{id} and
// GET /admin/orders?user_ref=..., used for manual reconciliation.
func HandleAdminOrders(svc AdminBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		if orderID, ok := parseAdminOrderPath(r.URL.Path); ok {
			order, err := svc.GetOrder(r.Context(), orderID)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrOrderNotFound):
					writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
				case errors.Is(err, domain.ErrInvalidID):
					writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusOK, newAdminOrderResponse(order))
			return
		}

		userRef := r.URL.Query().Get("user_ref")
		orders, err := svc.ListOrdersByUser(r.Context(), userRef)
		if err != nil {
			if errors.Is(err, domain.ErrUserRefRequired) {
				writeError(w, http.StatusBadRequest, codeUserRefRequired, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]adminOrderResponse, 0, len(orders))
		for _, order := range orders {
			resp = append(resp, newAdminOrderResponse(order))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleAdminEntitlements returns the handler for the entitlement paths:
// GET /admin/entitlements/{userRef} and POST /admin/entitlements/{userRef}/lock.
func HandleAdminEntitlements(svc AdminBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userRef, lock, ok := parseAdminEntitlementPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch {
		case lock && r.Method == http.MethodPost:
			if err := svc.LockEntitlement(r.Context(), userRef); err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case !lock && r.Method == http.MethodGet:
			ent, err := svc.GetEntitlement(r.Context(), userRef)
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			if ent == nil {
				writeJSON(w, http.StatusOK, entitlementResponse{UserRef: userRef})
				return
			}
			writeJSON(w, http.StatusOK, entitlementResponse{
				UserRef:    ent.UserRef,
				Unlocked:   true,
				UnlockedBy: ent.UnlockedBy,
				UnlockedAt: &ent.UnlockedAt,
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminConflicts returns the handler listing the operator queue of
// entitlement conflicts awaiting manual review.
func HandleAdminConflicts(svc AdminBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		conflicts, err := svc.ListConflicts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]conflictResponse, 0, len(conflicts))
		for _, c := range conflicts {
			resp = append(resp, conflictResponse{
				UserRef:         c.UserRef,
				HoldingOrderID:  c.HoldingOrderID,
				RejectedOrderID: c.RejectedOrderID,
				CreatedAt:       c.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseAdminOrderPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "admin" || parts[1] != "orders" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

func parseAdminEntitlementPath(path string) (userRef string, lock, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "admin" || parts[1] != "entitlements" || parts[2] == "" {
		return "", false, false
	}
	switch len(parts) {
	case 3:
		return parts[2], false, true
	case 4:
		if parts[3] != "lock" {
			return "", false, false
		}
		return parts[2], true, true
	default:
		return "", false, false
	}
}

type adminOrderResponse struct {
	ID          string    `json:"id"`
	UserRef     string    `json:"user_ref"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newAdminOrderResponse(order domain.Order) adminOrderResponse {
	return adminOrderResponse{
		ID:          order.ID,
		UserRef:     order.UserRef,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Status:      string(order.Status),
		ProviderRef: order.ProviderRef,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

type entitlementResponse struct {
	UserRef    string     `json:"user_ref"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedBy string     `json:"unlocked_by,omitempty"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

type conflictResponse struct {
	UserRef         string    `json:"user_ref"`
	HoldingOrderID  string    `json:"holding_order_id,omitempty"`
	RejectedOrderID string    `json:"rejected_order_id"`
	CreatedAt       time.Time `json:"created_at"`
}
