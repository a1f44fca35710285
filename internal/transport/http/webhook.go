package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/Ukt21/avia/internal/app"
	"github.com/Ukt21/avia/internal/domain"
)

const signatureHeader = "X-Payment-Signature"

const maxWebhookBody = 64 << 10

// PaymentProcessor is the minimal interface the webhook endpoint needs.
type PaymentProcessor interface {
	ApplyProviderEvent(ctx context.Context, in app.ApplyEventInput) (app.ApplyEventResult, error)
	MarkPending(ctx context.Context, orderID string) (domain.Order, error)
}

// HandlePaymentWebhook returns the HTTP handler for payment provider
// notifications. The signature covers the raw request body and is checked
// against the shared secret before the body is parsed, so an unauthenticated
// caller never reaches the JSON decoder; failures are answered with a generic
// rejection that never says which check failed. The provider owns retries, so
// duplicates are acknowledged rather than errored.
func HandlePaymentWebhook(svc PaymentProcessor, signingSecret string, logger *log.Logger) http.HandlerFunc {
	secret := []byte(signingSecret)
	if logger == nil {
		logger = log.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthenticated")
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		expected := app.Sign(secret, raw)
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthenticated")
			return
		}

		var req webhookRequest
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.OrderID == "" || req.Event == "" || req.EventRef == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if req.Event == "pending" {
			handlePendingEvent(w, r, svc, req)
			return
		}

		res, err := svc.ApplyProviderEvent(r.Context(), app.ApplyEventInput{
			OrderID:   req.OrderID,
			Kind:      domain.EventKind(req.Event),
			EventRef:  req.EventRef,
			Payload:   raw,
			Signature: signature,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUnauthenticated):
				writeError(w, http.StatusUnauthorized, codeUnauthenticated, "unauthenticated")
			case errors.Is(err, domain.ErrUnknownEventKind):
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusNotFound, codeOrderNotFound, domain.ErrOrderNotFound.Error())
			case errors.Is(err, domain.ErrInvalidTransition):
				// Recorded against the order for audit; the provider gets a
				// conflict, not a retryable failure.
				writeError(w, http.StatusConflict, codePaymentNotConfirmed, "payment not yet confirmed")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		// An entitlement-side failure must not make the provider redeliver a
		// committed payment; it is logged for a separate unlock retry.
		if res.UnlockErr != nil {
			logger.Printf("webhook order=%s event=%s unlock failed: %v", req.OrderID, req.EventRef, res.UnlockErr)
		}

		writeJSON(w, http.StatusOK, webhookResponse{
			OrderID: req.OrderID,
			Status:  string(res.Status),
			Applied: res.Applied,
		})
	}
}

// handlePendingEvent covers the provider's invoice acknowledgment, which
// moves a Created order to Pending. The delivery is already authenticated by
// the raw-body signature check above.
func handlePendingEvent(w http.ResponseWriter, r *http.Request, svc PaymentProcessor, req webhookRequest) {
	order, err := svc.MarkPending(r.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrInvalidID):
			writeError(w, http.StatusNotFound, codeOrderNotFound, domain.ErrOrderNotFound.Error())
		case errors.Is(err, domain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, codePaymentNotConfirmed, "payment not yet confirmed")
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		OrderID: order.ID,
		Status:  string(order.Status),
		Applied: true,
	})
}

type webhookRequest struct {
	OrderID  string `json:"order_id"`
	Event    string `json:"event"`
	EventRef string `json:"event_ref"`
}

type webhookResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Applied bool   `json:"applied"`
}
