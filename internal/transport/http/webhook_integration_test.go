package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Ukt21/avia/internal/app"
	"github.com/Ukt21/avia/internal/clock"
	"github.com/Ukt21/avia/internal/domain"
	"github.com/Ukt21/avia/internal/storage/postgres"
	"github.com/Ukt21/avia/internal/testutil"
)

func TestPaymentWebhook_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	orderRepo := postgres.NewOrderRepository(pool)
	entitlementRepo := postgres.NewEntitlementRepository(pool)

	const secret = "integration-secret"
	svc := app.NewPaymentService(orderRepo, entitlementRepo, clock.NewSystem(), app.PaymentConfig{
		SigningSecret: secret,
		FeeAmount:     50000,
		FeeCurrency:   "UZS",
	})

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	orderID := testutil.InsertOrder(t, ctx, pool, domain.Order{
		UserRef: "user-1",
		Status:  domain.OrderStatusPending,
	})

	handler := HandlePaymentWebhook(svc, secret, nil)

	deliver := func() *httptest.ResponseRecorder {
		body := webhookBody(orderID, "success", "evt-1")
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
		req.Header.Set(signatureHeader, app.Sign([]byte(secret), []byte(body)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := deliver()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var first webhookResponse
	if err := json.NewDecoder(rec.Body).Decode(&first); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !first.Applied || first.Status != string(domain.OrderStatusPaid) {
		t.Fatalf("expected applied paid response, got %+v", first)
	}

	// Redelivery of the same event ref acknowledges without reapplying.
	rec2 := deliver()
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected status 200 on redelivery, got %d", rec2.Code)
	}

	var second webhookResponse
	if err := json.NewDecoder(rec2.Body).Decode(&second); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if second.Applied {
		t.Fatalf("expected redelivery not reapplied")
	}
	if second.Status != string(domain.OrderStatusPaid) {
		t.Fatalf("expected paid on redelivery, got %s", second.Status)
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if status != string(domain.OrderStatusPaid) {
		t.Fatalf("expected order paid, got %s", status)
	}

	unlocked, err := entitlementRepo.IsUnlocked(ctx, "user-1")
	if err != nil {
		t.Fatalf("check entitlement: %v", err)
	}
	if !unlocked {
		t.Fatalf("expected entitlement unlocked after payment")
	}

	var events int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_events WHERE order_id = $1`, orderID).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one recorded event, got %d", events)
	}
}
