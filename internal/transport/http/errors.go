package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidRoute        = "invalid_route"
	codeInvalidDate         = "invalid_date"
	codeUserRefRequired     = "user_ref_required"
	codeNoOffers            = "no_offers"
	codeInvalidOffers       = "invalid_offers"
	codeResultNotFound      = "result_not_found"
	codeOrderNotFound       = "order_not_found"
	codeInvalidID           = "invalid_id"
	codeUnauthenticated     = "unauthenticated"
	codePaymentNotConfirmed = "payment_not_confirmed"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
