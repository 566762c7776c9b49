package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ariefcatur/chat-storefront/internal/customers"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/go-playground/validator/v10"
)

const maxBody = 1 << 20

var validate = validator.New()

type errorResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResp{Error: msg})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", orders.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", orders.ErrValidation, err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrAuthenticity):
		return http.StatusUnauthorized
	case errors.Is(err, orders.ErrInsufficientStock), errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, orders.ErrResolution):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orders.ErrUnknownOrder), errors.Is(err, orders.ErrNotFound),
		errors.Is(err, customers.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrPaymentConfigMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, orders.ErrCheckout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
