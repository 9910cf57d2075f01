package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ariefcatur/go-jewelry-checkout/internal/checkout"
	"github.com/ariefcatur/go-jewelry-checkout/internal/logging"
	"github.com/ariefcatur/go-jewelry-checkout/internal/tracking"
	"go.uber.org/zap"
)

const maxBody = 64 << 10

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var errBadJSON = errors.New("invalid json")

// decodeJSON rejects unknown fields and trailing data. An empty body leaves
// dst untouched when optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadJSON)
	}
	return nil
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: string(checkout.CategoryValidation), Message: msg})
}

var statusOf = map[checkout.Category]int{
	checkout.CategoryValidation:      http.StatusBadRequest,
	checkout.CategoryUnauthorized:    http.StatusUnauthorized,
	checkout.CategoryNotFound:        http.StatusNotFound,
	checkout.CategoryConflict:        http.StatusConflict,
	checkout.CategoryPaymentProvider: http.StatusBadGateway,
	checkout.CategoryUnavailable:     http.StatusGatewayTimeout,
	checkout.CategoryInternal:        http.StatusInternalServerError,
}

// writeError maps a service error to its status and public message. Internal
// details only reach the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracking.ErrNoTrackingCode):
		writeJSON(w, http.StatusNotFound, errorBody{Error: string(checkout.CategoryNotFound), Message: "tracking code not assigned yet"})
		return
	case errors.Is(err, tracking.ErrInvalidEvent):
		badRequest(w, err.Error())
		return
	}

	cat := checkout.Classify(err)
	code, ok := statusOf[cat]
	if !ok {
		code = http.StatusInternalServerError
	}
	log := logging.FromContext(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("category", string(cat)), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("category", string(cat)), zap.Error(err))
	}
	writeJSON(w, code, errorBody{Error: string(cat), Message: checkout.PublicMessage(err)})
}
