package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	errorsmod "cosmossdk.io/errors"

	cerrors "creditchain/core/errors"
)

type errorBody struct {
	Error     string `json:"error"`
	Codespace string `json:"codespace,omitempty"`
	Code      uint32 `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeBody(w, status, errorBody{Error: message})
}

func writeBody(w http.ResponseWriter, status int, body errorBody) {
	payload, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeAppError reports a protocol error with its registered code. Errors
// outside the protocol codespace are redacted to "internal".
func writeAppError(w http.ResponseWriter, err error) {
	codespace, code, log := errorsmod.ABCIInfo(err, false)
	body := errorBody{Error: log}
	if codespace == cerrors.Codespace {
		body.Codespace, body.Code = codespace, code
	}
	writeBody(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errorsmod.IsOf(err,
		cerrors.ErrUnknownContract,
		cerrors.ErrUnknownMessage,
		cerrors.ErrAccountNotFound,
		cerrors.ErrPriceNotFound,
		cerrors.ErrAssetNotInitialized,
	):
		return http.StatusNotFound
	case errorsmod.IsOf(err, cerrors.ErrValidation):
		return http.StatusBadRequest
	case errorsmod.IsOf(err, cerrors.ErrUnauthorized, cerrors.ErrExternalInvocation):
		return http.StatusForbidden
	case errorsmod.IsOf(err, cerrors.ErrModulePaused):
		return http.StatusServiceUnavailable
	}
	if codespace, _, _ := errorsmod.ABCIInfo(err, false); codespace == cerrors.Codespace {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
