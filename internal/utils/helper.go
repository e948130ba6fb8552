package utils

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gamekeys-be/internal/apperr"
)

func ToUint(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	return uint(n), err
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

// WriteError renders err in the {"error":{...}} envelope. Errors without an
// application code become INTERNAL_ERROR without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.New(apperr.CodeInternal, "internal server error")
	}
	WriteJSON(w, apperr.HTTPStatus(typed.Code()), map[string]errorBody{
		"error": {Code: typed.Code(), Message: typed.Message(), Details: typed.Details()},
	})
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, map[string]errorBody{
		"error": {Code: codeForStatus(code), Message: message},
	})
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeValidation
	case http.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case http.StatusForbidden:
		return apperr.CodeForbidden
	case http.StatusNotFound:
		return apperr.CodeNotFound
	case http.StatusTooManyRequests:
		return apperr.CodeRateLimit
	default:
		return apperr.CodeInternal
	}
}
