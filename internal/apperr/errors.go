package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidProduct      Code = "INVALID_PRODUCT"
	CodeInvalidOrder        Code = "INVALID_ORDER"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeStateConflict       Code = "STATE_CONFLICT"
	CodePaymentInitFailed   Code = "PAYMENT_INIT_FAILED"
	CodeProviderUnavailable Code = "PAYMENT_PROVIDER_UNAVAILABLE"
	CodePaymentNotFound     Code = "PAYMENT_NOT_FOUND"
	CodePaymentPending      Code = "PAYMENT_PENDING"
	CodeCoupon              Code = "COUPON_ERROR"
	CodeRateLimit           Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal            Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	CodeValidation:          http.StatusBadRequest,
	CodeInvalidProduct:      http.StatusBadRequest,
	CodeInvalidOrder:        http.StatusBadRequest,
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeForbidden:           http.StatusForbidden,
	CodeNotFound:            http.StatusNotFound,
	CodeStateConflict:       http.StatusConflict,
	CodePaymentInitFailed:   http.StatusBadGateway,
	CodeProviderUnavailable: http.StatusServiceUnavailable,
	CodePaymentNotFound:     http.StatusNotFound,
	CodePaymentPending:      http.StatusAccepted,
	CodeCoupon:              http.StatusUnprocessableEntity,
	CodeRateLimit:           http.StatusTooManyRequests,
	CodeInternal:            http.StatusInternalServerError,
}

// HTTPStatus maps a code to the status written by the HTTP layer.
func HTTPStatus(code Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a coded error. Values declared as package-level sentinels are
// never mutated; WithDetails and Wrap return copies.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.details = details
	return &cp
}

// Wrap attaches cause to a copy of e.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target carries the same code and message, so copies
// made by WithDetails or Wrap still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code && t.message == e.message
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}
