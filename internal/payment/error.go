package payment

import "gamekeys-be/internal/apperr"

var (
	ErrPaymentInitFailed   = apperr.New(apperr.CodePaymentInitFailed, "payment provider rejected the request")
	ErrProviderUnavailable = apperr.New(apperr.CodeProviderUnavailable, "payment provider unavailable")
	ErrPaymentNotFound     = apperr.New(apperr.CodePaymentNotFound, "payment not found")
	ErrOutcomePending      = apperr.New(apperr.CodePaymentPending, "payment outcome not final yet")
	ErrInvalidSignature    = apperr.New(apperr.CodeUnauthorized, "invalid webhook signature")
	ErrInvalidCallback     = apperr.New(apperr.CodeValidation, "invalid payment callback")
	ErrDuplicateSuccess    = apperr.New(apperr.CodeStateConflict, "order already has a successful payment")
	ErrDuplicateReference  = apperr.New(apperr.CodeStateConflict, "payment reference already in use")
	ErrEventInFlight       = apperr.New(apperr.CodeStateConflict, "webhook event already in flight")
)
