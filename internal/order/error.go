package order

import "gamekeys-be/internal/apperr"

var (
	ErrOrderNotFound     = apperr.New(apperr.CodeNotFound, "order not found")
	ErrInvalidProduct    = apperr.New(apperr.CodeInvalidProduct, "unknown or inactive product")
	ErrInvalidOrder      = apperr.New(apperr.CodeInvalidOrder, "invalid order")
	ErrInvalidTransition = apperr.New(apperr.CodeStateConflict, "invalid order status transition")
	ErrStatusChanged     = apperr.New(apperr.CodeStateConflict, "order status changed concurrently")
)
