package inventory

import "gamekeys-be/internal/apperr"

var (
	ErrOrderItemNotFound = apperr.New(apperr.CodeNotFound, "order item not found")
	ErrNoCodes           = apperr.New(apperr.CodeValidation, "no codes supplied")
	ErrProductRequired   = apperr.New(apperr.CodeValidation, "product id is required")
)
