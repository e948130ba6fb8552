package product

import "gamekeys-be/internal/apperr"

var ErrProductNotFound = apperr.New(apperr.CodeNotFound, "product not found")
