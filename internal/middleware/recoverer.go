package middleware

import (
	"fmt"
	"net/http"

	"gamekeys-be/internal/apperr"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/utils"

	"go.uber.org/zap"
)

func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				logger.FromCtx(r.Context()).Error("panic recovered",
					zap.Error(err),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				utils.WriteError(w, apperr.Wrap(apperr.CodeInternal, err, "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
