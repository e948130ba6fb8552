package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamekeys-be/internal/auth"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	a := NewAuth(tokens, "internal-key")

	t.Run("Missing Token", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := utils.GetUserIDFromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		a.Middleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		a.Middleware(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		s, err := tokens.Issue(1, "buyer@example.com", "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
		req.Header.Set("Authorization", "Bearer "+s)
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, uint(1), userID)
			assert.Equal(t, utils.RoleUser, utils.GetUserRoleFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		a.Middleware(next).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Internal Caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/products/p/codes", nil)
		req.Header.Set(ServiceAuthHeader, "internal-key")
		w := httptest.NewRecorder()

		a.Middleware(RequireAdmin(okHandler())).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireAuth(t *testing.T) {
	w := httptest.NewRecorder()
	RequireAuth(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(utils.SetUserContext(req.Context(), 3, "", utils.RoleUser))
	w = httptest.NewRecorder()
	RequireAuth(okHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name string
		role string
		auth bool
		want int
	}{
		{name: "Anonymous", want: http.StatusUnauthorized},
		{name: "User", auth: true, role: utils.RoleUser, want: http.StatusForbidden},
		{name: "Admin", auth: true, role: utils.RoleAdmin, want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.auth {
				req = req.WithContext(utils.SetUserContext(req.Context(), 9, "", tc.role))
			}
			w := httptest.NewRecorder()
			RequireAdmin(okHandler()).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestLimiter(t *testing.T) {
	t.Run("StrictTierExhausts", func(t *testing.T) {
		l := NewLimiter()
		h := l.Middleware(okHandler())

		codes := map[int]int{}
		for i := 0; i < burstStrict+3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/payments/verify", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			codes[w.Code]++
		}
		assert.Equal(t, burstStrict, codes[http.StatusOK])
		assert.Positive(t, codes[http.StatusTooManyRequests])
	})

	t.Run("TiersAreSeparate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
		_, _, tier := resolveRateTier(req)
		assert.Equal(t, "strict", tier)

		req = httptest.NewRequest(http.MethodGet, "/orders/1", nil)
		_, _, tier = resolveRateTier(req)
		assert.Equal(t, "general", tier)

		req = req.WithContext(utils.WithInternalRequest(req.Context()))
		_, _, tier = resolveRateTier(req)
		assert.Equal(t, "internal", tier)
	})

	t.Run("SweepDropsIdle", func(t *testing.T) {
		l := NewLimiter()
		l.get("ip:1:general", limitGeneral, burstGeneral)
		l.sweep(time.Now().Add(time.Hour))
		assert.Empty(t, l.visitors)
	})
}

func TestAccessLog(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	h := logger.RequestIDMiddleware(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/orders/77", nil)
	req.Header.Set(logger.RequestIDHeader, "rid-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := observed.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "rid-1", entries[0].ContextMap()["request_id"])
	assert.EqualValues(t, 404, entries[0].ContextMap()["status"])
}

func TestRecoverer(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	defer logger.Replace(zap.New(core))()

	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.Equal(t, 1, observed.FilterMessage("panic recovered").Len())
}
