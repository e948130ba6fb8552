package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gamekeys-be/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestXendit() *XenditGateway {
	return NewXenditGateway(XenditConfig{
		APIKey:        "test-secret",
		CallbackToken: "cb-token",
		SuccessURL:    "https://shop.example/success",
		FailureURL:    "https://shop.example/failure",
	})
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Order: &order.Order{ID: 12, TotalPrice: 170000, Currency: "IDR"},
		Payment: &Payment{
			ID:             3,
			ConversationID: "PAY-20260101-101010-001-1234",
			Amount:         170000,
			Currency:       "IDR",
		},
		Buyer: Buyer{UserID: 7, Email: "buyer@example.com"},
		Lines: []CheckoutLine{
			{ProductID: "steam-50", Name: "Steam Wallet 50K", Quantity: 1, UnitPrice: 50000},
			{ProductID: "vp-1000", Name: "Valorant 1000 VP", Quantity: 1, UnitPrice: 120000},
		},
	}
}

func TestXenditGateway_InitiatePayment(t *testing.T) {
	gw := newTestXendit()

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "https://api.xendit.co/v2/invoices", req.URL.String())

			user, _, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "test-secret", user)

			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "PAY-20260101-101010-001-1234", body["external_id"])
			assert.Equal(t, float64(170000), body["amount"])
			assert.Equal(t, "buyer@example.com", body["payer_email"])
			assert.Equal(t, "https://shop.example/success", body["success_redirect_url"])
			assert.Len(t, body["items"], 2)

			return jsonResponse(http.StatusOK, `{
				"id": "inv-abc",
				"external_id": "PAY-20260101-101010-001-1234",
				"status": "PENDING",
				"invoice_url": "https://checkout.xendit.co/web/inv-abc"
			}`)
		})

		sess, err := gw.InitiatePayment(context.Background(), checkoutRequest())
		require.NoError(t, err)
		assert.Equal(t, "inv-abc", sess.ExternalID)
		assert.Equal(t, "https://checkout.xendit.co/web/inv-abc", sess.CheckoutURL)
		assert.Empty(t, sess.Outcome)
		assert.NotEmpty(t, sess.Raw)
	})

	t.Run("APIError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusBadRequest, `{"error_code": "INVALID_DATA"}`)
		})

		_, err := gw.InitiatePayment(context.Background(), checkoutRequest())
		assert.ErrorIs(t, err, ErrPaymentInitFailed)
		assert.Contains(t, err.Error(), "INVALID_DATA")
	})

	t.Run("NetworkError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		_, err := gw.InitiatePayment(context.Background(), checkoutRequest())
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("InvalidJSONResponse", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{invalid-json`)
		})

		_, err := gw.InitiatePayment(context.Background(), checkoutRequest())
		assert.ErrorIs(t, err, ErrPaymentInitFailed)
	})
}

func TestXenditGateway_ResolveCallback(t *testing.T) {
	gw := newTestXendit()
	cb := Callback{Token: "inv-abc"}

	statuses := map[string]Outcome{
		"PAID":    OutcomeSucceeded,
		"SETTLED": OutcomeSucceeded,
		"EXPIRED": OutcomeFailed,
		"FAILED":  OutcomeFailed,
	}
	for status, want := range statuses {
		t.Run(status, func(t *testing.T) {
			gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Equal(t, "https://api.xendit.co/v2/invoices/inv-abc", req.URL.String())
				return jsonResponse(http.StatusOK, `{"id":"inv-abc","external_id":"PAY-1","status":"`+status+`"}`)
			})

			res, err := gw.ResolveCallback(context.Background(), cb)
			require.NoError(t, err)
			assert.Equal(t, want, res.Outcome)
			assert.Equal(t, "inv-abc", res.ExternalID)
			assert.Equal(t, "PAY-1", res.ConversationID)
		})
	}

	t.Run("Pending", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{"id":"inv-abc","status":"PENDING"}`)
		})

		_, err := gw.ResolveCallback(context.Background(), cb)
		assert.ErrorIs(t, err, ErrOutcomePending)
	})

	t.Run("UnknownInvoice", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusNotFound, `{"error_code":"INVOICE_NOT_FOUND_ERROR"}`)
		})

		_, err := gw.ResolveCallback(context.Background(), cb)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("ServerError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return jsonResponse(http.StatusBadGateway, `oops`)
		})

		_, err := gw.ResolveCallback(context.Background(), cb)
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("Timeout", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, context.DeadlineExceeded
		})

		_, err := gw.ResolveCallback(context.Background(), cb)
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("MissingToken", func(t *testing.T) {
		_, err := gw.ResolveCallback(context.Background(), Callback{})
		assert.ErrorIs(t, err, ErrInvalidCallback)
	})
}

func TestXenditGateway_ParseWebhook(t *testing.T) {
	gw := newTestXendit()
	body := []byte(`{"id":"inv-abc","external_id":"PAY-1","status":"PAID"}`)

	t.Run("ValidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
		req.Header.Set("x-callback-token", "cb-token")

		cb, err := gw.ParseWebhook(req, body)
		require.NoError(t, err)
		assert.Equal(t, "inv-abc", cb.Token)
		assert.Equal(t, "PAY-1", cb.ConversationID)
		assert.Equal(t, "inv-abc:PAID", cb.EventID)
		assert.Equal(t, "invoice.paid", cb.EventType)
	})

	t.Run("WrongToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
		req.Header.Set("x-callback-token", "forged")

		_, err := gw.ParseWebhook(req, body)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("NoTokenConfigured", func(t *testing.T) {
		open := NewXenditGateway(XenditConfig{APIKey: "k"})
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
		assert.NoError(t, open.VerifyWebhook(req))
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
		req.Header.Set("x-callback-token", "cb-token")

		_, err := gw.ParseWebhook(req, []byte(`{}`))
		assert.ErrorIs(t, err, ErrInvalidCallback)
	})
}

func TestToMajorUnits(t *testing.T) {
	assert.Equal(t, "50000", string(toMajorUnits(50000, "IDR")))
	assert.Equal(t, "19.99", string(toMajorUnits(1999, "USD")))
	assert.Equal(t, "0.05", string(toMajorUnits(5, "php")))
}
