package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gamekeys-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ProviderXendit = "xendit"

	defaultXenditBaseURL = "https://api.xendit.co"
	callbackTokenHeader  = "x-callback-token"
)

type XenditConfig struct {
	APIKey        string
	CallbackToken string
	BaseURL       string
	SuccessURL    string
	FailureURL    string
	Timeout       time.Duration
}

// XenditGateway drives the hosted invoice checkout.
type XenditGateway struct {
	apiKey        string
	callbackToken string
	baseURL       string
	successURL    string
	failureURL    string
	httpClient    *http.Client
}

func NewXenditGateway(cfg XenditConfig) *XenditGateway {
	if cfg.APIKey == "" {
		logger.L().Warn("Xendit API key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultXenditBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &XenditGateway{
		apiKey:        cfg.APIKey,
		callbackToken: cfg.CallbackToken,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		successURL:    cfg.SuccessURL,
		failureURL:    cfg.FailureURL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (x *XenditGateway) Name() string { return ProviderXendit }

type xenditItem struct {
	Name     string      `json:"name"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
	Category string      `json:"category,omitempty"`
}

type xenditInvoiceRequest struct {
	ExternalID         string       `json:"external_id"`
	Amount             json.Number  `json:"amount"`
	Currency           string       `json:"currency"`
	PayerEmail         string       `json:"payer_email,omitempty"`
	Description        string       `json:"description"`
	SuccessRedirectURL string       `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string       `json:"failure_redirect_url,omitempty"`
	Items              []xenditItem `json:"items"`
}

type xenditInvoice struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	InvoiceURL string `json:"invoice_url"`
}

// minorUnitExponent is the number of decimals between stored minor units and
// the major units the provider expects.
func minorUnitExponent(currency string) int32 {
	switch strings.ToUpper(currency) {
	case "IDR", "JPY", "KRW", "VND":
		return 0
	default:
		return 2
	}
}

func toMajorUnits(amount int64, currency string) json.Number {
	exp := minorUnitExponent(currency)
	return json.Number(decimal.New(amount, -exp).StringFixed(exp))
}

func (x *XenditGateway) InitiatePayment(ctx context.Context, req CheckoutRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("provider", ProviderXendit),
		zap.Uint("order_id", req.Order.ID),
		zap.String("conversation_id", req.Payment.ConversationID),
		zap.Int64("amount", req.Payment.Amount),
	)

	currency := req.Payment.Currency
	body := xenditInvoiceRequest{
		ExternalID:         req.Payment.ConversationID,
		Amount:             toMajorUnits(req.Payment.Amount, currency),
		Currency:           currency,
		PayerEmail:         req.Buyer.Email,
		Description:        fmt.Sprintf("Order #%d", req.Order.ID),
		SuccessRedirectURL: x.successURL,
		FailureRedirectURL: x.failureURL,
	}
	for _, l := range req.Lines {
		name := l.Name
		if name == "" {
			name = l.ProductID
		}
		body.Items = append(body.Items, xenditItem{
			Name:     name,
			Quantity: l.Quantity,
			Price:    toMajorUnits(l.UnitPrice, currency),
			Category: l.Category,
		})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("failed to marshal invoice request", zap.Error(err))
		return nil, ErrPaymentInitFailed.Wrap(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/v2/invoices", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, ErrPaymentInitFailed.Wrap(err)
	}
	httpReq.SetBasicAuth(x.apiKey, "")
	httpReq.Header.Set("Content-Type", "application/json")

	log.Info("sending invoice request to Xendit")

	status, raw, err := x.do(httpReq)
	if err != nil {
		log.Error("xendit request failed", zap.Error(err))
		return nil, ErrProviderUnavailable.Wrap(err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		log.Error("xendit returned non-success status",
			zap.Int("status", status),
			zap.ByteString("response", raw),
		)
		return nil, ErrPaymentInitFailed.Wrap(fmt.Errorf("xendit error %d: %s", status, raw))
	}

	var inv xenditInvoice
	if err := json.Unmarshal(raw, &inv); err != nil || inv.ID == "" {
		log.Error("failed decoding xendit invoice", zap.Error(err), zap.ByteString("response", raw))
		return nil, ErrPaymentInitFailed.Wrap(fmt.Errorf("undecodable xendit invoice: %w", err))
	}

	log.Info("xendit invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("status", inv.Status),
	)
	return &Session{
		ExternalID:  inv.ID,
		Token:       inv.ID,
		CheckoutURL: inv.InvoiceURL,
		Raw:         json.RawMessage(raw),
	}, nil
}

// VerifyWebhook checks the static callback token Xendit sends with every
// push. An unset token disables the check.
func (x *XenditGateway) VerifyWebhook(r *http.Request) error {
	if x.callbackToken == "" {
		logger.FromCtx(r.Context()).Warn("xendit callback token not configured, skipping verification")
		return nil
	}
	if r.Header.Get(callbackTokenHeader) != x.callbackToken {
		return ErrInvalidSignature
	}
	return nil
}

func (x *XenditGateway) ParseWebhook(r *http.Request, body []byte) (*Callback, error) {
	if err := x.VerifyWebhook(r); err != nil {
		return nil, err
	}

	var inv xenditInvoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, ErrInvalidCallback.Wrap(err)
	}
	if inv.ID == "" {
		return nil, ErrInvalidCallback
	}

	return &Callback{
		EventID:        inv.ID + ":" + strings.ToUpper(inv.Status),
		EventType:      "invoice." + strings.ToLower(inv.Status),
		Token:          inv.ID,
		ConversationID: inv.ExternalID,
		Raw:            json.RawMessage(body),
	}, nil
}

// ResolveCallback re-reads the invoice from Xendit.
func (x *XenditGateway) ResolveCallback(ctx context.Context, cb Callback) (*Resolution, error) {
	if cb.Token == "" {
		return nil, ErrInvalidCallback
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("provider", ProviderXendit),
		zap.String("invoice_id", cb.Token),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/v2/invoices/"+url.PathEscape(cb.Token), nil)
	if err != nil {
		return nil, ErrInvalidCallback.Wrap(err)
	}
	httpReq.SetBasicAuth(x.apiKey, "")

	status, raw, err := x.do(httpReq)
	if err != nil {
		log.Error("xendit request failed", zap.Error(err))
		return nil, ErrProviderUnavailable.Wrap(err)
	}
	switch {
	case status == http.StatusNotFound:
		log.Warn("invoice unknown to xendit")
		return nil, ErrPaymentNotFound
	case status != http.StatusOK:
		log.Error("xendit returned error",
			zap.Int("http_status", status),
			zap.ByteString("response", raw),
		)
		return nil, ErrProviderUnavailable.Wrap(fmt.Errorf("xendit error %d", status))
	}

	var inv xenditInvoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		log.Error("failed decoding invoice", zap.Error(err))
		return nil, ErrProviderUnavailable.Wrap(err)
	}

	res := &Resolution{
		ExternalID:     inv.ID,
		ConversationID: inv.ExternalID,
		Raw:            json.RawMessage(raw),
	}
	switch strings.ToUpper(inv.Status) {
	case "PAID", "SETTLED":
		res.Outcome = OutcomeSucceeded
	case "EXPIRED", "FAILED":
		res.Outcome = OutcomeFailed
	default:
		return nil, ErrOutcomePending
	}

	log.Info("xendit invoice resolved", zap.String("status", inv.Status))
	return res, nil
}

func (x *XenditGateway) do(req *http.Request) (int, []byte, error) {
	resp, err := x.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read xendit response: %w", err)
	}
	return resp.StatusCode, body, nil
}
