package api

import (
	"context"
	"net/http"

	"gamekeys-be/internal/apperr"
	"gamekeys-be/internal/checkout"
	"gamekeys-be/internal/coupon"
	"gamekeys-be/internal/fulfillment"
	"gamekeys-be/internal/inventory"
	"gamekeys-be/internal/logger"
	"gamekeys-be/internal/order"
	"gamekeys-be/internal/payment"
	"gamekeys-be/internal/tracking"
	"gamekeys-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type checkoutService interface {
	InitiatePayment(ctx context.Context, orderID uint, buyer payment.Buyer) (*checkout.Initiation, error)
	Verify(ctx context.Context, userID uint, cb payment.Callback) (*checkout.Result, error)
}

type couponService interface {
	Validate(ctx context.Context, req coupon.ValidateRequest) (*coupon.Result, error)
}

type stockService interface {
	Import(ctx context.Context, productID string, codes []string) (*inventory.ImportResult, error)
	Available(ctx context.Context, productID string) (int, error)
}

type fulfiller interface {
	Fulfill(ctx context.Context, orderID uint) (*fulfillment.Report, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	orders    order.Service
	checkout  checkoutService
	coupons   couponService
	stock     stockService
	fulfiller fulfiller
	health    pinger
	storage   string
}

type createOrderRequest struct {
	Items []order.LineRequest `json:"items" validate:"required,min=1,dive"`
}

type verifyRequest struct {
	Token          string `json:"token" validate:"required_without=ConversationID"`
	ConversationID string `json:"conversation_id"`
}

type verifyResponse struct {
	PaymentID uint           `json:"payment_id"`
	OrderID   uint           `json:"order_id"`
	Status    payment.Status `json:"status"`
	Applied   bool           `json:"applied"`
	Duplicate bool           `json:"duplicate"`
}

type validateCouponRequest struct {
	Code       string          `json:"code" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	ProductIDs []string        `json:"product_ids"`
}

type updateStatusRequest struct {
	Status order.OrderStatus `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
}

type importCodesRequest struct {
	Codes []string `json:"codes" validate:"required,min=1"`
}

type stockResponse struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
}

func currentUser(r *http.Request) uint {
	id, _ := utils.GetUserIDFromContext(r.Context())
	return id
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), currentUser(r), req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	init, err := h.checkout.InitiatePayment(r.Context(), id, payment.Buyer{
		UserID: currentUser(r),
		Email:  utils.GetUserEmailFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, init)
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.checkout.Verify(r.Context(), currentUser(r), payment.Callback{
		Token:          req.Token,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, verifyResponse{
		PaymentID: res.Payment.ID,
		OrderID:   res.Payment.OrderID,
		Status:    res.Payment.Status,
		Applied:   res.Applied,
		Duplicate: res.Duplicate,
	})
}

func (h *Handler) GetOrderCodes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	codes, err := h.orders.GetOrderCodes(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string][]order.OrderCode{"codes": codes})
}

func (h *Handler) GetOrderTracking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.orders.GetOrderTracking(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string][]tracking.Entry{"tracking": entries})
}

func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, apperr.New(apperr.CodeValidation, "validation failed").
			WithDetails(map[string]string{"amount": "must be greater than 0"}))
		return
	}

	vr := coupon.ValidateRequest{Code: req.Code, Amount: req.Amount, ProductIDs: req.ProductIDs}
	if uid, ok := utils.GetUserIDFromContext(r.Context()); ok {
		vr.UserID = &uid
	}
	res, err := h.coupons.Validate(r.Context(), vr)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) FulfillOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.fulfiller.Fulfill(r.Context(), id)
	if err != nil && report == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		logger.FromCtx(r.Context()).Warn("manual fulfillment finished with errors", zap.Uint("order_id", id), zap.Error(err))
	}
	utils.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) ImportCodes(w http.ResponseWriter, r *http.Request) {
	var req importCodesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.stock.Import(r.Context(), chi.URLParam(r, "id"), req.Codes)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	n, err := h.stock.Available(r.Context(), productID)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stockResponse{ProductID: productID, Available: n})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			logger.FromCtx(r.Context()).Error("health check failed", zap.Error(err))
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "storage": h.storage})
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": h.storage})
}
