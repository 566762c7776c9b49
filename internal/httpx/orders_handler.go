package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/ariefcatur/chat-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderService is the lifecycle engine behind the order endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, items []orders.ItemRequest, ship orders.Shipping) (orders.CreateOrderResult, error)
	HandlePaymentEvent(ctx context.Context, ev payments.Event) (orders.PaymentEventResult, error)
	Dispatch(ctx context.Context, orderID, carrier, tracking string) (orders.TransitionResult, error)
	MarkDelivered(ctx context.Context, orderID string) (orders.TransitionResult, error)
}

type StatusReader interface {
	GetOrderStatus(ctx context.Context, id string) (orders.Status, time.Time, error)
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool)
	Set(ctx context.Context, orderID string, s redisx.CachedStatus)
}

// SweepRunner triggers one expiry sweep. ran is false when a sweep is
// already in progress elsewhere.
type SweepRunner interface {
	RunOnce(ctx context.Context) (sum orders.SweepSummary, ran bool, err error)
}

type OrdersHandler struct {
	Orders OrderService
	Status StatusReader
	Cache  StatusCache
	Sweeps SweepRunner
	Log    *zap.Logger
}

type CreateOrderReq struct {
	CustomerID string               `json:"customer_id" validate:"required"`
	Items      []orders.ItemRequest `json:"items" validate:"required,min=1,dive"`
	orders.Shipping
}

type DispatchReq struct {
	CarrierName    string `json:"carrier_name" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

type OrderStatusResp struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Cached    bool      `json:"cached"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/webhooks/wompi", h.paymentWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/orders/{id}/dispatch", h.dispatch)
		r.Post("/orders/{id}/deliver", h.deliver)
		r.Post("/sweeps", h.sweep)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, orders.CreateOrderResult{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Orders.CreateOrder(ctx, req.CustomerID, req.Items, req.Shipping)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logx.FromContextOr(r.Context(), h.Log).Error("create order failed", zap.Error(err))
		}
		writeJSON(w, code, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if s, ok := h.Cache.Get(ctx, orderID); ok {
			writeJSON(w, http.StatusOK, OrderStatusResp{OrderID: orderID, Status: s.Status, UpdatedAt: s.UpdatedAt, Cached: true})
			return
		}
	}

	status, updated, err := h.Status.GetOrderStatus(ctx, orderID)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusNotFound {
			writeError(w, code, "not found")
			return
		}
		logx.FromContextOr(r.Context(), h.Log).Error("read order status", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, code, "internal error")
		return
	}
	if h.Cache != nil {
		h.Cache.Set(ctx, orderID, redisx.CachedStatus{Status: string(status), UpdatedAt: updated})
	}
	writeJSON(w, http.StatusOK, OrderStatusResp{OrderID: orderID, Status: string(status), UpdatedAt: updated})
}

func (h *OrdersHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	ev, err := payments.ParseEvent(body, r.Header)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, orders.PaymentEventResult{Error: err.Error()})
		return
	}

	res, err := h.Orders.HandlePaymentEvent(r.Context(), ev)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logx.FromContextOr(r.Context(), h.Log).Error("payment webhook failed",
				zap.String("reference", ev.Transaction.Reference), zap.Error(err))
		}
		writeJSON(w, code, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchReq
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, orders.TransitionResult{Error: err.Error()})
		return
	}
	res, err := h.Orders.Dispatch(r.Context(), chi.URLParam(r, "id"), req.CarrierName, req.TrackingNumber)
	h.writeTransition(w, r, res, err)
}

func (h *OrdersHandler) deliver(w http.ResponseWriter, r *http.Request) {
	res, err := h.Orders.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	h.writeTransition(w, r, res, err)
}

func (h *OrdersHandler) writeTransition(w http.ResponseWriter, r *http.Request, res orders.TransitionResult, err error) {
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logx.FromContextOr(r.Context(), h.Log).Error("order transition failed", zap.Error(err))
		}
		writeJSON(w, code, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) sweep(w http.ResponseWriter, r *http.Request) {
	if h.Sweeps == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper not configured")
		return
	}
	// The sweep outlives a client disconnect; it is bounded by the lock TTL.
	sum, ran, err := h.Sweeps.RunOnce(context.WithoutCancel(r.Context()))
	switch {
	case err != nil && errors.Is(err, orders.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		logx.FromContextOr(r.Context(), h.Log).Error("manual sweep failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sweep failed")
	case !ran:
		writeError(w, http.StatusConflict, "sweep already running")
	default:
		writeJSON(w, http.StatusOK, sum)
	}
}
