package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/catalog"
	"github.com/ariefcatur/chat-storefront/internal/customers"
	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Catalog interface {
	CheckStock(ctx context.Context, ref string, size orders.Size) (catalog.StockCheck, error)
	Search(ctx context.Context, query, category string) ([]catalog.Product, error)
}

type CustomerDirectory interface {
	FindOrCreateByPhone(ctx context.Context, phone, name string) (customers.Customer, error)
}

// CatalogHandler serves the read side the conversational agent needs
// before it places an order.
type CatalogHandler struct {
	Catalog   Catalog
	Customers CustomerDirectory
	Log       *zap.Logger
}

type CustomerReq struct {
	Phone string `json:"phone" validate:"required"`
	Name  string `json:"name"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/catalog/stock", h.checkStock)
	r.Get("/catalog/products", h.listProducts)
	r.Post("/customers", h.upsertCustomer)
}

func (h *CatalogHandler) checkStock(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("product"))
	size := orders.Size(strings.TrimSpace(r.URL.Query().Get("size")))
	if ref == "" || size == "" {
		writeError(w, http.StatusBadRequest, "product and size are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Catalog.CheckStock(ctx, ref, size)
	if err != nil {
		if errors.Is(err, orders.ErrResolution) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logx.FromContextOr(r.Context(), h.Log).Error("check stock", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.Search(ctx, r.URL.Query().Get("q"), r.URL.Query().Get("category"))
	if err != nil {
		logx.FromContextOr(r.Context(), h.Log).Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) upsertCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.Customers.FindOrCreateByPhone(r.Context(), req.Phone, req.Name)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logx.FromContextOr(r.Context(), h.Log).Error("upsert customer", zap.Error(err))
			writeError(w, code, "internal error")
			return
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}
