package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/payments"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CredentialStore interface {
	PaymentCredentials(ctx context.Context) (payments.Credentials, error)
	Save(ctx context.Context, c payments.Credentials) error
}

// SettingsHandler lets the merchant rotate payment keys without a restart.
type SettingsHandler struct {
	Store CredentialStore
	Log   *zap.Logger
}

type PaymentSettingsReq struct {
	PublicKey       string `json:"public_key"`
	IntegritySecret string `json:"integrity_secret"`
	EventSecret     string `json:"event_secret"`
}

// PaymentSettingsResp never echoes secrets, only whether they are set.
type PaymentSettingsResp struct {
	PublicKey          string `json:"public_key"`
	IntegritySecretSet bool   `json:"integrity_secret_set"`
	EventSecretSet     bool   `json:"event_secret_set"`
	CanCharge          bool   `json:"can_charge"`
}

func (h *SettingsHandler) Register(r chi.Router) {
	r.Get("/admin/settings/payments", h.get)
	r.Put("/admin/settings/payments", h.put)
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.PaymentCredentials(r.Context())
	if err != nil {
		logx.FromContextOr(r.Context(), h.Log).Error("read payment settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, PaymentSettingsResp{
		PublicKey:          c.PublicKey,
		IntegritySecretSet: c.IntegritySecret != "",
		EventSecretSet:     c.EventSecret != "",
		CanCharge:          c.CanCharge(),
	})
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var req PaymentSettingsReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.Store.Save(r.Context(), payments.Credentials{
		PublicKey:       req.PublicKey,
		IntegritySecret: req.IntegritySecret,
		EventSecret:     req.EventSecret,
	})
	if err != nil {
		logx.FromContextOr(r.Context(), h.Log).Error("save payment settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.get(w, r)
}
