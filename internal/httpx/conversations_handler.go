package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/chat-storefront/internal/logx"
	"github.com/ariefcatur/chat-storefront/internal/notify"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ConversationStore interface {
	Recipient(ctx context.Context, conversationID string) (customerID, phone string, err error)
	AppendTo(ctx context.Context, conversationID, body, providerMessageID string) error
}

// ConversationHandler lets an operator answer a customer inside an existing
// conversation. The message is sent synchronously so the operator sees the
// provider result.
type ConversationHandler struct {
	Conversations ConversationStore
	Sender        notify.Sender
	Log           *zap.Logger
}

type OperatorMessageReq struct {
	Content  string `json:"content"`
	MediaURL string `json:"media_url" validate:"omitempty,url"`
}

func (h *ConversationHandler) Register(r chi.Router) {
	r.Post("/admin/conversations/{id}/messages", h.send)
}

func (h *ConversationHandler) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convID := chi.URLParam(r, "id")
	log := logx.FromContextOr(ctx, h.Log).With(zap.String("conversation_id", convID))

	var req OperatorMessageReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" && req.MediaURL == "" {
		writeError(w, http.StatusBadRequest, "content or media_url is required")
		return
	}

	customerID, phone, err := h.Conversations.Recipient(ctx, convID)
	switch {
	case errors.Is(err, notify.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		log.Error("load conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	case phone == "":
		writeError(w, http.StatusUnprocessableEntity, "customer has no phone")
		return
	}

	m := notify.Message{Kind: notify.KindOperatorReply, CustomerID: customerID, To: phone, Body: req.Content}
	if req.MediaURL != "" {
		m.MediaURLs = []string{req.MediaURL}
	}
	res := h.Sender.Send(ctx, m)
	if !res.Success {
		log.Warn("operator reply failed", zap.String("error", res.Error))
		writeJSON(w, http.StatusBadGateway, res)
		return
	}
	if err := h.Conversations.AppendTo(ctx, convID, req.Content, res.ID); err != nil {
		log.Warn("operator reply sent but not logged", zap.String("message_id", res.ID), zap.Error(err))
	}
	log.Info("operator reply sent", zap.String("message_id", res.ID))
	writeJSON(w, http.StatusOK, res)
}
