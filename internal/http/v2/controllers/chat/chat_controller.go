// Package chat contiene el controller del chat de práctica.
package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/chatpal/internal/chat"
	dto "github.com/dropDatabas3/chatpal/internal/http/v2/dto/chat"
	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	"github.com/dropDatabas3/chatpal/internal/http/v2/helpers"
	mw "github.com/dropDatabas3/chatpal/internal/http/v2/middlewares"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// Replier genera la respuesta del asistente.
type Replier interface {
	Reply(ctx context.Context, text string) (chat.Reply, error)
	Offline() bool
}

// ChatController handles POST /v2/chat.
type ChatController struct {
	service Replier
}

func NewChatController(service Replier) *ChatController {
	return &ChatController{service: service}
}

func (c *ChatController) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ChatController.Send"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	var req dto.MessageRequest
	if appErr := helpers.ReadJSON(w, r, &req, helpers.MaxBodyBytes); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	reply, err := c.service.Reply(ctx, req.Text)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	if u := mw.GetUser(ctx); u != nil {
		log = log.With(logger.UID(u.UID), logger.Provider(u.Provider.String()))
	}
	log.Debug("reply sent", logger.Bool("fallback", reply.Fallback))

	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		ID:           reply.ID,
		Sender:       "ai",
		Conversation: reply.Conversation,
		Correction:   reply.Correction,
		CreatedAt:    reply.CreatedAt.UTC().Format(time.RFC3339Nano),
		Fallback:     reply.Fallback,
		Offline:      c.service.Offline(),
	})
}
