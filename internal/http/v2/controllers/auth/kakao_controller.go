package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/chatpal/internal/domain/identity"
	"github.com/dropDatabas3/chatpal/internal/events"
	dto "github.com/dropDatabas3/chatpal/internal/http/v2/dto/auth"
	httperrors "github.com/dropDatabas3/chatpal/internal/http/v2/errors"
	"github.com/dropDatabas3/chatpal/internal/http/v2/helpers"
	"github.com/dropDatabas3/chatpal/internal/observability/logger"
	"github.com/dropDatabas3/chatpal/internal/sdk/kakao"
)

// KakaoController handles GET /v2/auth/kakao/callback.
type KakaoController struct {
	load   func() (KakaoCallback, bool)
	events EventSource
	wait   time.Duration
}

func NewKakaoController(load func() (KakaoCallback, bool), source EventSource, wait time.Duration) *KakaoController {
	if load == nil {
		load = func() (KakaoCallback, bool) { return nil, false }
	}
	return &KakaoController{load: load, events: source, wait: wait}
}

// Callback hands code/state to the waiting Login and then waits for the
// adapter's LoginSuccess or LoginError to report the outcome.
func (c *KakaoController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("KakaoController.Callback"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}
	cb, ok := c.load()
	if !ok {
		httperrors.WriteError(w, httperrors.ErrProviderUnavailable)
		return
	}

	q := r.URL.Query()
	state := strings.TrimSpace(q.Get("state"))
	if state == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("state required"))
		return
	}

	var (
		ch     <-chan events.Event
		cancel = func() {}
	)
	if c.events != nil {
		ch, cancel = c.events.SubscribeChan(4)
	}
	defer cancel()

	err := cb.Complete(state, strings.TrimSpace(q.Get("code")), q.Get("error"), q.Get("error_description"))
	if err != nil {
		log.Warn("callback rejected", logger.Redacted("state", state), logger.Err(err))
		if errors.Is(err, kakao.ErrUnknownState) {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid state").WithCause(err))
			return
		}
		httperrors.WriteError(w, err)
		return
	}
	if ch == nil {
		helpers.WriteJSON(w, http.StatusAccepted, dto.SignInResponse{Status: dto.SignInPending, Provider: identity.ProviderKakao.String()})
		return
	}

	timer := time.NewTimer(c.wait)
	defer timer.Stop()
	for {
		select {
		case ev := <-ch:
			if ev.Provider != identity.ProviderKakao {
				continue
			}
			switch ev.Type {
			case events.LoginSuccess:
				helpers.WriteJSON(w, http.StatusOK, dto.SignInResponse{
					Status:   dto.SignInAuthenticated,
					Provider: ev.Provider.String(),
					User:     ev.User,
				})
				return
			case events.LoginError:
				httperrors.WriteError(w, ev.Err)
				return
			}
		case <-timer.C:
			helpers.WriteJSON(w, http.StatusAccepted, dto.SignInResponse{Status: dto.SignInPending, Provider: identity.ProviderKakao.String()})
			return
		case <-ctx.Done():
			return
		}
	}
}
