// Package chat relays the user's message to a language model and splits the
// answer into a conversational reply and an optional correction.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/chatpal/internal/observability/logger"
)

// FallbackReply is sent when the model call fails.
const FallbackReply = "I'm having a little trouble thinking right now. Please try again in a moment."

// MaxMessageLen bounds a single user message.
const MaxMessageLen = 2000

var (
	ErrEmptyMessage   = errors.New("chat: empty message")
	ErrMessageTooLong = errors.New("chat: message too long")
)

// Completer sends one system+user exchange to a model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Reply is one assistant message.
type Reply struct {
	ID           string    `json:"id"`
	Conversation string    `json:"conversation"`
	Correction   string    `json:"correction,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Fallback     bool      `json:"fallback,omitempty"`
}

// Options configures the service. A nil Completer selects offline mode.
type Options struct {
	Completer Completer
	MockDelay time.Duration
	Now       func() time.Time
	// OnReply is called after every reply with its outcome ("ok",
	// "fallback", "mock").
	OnReply func(outcome string, took time.Duration)
}

type Service struct {
	opts Options
}

func NewService(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{opts: opts}
}

// Offline reports whether replies come from the canned mock.
func (s *Service) Offline() bool { return s.opts.Completer == nil }

// Reply answers text. Model failures are logged and answered with
// FallbackReply; only invalid input returns an error.
func (s *Service) Reply(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLen {
		return Reply{}, ErrMessageTooLong
	}

	start := s.opts.Now()
	r := Reply{ID: uuid.NewString(), CreatedAt: start}

	if s.Offline() {
		if err := s.sleep(ctx); err != nil {
			return Reply{}, err
		}
		r.Conversation, r.Correction = mockReply(text)
		s.observe("mock", start)
		return r, nil
	}

	out, err := s.opts.Completer.Complete(ctx, SystemPrompt, UserPrompt(text))
	if err != nil {
		logger.From(ctx).Error("model call failed",
			logger.Component("chat"), logger.Op("Reply"), logger.Err(err))
		r.Conversation, r.Fallback = FallbackReply, true
		s.observe("fallback", start)
		return r, nil
	}
	r.Conversation, r.Correction = ParseReply(out)
	s.observe("ok", start)
	return r, nil
}

func (s *Service) sleep(ctx context.Context) error {
	if s.opts.MockDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.opts.MockDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) observe(outcome string, start time.Time) {
	if s.opts.OnReply != nil {
		s.opts.OnReply(outcome, s.opts.Now().Sub(start))
	}
}

func mockReply(text string) (conversation, correction string) {
	if strings.Contains(strings.ToLower(text), "hello") {
		return "Hello there! How are you doing today? 😊", ""
	}
	return "That sounds interesting! Tell me more.",
		"A better way to say that: 'That sounds very interesting! Could you tell me more about it?'"
}
