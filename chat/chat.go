// Package chat relays messages to the backend assistant.
package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/takeoff-app/takeoff/apperr"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/store"
	"go.uber.org/zap"
)

// MaxMessageRunes bounds a single user message.
const MaxMessageRunes = 1000

// ActionTaskCreated is reported when the assistant added a task.
const ActionTaskCreated = "task_created"

// Reply is one assistant turn.
type Reply struct {
	Response    string   `json:"response"`
	Suggestions []string `json:"suggestions"`
	Action      string   `json:"action,omitempty"`
}

var fallback = Reply{
	Response:    "Oops, something went wrong. Try again?",
	Suggestions: []string{"Help", "Show my tasks"},
}

// Greeting is the assistant's opening message.
func Greeting() Reply {
	return Reply{
		Response:    "Hey! I'm your productivity companion 🚀 How can I help you level up today?",
		Suggestions: []string{"Show my tasks", "I need motivation", "Help"},
	}
}

type Service struct {
	st     *store.Store
	logger *zap.Logger
}

func NewService(st *store.Store, logger *zap.Logger) *Service {
	return &Service{st: st, logger: logger}
}

// Send posts message for the session's user. Upstream failures come back
// as the fallback reply; only invalid input is an error.
func (s *Service) Send(ctx context.Context, sess *model.Session, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, apperr.Invalid("message is required")
	}
	if utf8.RuneCountInString(message) > MaxMessageRunes {
		return Reply{}, apperr.Invalid("message exceeds %d characters", MaxMessageRunes)
	}

	res, err := s.st.API().Chat(ctx, backend.ChatRequest{UserID: sess.UserID, Message: message})
	if err != nil {
		s.logger.Warn("chat failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return fallback, nil
	}
	if res.Action == ActionTaskCreated {
		_ = s.st.Invalidate(ctx, sess.UserID, store.EntityTasks)
	}
	r := Reply{Response: res.Response, Suggestions: res.Suggestions, Action: res.Action}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	return r, nil
}
