package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pysugar/hipchat-connect/internal/hipchat"
)

// Handler runs queued message tasks in the worker.
type Handler struct {
	sender Sender
	log    *slog.Logger
}

func NewHandler(sender Sender, log *slog.Logger) *Handler {
	return &Handler{sender: sender, log: log}
}

// Register adds the task handlers to mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeRoomMessage, h.HandleRoomMessage)
	mux.HandleFunc(TypeUserMessage, h.HandleUserMessage)
}

func (h *Handler) HandleRoomMessage(ctx context.Context, t *asynq.Task) error {
	p, err := decode(t)
	if err != nil {
		return err
	}
	return h.result(t, p, h.sender.SendRoomMessage(ctx, p.Target, p.Message))
}

func (h *Handler) HandleUserMessage(ctx context.Context, t *asynq.Task) error {
	p, err := decode(t)
	if err != nil {
		return err
	}
	return h.result(t, p, h.sender.SendUserMessage(ctx, p.Target, p.Message))
}

func decode(t *asynq.Task) (*MessagePayload, error) {
	var p MessagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return &p, nil
}

// result marks failures that cannot succeed on retry with asynq.SkipRetry.
func (h *Handler) result(t *asynq.Task, p *MessagePayload, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *hipchat.APIError
	switch {
	case errors.Is(err, hipchat.ErrInvalidMessage), errors.Is(err, hipchat.ErrNoPersonalToken):
		h.log.Error("dropping message", "task_type", t.Type(), "target", p.Target, "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && !apiErr.RateLimited():
		h.log.Error("platform rejected message", "task_type", t.Type(), "target", p.Target, "status", apiErr.StatusCode)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		h.log.Warn("message delivery failed, will retry", "task_type", t.Type(), "target", p.Target, "error", err)
		return err
	}
}

// RetryDelay honours the platform's rate-limit hint and otherwise falls back
// to asynq's default backoff.
func RetryDelay(n int, err error, t *asynq.Task) time.Duration {
	var apiErr *hipchat.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return time.Minute
	}
	return asynq.DefaultRetryDelayFunc(n, err, t)
}
