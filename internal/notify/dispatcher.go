package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pysugar/hipchat-connect/internal/hipchat"
	"github.com/pysugar/hipchat-connect/internal/logging"
)

// Sender delivers messages immediately.
type Sender interface {
	SendRoomMessage(ctx context.Context, room string, msg hipchat.Message) error
	SendUserMessage(ctx context.Context, user string, msg hipchat.Message) error
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher validates messages and then either sends them inline or queues
// them, depending on whether it was given an Enqueuer.
type Dispatcher struct {
	sender   Sender
	enqueuer Enqueuer
	queue    string
	log      *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil enqueuer means synchronous delivery.
func NewDispatcher(sender Sender, enqueuer Enqueuer, queue string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, enqueuer: enqueuer, queue: queue, log: log}
}

// Async reports whether messages are queued.
func (d *Dispatcher) Async() bool {
	return d.enqueuer != nil
}

func (d *Dispatcher) SendRoomMessage(ctx context.Context, room string, msg hipchat.Message) error {
	if err := validate(room, msg); err != nil {
		return err
	}
	if d.enqueuer == nil {
		return d.sender.SendRoomMessage(ctx, room, msg)
	}
	task, err := NewRoomMessageTask(room, msg, d.queue)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, room)
}

func (d *Dispatcher) SendUserMessage(ctx context.Context, user string, msg hipchat.Message) error {
	if err := validate(user, msg); err != nil {
		return err
	}
	if d.enqueuer == nil {
		return d.sender.SendUserMessage(ctx, user, msg)
	}
	task, err := NewUserMessageTask(user, msg, d.queue)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, user)
}

func (d *Dispatcher) enqueue(ctx context.Context, task *asynq.Task, target string) error {
	info, err := d.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	if info != nil {
		d.log.Debug("message queued", "task_type", task.Type(), "task_id", info.ID, "target", target)
	}
	return nil
}

// RoomSender adapts the dispatcher for log forwarding. Log lines go out as
// plain text.
func (d *Dispatcher) RoomSender() logging.RoomSender {
	return func(ctx context.Context, room, message, color string) error {
		return d.SendRoomMessage(ctx, room, hipchat.NewMessage(message,
			hipchat.WithColor(color),
			hipchat.WithFormat("text")))
	}
}

func validate(target string, msg hipchat.Message) error {
	if target == "" {
		return fmt.Errorf("%w: missing recipient", hipchat.ErrInvalidMessage)
	}
	return msg.Validate()
}
