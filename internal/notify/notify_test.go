package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pysugar/hipchat-connect/internal/hipchat"
	"github.com/pysugar/hipchat-connect/internal/logging"
)

type sent struct {
	kind   string
	target string
	msg    hipchat.Message
}

type fakeSender struct {
	sent []sent
	err  error
}

func (f *fakeSender) SendRoomMessage(_ context.Context, room string, msg hipchat.Message) error {
	f.sent = append(f.sent, sent{kind: "room", target: room, msg: msg})
	return f.err
}

func (f *fakeSender) SendUserMessage(_ context.Context, user string, msg hipchat.Message) error {
	f.sent = append(f.sent, sent{kind: "user", target: user, msg: msg})
	return f.err
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestDispatcher_Sync(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, "", logging.Discard())
	assert.False(t, d.Async())

	require.NoError(t, d.SendRoomMessage(context.Background(), "Lounge", hipchat.NewMessage("hello")))
	require.NoError(t, d.SendUserMessage(context.Background(), "hugo", hipchat.NewMessage("hi")))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "room", sender.sent[0].kind)
	assert.Equal(t, "Lounge", sender.sent[0].target)
	assert.Equal(t, "user", sender.sent[1].kind)
}

func TestDispatcher_Async(t *testing.T) {
	sender := &fakeSender{}
	enq := &fakeEnqueuer{}
	d := NewDispatcher(sender, enq, "chat", logging.Discard())
	assert.True(t, d.Async())

	require.NoError(t, d.SendRoomMessage(context.Background(), "Lounge", hipchat.NewMessage("hello", hipchat.WithColor("green"))))
	assert.Empty(t, sender.sent)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeRoomMessage, enq.tasks[0].Type())

	var p MessagePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &p))
	assert.Equal(t, "Lounge", p.Target)
	assert.Equal(t, "green", p.Message.Color)
	assert.Equal(t, "hello", p.Message.Message)
}

func TestDispatcher_ValidatesBeforeQueueing(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := NewDispatcher(&fakeSender{}, enq, "", logging.Discard())

	assert.ErrorIs(t, d.SendRoomMessage(context.Background(), "", hipchat.NewMessage("hi")), hipchat.ErrInvalidMessage)
	assert.ErrorIs(t, d.SendRoomMessage(context.Background(), "Lounge", hipchat.NewMessage("hi", hipchat.WithColor("teal"))), hipchat.ErrInvalidMessage)
	assert.Empty(t, enq.tasks)

	enq.err = errors.New("redis down")
	assert.Error(t, d.SendUserMessage(context.Background(), "hugo", hipchat.NewMessage("hi")))
}

func TestDispatcher_RoomSender(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, "", logging.Discard())

	require.NoError(t, d.RoomSender()(context.Background(), "Danger Zone", "[ERROR] boom", "red"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "red", sender.sent[0].msg.Color)
	assert.Equal(t, "text", sender.sent[0].msg.MessageFormat)
}

func TestHandler_DeliversQueuedMessages(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, logging.Discard())

	room, err := NewRoomMessageTask("Lounge", hipchat.NewMessage("hello"), "")
	require.NoError(t, err)
	user, err := NewUserMessageTask("hugo", hipchat.NewMessage("hi"), "")
	require.NoError(t, err)

	require.NoError(t, h.HandleRoomMessage(context.Background(), room))
	require.NoError(t, h.HandleUserMessage(context.Background(), user))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Lounge", sender.sent[0].target)
	assert.Equal(t, "hugo", sender.sent[1].target)
}

func TestHandler_RetryClassification(t *testing.T) {
	task, err := NewRoomMessageTask("Lounge", hipchat.NewMessage("hello"), "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{name: "invalid", err: hipchat.ErrInvalidMessage, skipRetry: true},
		{name: "no token", err: hipchat.ErrNoPersonalToken, skipRetry: true},
		{name: "forbidden", err: &hipchat.APIError{StatusCode: http.StatusForbidden}, skipRetry: true},
		{name: "rate limited", err: &hipchat.APIError{StatusCode: http.StatusTooManyRequests}, skipRetry: false},
		{name: "server error", err: &hipchat.APIError{StatusCode: http.StatusBadGateway}, skipRetry: false},
		{name: "network", err: errors.New("connection reset"), skipRetry: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeSender{err: tt.err}, logging.Discard())
			got := h.HandleRoomMessage(context.Background(), task)
			require.Error(t, got)
			assert.Equal(t, tt.skipRetry, errors.Is(got, asynq.SkipRetry))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	h := NewHandler(&fakeSender{}, logging.Discard())
	bad := asynq.NewTask(TypeRoomMessage, []byte("{"))
	assert.ErrorIs(t, h.HandleRoomMessage(context.Background(), bad), asynq.SkipRetry)
}

func TestRetryDelay(t *testing.T) {
	task := asynq.NewTask(TypeRoomMessage, nil)

	assert.Equal(t, 30*time.Second, RetryDelay(1, &hipchat.APIError{StatusCode: 429, RetryAfter: 30 * time.Second}, task))
	assert.Equal(t, time.Minute, RetryDelay(1, &hipchat.APIError{StatusCode: 429}, task))
	assert.Positive(t, RetryDelay(1, errors.New("boom"), task))
}
