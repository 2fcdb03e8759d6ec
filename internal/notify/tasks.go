// Package notify delivers room and user messages either inline or through
// an asynq queue.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pysugar/hipchat-connect/internal/hipchat"
)

const (
	TypeRoomMessage = "hipchat:room_message"
	TypeUserMessage = "hipchat:user_message"

	DefaultQueue = "notifications"
)

// MessagePayload is the task body for both message types.
type MessagePayload struct {
	Target  string          `json:"target"`
	Message hipchat.Message `json:"message"`
}

func NewRoomMessageTask(room string, msg hipchat.Message, queue string) (*asynq.Task, error) {
	return newMessageTask(TypeRoomMessage, room, msg, queue)
}

func NewUserMessageTask(user string, msg hipchat.Message, queue string) (*asynq.Task, error) {
	return newMessageTask(TypeUserMessage, user, msg, queue)
}

func newMessageTask(taskType, target string, msg hipchat.Message, queue string) (*asynq.Task, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	payload, err := json.Marshal(MessagePayload{Target: target, Message: msg})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Queue(queue)), nil
}
