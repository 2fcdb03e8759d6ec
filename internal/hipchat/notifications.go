package hipchat

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

const maxMessageLength = 10000

// ErrInvalidMessage wraps every message validation failure.
var ErrInvalidMessage = errors.New("invalid message")

var (
	validColors  = map[string]bool{"yellow": true, "green": true, "red": true, "purple": true, "gray": true, "random": true}
	validFormats = map[string]bool{"text": true, "html": true}
)

// Message is the body of a room notification or private user message.
type Message struct {
	Message       string `json:"message"`
	Color         string `json:"color,omitempty"`
	Notify        bool   `json:"notify"`
	MessageFormat string `json:"message_format"`
	From          string `json:"from,omitempty"`
}

// MessageOption adjusts a Message before it is sent.
type MessageOption func(*Message)

func WithColor(color string) MessageOption {
	return func(m *Message) { m.Color = color }
}

func WithFormat(format string) MessageOption {
	return func(m *Message) { m.MessageFormat = format }
}

func WithNotify(notify bool) MessageOption {
	return func(m *Message) { m.Notify = notify }
}

// WithSender sets the display name shown as the sender.
func WithSender(from string) MessageOption {
	return func(m *Message) { m.From = from }
}

// NewMessage applies opts over the defaults (yellow, html, no notify).
func NewMessage(text string, opts ...MessageOption) Message {
	m := Message{Message: text, Color: "yellow", MessageFormat: "html"}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Validate enforces the platform's message limits.
func (m Message) Validate() error {
	n := utf8.RuneCountInString(m.Message)
	if n < 1 || n > maxMessageLength {
		return fmt.Errorf("%w: must be 1-%d chars, got %d", ErrInvalidMessage, maxMessageLength, n)
	}
	if m.Color != "" && !validColors[m.Color] {
		return fmt.Errorf("%w: color %q", ErrInvalidMessage, m.Color)
	}
	if !validFormats[m.MessageFormat] {
		return fmt.Errorf("%w: format %q", ErrInvalidMessage, m.MessageFormat)
	}
	return nil
}

// Notifier sends room and user messages with personal tokens.
type Notifier struct {
	client *Client
	tokens *TokenPool
}

func NewNotifier(client *Client, tokens *TokenPool) *Notifier {
	return &Notifier{client: client, tokens: tokens}
}

// SendRoomMessage posts a notification to a room given by id or name.
func (n *Notifier) SendRoomMessage(ctx context.Context, room string, msg Message) error {
	if room == "" {
		return fmt.Errorf("%w: missing room id or name", ErrInvalidMessage)
	}
	return n.send(ctx, n.client.URL("room", room, "notification"), msg)
}

// SendUserMessage posts a private message to a user given by id, email or
// mention name. User messages carry no colour.
func (n *Notifier) SendUserMessage(ctx context.Context, user string, msg Message) error {
	if user == "" {
		return fmt.Errorf("%w: missing user id or email", ErrInvalidMessage)
	}
	msg.Color = ""
	return n.send(ctx, n.client.URL("user", user, "message"), msg)
}

func (n *Notifier) send(ctx context.Context, endpoint string, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	token, err := n.tokens.Get()
	if err != nil {
		return err
	}
	_, err = n.client.PostJSON(ctx, endpoint, token, msg)
	return err
}

func (n *Notifier) color(ctx context.Context, room, color, message string) error {
	return n.SendRoomMessage(ctx, room, NewMessage(message, WithColor(color)))
}

func (n *Notifier) Yellow(ctx context.Context, room, message string) error {
	return n.color(ctx, room, "yellow", message)
}

func (n *Notifier) Gray(ctx context.Context, room, message string) error {
	return n.color(ctx, room, "gray", message)
}

func (n *Notifier) Green(ctx context.Context, room, message string) error {
	return n.color(ctx, room, "green", message)
}

func (n *Notifier) Purple(ctx context.Context, room, message string) error {
	return n.color(ctx, room, "purple", message)
}

func (n *Notifier) Red(ctx context.Context, room, message string) error {
	return n.color(ctx, room, "red", message)
}
