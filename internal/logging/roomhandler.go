package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RoomSender delivers one message to a chat room.
type RoomSender func(ctx context.Context, room, message, color string) error

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "gray",   // background noise
	slog.LevelInfo:  "yellow", // default stuff
	slog.LevelWarn:  "green",  // good things we want to know about
	slog.LevelError: "red",    // things we don't like
}

type forwardingKey struct{}

// RoomHandler forwards records at or above a level to a chat room and passes
// every record on to the wrapped handler.
type RoomHandler struct {
	inner slog.Handler
	send  RoomSender
	room  string
	level slog.Leveler
	attrs []slog.Attr
}

// NewRoomHandler wraps inner. Records emitted while a forward is in flight are
// never forwarded again, so a failing sender cannot loop.
func NewRoomHandler(inner slog.Handler, send RoomSender, room string, level slog.Leveler) *RoomHandler {
	return &RoomHandler{inner: inner, send: send, room: room, level: level}
}

func (h *RoomHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() || h.inner.Enabled(ctx, level)
}

func (h *RoomHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() && ctx.Value(forwardingKey{}) == nil {
		fctx := context.WithValue(ctx, forwardingKey{}, true)
		if err := h.send(fctx, h.room, h.format(r), colorFor(r.Level)); err != nil {
			failure := slog.NewRecord(r.Time, slog.LevelWarn, "room log forwarding failed", r.PC)
			failure.AddAttrs(slog.String("room", h.room), slog.Any("error", err))
			if h.inner.Enabled(ctx, slog.LevelWarn) {
				_ = h.inner.Handle(ctx, failure)
			}
		}
	}
	if !h.inner.Enabled(ctx, r.Level) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *RoomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &RoomHandler{inner: h.inner.WithAttrs(attrs), send: h.send, room: h.room, level: h.level, attrs: merged}
}

func (h *RoomHandler) WithGroup(name string) slog.Handler {
	return &RoomHandler{inner: h.inner.WithGroup(name), send: h.send, room: h.room, level: h.level, attrs: h.attrs}
}

func (h *RoomHandler) format(r slog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", r.Level, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	return b.String()
}

func colorFor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return levelColors[slog.LevelError]
	case level >= slog.LevelWarn:
		return levelColors[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return levelColors[slog.LevelInfo]
	default:
		return levelColors[slog.LevelDebug]
	}
}
