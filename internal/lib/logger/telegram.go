package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MessageSender delivers a plain text message to the administrator.
type MessageSender interface {
	SendMessage(msg string)
}

// TelegramHandler forwards records at or above minLevel to the admin chat,
// while passing every record to the wrapped handler.
type TelegramHandler struct {
	next     slog.Handler
	sender   MessageSender
	minLevel slog.Level
	attrs    []slog.Attr
	group    string
}

func SetupTelegramHandler(lg *slog.Logger, sender MessageSender, minLevel slog.Level) *slog.Logger {
	if sender == nil {
		return lg
	}
	return slog.New(&TelegramHandler{
		next:     lg.Handler(),
		sender:   sender,
		minLevel: minLevel,
	})
}

func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || level >= h.minLevel
}

func (h *TelegramHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.minLevel {
		go h.sender.SendMessage(h.format(r))
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TelegramHandler{
		next:     h.next.WithAttrs(attrs),
		sender:   h.sender,
		minLevel: h.minLevel,
		attrs:    merged,
		group:    h.group,
	}
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &TelegramHandler{
		next:     h.next.WithGroup(name),
		sender:   h.sender,
		minLevel: h.minLevel,
		attrs:    h.attrs,
		group:    group,
	}
}

func (h *TelegramHandler) format(r slog.Record) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", r.Level.String(), r.Message))
	for _, a := range h.attrs {
		sb.WriteString(fmt.Sprintf("\n%s: %s", a.Key, a.Value.String()))
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		sb.WriteString(fmt.Sprintf("\n%s: %s", key, a.Value.String()))
		return true
	})
	return sb.String()
}
