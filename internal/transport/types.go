package transport

import (
	"context"
	"errors"
)

// ErrMessageNotFound reports that the message a call targeted no longer
// exists (deleted by a moderator, chat purged). Callers treat the edit as
// already resolved rather than retrying.
var ErrMessageNotFound = errors.New("message not found")

type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

func (r MessageRef) IsZero() bool { return r.ChatID == 0 && r.MessageID == 0 }

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the chat platform boundary: an incoming update stream plus
// the two outbound calls the lifecycle machine needs (send and edit).
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
}
