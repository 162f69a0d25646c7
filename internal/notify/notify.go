// Package notify defines the outbound alert channel consumed by the monitor.
// The concrete Telegram implementation lives in internal/transport/telegram.
package notify

import "context"

// Notifier delivers one message to the configured channel.
//
// Both calls are synchronous and must honor ctx for timeout/cancellation.
// A non-nil error means the message was not delivered; callers decide
// whether to care (the monitor logs and moves on).
type Notifier interface {
	SendText(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, caption, imageURL string) error
}

// Nop discards all messages. Useful in tests and dry runs.
type Nop struct{}

func (Nop) SendText(context.Context, string) error          { return nil }
func (Nop) SendPhoto(context.Context, string, string) error { return nil }
