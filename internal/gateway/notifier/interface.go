package notifier

import "context"

// TextNotifier sends a plain text message to an operator channel.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
