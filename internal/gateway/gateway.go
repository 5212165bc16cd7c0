// Package gateway defines the engine's boundary with the chat transport.
// Deliveries are fire-and-forget: a failed send is reported as a
// *TransportError, logged by the caller and never retried.
package gateway

import (
	"context"
	"fmt"
)

// Gateway sends plain text to a chat recipient.
type Gateway interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TransportError wraps a delivery failure. Message loss is accepted, not fatal.
type TransportError struct {
	ChatID int64
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to chat %d failed: %v", e.ChatID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
