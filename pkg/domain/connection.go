package domain

import (
	"context"
)

// Identity is the authenticated principal behind a connection. It is
// resolved from the bearer credential during the transport handshake;
// the hub never derives it on its own.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// IsAuthenticated reports whether the identity resolves to a user.
func (i Identity) IsAuthenticated() bool {
	return i.UserID != ""
}

// Connection represents one live transport-level session.
type Connection interface {
	// ID returns the unique identifier of the connection
	ID() string

	// Identity returns the authenticated identity behind the connection
	Identity() Identity

	// Send queues a message for delivery to the connection
	Send(ctx context.Context, message []byte) error

	// Close closes the connection
	Close() error

	// Context returns the connection's context, done on close
	Context() context.Context
}

// MessageHandler is a function that handles incoming raw messages
type MessageHandler func(message []byte) error
