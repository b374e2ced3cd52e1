package protocol

import (
	"context"
	"errors"

	"boardcast/internal/logging"
	"boardcast/pkg/domain"
)

// Router dispatches parsed invokes to registered handlers and reports
// failures back to the calling connection as Error pushes.
type Router struct {
	registry HandlerRegistry
	logger   *logging.Logger
}

// NewRouter creates a new router
func NewRouter(logger *logging.Logger) *Router {
	return &Router{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Register registers a handler for a message type
func (r *Router) Register(messageType domain.MessageType, handler Handler) {
	r.registry.Register(messageType, handler)
}

// Handle routes an invoke and pushes an Error event to the caller when the
// handler fails. Handler errors never tear the connection down.
func (r *Router) Handle(ctx context.Context, conn domain.Connection, msg *domain.Message) error {
	err := r.registry.Handle(ctx, conn, msg)
	if err == nil {
		return nil
	}

	r.logger.Warn("invoke failed",
		"connection_id", conn.ID(),
		"message_type", msg.Type,
		"error", err,
	)

	return errorCodeOf(err)
}

// errorCodeOf maps a handler error to the error pushed to the caller
func errorCodeOf(err error) error {
	if errors.Is(err, domain.ErrUnauthenticated) {
		return domain.NewDomainError(domain.ErrCodeUnauthenticated, "user not authenticated", err)
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		return de
	}

	return domain.NewDomainError(domain.ErrCodeInternal, "invoke failed", err)
}
