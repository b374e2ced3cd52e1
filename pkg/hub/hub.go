package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"boardcast/internal/eventbus"
	"boardcast/internal/logging"
	"boardcast/pkg/domain"

	"github.com/rs/xid"
)

// Options represents hub configuration options
type Options struct {
	// TypingTTL is how long a typing indicator lives without a refresh
	TypingTTL time.Duration

	// SendTimeout bounds the per-connection send of a single push
	SendTimeout time.Duration

	// EventBus, when set, receives lifecycle events (connection
	// opened/closed, board joined/left)
	EventBus eventbus.Bus
}

// DefaultOptions returns default hub options
func DefaultOptions() Options {
	return Options{
		TypingTTL:   3 * time.Second,
		SendTimeout: 5 * time.Second,
	}
}

// Hub tracks which users are connected to which board, relays mutation
// events to board groups, and manages presence and typing indicators.
// It is single-process and in-memory; nothing it holds survives a restart.
type Hub struct {
	logger  *logging.Logger
	options Options
	reg     *Registry
	typing  *typingTracker

	ctx    context.Context
	cancel context.CancelFunc

	messagesSent int64
	broadcasts   int64
	startTime    time.Time
}

// New creates a new hub
func New(logger *logging.Logger, options Options) *Hub {
	h := &Hub{
		logger:    logger,
		options:   options,
		reg:       NewRegistry(),
		startTime: time.Now(),
	}
	h.typing = newTypingTracker(options.TypingTTL, h.onTypingExpired)
	return h
}

// Start starts the hub
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.logger.Info("hub started")
	return nil
}

// Stop stops the hub and closes every connection
func (h *Hub) Stop() error {
	h.logger.Info("stopping hub")
	if h.cancel != nil {
		h.cancel()
	}
	h.typing.shutdown()
	h.reg.CloseAll()
	h.logger.Info("hub stopped")
	return nil
}

// Register records a newly connected transport session. The connection is
// not in any board group until it joins one.
func (h *Hub) Register(conn domain.Connection) error {
	if err := h.reg.Add(conn); err != nil {
		h.logger.Warn("connection already registered", "connection_id", conn.ID())
		return err
	}

	connections, _ := h.reg.Counts()
	h.logger.Info("connection registered",
		"connection_id", conn.ID(),
		"user_id", conn.Identity().UserID,
		"total_connections", connections,
	)
	h.publish(eventbus.NewEvent(eventbus.EventConnectionOpened).
		WithConnection(conn.ID(), conn.Identity().UserID))
	return nil
}

// Join registers the connection in a board group, announces the user to the
// other members, and refreshes the board's presence list. Re-joining a board
// the connection is already in keeps the membership set intact but still
// re-announces and re-sends presence.
func (h *Hub) Join(ctx context.Context, connID, boardID string) error {
	conn, ok := h.reg.Connection(connID)
	if !ok {
		return domain.ErrConnectionNotFound
	}
	if !conn.Identity().IsAuthenticated() {
		return domain.ErrUnauthenticated
	}

	res, err := h.reg.Join(connID, boardID)
	if err != nil {
		return err
	}

	h.logger.Info("user joined board",
		"board_id", boardID,
		"connection_id", connID,
		"user_id", res.Identity.UserID,
		"rejoin", res.AlreadyMember,
	)

	h.Broadcast(ctx, boardID, domain.MessageTypeUserJoined, domain.UserEvent{
		UserID:   res.Identity.UserID,
		UserName: res.Identity.DisplayName,
	}, connID)
	h.sendPresence(ctx, boardID)

	h.publish(eventbus.NewEvent(eventbus.EventBoardJoined).
		WithConnection(connID, res.Identity.UserID).
		WithBoard(boardID))
	return nil
}

// Leave removes the connection from a board group. The user is announced as
// gone only when this was their last connection to the board. Leaving a
// board the connection never joined does nothing.
func (h *Hub) Leave(ctx context.Context, connID, boardID string) error {
	res := h.reg.Leave(connID, boardID)
	if !res.WasMember {
		return nil
	}

	h.logger.Info("user left board",
		"board_id", boardID,
		"connection_id", connID,
		"user_id", res.Identity.UserID,
		"last_for_user", res.LastForUser,
	)

	if res.LastForUser {
		h.Broadcast(ctx, boardID, domain.MessageTypeUserLeft, domain.UserEvent{
			UserID:   res.Identity.UserID,
			UserName: res.Identity.DisplayName,
		}, connID)
	}
	h.sendPresence(ctx, boardID)

	h.publish(eventbus.NewEvent(eventbus.EventBoardLeft).
		WithConnection(connID, res.Identity.UserID).
		WithBoard(boardID))
	return nil
}

// OnDisconnect removes the connection from every board group it belonged to,
// as if Leave were called for each, and refreshes presence on each affected
// board.
func (h *Hub) OnDisconnect(connID string) {
	departures := h.reg.Disconnect(connID)

	ctx := h.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for _, dep := range departures {
		if dep.LastForUser {
			h.Broadcast(ctx, dep.BoardID, domain.MessageTypeUserLeft, domain.UserEvent{
				UserID:   dep.Identity.UserID,
				UserName: dep.Identity.DisplayName,
			}, connID)
		}
		h.sendPresence(ctx, dep.BoardID)

		h.publish(eventbus.NewEvent(eventbus.EventBoardLeft).
			WithConnection(connID, dep.Identity.UserID).
			WithBoard(dep.BoardID))
	}

	connections, _ := h.reg.Counts()
	h.logger.Info("connection closed",
		"connection_id", connID,
		"boards_left", len(departures),
		"total_connections", connections,
	)
	h.publish(eventbus.NewEvent(eventbus.EventConnectionClosed).
		WithConnection(connID, ""))
}

// StartTyping records that the connection's user is typing in a board and
// tells the other members. The indicator expires on its own after the
// configured TTL unless refreshed or stopped.
func (h *Hub) StartTyping(ctx context.Context, connID, boardID, typingContext string) error {
	conn, ok := h.reg.Connection(connID)
	if !ok {
		return domain.ErrConnectionNotFound
	}
	identity := conn.Identity()
	if !identity.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}

	h.typing.start(boardID, identity, typingContext)

	h.Broadcast(ctx, boardID, domain.MessageTypeUserTyping, domain.TypingEvent{
		UserID:   identity.UserID,
		UserName: identity.DisplayName,
		Context:  typingContext,
	}, connID)
	return nil
}

// StopTyping clears the user's typing indicator. The stopped notification
// goes out regardless of whether an indicator was active; an extra stop is
// harmless to receivers.
func (h *Hub) StopTyping(ctx context.Context, connID, boardID string) error {
	conn, ok := h.reg.Connection(connID)
	if !ok {
		return domain.ErrConnectionNotFound
	}
	identity := conn.Identity()
	if !identity.IsAuthenticated() {
		return domain.ErrUnauthenticated
	}

	h.typing.stop(boardID, identity.UserID)

	h.Broadcast(ctx, boardID, domain.MessageTypeUserStoppedTyping, domain.StoppedTypingEvent{
		UserID: identity.UserID,
	}, connID)
	return nil
}

// Ping replies Pong with the server time to the caller only
func (h *Hub) Ping(ctx context.Context, connID string) error {
	conn, ok := h.reg.Connection(connID)
	if !ok {
		return domain.ErrConnectionNotFound
	}
	return h.sendTo(ctx, conn, domain.MessageTypePong, domain.PongEvent{Timestamp: time.Now()})
}

// Presence returns the current online list for a board
func (h *Hub) Presence(boardID string) []domain.PresenceEntry {
	return h.reg.Presence(boardID)
}

// Broadcast fans an event out to every connection joined to the board,
// except excludeConnID when non-empty. Delivery is best-effort: a slow or
// closed member is skipped, never waited on.
func (h *Hub) Broadcast(ctx context.Context, boardID string, event domain.MessageType, payload any, excludeConnID string) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload",
			"board_id", boardID,
			"event", event,
			"error", err,
		)
		return
	}

	raw, err := json.Marshal(domain.Message{
		ID:        xid.New().String(),
		Type:      event,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast envelope", "event", event, "error", err)
		return
	}

	atomic.AddInt64(&h.broadcasts, 1)

	var errorCount int
	for _, conn := range h.reg.Recipients(boardID, excludeConnID) {
		sendCtx, cancel := context.WithTimeout(ctx, h.options.SendTimeout)
		err := conn.Send(sendCtx, raw)
		cancel()

		if err != nil {
			errorCount++
			h.logger.Warn("failed to send to connection",
				"connection_id", conn.ID(),
				"event", event,
				"error", err,
			)
			continue
		}
		atomic.AddInt64(&h.messagesSent, 1)
	}

	h.logger.Debug("broadcast complete",
		"board_id", boardID,
		"event", event,
		"error_count", errorCount,
	)
}

// sendPresence pushes the recomputed presence list to every member of a board
func (h *Hub) sendPresence(ctx context.Context, boardID string) {
	h.Broadcast(ctx, boardID, domain.MessageTypePresenceUpdated, h.reg.Presence(boardID), "")
}

// sendTo pushes a single event to one connection
func (h *Hub) sendTo(ctx context.Context, conn domain.Connection, event domain.MessageType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(domain.Message{
		ID:        xid.New().String(),
		Type:      event,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.options.SendTimeout)
	defer cancel()

	if err := conn.Send(sendCtx, raw); err != nil {
		return err
	}
	atomic.AddInt64(&h.messagesSent, 1)
	return nil
}

// onTypingExpired fires when a typing indicator's TTL elapses. The stopped
// notification goes to the whole group; the typing user's own client holds
// no entry for itself, so the extra delivery is a no-op there.
func (h *Hub) onTypingExpired(boardID string, identity domain.Identity) {
	ctx := h.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	h.Broadcast(ctx, boardID, domain.MessageTypeUserStoppedTyping, domain.StoppedTypingEvent{
		UserID: identity.UserID,
	}, "")
}

func (h *Hub) publish(event *eventbus.Event) {
	if h.options.EventBus != nil {
		h.options.EventBus.Publish(event)
	}
}
