package eventbus

import (
	"time"

	"github.com/rs/xid"
)

// EventType represents the type of a lifecycle event
type EventType string

// Event types
const (
	EventConnectionOpened EventType = "connection.opened"
	EventConnectionClosed EventType = "connection.closed"
	EventBoardJoined      EventType = "board.joined"
	EventBoardLeft        EventType = "board.left"
)

// Event is a hub lifecycle event. Events carry observability data only;
// no hub behavior depends on a subscriber seeing them.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ConnectionID string    `json:"connectionId,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	BoardID      string    `json:"boardId,omitempty"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType) *Event {
	return &Event{
		ID:        xid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// WithConnection tags the event with a connection and user id
func (e *Event) WithConnection(connectionID, userID string) *Event {
	e.ConnectionID = connectionID
	e.UserID = userID
	return e
}

// WithBoard tags the event with a board id
func (e *Event) WithBoard(boardID string) *Event {
	e.BoardID = boardID
	return e
}
