package domain

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of a hub message
type MessageType string

// Client→server invokes
const (
	MessageTypeJoinBoard  MessageType = "JoinBoard"
	MessageTypeLeaveBoard MessageType = "LeaveBoard"
	MessageTypeSendTyping MessageType = "SendTyping"
	MessageTypeStopTyping MessageType = "StopTyping"
	MessageTypePing       MessageType = "Ping"
)

// Server→client pushes
const (
	MessageTypePresenceUpdated   MessageType = "PresenceUpdated"
	MessageTypeUserJoined        MessageType = "UserJoined"
	MessageTypeUserLeft          MessageType = "UserLeft"
	MessageTypeUserTyping        MessageType = "UserTyping"
	MessageTypeUserStoppedTyping MessageType = "UserStoppedTyping"
	MessageTypeTaskCreated       MessageType = "TaskCreated"
	MessageTypeTaskUpdated       MessageType = "TaskUpdated"
	MessageTypeTaskDeleted       MessageType = "TaskDeleted"
	MessageTypeTaskMoved         MessageType = "TaskMoved"
	MessageTypeColumnReordered   MessageType = "ColumnReordered"
	MessageTypePong              MessageType = "Pong"
	MessageTypeError             MessageType = "Error"
)

// Message is the wire envelope for every hub message
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// JoinBoardRequest asks the hub to register the connection in a board group
type JoinBoardRequest struct {
	BoardID string `json:"boardId"`
}

// LeaveBoardRequest asks the hub to deregister the connection from a board group
type LeaveBoardRequest struct {
	BoardID string `json:"boardId"`
}

// TypingRequest signals that the user started typing in a board.
// Context names where the typing happens, e.g. "card-description".
type TypingRequest struct {
	BoardID string `json:"boardId"`
	Context string `json:"context"`
}

// StopTypingRequest signals that the user stopped typing in a board
type StopTypingRequest struct {
	BoardID string `json:"boardId"`
}

// PresenceEntry is one online member of a board. JoinedAt is the moment the
// user's first still-open connection joined the board.
type PresenceEntry struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	JoinedAt time.Time `json:"joinedAt"`
}

// UserEvent is the payload of UserJoined and UserLeft pushes
type UserEvent struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// TypingEvent is the payload of a UserTyping push
type TypingEvent struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Context  string `json:"context"`
}

// StoppedTypingEvent is the payload of a UserStoppedTyping push
type StoppedTypingEvent struct {
	UserID string `json:"userId"`
}

// PongEvent is the payload of a Pong push, sent to the caller only
type PongEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent is pushed to a connection whose invoke failed
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
