package domain

import "time"

// Task is the relay payload for TaskCreated and TaskUpdated pushes. It is
// produced by the mutation layer after a successful write; the hub treats
// it as opaque content and never validates it.
type Task struct {
	ID                   string          `json:"id"`
	ColumnID             string          `json:"columnId"`
	Title                string          `json:"title"`
	Description          string          `json:"description,omitempty"`
	DueDate              *time.Time      `json:"dueDate,omitempty"`
	Priority             int             `json:"priority"`
	AssigneeID           string          `json:"assigneeId,omitempty"`
	AssigneeName         string          `json:"assigneeName,omitempty"`
	Order                int             `json:"order"`
	CreationTime         time.Time       `json:"creationTime"`
	LastModificationTime *time.Time      `json:"lastModificationTime,omitempty"`
	Checklist            []ChecklistItem `json:"checklist,omitempty"`
}

// ChecklistItem is one entry of a task's checklist
type ChecklistItem struct {
	ID          string `json:"id"`
	TaskID      string `json:"taskId"`
	Text        string `json:"text"`
	IsCompleted bool   `json:"isCompleted"`
	Order       int    `json:"order"`
}

// Column is one ordered column of a board
type Column struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
}

// TaskDeletedEvent is the payload of a TaskDeleted push
type TaskDeletedEvent struct {
	TaskID string `json:"taskId"`
}

// TaskMovedEvent is the payload of a TaskMoved push
type TaskMovedEvent struct {
	TaskID      string `json:"taskId"`
	NewColumnID string `json:"newColumnId"`
	NewOrder    int    `json:"newOrder"`
}

// ColumnsReorderedEvent is the payload of a ColumnReordered push
type ColumnsReorderedEvent struct {
	Columns []Column `json:"columns"`
}
