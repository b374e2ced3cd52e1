package hub

import (
	"context"

	"boardcast/pkg/domain"
)

// Notifier is the trigger surface the mutation layer calls after a
// successful write. Calls are one-way and fire-and-forget: a board with no
// connected members simply receives nothing, and a delivery failure never
// propagates back into the mutation's critical path.
//
// Server-side triggers go to every member of the board group, including the
// realtime connection of whoever performed the mutation; clients that care
// can dedupe by entity id.
type Notifier interface {
	BroadcastTaskCreated(ctx context.Context, boardID string, task domain.Task)
	BroadcastTaskUpdated(ctx context.Context, boardID string, task domain.Task)
	BroadcastTaskDeleted(ctx context.Context, boardID, taskID string)
	BroadcastTaskMoved(ctx context.Context, boardID, taskID, newColumnID string, newOrder int)
	BroadcastColumnsReordered(ctx context.Context, boardID string, columns []domain.Column)
}

// BroadcastTaskCreated implements Notifier
func (h *Hub) BroadcastTaskCreated(ctx context.Context, boardID string, task domain.Task) {
	h.Broadcast(ctx, boardID, domain.MessageTypeTaskCreated, task, "")
}

// BroadcastTaskUpdated implements Notifier
func (h *Hub) BroadcastTaskUpdated(ctx context.Context, boardID string, task domain.Task) {
	h.Broadcast(ctx, boardID, domain.MessageTypeTaskUpdated, task, "")
}

// BroadcastTaskDeleted implements Notifier
func (h *Hub) BroadcastTaskDeleted(ctx context.Context, boardID, taskID string) {
	h.Broadcast(ctx, boardID, domain.MessageTypeTaskDeleted, domain.TaskDeletedEvent{TaskID: taskID}, "")
}

// BroadcastTaskMoved implements Notifier
func (h *Hub) BroadcastTaskMoved(ctx context.Context, boardID, taskID, newColumnID string, newOrder int) {
	h.Broadcast(ctx, boardID, domain.MessageTypeTaskMoved, domain.TaskMovedEvent{
		TaskID:      taskID,
		NewColumnID: newColumnID,
		NewOrder:    newOrder,
	}, "")
}

// BroadcastColumnsReordered implements Notifier
func (h *Hub) BroadcastColumnsReordered(ctx context.Context, boardID string, columns []domain.Column) {
	h.Broadcast(ctx, boardID, domain.MessageTypeColumnReordered, domain.ColumnsReorderedEvent{Columns: columns}, "")
}
