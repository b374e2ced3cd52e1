package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"boardcast/internal/logging"
	"boardcast/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	id       string
	identity domain.Identity
	ctx      context.Context
	cancel   context.CancelFunc

	mu   sync.Mutex
	sent []domain.Message
}

func newMockConn(id string, identity domain.Identity) *mockConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &mockConn{id: id, identity: identity, ctx: ctx, cancel: cancel}
}

func (m *mockConn) ID() string                { return m.id }
func (m *mockConn) Identity() domain.Identity { return m.identity }
func (m *mockConn) Context() context.Context  { return m.ctx }

func (m *mockConn) Send(_ context.Context, message []byte) error {
	var msg domain.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

func (m *mockConn) Close() error {
	m.cancel()
	return nil
}

// received returns the pushes of the given type the connection has seen
func (m *mockConn) received(eventType domain.MessageType) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Message
	for _, msg := range m.sent {
		if msg.Type == eventType {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockConn) lastPresence(t *testing.T) []domain.PresenceEntry {
	t.Helper()

	updates := m.received(domain.MessageTypePresenceUpdated)
	require.NotEmpty(t, updates)

	var entries []domain.PresenceEntry
	require.NoError(t, json.Unmarshal(updates[len(updates)-1].Data, &entries))
	return entries
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	h := New(testLogger(), Options{
		TypingTTL:   100 * time.Millisecond,
		SendTimeout: time.Second,
	})
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { h.Stop() })
	return h
}

func join(t *testing.T, h *Hub, conn *mockConn, boardID string) {
	t.Helper()
	require.NoError(t, h.Register(conn))
	require.NoError(t, h.Join(context.Background(), conn.ID(), boardID))
}

func TestJoinAnnouncesToOthers(t *testing.T) {
	h := newTestHub(t)

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	joined := alice.received(domain.MessageTypeUserJoined)
	require.Len(t, joined, 1)

	var ev domain.UserEvent
	require.NoError(t, json.Unmarshal(joined[0].Data, &ev))
	assert.Equal(t, "u2", ev.UserID)
	assert.Equal(t, "bob", ev.UserName)

	// The joiner hears about membership through the presence push, not
	// through its own join announcement.
	assert.Empty(t, bob.received(domain.MessageTypeUserJoined))
	assert.NotEmpty(t, bob.received(domain.MessageTypePresenceUpdated))
}

func TestJoinRequiresKnownConnection(t *testing.T) {
	h := newTestHub(t)

	err := h.Join(context.Background(), "nope", "board-1")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestJoinRequiresAuthenticatedIdentity(t *testing.T) {
	h := newTestHub(t)

	anon := newMockConn("c1", domain.Identity{})
	require.NoError(t, h.Register(anon))

	err := h.Join(context.Background(), "c1", "board-1")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRejoinKeepsMembershipAndReannounces(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	require.NoError(t, h.Join(ctx, "c2", "board-1"))

	// Second join of the same board re-announces to the others.
	assert.Len(t, alice.received(domain.MessageTypeUserJoined), 2)

	entries := alice.lastPresence(t)
	assert.Len(t, entries, 2)
}

func TestPresenceDedupsByUser(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	// Same user on two tabs.
	tab1 := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	tab2 := newMockConn("c2", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c3", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, tab1, "board-1")
	join(t, h, tab2, "board-1")
	join(t, h, bob, "board-1")

	entries := bob.lastPresence(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].UserID)
	assert.Equal(t, "u2", entries[1].UserID)

	// Closing one tab must not announce the user as gone.
	require.NoError(t, h.Leave(ctx, "c1", "board-1"))
	assert.Empty(t, bob.received(domain.MessageTypeUserLeft))

	entries = bob.lastPresence(t)
	assert.Len(t, entries, 2)

	// Closing the last tab does.
	require.NoError(t, h.Leave(ctx, "c2", "board-1"))
	left := bob.received(domain.MessageTypeUserLeft)
	require.Len(t, left, 1)

	var ev domain.UserEvent
	require.NoError(t, json.Unmarshal(left[0].Data, &ev))
	assert.Equal(t, "u1", ev.UserID)

	entries = bob.lastPresence(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "u2", entries[0].UserID)
}

func TestPresenceSortedByUserID(t *testing.T) {
	h := newTestHub(t)

	carol := newMockConn("c1", domain.Identity{UserID: "u3", DisplayName: "carol"})
	alice := newMockConn("c2", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c3", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, carol, "board-1")
	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	entries := h.Presence("board-1")
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"u1", "u2", "u3"}, []string{entries[0].UserID, entries[1].UserID, entries[2].UserID})
}

func TestLeaveUnjoinedBoardIsNoop(t *testing.T) {
	h := newTestHub(t)

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	require.NoError(t, h.Register(alice))

	require.NoError(t, h.Leave(context.Background(), "c1", "board-1"))
	assert.Empty(t, alice.sent)
}

func TestBroadcastIsolatedPerBoard(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-2")

	h.BroadcastTaskCreated(ctx, "board-1", domain.Task{ID: "t1", Title: "write tests"})

	assert.Len(t, alice.received(domain.MessageTypeTaskCreated), 1)
	assert.Empty(t, bob.received(domain.MessageTypeTaskCreated))
}

func TestRelayReachesAllMembers(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	h.BroadcastTaskMoved(ctx, "board-1", "t1", "col-2", 3)

	for _, conn := range []*mockConn{alice, bob} {
		moved := conn.received(domain.MessageTypeTaskMoved)
		require.Len(t, moved, 1)

		var ev domain.TaskMovedEvent
		require.NoError(t, json.Unmarshal(moved[0].Data, &ev))
		assert.Equal(t, "t1", ev.TaskID)
		assert.Equal(t, "col-2", ev.NewColumnID)
		assert.Equal(t, 3, ev.NewOrder)
	}

	h.BroadcastColumnsReordered(ctx, "board-1", []domain.Column{
		{ID: "col-2", Name: "Doing", Order: 0},
		{ID: "col-1", Name: "Todo", Order: 1},
	})

	for _, conn := range []*mockConn{alice, bob} {
		reordered := conn.received(domain.MessageTypeColumnReordered)
		require.Len(t, reordered, 1)

		var ev domain.ColumnsReorderedEvent
		require.NoError(t, json.Unmarshal(reordered[0].Data, &ev))
		require.Len(t, ev.Columns, 2)
		assert.Equal(t, "col-2", ev.Columns[0].ID)
	}
}

func TestBroadcastToEmptyBoardIsNoop(t *testing.T) {
	h := newTestHub(t)

	h.BroadcastTaskDeleted(context.Background(), "nobody-home", "t1")

	_, boards := h.reg.Counts()
	assert.Zero(t, boards)
}

func TestPingRepliesToCallerOnly(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	require.NoError(t, h.Ping(ctx, "c1"))

	pongs := alice.received(domain.MessageTypePong)
	require.Len(t, pongs, 1)

	var ev domain.PongEvent
	require.NoError(t, json.Unmarshal(pongs[0].Data, &ev))
	assert.False(t, ev.Timestamp.IsZero())

	assert.Empty(t, bob.received(domain.MessageTypePong))
}

func TestTypingNotifiesOthers(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	require.NoError(t, h.StartTyping(ctx, "c1", "board-1", "card-7"))

	typing := bob.received(domain.MessageTypeUserTyping)
	require.Len(t, typing, 1)

	var ev domain.TypingEvent
	require.NoError(t, json.Unmarshal(typing[0].Data, &ev))
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "card-7", ev.Context)

	// The typist never hears its own indicator.
	assert.Empty(t, alice.received(domain.MessageTypeUserTyping))
}

func TestStopTypingAlwaysBroadcasts(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	// Stop without a preceding start still notifies; receivers treat it
	// as idempotent.
	require.NoError(t, h.StopTyping(ctx, "c1", "board-1"))

	stopped := bob.received(domain.MessageTypeUserStoppedTyping)
	require.Len(t, stopped, 1)

	var ev domain.StoppedTypingEvent
	require.NoError(t, json.Unmarshal(stopped[0].Data, &ev))
	assert.Equal(t, "u1", ev.UserID)
}

func TestTypingIndicatorExpires(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	require.NoError(t, h.StartTyping(ctx, "c1", "board-1", ""))

	require.Eventually(t, func() bool {
		return len(bob.received(domain.MessageTypeUserStoppedTyping)) == 1
	}, time.Second, 10*time.Millisecond)

	// Exactly one stop; the expiry must not fire again.
	time.Sleep(250 * time.Millisecond)
	assert.Len(t, bob.received(domain.MessageTypeUserStoppedTyping), 1)
}

func TestStopTypingPreventsExpiryBroadcast(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-1")

	require.NoError(t, h.StartTyping(ctx, "c1", "board-1", ""))
	require.NoError(t, h.StopTyping(ctx, "c1", "board-1"))

	// Wait well past the TTL; only the explicit stop may have arrived.
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, bob.received(domain.MessageTypeUserStoppedTyping), 1)
}

func TestDisconnectLeavesAllBoards(t *testing.T) {
	h := newTestHub(t)

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})
	carol := newMockConn("c3", domain.Identity{UserID: "u3", DisplayName: "carol"})

	join(t, h, alice, "board-1")
	require.NoError(t, h.Join(context.Background(), "c1", "board-2"))
	join(t, h, bob, "board-1")
	join(t, h, carol, "board-2")

	h.OnDisconnect("c1")

	for _, watcher := range []*mockConn{bob, carol} {
		left := watcher.received(domain.MessageTypeUserLeft)
		require.Len(t, left, 1)

		var ev domain.UserEvent
		require.NoError(t, json.Unmarshal(left[0].Data, &ev))
		assert.Equal(t, "u1", ev.UserID)
	}

	remaining := h.Presence("board-1")
	require.Len(t, remaining, 1)
	assert.Equal(t, "u2", remaining[0].UserID)

	connections, _ := h.reg.Counts()
	assert.Equal(t, 2, connections)
}

func TestStatsCountConnectionsAndBoards(t *testing.T) {
	h := newTestHub(t)

	alice := newMockConn("c1", domain.Identity{UserID: "u1", DisplayName: "alice"})
	bob := newMockConn("c2", domain.Identity{UserID: "u2", DisplayName: "bob"})

	join(t, h, alice, "board-1")
	join(t, h, bob, "board-2")

	stats := h.GetStats()
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 2, stats.Boards)
	assert.Positive(t, stats.MessagesSent)
}
