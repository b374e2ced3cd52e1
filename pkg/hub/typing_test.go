package hub

import (
	"sync"
	"testing"
	"time"

	"boardcast/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *expiryRecorder) record(boardID string, identity domain.Identity) {
	r.mu.Lock()
	r.fired = append(r.fired, boardID+"/"+identity.UserID)
	r.mu.Unlock()
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := newTypingTracker(80*time.Millisecond, rec.record)
	defer tracker.shutdown()

	tracker.start("board-1", domain.Identity{UserID: "u1"}, "")

	// Not yet.
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, rec.count())

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, "board-1/u1", rec.fired[0])
	rec.mu.Unlock()
}

func TestTypingStopCancelsExpiry(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := newTypingTracker(50*time.Millisecond, rec.record)
	defer tracker.shutdown()

	tracker.start("board-1", domain.Identity{UserID: "u1"}, "")
	assert.True(t, tracker.stop("board-1", "u1"))

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestTypingStopWithoutStart(t *testing.T) {
	tracker := newTypingTracker(50*time.Millisecond, nil)
	defer tracker.shutdown()

	assert.False(t, tracker.stop("board-1", "u1"))
}

func TestTypingRefreshExtendsAndFiresOnce(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := newTypingTracker(100*time.Millisecond, rec.record)
	defer tracker.shutdown()

	tracker.start("board-1", domain.Identity{UserID: "u1"}, "")
	time.Sleep(60 * time.Millisecond)
	tracker.start("board-1", domain.Identity{UserID: "u1"}, "")

	// The original timer would have fired around t=100ms; the refresh must
	// have disarmed it.
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, rec.count())

	// The refreshed entry expires exactly once.
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestTypingEntriesIndependentPerUser(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := newTypingTracker(50*time.Millisecond, rec.record)
	defer tracker.shutdown()

	tracker.start("board-1", domain.Identity{UserID: "u1"}, "")
	tracker.start("board-1", domain.Identity{UserID: "u2"}, "")
	tracker.stop("board-1", "u1")

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, "board-1/u2", rec.fired[0])
	rec.mu.Unlock()
}

func TestTypingShutdownStopsTimers(t *testing.T) {
	rec := &expiryRecorder{}
	tracker := newTypingTracker(30*time.Millisecond, rec.record)

	tracker.start("board-1", domain.Identity{UserID: "u1"}, "")
	tracker.shutdown()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rec.count())

	// Starts after shutdown are ignored.
	tracker.start("board-1", domain.Identity{UserID: "u2"}, "")
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rec.count())
}
