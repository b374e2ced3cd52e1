package hub

import (
	"sync"
	"time"

	"boardcast/pkg/domain"
)

// typingEntry is one "user is typing" fact with a pending expiry timer.
// The generation counter ties a timer to the entry it was armed for, so a
// refresh never gets removed by the stale timer it replaced.
type typingEntry struct {
	identity domain.Identity
	context  string
	gen      uint64
	timer    *time.Timer
}

// expiredFunc is invoked (outside the tracker lock) when an entry's TTL
// elapses without an explicit stop.
type expiredFunc func(boardID string, identity domain.Identity)

// typingTracker holds the ephemeral typing state per board, keyed by user:
// one active entry per user, refreshed in place by repeat typing signals.
type typingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	boards  map[string]map[string]*typingEntry // board id -> user id -> entry
	expired expiredFunc
	stopped bool
}

func newTypingTracker(ttl time.Duration, expired expiredFunc) *typingTracker {
	return &typingTracker{
		ttl:     ttl,
		boards:  make(map[string]map[string]*typingEntry),
		expired: expired,
	}
}

// start upserts the user's typing entry and (re)arms its expiry timer
func (t *typingTracker) start(boardID string, identity domain.Identity, context string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	users := t.boards[boardID]
	if users == nil {
		users = make(map[string]*typingEntry)
		t.boards[boardID] = users
	}

	var gen uint64
	if prev := users[identity.UserID]; prev != nil {
		prev.timer.Stop()
		gen = prev.gen + 1
	}

	entry := &typingEntry{
		identity: identity,
		context:  context,
		gen:      gen,
	}
	entry.timer = time.AfterFunc(t.ttl, func() {
		t.expire(boardID, identity.UserID, gen)
	})
	users[identity.UserID] = entry
}

// stop removes the user's entry if present and reports whether one existed
func (t *typingTracker) stop(boardID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(boardID, userID)
}

// expire fires from an entry's timer. A stale generation means the entry
// was refreshed or stopped after this timer was armed; it does nothing.
func (t *typingTracker) expire(boardID, userID string, gen uint64) {
	t.mu.Lock()

	users := t.boards[boardID]
	entry := users[userID]
	if entry == nil || entry.gen != gen {
		t.mu.Unlock()
		return
	}

	identity := entry.identity
	t.removeLocked(boardID, userID)
	expired := t.expired
	t.mu.Unlock()

	if expired != nil {
		expired(boardID, identity)
	}
}

// shutdown cancels every pending timer
func (t *typingTracker) shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for _, users := range t.boards {
		for _, entry := range users {
			entry.timer.Stop()
		}
	}
	t.boards = make(map[string]map[string]*typingEntry)
}

func (t *typingTracker) removeLocked(boardID, userID string) bool {
	users := t.boards[boardID]
	entry := users[userID]
	if entry == nil {
		return false
	}

	entry.timer.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(t.boards, boardID)
	}
	return true
}
