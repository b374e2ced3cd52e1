package hub

import (
	"sort"
	"sync"
	"time"

	"boardcast/pkg/domain"
)

// member is one connection's membership in a board group
type member struct {
	conn domain.Connection
}

// presenceInfo backs presence dedup: a user stays present in a board until
// their last connection to it is gone.
type presenceInfo struct {
	identity    domain.Identity
	connections int
	joinedAt    time.Time
}

// group is the set of connections currently joined to one board
type group struct {
	mu      sync.RWMutex
	members map[string]member        // connection id -> member
	users   map[string]*presenceInfo // user id -> presence info
	pruned  bool
}

// connState tracks which boards a connection has joined. Its mutex makes
// disconnect cleanup atomic with respect to concurrent joins on the same
// connection.
type connState struct {
	mu     sync.Mutex
	conn   domain.Connection
	boards map[string]struct{}
	closed bool
}

// Registry owns the board→connections map, the only shared mutable state in
// the hub. Boards are independently locked so traffic on one board never
// serializes against another.
type Registry struct {
	groupsMu sync.RWMutex
	groups   map[string]*group

	connsMu sync.RWMutex
	conns   map[string]*connState
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]*group),
		conns:  make(map[string]*connState),
	}
}

// Add registers a newly connected transport session
func (r *Registry) Add(conn domain.Connection) error {
	r.connsMu.Lock()
	defer r.connsMu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return domain.NewDomainError(domain.ErrCodeInvalid, "connection already registered", nil)
	}

	r.conns[conn.ID()] = &connState{
		conn:   conn,
		boards: make(map[string]struct{}),
	}
	return nil
}

// Connection returns the live connection for an id
func (r *Registry) Connection(connID string) (domain.Connection, bool) {
	r.connsMu.RLock()
	cs, ok := r.conns[connID]
	r.connsMu.RUnlock()
	if !ok {
		return nil, false
	}
	return cs.conn, true
}

// JoinResult describes the membership effect of a Join call
type JoinResult struct {
	Identity      domain.Identity
	AlreadyMember bool
}

// Join adds the connection to a board group. Joining a board the connection
// is already in leaves the membership set untouched.
func (r *Registry) Join(connID, boardID string) (JoinResult, error) {
	cs := r.lookup(connID)
	if cs == nil {
		return JoinResult{}, domain.ErrConnectionNotFound
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.closed {
		return JoinResult{}, domain.ErrConnectionClosed
	}

	identity := cs.conn.Identity()
	_, already := cs.boards[boardID]

	if !already {
		now := time.Now()

		// A concurrent leave may prune the group between lookup and
		// insert; a pruned group is never revived, so retry on a fresh one.
		for {
			g := r.getOrCreateGroup(boardID)
			g.mu.Lock()
			if g.pruned {
				g.mu.Unlock()
				continue
			}
			g.members[connID] = member{conn: cs.conn}
			pi := g.users[identity.UserID]
			if pi == nil {
				pi = &presenceInfo{identity: identity, joinedAt: now}
				g.users[identity.UserID] = pi
			}
			pi.connections++
			g.mu.Unlock()
			break
		}

		cs.boards[boardID] = struct{}{}
	}

	return JoinResult{Identity: identity, AlreadyMember: already}, nil
}

// LeaveResult describes the membership effect of a Leave call
type LeaveResult struct {
	Identity    domain.Identity
	WasMember   bool
	LastForUser bool
}

// Leave removes the connection from a board group. Leaving a board the
// connection never joined is a no-op.
func (r *Registry) Leave(connID, boardID string) LeaveResult {
	cs := r.lookup(connID)
	if cs == nil {
		return LeaveResult{}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, member := cs.boards[boardID]; !member {
		return LeaveResult{Identity: cs.conn.Identity()}
	}

	delete(cs.boards, boardID)
	identity := cs.conn.Identity()
	last := r.removeFromGroup(boardID, connID, identity.UserID)

	return LeaveResult{Identity: identity, WasMember: true, LastForUser: last}
}

// Departure describes one board membership dropped by a disconnect
type Departure struct {
	BoardID     string
	Identity    domain.Identity
	LastForUser bool
}

// Disconnect removes the connection from every board group it was part of
// and retires its id. The per-connection lock is held across the whole
// cleanup, so a racing Join on the same connection lands entirely before or
// entirely after it, never in between.
func (r *Registry) Disconnect(connID string) []Departure {
	r.connsMu.Lock()
	cs, ok := r.conns[connID]
	delete(r.conns, connID)
	r.connsMu.Unlock()

	if !ok {
		return nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.closed = true
	identity := cs.conn.Identity()

	departures := make([]Departure, 0, len(cs.boards))
	for boardID := range cs.boards {
		last := r.removeFromGroup(boardID, connID, identity.UserID)
		departures = append(departures, Departure{
			BoardID:     boardID,
			Identity:    identity,
			LastForUser: last,
		})
	}
	cs.boards = make(map[string]struct{})

	return departures
}

// Presence returns the deduplicated-by-user online list for a board,
// sorted by user id so repeated calls are stable.
func (r *Registry) Presence(boardID string) []domain.PresenceEntry {
	g := r.getGroup(boardID)
	if g == nil {
		return []domain.PresenceEntry{}
	}

	g.mu.RLock()
	entries := make([]domain.PresenceEntry, 0, len(g.users))
	for _, pi := range g.users {
		entries = append(entries, domain.PresenceEntry{
			UserID:   pi.identity.UserID,
			UserName: pi.identity.DisplayName,
			JoinedAt: pi.joinedAt,
		})
	}
	g.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}

// Recipients snapshots the connections joined to a board, optionally
// excluding one connection id. Sends happen on the snapshot, outside any
// registry lock.
func (r *Registry) Recipients(boardID, excludeConnID string) []domain.Connection {
	g := r.getGroup(boardID)
	if g == nil {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	conns := make([]domain.Connection, 0, len(g.members))
	for id, m := range g.members {
		if id == excludeConnID {
			continue
		}
		conns = append(conns, m.conn)
	}
	return conns
}

// Counts returns the number of live connections and non-empty board groups
func (r *Registry) Counts() (connections, boards int) {
	r.connsMu.RLock()
	connections = len(r.conns)
	r.connsMu.RUnlock()

	r.groupsMu.RLock()
	boards = len(r.groups)
	r.groupsMu.RUnlock()
	return
}

// CloseAll closes every registered connection. Used on hub shutdown.
func (r *Registry) CloseAll() {
	r.connsMu.RLock()
	conns := make([]domain.Connection, 0, len(r.conns))
	for _, cs := range r.conns {
		conns = append(conns, cs.conn)
	}
	r.connsMu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (r *Registry) lookup(connID string) *connState {
	r.connsMu.RLock()
	defer r.connsMu.RUnlock()
	return r.conns[connID]
}

func (r *Registry) getGroup(boardID string) *group {
	r.groupsMu.RLock()
	defer r.groupsMu.RUnlock()
	return r.groups[boardID]
}

func (r *Registry) getOrCreateGroup(boardID string) *group {
	r.groupsMu.Lock()
	defer r.groupsMu.Unlock()

	g, ok := r.groups[boardID]
	if !ok {
		g = &group{
			members: make(map[string]member),
			users:   make(map[string]*presenceInfo),
		}
		r.groups[boardID] = g
	}
	return g
}

// removeFromGroup drops one connection from a group and reports whether it
// was the user's last connection to that board. Empty groups are pruned.
func (r *Registry) removeFromGroup(boardID, connID, userID string) (lastForUser bool) {
	g := r.getGroup(boardID)
	if g == nil {
		return false
	}

	g.mu.Lock()
	if _, ok := g.members[connID]; !ok {
		g.mu.Unlock()
		return false
	}
	delete(g.members, connID)

	if pi := g.users[userID]; pi != nil {
		pi.connections--
		if pi.connections <= 0 {
			delete(g.users, userID)
			lastForUser = true
		}
	}
	empty := len(g.members) == 0
	g.mu.Unlock()

	if empty {
		r.pruneGroup(boardID, g)
	}
	return lastForUser
}

func (r *Registry) pruneGroup(boardID string, g *group) {
	r.groupsMu.Lock()
	defer r.groupsMu.Unlock()

	current, ok := r.groups[boardID]
	if !ok || current != g {
		return
	}

	g.mu.Lock()
	if len(g.members) == 0 {
		g.pruned = true
		delete(r.groups, boardID)
	}
	g.mu.Unlock()
}
