package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"talentlink/internal/domain"
	"talentlink/internal/events"
	"talentlink/internal/observability/metrics"
)

// Application close codes sent to clients.
const (
	CloseReplaced      = 4000
	CloseInvalidTicket = 4001
)

// Conn is one live socket as the registry sees it. Send must not block: a
// full or closed connection reports an error and is treated as dead.
type Conn interface {
	UserID() uint
	Send(data []byte) error
	Close(code int, reason string) error
}

// Registry tracks at most one live connection per user id and fans presence
// and message events out to them. State is process-local.
type Registry struct {
	mu    sync.Mutex
	conns map[uint]Conn
	log   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{conns: make(map[uint]Conn), log: logger}
}

// Connect installs c for its user, closing whatever connection it replaces.
// The new connection is sent the ids of every other online user and those
// users are told it came online.
func (r *Registry) Connect(c Conn) {
	uid := c.UserID()
	online := r.encode(events.PresenceEvent(uid, true))

	r.mu.Lock()
	old := r.conns[uid]
	r.conns[uid] = c

	others := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		if id != uid {
			others = append(others, id)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
	snapshot := r.encode(events.OnlineUsersEvent(others))

	var dead []uint
	if !send(c, snapshot, events.TypeOnlineUsers) {
		dead = append(dead, uid)
	}
	for _, id := range others {
		if !send(r.conns[id], online, events.TypePresence) {
			dead = append(dead, id)
		}
	}
	stale := r.purgeLocked(dead)
	r.observeLocked()
	r.mu.Unlock()

	if old != nil && old != c {
		_ = old.Close(CloseReplaced, "replaced")
	}
	r.closeStale(stale)
	r.log.Debug("ws connected", slog.Uint64("user_id", uint64(uid)), slog.Bool("replaced", old != nil))
}

// Disconnect removes c only if it is still the registered connection for its
// user; a connection that was already replaced leaves the newer one alone.
func (r *Registry) Disconnect(c Conn) {
	uid := c.UserID()

	r.mu.Lock()
	if cur, ok := r.conns[uid]; !ok || cur != c {
		r.mu.Unlock()
		return
	}
	delete(r.conns, uid)
	stale := r.broadcastOfflineLocked(uid)
	r.observeLocked()
	r.mu.Unlock()

	r.closeStale(stale)
	r.log.Debug("ws disconnected", slog.Uint64("user_id", uint64(uid)))
}

// Deliver pushes event to userID if connected. Offline users are a no-op;
// a failed send purges the connection and announces the user offline. The
// failure is logged here and never reaches the caller.
func (r *Registry) Deliver(userID uint, event any) {
	if err := r.deliver(userID, event); err != nil {
		r.log.Warn("ws delivery failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("kind", domain.KindOf(err).String()),
			slog.Any("err", err),
		)
	}
}

func (r *Registry) deliver(userID uint, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode ws event: %w", err)
	}
	typ := eventType(event)

	r.mu.Lock()
	c, ok := r.conns[userID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	var stale []Conn
	if !send(c, data, typ) {
		stale = r.purgeLocked([]uint{userID})
		r.observeLocked()
	}
	r.mu.Unlock()

	r.closeStale(stale)
	if stale != nil {
		return fmt.Errorf("%s: %w", typ, domain.ErrDeliveryFailed)
	}
	return nil
}

func (r *Registry) IsOnline(userID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

// OnlineUserIDs returns the connected user ids in ascending order.
func (r *Registry) OnlineUserIDs() []uint {
	r.mu.Lock()
	ids := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CloseAll drops every connection with a going-away close. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[uint]Conn)
	r.observeLocked()
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

// purgeLocked removes the given users and tells everyone left that they went
// offline. Users whose sends fail along the way are purged too. The removed
// connections are returned so the caller can close them outside the lock.
func (r *Registry) purgeLocked(dead []uint) []Conn {
	var removed []Conn
	for len(dead) > 0 {
		uid := dead[0]
		dead = dead[1:]
		c, ok := r.conns[uid]
		if !ok {
			continue
		}
		delete(r.conns, uid)
		removed = append(removed, c)

		offline := r.encode(events.PresenceEvent(uid, false))
		for id, other := range r.conns {
			if !send(other, offline, events.TypePresence) {
				dead = append(dead, id)
			}
		}
	}
	return removed
}

func (r *Registry) broadcastOfflineLocked(uid uint) []Conn {
	offline := r.encode(events.PresenceEvent(uid, false))
	var dead []uint
	for id, c := range r.conns {
		if !send(c, offline, events.TypePresence) {
			dead = append(dead, id)
		}
	}
	return r.purgeLocked(dead)
}

func send(c Conn, data []byte, typ string) bool {
	if err := c.Send(data); err != nil {
		metrics.WSEventsDroppedTotal.WithLabelValues(typ).Inc()
		return false
	}
	return true
}

func (r *Registry) observeLocked() {
	metrics.WSConnections.WithLabelValues().Set(float64(len(r.conns)))
}

func (r *Registry) closeStale(conns []Conn) {
	for _, c := range conns {
		_ = c.Close(websocket.CloseTryAgainLater, "connection dropped")
	}
}

func (r *Registry) encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		r.log.Error("ws event encode", slog.Any("err", err))
		return nil
	}
	return data
}

func eventType(v any) string {
	if t, ok := v.(interface{ EventType() string }); ok {
		return t.EventType()
	}
	return "unknown"
}
