package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
)

// Session is the live binding between a user and one transport connection.
// One session per user: a later Register for the same user supersedes it.
type Session struct {
	User        domain.User
	ConnID      core.ConnID
	Conn        core.SignalConnection
	Status      domain.Status
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Registry tracks which connection belongs to which user. It owns no
// transport resources: superseded and expired sessions are returned to the
// caller, which must close them.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]*Session
	byConn map[core.ConnID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]*Session),
		byConn: make(map[core.ConnID]domain.UserID),
	}
}

// Register records the user's session. If the user already has a session on a
// different connection, that session is removed and returned so the caller
// can terminate it before the new one goes live.
func (r *Registry) Register(user domain.User, connID core.ConnID, conn core.SignalConnection) *Session {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.byUser[user.ID]
	if old != nil && old.ConnID == connID {
		return nil
	}
	s := &Session{
		User:        user,
		ConnID:      connID,
		Conn:        conn,
		Status:      domain.StatusOnline,
		ConnectedAt: now,
		LastSeen:    now,
	}
	r.byUser[user.ID] = s
	r.byConn[connID] = user.ID
	if old != nil {
		delete(r.byConn, old.ConnID)
		log.Warn().Str("module", "app.registry").Int64("user", int64(user.ID)).
			Str("old_conn", string(old.ConnID)).Str("new_conn", string(connID)).
			Msg("session superseded")
		return old
	}
	log.Info().Str("module", "app.registry").Int64("user", int64(user.ID)).Str("conn", string(connID)).Msg("session registered")
	return nil
}

// Lookup returns a copy of the user's current session.
func (r *Registry) Lookup(userID domain.UserID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byUser[userID]; ok {
		return *s, true
	}
	return Session{}, false
}

// UserOfConn resolves a connection back to its user, if the connection is
// still the one the registry knows about.
func (r *Registry) UserOfConn(connID core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.byConn[connID]
	return uid, ok
}

// Evict removes the user's session, but only if connID still owns it. A stale
// disconnect racing a fresh Register must not evict the new session.
func (r *Registry) Evict(userID domain.UserID, connID core.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok || s.ConnID != connID {
		return false
	}
	delete(r.byUser, userID)
	delete(r.byConn, connID)
	log.Info().Str("module", "app.registry").Int64("user", int64(userID)).Str("conn", string(connID)).Msg("session evicted")
	return true
}

// Touch refreshes the liveness stamp for the session owning connID.
func (r *Registry) Touch(connID core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if uid, ok := r.byConn[connID]; ok {
		if s, ok := r.byUser[uid]; ok {
			s.LastSeen = time.Now()
		}
	}
}

func (r *Registry) SetStatus(userID domain.UserID, status domain.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok {
		return false
	}
	s.Status = status
	return true
}

// ExpireIdle removes sessions whose liveness stamp is older than ttl and
// returns copies of them. Bounds memory when connections die without a
// disconnect ever being observed.
func (r *Registry) ExpireIdle(ttl time.Duration) []Session {
	cutoff := time.Now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []Session
	for uid, s := range r.byUser {
		if s.LastSeen.Before(cutoff) {
			expired = append(expired, *s)
			delete(r.byUser, uid)
			delete(r.byConn, s.ConnID)
			log.Warn().Str("module", "app.registry").Int64("user", int64(uid)).Str("conn", string(s.ConnID)).Msg("idle session expired")
		}
	}
	return expired
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
