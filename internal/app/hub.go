package app

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
)

// GroupKey names one broadcast group. Groups are scoped per server, channel,
// voice channel, or single user.
type GroupKey string

func ServerGroup(id domain.ServerID) GroupKey {
	return GroupKey("server:" + strconv.FormatInt(int64(id), 10))
}

func ChannelGroup(id domain.ChannelID) GroupKey {
	return GroupKey("channel:" + strconv.FormatInt(int64(id), 10))
}

func VoiceGroup(id domain.ChannelID) GroupKey {
	return GroupKey("voice:" + strconv.FormatInt(int64(id), 10))
}

func UserGroup(id domain.UserID) GroupKey {
	return GroupKey("user:" + strconv.FormatInt(int64(id), 10))
}

// Hub owns the broadcast groups a connection is subscribed to. Subscriptions
// are ephemeral: rebuilt on every connection, dropped wholesale on disconnect.
// Group membership is also the transport-level truth the reconciler trusts
// when it diverges from the voice channel state.
type Hub struct {
	mu     sync.RWMutex
	groups map[GroupKey]map[core.ConnID]core.SignalConnection
	byConn map[core.ConnID]map[GroupKey]struct{}
}

func NewHub() *Hub {
	return &Hub{
		groups: make(map[GroupKey]map[core.ConnID]core.SignalConnection),
		byConn: make(map[core.ConnID]map[GroupKey]struct{}),
	}
}

// Join is idempotent: re-adding a connection to a group it is already in is
// a no-op.
func (h *Hub) Join(key GroupKey, connID core.ConnID, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[key]
	if !ok {
		g = make(map[core.ConnID]core.SignalConnection)
		h.groups[key] = g
	}
	g[connID] = conn
	subs, ok := h.byConn[connID]
	if !ok {
		subs = make(map[GroupKey]struct{})
		h.byConn[connID] = subs
	}
	subs[key] = struct{}{}
}

func (h *Hub) Leave(key GroupKey, connID core.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(key, connID)
}

func (h *Hub) leaveLocked(key GroupKey, connID core.ConnID) {
	if g, ok := h.groups[key]; ok {
		delete(g, connID)
		if len(g) == 0 {
			delete(h.groups, key)
		}
	}
	if subs, ok := h.byConn[connID]; ok {
		delete(subs, key)
		if len(subs) == 0 {
			delete(h.byConn, connID)
		}
	}
}

// LeaveAll drops every subscription held by a connection.
func (h *Hub) LeaveAll(connID core.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key := range h.byConn[connID] {
		h.leaveLocked(key, connID)
	}
}

func (h *Hub) Contains(key GroupKey, connID core.ConnID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[key][connID]
	return ok
}

// Members returns the connection IDs currently subscribed to a group.
func (h *Hub) Members(key GroupKey) []core.ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.ConnID, 0, len(h.groups[key]))
	for id := range h.groups[key] {
		out = append(out, id)
	}
	return out
}

// Broadcast fans a frame out to a group, skipping the excluded connections.
// Slow consumers are dropped from this frame only, never disconnected here.
func (h *Hub) Broadcast(key GroupKey, frame core.Frame, except ...core.ConnID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for id, conn := range h.groups[key] {
		skip := false
		for _, ex := range except {
			if id == ex {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			log.Debug().Str("module", "app.hub").Str("group", string(key)).Str("conn", string(id)).Err(err).Msg("broadcast drop")
			continue
		}
		sent++
	}
	return sent
}
