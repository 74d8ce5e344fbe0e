package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
	"github.com/voxhall/gateway/internal/gateway"
)

// Rooms authorizes and tracks subscription to server- and channel-scoped
// broadcast groups. Every join is checked against the persistence service
// before the hub is touched; a failed check mutates nothing.
type Rooms struct {
	Hub   *Hub
	Store core.PersistenceService
}

func (r *Rooms) JoinServerRoom(ctx context.Context, userID domain.UserID, connID core.ConnID, conn core.SignalConnection, serverID domain.ServerID) error {
	member, err := r.Store.IsServerMember(ctx, userID, serverID)
	if err != nil {
		return fmt.Errorf("rooms: membership check for server %d: %w", serverID, err)
	}
	if !member {
		return domain.Unauthorized("not a member of server %d", serverID)
	}
	r.Hub.Join(ServerGroup(serverID), connID, conn)
	log.Debug().Str("module", "app.rooms").Int64("user", int64(userID)).Int64("server", int64(serverID)).Msg("joined server room")
	return nil
}

func (r *Rooms) LeaveServerRoom(connID core.ConnID, serverID domain.ServerID) {
	r.Hub.Leave(ServerGroup(serverID), connID)
}

// JoinChannelRoom resolves the channel's parent server first; membership of
// that server is what authorizes the channel subscription.
func (r *Rooms) JoinChannelRoom(ctx context.Context, userID domain.UserID, connID core.ConnID, conn core.SignalConnection, channelID domain.ChannelID) error {
	serverID, err := r.Store.ServerOfChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("rooms: resolve channel %d: %w", channelID, err)
	}
	member, err := r.Store.IsServerMember(ctx, userID, serverID)
	if err != nil {
		return fmt.Errorf("rooms: membership check for server %d: %w", serverID, err)
	}
	if !member {
		return domain.Unauthorized("not a member of channel %d", channelID)
	}
	r.Hub.Join(ChannelGroup(channelID), connID, conn)
	log.Debug().Str("module", "app.rooms").Int64("user", int64(userID)).Int64("channel", int64(channelID)).Msg("joined channel room")
	return nil
}

func (r *Rooms) LeaveChannelRoom(connID core.ConnID, channelID domain.ChannelID) {
	r.Hub.Leave(ChannelGroup(channelID), connID)
}

// The Notify* fanouts are collaborator triggers: the persistence service
// calls them after its own CRUD commits, they are never reachable from
// gateway clients.

func (r *Rooms) NotifyChannelCreated(serverID domain.ServerID, channel json.RawMessage) {
	r.notifyChannel(gateway.EvChannelCreated, serverID, channel)
}

func (r *Rooms) NotifyChannelUpdated(serverID domain.ServerID, channel json.RawMessage) {
	r.notifyChannel(gateway.EvChannelUpdated, serverID, channel)
}

func (r *Rooms) NotifyChannelDeleted(serverID domain.ServerID, channel json.RawMessage) {
	r.notifyChannel(gateway.EvChannelDeleted, serverID, channel)
}

func (r *Rooms) notifyChannel(event string, serverID domain.ServerID, channel json.RawMessage) {
	frame := gateway.Encode(gateway.ChannelEvent{Type: event, ServerID: serverID, Channel: channel})
	sent := r.Hub.Broadcast(ServerGroup(serverID), frame)
	log.Debug().Str("module", "app.rooms").Str("event", event).Int64("server", int64(serverID)).Int("sent", sent).Msg("channel fanout")
}
