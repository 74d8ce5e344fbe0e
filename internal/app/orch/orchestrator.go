// Package orch wires the gateway's state components and sequences every
// client operation: authorize against the persistence service, re-check
// current truth, mutate, broadcast.
package orch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/app"
	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
	"github.com/voxhall/gateway/internal/gateway"
)

type Orchestrator struct {
	Registry *app.Registry
	Hub      *app.Hub
	Voice    *app.VoiceState
	Presence *app.Presence
	Rooms    *app.Rooms
	Relay    *app.Relay
	Store    core.PersistenceService

	// ICEServers is handed to each client on voice join for peer negotiation.
	ICEServers []webrtc.ICEServer
}

// Connect registers an authenticated connection. A prior session for the
// same user is forcibly terminated first: one session per user.
func (o *Orchestrator) Connect(ctx context.Context, user domain.User, connID core.ConnID, conn core.SignalConnection) {
	if old := o.Registry.Register(user, connID, conn); old != nil {
		old.Conn.Close()
		o.Hub.LeaveAll(old.ConnID)
	}
	o.Hub.Join(app.UserGroup(user.ID), connID, conn)
	if err := o.Presence.BroadcastStatus(ctx, user.ID, domain.StatusOnline); err != nil {
		log.Error().Err(err).Str("module", "orch").Int64("user", int64(user.ID)).Msg("online fanout")
	}
}

// Disconnect handles a transport close. Classification: if the user still
// holds voice state, no explicit leave preceded the close, so this is a
// network disconnect and the voice cleanup is silent — the missing
// member-left broadcast is the silent-reconnect grace window. A graceful
// leave already ran LeaveVoice, leaving only the presence cleanup here.
func (o *Orchestrator) Disconnect(ctx context.Context, userID domain.UserID, connID core.ConnID) {
	if !o.Registry.Evict(userID, connID) {
		// Superseded: the user lives on a newer connection. Only this
		// connection's subscriptions go away.
		o.Hub.LeaveAll(connID)
		return
	}
	o.Hub.LeaveAll(connID)

	if ch, removed, emptied := o.Voice.Depart(userID); removed {
		log.Info().Str("module", "orch").Int64("user", int64(userID)).Int64("channel", int64(ch)).
			Bool("emptied", emptied).Msg("network disconnect, silent voice cleanup")
	}

	if err := o.Presence.BroadcastStatus(ctx, userID, domain.StatusOffline); err != nil {
		log.Error().Err(err).Str("module", "orch").Int64("user", int64(userID)).Msg("offline fanout")
	}
}

// ChangeStatus records and fans out the caller's own status. The caller can
// only ever name itself; there is no payload field for a target user.
func (o *Orchestrator) ChangeStatus(ctx context.Context, userID domain.UserID, status domain.Status) error {
	if !o.Registry.SetStatus(userID, status) {
		return nil
	}
	return o.Presence.BroadcastStatus(ctx, userID, status)
}

func (o *Orchestrator) JoinServerRoom(ctx context.Context, userID domain.UserID, connID core.ConnID, serverID domain.ServerID) error {
	sess, ok := o.Registry.Lookup(userID)
	if !ok || sess.ConnID != connID {
		return nil
	}
	return o.Rooms.JoinServerRoom(ctx, userID, connID, sess.Conn, serverID)
}

func (o *Orchestrator) LeaveServerRoom(connID core.ConnID, serverID domain.ServerID) {
	o.Rooms.LeaveServerRoom(connID, serverID)
}

func (o *Orchestrator) JoinChannelRoom(ctx context.Context, userID domain.UserID, connID core.ConnID, channelID domain.ChannelID) error {
	sess, ok := o.Registry.Lookup(userID)
	if !ok || sess.ConnID != connID {
		return nil
	}
	return o.Rooms.JoinChannelRoom(ctx, userID, connID, sess.Conn, channelID)
}

func (o *Orchestrator) LeaveChannelRoom(connID core.ConnID, channelID domain.ChannelID) {
	o.Rooms.LeaveChannelRoom(connID, channelID)
}

// JoinVoice runs the voice join sequence: authorize, re-check the session
// survived the authorization round-trip, apply the single-membership rule,
// reply with the pre-join snapshot, then announce to the rest of the channel.
func (o *Orchestrator) JoinVoice(ctx context.Context, userID domain.UserID, connID core.ConnID, channelID domain.ChannelID) error {
	serverID, err := o.Store.ServerOfChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("voice join: resolve channel %d: %w", channelID, err)
	}
	member, err := o.Store.IsServerMember(ctx, userID, serverID)
	if err != nil {
		return fmt.Errorf("voice join: membership check for server %d: %w", serverID, err)
	}
	if !member {
		return domain.Unauthorized("not a member of voice channel %d", channelID)
	}

	// The authorization call suspended us; the session may have been
	// superseded or closed meanwhile. A stale intent is dropped, not applied.
	sess, ok := o.Registry.Lookup(userID)
	if !ok || sess.ConnID != connID {
		log.Debug().Str("module", "orch").Int64("user", int64(userID)).Str("conn", string(connID)).Msg("stale voice join dropped")
		return nil
	}

	res := o.Voice.Join(domain.NewVoiceMember(sess.User), channelID)

	if res.PrevChannel != 0 {
		o.Hub.Leave(app.VoiceGroup(res.PrevChannel), connID)
		o.broadcastLeft(res.PrevChannel, userID, true)
	}
	if res.StaleDeparture != 0 {
		o.broadcastLeft(res.StaleDeparture, userID, false)
	}

	o.Hub.Join(app.VoiceGroup(channelID), connID, sess.Conn)

	_ = sess.Conn.TrySend(gateway.Encode(gateway.VoiceChannelUsers{
		Type:       gateway.EvVoiceChannelUsers,
		ChannelID:  channelID,
		Users:      res.Snapshot,
		ICEServers: o.ICEServers,
	}))

	if !res.Already && !res.Resumed {
		o.Hub.Broadcast(app.VoiceGroup(channelID), gateway.Encode(gateway.VoiceUserJoined{
			Type:      gateway.EvVoiceUserJoined,
			ChannelID: channelID,
			User:      domain.NewVoiceMember(sess.User),
		}), connID)
	}
	return nil
}

// LeaveVoice is the graceful exit: the member is removed and the remaining
// members always get exactly one member-left with graceful set.
func (o *Orchestrator) LeaveVoice(userID domain.UserID, connID core.ConnID, channelID domain.ChannelID) {
	removed, _ := o.Voice.Leave(userID, channelID)
	o.Hub.Leave(app.VoiceGroup(channelID), connID)
	if !removed {
		// Not a member of that channel; leaving is idempotent.
		return
	}
	o.broadcastLeft(channelID, userID, true)
}

func (o *Orchestrator) broadcastLeft(channelID domain.ChannelID, userID domain.UserID, graceful bool) {
	o.Hub.Broadcast(app.VoiceGroup(channelID), gateway.Encode(gateway.VoiceUserLeft{
		Type:      gateway.EvVoiceUserLeft,
		ChannelID: channelID,
		UserID:    userID,
		Graceful:  graceful,
	}))
}

// SetCamera flips the caller's camera flag. A request for a channel the
// caller is not in is silently denied.
func (o *Orchestrator) SetCamera(userID domain.UserID, connID core.ConnID, channelID domain.ChannelID, enabled bool) {
	if _, ok := o.Voice.SetCamera(userID, channelID, enabled); !ok {
		log.Debug().Str("module", "orch").Int64("user", int64(userID)).Int64("channel", int64(channelID)).Msg("camera change denied")
		return
	}
	typ := gateway.EvVoiceCameraDisabled
	if enabled {
		typ = gateway.EvVoiceCameraEnabled
	}
	o.Hub.Broadcast(app.VoiceGroup(channelID), gateway.Encode(gateway.VoiceCamera{
		Type:      typ,
		ChannelID: channelID,
		UserID:    userID,
	}), connID)
}

// SetMuted flips the caller's mute flag, same silent denial as SetCamera.
func (o *Orchestrator) SetMuted(userID domain.UserID, connID core.ConnID, channelID domain.ChannelID, muted bool) {
	if _, ok := o.Voice.SetMuted(userID, channelID, muted); !ok {
		log.Debug().Str("module", "orch").Int64("user", int64(userID)).Int64("channel", int64(channelID)).Msg("mute change denied")
		return
	}
	o.Hub.Broadcast(app.VoiceGroup(channelID), gateway.Encode(gateway.VoiceMuted{
		Type:      gateway.EvVoiceUserMuted,
		ChannelID: channelID,
		UserID:    userID,
		Muted:     muted,
	}), connID)
}

// SetSpeaking announces the caller's speaking state. Orthogonal to the
// member value: nothing is stored, membership is still required.
func (o *Orchestrator) SetSpeaking(userID domain.UserID, connID core.ConnID, channelID domain.ChannelID, speaking bool) {
	if !o.Voice.IsMemberOf(userID, channelID) {
		log.Debug().Str("module", "orch").Int64("user", int64(userID)).Int64("channel", int64(channelID)).Msg("speaking change denied")
		return
	}
	o.Hub.Broadcast(app.VoiceGroup(channelID), gateway.Encode(gateway.VoiceSpeaking{
		Type:      gateway.EvVoiceUserSpeaking,
		ChannelID: channelID,
		UserID:    userID,
		Speaking:  speaking,
	}), connID)
}

// RelaySignal forwards a negotiation payload through the relay component.
func (o *Orchestrator) RelaySignal(kind string, from, to domain.UserID, payload json.RawMessage) error {
	return o.Relay.Forward(kind, from, to, payload)
}
