// Package gateway defines the wire contract of the realtime endpoint: the
// closed set of events sent to clients, the closed set of messages accepted
// from them, and the connect-time version handshake.
package gateway

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
)

// Server→client event type tags.
const (
	EvConnectionRejected    = "connection-rejected"
	EvFriendPresence        = "friend-presence"
	EvVoiceChannelUsers     = "voice-channel-users"
	EvVoiceUserJoined       = "voice-user-joined"
	EvVoiceUserLeft         = "voice-user-left"
	EvVoiceCameraEnabled    = "voice-camera-enabled"
	EvVoiceCameraDisabled   = "voice-camera-disabled"
	EvVoiceUserSpeaking     = "voice-user-speaking"
	EvVoiceUserMuted        = "voice-user-muted"
	EvVoiceOffer            = "voice-offer"
	EvVoiceAnswer           = "voice-answer"
	EvVoiceICECandidate     = "voice-ice-candidate"
	EvVoiceReconnectRequest = "voice-reconnect-request"
	EvChannelCreated        = "channel-created"
	EvChannelUpdated        = "channel-updated"
	EvChannelDeleted        = "channel-deleted"
	EvError                 = "error"
	EvPong                  = "pong"
)

type ConnectionRejected struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type FriendPresence struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	Status domain.Status `json:"status"`
}

// VoiceChannelUsers is the pre-join membership snapshot handed to a joining
// member, with the ICE servers it should use for peer negotiation.
type VoiceChannelUsers struct {
	Type       string               `json:"type"`
	ChannelID  domain.ChannelID     `json:"channelId"`
	Users      []domain.VoiceMember `json:"users"`
	ICEServers []webrtc.ICEServer   `json:"iceServers,omitempty"`
}

type VoiceUserJoined struct {
	Type      string             `json:"type"`
	ChannelID domain.ChannelID   `json:"channelId"`
	User      domain.VoiceMember `json:"user"`
}

type VoiceUserLeft struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Graceful  bool             `json:"graceful"`
}

type VoiceCamera struct {
	Type      string           `json:"type"` // EvVoiceCameraEnabled or EvVoiceCameraDisabled
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
}

type VoiceSpeaking struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Speaking  bool             `json:"speaking"`
}

type VoiceMuted struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Muted     bool             `json:"muted"`
}

// VoiceSignal carries a relayed negotiation message. Payload is forwarded
// verbatim; the gateway never interprets SDP or candidates.
type VoiceSignal struct {
	Type       string          `json:"type"` // EvVoiceOffer, EvVoiceAnswer, EvVoiceICECandidate, EvVoiceReconnectRequest
	FromUserID domain.UserID   `json:"fromUserId"`
	Payload    json.RawMessage `json:"payload"`
}

// ChannelEvent is a persistence-triggered fanout into a server's room.
type ChannelEvent struct {
	Type     string          `json:"type"` // EvChannelCreated, EvChannelUpdated, EvChannelDeleted
	ServerID domain.ServerID `json:"serverId"`
	Channel  json.RawMessage `json:"channel"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Pong struct {
	Type string `json:"type"`
}

// Encode marshals an event for the wire. Events are our own closed structs,
// so a marshal failure is a programming error; it is logged and yields nil,
// which SignalConnection implementations treat as a no-op.
func Encode(ev any) core.Frame {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Msg("event marshal")
		return nil
	}
	return core.Frame(b)
}
