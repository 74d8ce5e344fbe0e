package gateway

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/voxhall/gateway/internal/domain"
)

// Client→server message type tags.
const (
	MsgJoinServer            = "join-server"
	MsgLeaveServer           = "leave-server"
	MsgJoinChannel           = "join-channel"
	MsgLeaveChannel          = "leave-channel"
	MsgJoinVoiceChannel      = "join-voice-channel"
	MsgLeaveVoiceChannel     = "leave-voice-channel"
	MsgVoiceOffer            = "voice-offer"
	MsgVoiceAnswer           = "voice-answer"
	MsgVoiceICECandidate     = "voice-ice-candidate"
	MsgVoiceReconnectRequest = "voice-reconnect-request"
	MsgEnableCamera          = "enable-camera"
	MsgDisableCamera         = "disable-camera"
	MsgVoiceSpeaking         = "voice-speaking"
	MsgVoiceUserMuted        = "voice-user-muted"
	MsgStatusChange          = "status-change"
	MsgPing                  = "ping"
)

type ServerRoomMsg struct {
	ServerID domain.ServerID `json:"serverId" validate:"required,gt=0"`
}

type ChannelRoomMsg struct {
	ChannelID domain.ChannelID `json:"channelId" validate:"required,gt=0"`
}

type JoinVoiceMsg struct {
	ChannelID    domain.ChannelID `json:"channelId" validate:"required,gt=0"`
	Reconnecting bool             `json:"reconnecting"`
}

type LeaveVoiceMsg struct {
	ChannelID domain.ChannelID `json:"channelId" validate:"required,gt=0"`
}

type SignalMsg struct {
	TargetUserID domain.UserID   `json:"targetUserId" validate:"required,gt=0"`
	Payload      json.RawMessage `json:"payload" validate:"required"`
}

type CameraMsg struct {
	ChannelID domain.ChannelID `json:"channelId" validate:"required,gt=0"`
}

type SpeakingMsg struct {
	ChannelID domain.ChannelID `json:"channelId" validate:"required,gt=0"`
	Speaking  bool             `json:"speaking"`
}

type MutedMsg struct {
	ChannelID domain.ChannelID `json:"channelId" validate:"required,gt=0"`
	Muted     bool             `json:"muted"`
}

type StatusChangeMsg struct {
	Status domain.Status `json:"status" validate:"required,oneof=online idle dnd invisible offline"`
}

type PingMsg struct{}

var validate = validator.New()

// payloadFactories is the closed union of accepted client messages.
var payloadFactories = map[string]func() any{
	MsgJoinServer:            func() any { return &ServerRoomMsg{} },
	MsgLeaveServer:           func() any { return &ServerRoomMsg{} },
	MsgJoinChannel:           func() any { return &ChannelRoomMsg{} },
	MsgLeaveChannel:          func() any { return &ChannelRoomMsg{} },
	MsgJoinVoiceChannel:      func() any { return &JoinVoiceMsg{} },
	MsgLeaveVoiceChannel:     func() any { return &LeaveVoiceMsg{} },
	MsgVoiceOffer:            func() any { return &SignalMsg{} },
	MsgVoiceAnswer:           func() any { return &SignalMsg{} },
	MsgVoiceICECandidate:     func() any { return &SignalMsg{} },
	MsgVoiceReconnectRequest: func() any { return &SignalMsg{} },
	MsgEnableCamera:          func() any { return &CameraMsg{} },
	MsgDisableCamera:         func() any { return &CameraMsg{} },
	MsgVoiceSpeaking:         func() any { return &SpeakingMsg{} },
	MsgVoiceUserMuted:        func() any { return &MutedMsg{} },
	MsgStatusChange:          func() any { return &StatusChangeMsg{} },
	MsgPing:                  func() any { return &PingMsg{} },
}

// DecodeClientMessage decodes and validates one inbound frame. The returned
// payload is one of the *Msg types above, keyed by the returned type tag.
// All failures are *domain.ValidationError: the connection stays up and the
// caller reports an error event.
func DecodeClientMessage(data []byte) (string, any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, domain.Invalid("malformed json")
	}
	if env.Type == "" {
		return "", nil, domain.Invalid("missing message type")
	}
	factory, ok := payloadFactories[env.Type]
	if !ok {
		return env.Type, nil, domain.Invalid("unknown message type %q", env.Type)
	}
	msg := factory()
	if err := json.Unmarshal(data, msg); err != nil {
		return env.Type, nil, domain.Invalid("malformed %s payload", env.Type)
	}
	if err := validate.Struct(msg); err != nil {
		return env.Type, nil, domain.Invalid("invalid %s payload", env.Type)
	}
	return env.Type, msg, nil
}
