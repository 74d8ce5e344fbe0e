package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/gateway/internal/domain"
)

func TestDecodeClientMessage(t *testing.T) {
	typ, msg, err := DecodeClientMessage([]byte(`{"type":"join-voice-channel","channelId":7,"reconnecting":true}`))
	require.NoError(t, err)
	assert.Equal(t, MsgJoinVoiceChannel, typ)
	jv := msg.(*JoinVoiceMsg)
	assert.Equal(t, domain.ChannelID(7), jv.ChannelID)
	assert.True(t, jv.Reconnecting)
}

func TestDecodeClientMessageSignal(t *testing.T) {
	typ, msg, err := DecodeClientMessage([]byte(`{"type":"voice-offer","targetUserId":2,"payload":{"sdp":"v=0"}}`))
	require.NoError(t, err)
	assert.Equal(t, MsgVoiceOffer, typ)
	sm := msg.(*SignalMsg)
	assert.Equal(t, domain.UserID(2), sm.TargetUserID)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(sm.Payload))
}

func TestDecodeClientMessageRejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"type":`},
		{"missing type", `{"channelId":1}`},
		{"unknown type", `{"type":"self-destruct"}`},
		{"zero channel id", `{"type":"join-voice-channel","channelId":0}`},
		{"negative channel id", `{"type":"join-channel","channelId":-3}`},
		{"zero target user", `{"type":"voice-answer","targetUserId":0,"payload":{}}`},
		{"missing signal payload", `{"type":"voice-ice-candidate","targetUserId":2}`},
		{"bad status", `{"type":"status-change","status":"sleeping"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeClientMessage([]byte(tt.data))
			require.Error(t, err)
			var ve *domain.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestDecodeClientMessageStatus(t *testing.T) {
	for _, status := range []string{"online", "idle", "dnd", "invisible", "offline"} {
		_, msg, err := DecodeClientMessage([]byte(`{"type":"status-change","status":"` + status + `"}`))
		require.NoError(t, err, status)
		assert.Equal(t, domain.Status(status), msg.(*StatusChangeMsg).Status)
	}
}
