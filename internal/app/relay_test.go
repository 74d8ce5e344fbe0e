package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhall/gateway/internal/domain"
)

func newRelayFixture() (*Relay, *Registry, *VoiceState) {
	reg := NewRegistry()
	voice := NewVoiceState()
	return &Relay{Registry: reg, Voice: voice}, reg, voice
}

func TestRelayForwardsVerbatim(t *testing.T) {
	relay, reg, voice := newRelayFixture()
	target := &fakeConn{}
	reg.Register(domain.User{ID: 2}, "c2", target)
	voice.Join(member(1), 7)
	voice.Join(member(2), 7)

	payload := json.RawMessage(`{"sdp":"v=0 o=- 46117","x":[1,2]}`)
	require.NoError(t, relay.Forward("voice-offer", 1, 2, payload))

	evs := target.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "voice-offer", evs[0]["type"])
	assert.Equal(t, float64(1), evs[0]["fromUserId"])

	var ev struct {
		Payload json.RawMessage `json:"payload"`
	}
	target.mu.Lock()
	require.NoError(t, json.Unmarshal(target.frames[0], &ev))
	target.mu.Unlock()
	assert.JSONEq(t, string(payload), string(ev.Payload))
}

func TestRelayRequiresSharedChannel(t *testing.T) {
	relay, reg, voice := newRelayFixture()
	target := &fakeConn{}
	reg.Register(domain.User{ID: 2}, "c2", target)

	// Sender not in any channel.
	err := relay.Forward("voice-offer", 1, 2, json.RawMessage(`{}`))
	var ae *domain.AuthorizationError
	assert.ErrorAs(t, err, &ae)

	// Peers in different channels.
	voice.Join(member(1), 7)
	voice.Join(member(2), 9)
	err = relay.Forward("voice-answer", 1, 2, json.RawMessage(`{}`))
	assert.ErrorAs(t, err, &ae)
	assert.Empty(t, target.events(t))
}

func TestRelayOfflineTargetSilentlyDropped(t *testing.T) {
	relay, _, voice := newRelayFixture()
	voice.Join(member(1), 7)
	voice.Join(member(2), 7)

	// Target tracked in voice state but with no live session.
	assert.NoError(t, relay.Forward("voice-ice-candidate", 1, 2, json.RawMessage(`{}`)))
}
