package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/domain"
	"github.com/voxhall/gateway/internal/gateway"
)

// Relay forwards peer negotiation messages between members of the same voice
// channel. Store-nothing: a message either reaches the target's current
// connection now or it is gone.
type Relay struct {
	Registry *Registry
	Voice    *VoiceState
}

// Forward sends a signaling payload verbatim to the target. Both ends must
// currently map to the same voice channel, otherwise signaling would leak
// into or out of channels a peer has already left. An offline target is a
// silent drop: signaling is inherently transient, the peers renegotiate.
func (r *Relay) Forward(kind string, from, to domain.UserID, payload json.RawMessage) error {
	fromCh, ok := r.Voice.ChannelOf(from)
	if !ok {
		return domain.Unauthorized("not in a voice channel")
	}
	toCh, ok := r.Voice.ChannelOf(to)
	if !ok || toCh != fromCh {
		return domain.Unauthorized("peer is not in your voice channel")
	}

	sess, ok := r.Registry.Lookup(to)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("kind", kind).
			Int64("from", int64(from)).Int64("to", int64(to)).Msg("target offline, dropped")
		return nil
	}
	_ = sess.Conn.TrySend(gateway.Encode(gateway.VoiceSignal{
		Type:       kind,
		FromUserID: from,
		Payload:    payload,
	}))
	return nil
}
