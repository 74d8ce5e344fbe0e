package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/gateway"
)

func (ctl *Controller) handleJoinVoice(ctx context.Context, cl *client, m *gateway.JoinVoiceMsg) {
	log.Info().Str("module", "signal").Int64("user", int64(cl.user.ID)).
		Int64("channel", int64(m.ChannelID)).Bool("reconnecting", m.Reconnecting).Msg("voice join")
	if err := ctl.Orch.JoinVoice(ctx, cl.user.ID, cl.connID, m.ChannelID); err != nil {
		ctl.sendError(cl, err)
	}
}

func (ctl *Controller) handleLeaveVoice(cl *client, m *gateway.LeaveVoiceMsg) {
	log.Info().Str("module", "signal").Int64("user", int64(cl.user.ID)).
		Int64("channel", int64(m.ChannelID)).Msg("voice leave")
	ctl.Orch.LeaveVoice(cl.user.ID, cl.connID, m.ChannelID)
}

func (ctl *Controller) handleCamera(cl *client, m *gateway.CameraMsg, enabled bool) {
	ctl.Orch.SetCamera(cl.user.ID, cl.connID, m.ChannelID, enabled)
}

func (ctl *Controller) handleSpeaking(cl *client, m *gateway.SpeakingMsg) {
	ctl.Orch.SetSpeaking(cl.user.ID, cl.connID, m.ChannelID, m.Speaking)
}

func (ctl *Controller) handleMuted(cl *client, m *gateway.MutedMsg) {
	ctl.Orch.SetMuted(cl.user.ID, cl.connID, m.ChannelID, m.Muted)
}
