package signal

import (
	"github.com/voxhall/gateway/internal/gateway"
)

// handleRelay forwards an offer, answer, ICE candidate, or reconnect request
// to the target peer. The message type tag is the same in both directions;
// only the identity field flips from targetUserId to fromUserId.
func (ctl *Controller) handleRelay(cl *client, kind string, m *gateway.SignalMsg) {
	if err := ctl.Orch.RelaySignal(kind, cl.user.ID, m.TargetUserID, m.Payload); err != nil {
		ctl.sendError(cl, err)
	}
}
