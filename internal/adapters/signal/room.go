package signal

import (
	"context"

	"github.com/voxhall/gateway/internal/gateway"
)

func (ctl *Controller) handleJoinServer(ctx context.Context, cl *client, m *gateway.ServerRoomMsg) {
	if err := ctl.Orch.JoinServerRoom(ctx, cl.user.ID, cl.connID, m.ServerID); err != nil {
		ctl.sendError(cl, err)
	}
}

func (ctl *Controller) handleLeaveServer(cl *client, m *gateway.ServerRoomMsg) {
	ctl.Orch.LeaveServerRoom(cl.connID, m.ServerID)
}

func (ctl *Controller) handleJoinChannel(ctx context.Context, cl *client, m *gateway.ChannelRoomMsg) {
	if err := ctl.Orch.JoinChannelRoom(ctx, cl.user.ID, cl.connID, m.ChannelID); err != nil {
		ctl.sendError(cl, err)
	}
}

func (ctl *Controller) handleLeaveChannel(cl *client, m *gateway.ChannelRoomMsg) {
	ctl.Orch.LeaveChannelRoom(cl.connID, m.ChannelID)
}
