package signal

import (
	"context"

	"github.com/voxhall/gateway/internal/gateway"
)

func (ctl *Controller) handleStatusChange(ctx context.Context, cl *client, m *gateway.StatusChangeMsg) {
	// The payload carries no target: a client can only restate its own
	// status, which is the authorization check.
	if err := ctl.Orch.ChangeStatus(ctx, cl.user.ID, m.Status); err != nil {
		ctl.sendError(cl, err)
	}
}
