package signal

import "github.com/voxhall/gateway/internal/gateway"

func (ctl *Controller) handlePing(cl *client) {
	ctl.Orch.Registry.Touch(cl.connID)
	ctl.sendJSON(cl.conn, gateway.Pong{Type: gateway.EvPong})
}
