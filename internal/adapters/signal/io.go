package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/gateway"
)

const handlerTimeout = 10 * time.Second

func (ctl *Controller) writePump(ctx context.Context, cl *client) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cl.conn.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := cl.conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-cl.conn.send:
			if !ok {
				return
			}
			if err := cl.conn.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := cl.conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cl *client) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cl.connID)).Msg("readPump closing")
	}()

	ws := cl.conn.conn
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}
	_ = ws.SetReadDeadline(time.Now().Add(ctl.PongWait))
	ws.SetPongHandler(func(string) error {
		ctl.Orch.Registry.Touch(cl.connID)
		return ws.SetReadDeadline(time.Now().Add(ctl.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := ws.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(cl.connID)).Msg("readPump read error")
				return
			}
			ctl.handleMessage(ctx, cl, data)
		}
	}
}

// handleMessage decodes, validates, and dispatches one inbound frame. A
// panic in a handler is an internal fault of this connection only: it is
// recovered and reported without touching anyone else's session.
func (ctl *Controller) handleMessage(ctx context.Context, cl *client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Int64("user", int64(cl.user.ID)).
				Any("panic", r).Msg("handler panic recovered")
			ctl.sendJSON(cl.conn, gateway.ErrorEvent{Type: gateway.EvError, Message: "internal error"})
		}
	}()

	typ, msg, err := gateway.DecodeClientMessage(data)
	if err != nil {
		ctl.sendError(cl, err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	switch typ {
	case gateway.MsgPing:
		ctl.handlePing(cl)
	case gateway.MsgJoinServer:
		ctl.handleJoinServer(opCtx, cl, msg.(*gateway.ServerRoomMsg))
	case gateway.MsgLeaveServer:
		ctl.handleLeaveServer(cl, msg.(*gateway.ServerRoomMsg))
	case gateway.MsgJoinChannel:
		ctl.handleJoinChannel(opCtx, cl, msg.(*gateway.ChannelRoomMsg))
	case gateway.MsgLeaveChannel:
		ctl.handleLeaveChannel(cl, msg.(*gateway.ChannelRoomMsg))
	case gateway.MsgJoinVoiceChannel:
		ctl.handleJoinVoice(opCtx, cl, msg.(*gateway.JoinVoiceMsg))
	case gateway.MsgLeaveVoiceChannel:
		ctl.handleLeaveVoice(cl, msg.(*gateway.LeaveVoiceMsg))
	case gateway.MsgEnableCamera:
		ctl.handleCamera(cl, msg.(*gateway.CameraMsg), true)
	case gateway.MsgDisableCamera:
		ctl.handleCamera(cl, msg.(*gateway.CameraMsg), false)
	case gateway.MsgVoiceSpeaking:
		ctl.handleSpeaking(cl, msg.(*gateway.SpeakingMsg))
	case gateway.MsgVoiceUserMuted:
		ctl.handleMuted(cl, msg.(*gateway.MutedMsg))
	case gateway.MsgStatusChange:
		ctl.handleStatusChange(opCtx, cl, msg.(*gateway.StatusChangeMsg))
	case gateway.MsgVoiceOffer, gateway.MsgVoiceAnswer, gateway.MsgVoiceICECandidate, gateway.MsgVoiceReconnectRequest:
		ctl.handleRelay(cl, typ, msg.(*gateway.SignalMsg))
	default:
		log.Warn().Str("module", "signal").Str("type", typ).Msg("unhandled message type")
	}
}
