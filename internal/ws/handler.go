// Package ws bridges websocket connections to the hub: frames in, commands
// to the inbox; hub outbox out, frames to the socket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fgcaster/overlay/internal/hub"
	"github.com/fgcaster/overlay/internal/match"
	"github.com/fgcaster/overlay/internal/types"
)

// outboxSize bounds how far a client may fall behind before the hub drops
// it. Sixteen frames is minutes of real edits for an overlay.
const outboxSize = 16

func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		canMutate := r.URL.Query().Get("role") == "controller"

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Overlays load inside OBS browser sources, which send file://
			// or null origins, so the origin check has to stay off. The
			// server binds to loopback; that is the actual boundary.
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan hub.Outbound, outboxSize)
		clientID := uuid.NewString()

		h.Inbox() <- hub.Join{ID: clientID, CanMutate: canMutate, Outbox: out}
		defer func() { h.Inbox() <- hub.Leave{ID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				payload, err := json.Marshal(toServerMessage(frame))
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// The hub closed our outbox: we left, were evicted, or it is
			// shutting down. Hang up so the reader unblocks too.
			conn.Close(websocket.StatusGoingAway, "state stream closed")
		}()

		// Reader loop. No artificial deadline: overlays sit idle for whole
		// matches and only the controller ever sends.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise, just exit (hub.Leave in defer):
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","error":"bad json"}`))
				continue
			}

			cmd, ok := toCommand(cm)
			if !ok {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","error":"unknown type"}`))
				continue
			}

			h.Inbox() <- hub.FromClient{ID: clientID, Cmd: cmd}
		}
	}
}

func toServerMessage(frame hub.Outbound) types.ServerMessage {
	switch {
	case frame.Err != "":
		return types.ServerMessage{Type: "error", Error: frame.Err}
	case frame.State != nil:
		return types.ServerMessage{Type: "snapshot", Version: frame.Version, State: frame.State}
	default:
		return types.ServerMessage{Type: "delta", Version: frame.Version, Delta: frame.Delta}
	}
}

func toCommand(m types.ClientMessage) (match.Command, bool) {
	switch m.Type {
	case "SetPlayerField":
		return match.Command{Type: match.CmdSetPlayerField, Side: m.Side, Field: m.Field, Value: m.Value}, true
	case "SetPlayerScore":
		return match.Command{Type: match.CmdSetPlayerScore, Side: m.Side, Score: m.Score}, true
	case "SetPlayerSide":
		return match.Command{Type: match.CmdSetPlayerSide, Side: m.Side, SideFlag: match.Side(m.SideFlag)}, true
	case "SetCharacter":
		return match.Command{Type: match.CmdSetCharacter, Side: m.Side, CharacterID: m.CharacterID}, true
	case "SetPlayerFlag":
		return match.Command{Type: match.CmdSetPlayerFlag, Side: m.Side, Country: m.Country, CustomPath: m.CustomPath}, true
	case "SetTeamField":
		return match.Command{Type: match.CmdSetTeamField, Side: m.Side, Field: m.Field, Value: m.Value}, true
	case "SetTeamScore":
		return match.Command{Type: match.CmdSetTeamScore, Side: m.Side, Score: m.Score}, true
	case "SetCasterField":
		return match.Command{Type: match.CmdSetCasterField, Side: m.Side, Field: m.Field, Value: m.Value}, true
	case "RemoveCaster":
		return match.Command{Type: match.CmdRemoveCaster, Side: m.Side}, true
	case "SetEventField":
		return match.Command{Type: match.CmdSetEventField, Field: m.Field, Value: m.Value}, true
	case "SwitchTemplate":
		return match.Command{Type: match.CmdSwitchTemplate, TemplateID: m.TemplateID}, true
	case "SwapSides":
		return match.Command{Type: match.CmdSwapSides}, true
	case "ResetScores":
		return match.Command{Type: match.CmdResetScores}, true
	default:
		return match.Command{}, false
	}
}
