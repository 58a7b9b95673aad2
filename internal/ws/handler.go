package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyforge/battle-backend/internal/battle"
	"github.com/studyforge/battle-backend/internal/registry"
	"github.com/studyforge/battle-backend/internal/room"
	"github.com/studyforge/battle-backend/internal/types"
)

const outboxSize = 16
const writeTimeout = 3 * time.Second

func Handler(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			connID: uuid.NewString(),
			name:   displayName(r),
			outbox: make(chan room.Out, outboxSize),
			reg:    reg,
			log:    log.Named("ws"),
			rooms:  make(map[*room.Room]struct{}),
		}

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writer(writeCtx, conn, c.outbox)

		defer c.detachAll()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.sendError("bad json")
				continue
			}
			c.handle(cm)
		}
	}
}

func writer(ctx context.Context, conn *websocket.Conn, outbox <-chan room.Out) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-outbox:
			payload, _ := json.Marshal(types.ServerMessage{Type: out.Event, Payload: out.Payload})
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			_ = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
		}
	}
}

// client tracks one websocket connection and the rooms it is attached to.
// current is the room of the most recent interaction; rooms holds every
// attachment so close can raise participant_disconnect in all of them.
type client struct {
	connID  string
	name    string
	outbox  chan room.Out
	reg     *registry.Registry
	log     *zap.Logger
	current *room.Room
	rooms   map[*room.Room]struct{}
}

func (c *client) handle(cm types.ClientMessage) {
	if cm.Type == battle.InCreate {
		c.create(cm.Payload)
		return
	}

	roomCode, cmd, ok := c.toCommand(cm)
	if !ok {
		c.sendError("unknown event " + cm.Type)
		return
	}

	rm := c.resolve(roomCode)
	if rm == nil {
		c.sendError("Room invalid or expired.")
		return
	}

	select {
	case rm.Inbox() <- room.FromClient{Cmd: cmd}:
	case <-rm.Done():
		c.sendError("Room invalid or expired.")
	}
}

func (c *client) create(payload json.RawMessage) {
	var p types.CreatePayload
	_ = json.Unmarshal(payload, &p)
	if p.Name != "" {
		c.name = p.Name
	}

	reply := make(chan registry.CreateReply, 1)
	c.reg.Inbox() <- registry.CreateRoom{HostConnID: c.connID, HostName: c.name, Reply: reply}
	res := <-reply
	if res.Err != nil {
		c.log.Error("room creation failed", zap.Error(res.Err))
		c.sendError("Could not create room.")
		return
	}

	c.attach(res.Room)
	c.push(room.Out{Event: battle.EvtCreated, Payload: battle.RoomPayload{RoomCode: res.Code}})
}

// resolve returns the room for a code, attaching this connection to it the
// first time it is seen so replies can be delivered. Existing attachments
// stay untouched: a stray command addressed at another room must not raise
// participant_disconnect in the room this connection actually plays in.
func (c *client) resolve(code string) *room.Room {
	if c.current != nil && code == "" {
		return c.current
	}

	reply := make(chan *room.Room, 1)
	c.reg.Inbox() <- registry.GetRoom{Code: code, Reply: reply}
	rm := <-reply
	if rm == nil {
		return nil
	}
	c.attach(rm)
	return rm
}

func (c *client) attach(rm *room.Room) {
	if _, ok := c.rooms[rm]; ok {
		c.current = rm
		return
	}
	select {
	case rm.Inbox() <- room.Attach{ConnID: c.connID, Outbox: c.outbox}:
		c.rooms[rm] = struct{}{}
		c.current = rm
	case <-rm.Done():
	}
}

func (c *client) detachAll() {
	for rm := range c.rooms {
		select {
		case rm.Inbox() <- room.Detach{ConnID: c.connID}:
		case <-rm.Done():
		}
	}
	clear(c.rooms)
	c.current = nil
}

func (c *client) toCommand(cm types.ClientMessage) (string, battle.Command, bool) {
	switch cm.Type {
	case battle.InJoinRequest:
		var p types.JoinRequestPayload
		if err := json.Unmarshal(cm.Payload, &p); err != nil {
			return "", battle.Command{}, false
		}
		name := p.Name
		if name == "" {
			name = c.name
		}
		return p.RoomCode, battle.Command{Type: battle.CmdJoinRequest, ConnID: c.connID, Name: name}, true

	case battle.InJoinResp:
		var p types.JoinResponsePayload
		if err := json.Unmarshal(cm.Payload, &p); err != nil {
			return "", battle.Command{}, false
		}
		return p.RoomCode, battle.Command{Type: battle.CmdJoinResponse, ConnID: c.connID, Accepted: p.Accepted}, true

	case battle.InConfirmJoin:
		var p types.RoomScopedPayload
		if err := json.Unmarshal(cm.Payload, &p); err != nil {
			return "", battle.Command{}, false
		}
		return p.RoomCode, battle.Command{Type: battle.CmdConfirmJoin, ConnID: c.connID}, true

	case battle.InStart:
		var p types.StartPayload
		if err := json.Unmarshal(cm.Payload, &p); err != nil {
			return "", battle.Command{}, false
		}
		return p.RoomCode, battle.Command{Type: battle.CmdStartBattle, ConnID: c.connID, Language: p.Language, Difficulty: p.Difficulty}, true

	case battle.InSubmit:
		var p types.SubmitPayload
		if err := json.Unmarshal(cm.Payload, &p); err != nil {
			return "", battle.Command{}, false
		}
		return p.RoomCode, battle.Command{Type: battle.CmdSubmit, ConnID: c.connID, Code: p.Code}, true

	case battle.InChatSend:
		var p types.ChatSendPayload
		if err := json.Unmarshal(cm.Payload, &p); err != nil {
			return "", battle.Command{}, false
		}
		return p.RoomCode, battle.Command{Type: battle.CmdChat, ConnID: c.connID, Message: p.Message}, true

	case battle.InRematchVote:
		var p types.RematchVotePayload
		if err := json.Unmarshal(cm.Payload, &p); err != nil {
			return "", battle.Command{}, false
		}
		return p.RoomCode, battle.Command{Type: battle.CmdRematchVote, ConnID: c.connID, Vote: p.Vote}, true

	default:
		return "", battle.Command{}, false
	}
}

func (c *client) push(out room.Out) {
	select {
	case c.outbox <- out:
	default:
	}
}

func (c *client) sendError(message string) {
	c.push(room.Out{Event: battle.EvtError, Payload: battle.ErrorPayload{Message: message}})
}

func displayName(r *http.Request) string {
	if name := r.URL.Query().Get("name"); name != "" {
		return name
	}
	return "Player 1"
}
