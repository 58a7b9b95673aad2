package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/studyforge/battle-backend/internal/battle"
	"github.com/studyforge/battle-backend/internal/judge"
)

type Msg interface{ isRoomMsg() }

// Attach registers a connection's outbox with the room so effects addressed
// to that connection id can be delivered.
type Attach struct {
	ConnID string
	Outbox chan Out
}

func (Attach) isRoomMsg() {}

// Detach removes the outbox and raises a participant_disconnect for the
// connection.
type Detach struct{ ConnID string }

func (Detach) isRoomMsg() {}

type FromClient struct {
	Cmd battle.Command
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// timer and judge callbacks re-enter the loop as messages so every state
// transition stays serialized.
type deadlineFired struct{ Gen int }

func (deadlineFired) isRoomMsg() {}

type judgeDone struct {
	Gen      int
	Verdicts map[battle.Role]battle.Verdict
	Err      error
}

func (judgeDone) isRoomMsg() {}

// Out is one wire event queued for a single connection.
type Out struct {
	Event   string
	Payload any
}

type View struct {
	Phase      battle.Phase
	NumClients int
	Connected  int
	Generation int
	IdleSince  time.Time
}

// Room owns one Session and processes its events one at a time.
type Room struct {
	inbox   chan Msg
	session *battle.Session
	clients map[string]chan Out
	timer   *time.Timer
	gateway judge.Gateway
	log     *zap.Logger
	onClose func(code string)
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewRoom(parent context.Context, session *battle.Session, gw judge.Gateway, log *zap.Logger, onClose func(code string)) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:   make(chan Msg, 64),
		session: session,
		clients: make(map[string]chan Out),
		gateway: gw,
		log:     log.With(zap.String("room", session.Code)),
		onClose: onClose,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room has shut down; senders should stop using the
// inbox after that.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) Stop() { r.cancel() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Attach:
				r.clients[msg.ConnID] = msg.Outbox

			case Detach:
				delete(r.clients, msg.ConnID)
				r.dispatch(battle.Command{Type: battle.CmdDisconnect, ConnID: msg.ConnID})

			case FromClient:
				r.dispatch(msg.Cmd)

			case deadlineFired:
				r.dispatch(battle.Command{Type: battle.CmdDeadline, Generation: msg.Gen})

			case judgeDone:
				r.finishJudging(msg)

			case GetState:
				msg.Reply <- View{
					Phase:      r.session.Phase,
					NumClients: len(r.clients),
					Connected:  r.connectedCount(),
					Generation: r.session.Generation,
					IdleSince:  r.session.IdleSince,
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) connectedCount() int {
	n := 0
	if r.session.Host.Connected {
		n++
	}
	if r.session.GuestBound && r.session.Guest.Connected {
		n++
	}
	return n
}

func (r *Room) dispatch(cmd battle.Command) {
	prev := r.session.Phase
	effects, err := r.session.Apply(cmd, time.Now())
	if err != nil {
		r.log.Debug("rejected command",
			zap.String("cmd", string(cmd.Type)),
			zap.String("phase", string(prev)),
			zap.Error(err))
		if cmd.ConnID != "" {
			r.deliver(cmd.ConnID, Out{Event: battle.EvtError, Payload: battle.ErrorPayload{Message: clientMessage(err)}})
		}
		return
	}

	for _, e := range effects {
		for _, conn := range e.To {
			r.deliver(conn, Out{Event: e.Event, Payload: e.Payload})
		}
	}

	if r.session.Phase != prev {
		r.phaseChanged(prev)
	}
}

func (r *Room) phaseChanged(prev battle.Phase) {
	r.stopTimer()

	switch r.session.Phase {
	case battle.PhaseInProgress:
		r.armTimer()
	case battle.PhaseJudging:
		r.startJudging()
	case battle.PhaseClosed:
		r.log.Info("room closed", zap.String("from", string(prev)))
		if r.onClose != nil {
			r.onClose(r.session.Code)
		}
		r.cancel()
	}
}

func (r *Room) armTimer() {
	gen := r.session.Generation
	d := time.Until(r.session.DeadlineAt)
	r.timer = time.AfterFunc(d, func() {
		select {
		case r.inbox <- deadlineFired{Gen: gen}:
		case <-r.ctx.Done():
		}
	})
	r.log.Info("battle started",
		zap.Int("generation", gen),
		zap.Duration("window", d))
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// startJudging invokes the gateway once for this generation; the result
// re-enters the loop as a judgeDone message.
func (r *Room) startJudging() {
	gen := r.session.Generation
	problem := *r.session.Problem
	subs := make(map[battle.Role]battle.Submission, len(r.session.Submissions))
	for role, sub := range r.session.Submissions {
		subs[role] = sub
	}

	go func() {
		verdicts, err := r.gateway.Judge(r.ctx, problem, subs)
		select {
		case r.inbox <- judgeDone{Gen: gen, Verdicts: verdicts, Err: err}:
		case <-r.ctx.Done():
		}
	}()
}

func (r *Room) finishJudging(msg judgeDone) {
	if msg.Err != nil {
		r.log.Error("judge unavailable, declaring a draw", zap.Error(msg.Err))
		r.dispatch(battle.Command{Type: battle.CmdJudgeResult, Generation: msg.Gen, JudgeFailed: true})
		return
	}
	for role, v := range msg.Verdicts {
		if v == battle.VerdictJudgeError {
			r.log.Error("judge errored on submission", zap.String("role", string(role)))
		}
	}
	r.dispatch(battle.Command{Type: battle.CmdJudgeResult, Generation: msg.Gen, Verdicts: msg.Verdicts})
}

func (r *Room) deliver(connID string, out Out) {
	ch, ok := r.clients[connID]
	if !ok {
		return
	}
	select {
	case ch <- out:
	default:
		// Slow or wedged connection; drop it and let the read side detach.
		r.log.Warn("dropping slow client", zap.String("conn", connID))
		delete(r.clients, connID)
	}
}

func (r *Room) shutdown() {
	r.stopTimer()
	clear(r.clients)
	r.cancel()
}

func clientMessage(err error) string {
	switch {
	case errors.Is(err, battle.ErrRoomFull):
		return "Room is full."
	case errors.Is(err, battle.ErrDuplicateJoinRequest):
		return "Another player is already requesting to join."
	case errors.Is(err, battle.ErrNotAParticipant):
		return "You are not in this room."
	default:
		return err.Error()
	}
}
