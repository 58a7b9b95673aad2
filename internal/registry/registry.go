package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyforge/battle-backend/internal/battle"
	"github.com/studyforge/battle-backend/internal/judge"
	"github.com/studyforge/battle-backend/internal/room"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrRegistryExhausted = errors.New("no free room code")

const codeLength = 6
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxCodeAttempts bounds collision retries. With 36^6 codes this is
// practically unreachable, but create must still fail cleanly.
const maxCodeAttempts = 32

type Msg interface{ isRegistryMsg() }

type CreateRoom struct {
	HostConnID string
	HostName   string
	Reply      chan CreateReply
}

func (CreateRoom) isRegistryMsg() {}

type CreateReply struct {
	Code string
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

func (GetRoom) isRegistryMsg() {}

// RemoveRoom stops the room and deletes the entry; idempotent.
type RemoveRoom struct{ Code string }

func (RemoveRoom) isRegistryMsg() {}

// Sweep removes closed rooms and rooms with no connected participant for
// longer than MaxIdle.
type Sweep struct{ MaxIdle time.Duration }

func (Sweep) isRegistryMsg() {}

type ShutdownRegistry struct{}

func (ShutdownRegistry) isRegistryMsg() {}

// Registry owns every live room, keyed by upper-cased room code.
type Registry struct {
	inbox   chan Msg
	rooms   map[string]*room.Room
	gateway judge.Gateway
	log     *zap.Logger
	chatCap int
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, gw judge.Gateway, chatCap int, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	reg := &Registry{
		inbox:   make(chan Msg, 64),
		rooms:   make(map[string]*room.Room),
		gateway: gw,
		log:     log.Named("registry"),
		chatCap: chatCap,
		ctx:     ctx,
		cancel:  cancel,
	}
	go reg.loop()
	return reg
}

func (reg *Registry) Inbox() chan<- Msg { return reg.inbox }

func (reg *Registry) loop() {
	for {
		select {
		case <-reg.ctx.Done():
			reg.shutdown()
			return

		case m := <-reg.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- reg.create(msg.HostConnID, msg.HostName)

			case GetRoom:
				msg.Reply <- reg.rooms[NormalizeCode(msg.Code)]

			case RemoveRoom:
				reg.remove(NormalizeCode(msg.Code))

			case Sweep:
				reg.sweep(msg.MaxIdle)

			case ShutdownRegistry:
				reg.shutdown()
				return
			}
		}
	}
}

func (reg *Registry) create(hostConnID, hostName string) CreateReply {
	var code string
	for i := 0; i < maxCodeAttempts; i++ {
		c, err := generateCode()
		if err != nil {
			return CreateReply{Err: fmt.Errorf("generate code: %w", err)}
		}
		if _, taken := reg.rooms[c]; !taken {
			code = c
			break
		}
		reg.log.Warn("room code collision, regenerating", zap.String("code", c))
	}
	if code == "" {
		return CreateReply{Err: ErrRegistryExhausted}
	}

	session := battle.NewSession(code, hostConnID, hostName, reg.chatCap)
	rm := room.NewRoom(reg.ctx, session, reg.gateway, reg.log, func(closed string) {
		select {
		case reg.inbox <- RemoveRoom{Code: closed}:
		case <-reg.ctx.Done():
		}
	})
	reg.rooms[code] = rm
	reg.log.Info("room created", zap.String("code", code))
	return CreateReply{Code: code, Room: rm}
}

func (reg *Registry) remove(code string) {
	rm, ok := reg.rooms[code]
	if !ok {
		return
	}
	rm.Stop()
	delete(reg.rooms, code)
	reg.log.Info("room removed", zap.String("code", code))
}

func (reg *Registry) sweep(maxIdle time.Duration) {
	snapshot := make(map[string]*room.Room, len(reg.rooms))
	for code, rm := range reg.rooms {
		snapshot[code] = rm
	}

	// Probing rooms can block, so it happens off the registry loop; removals
	// come back through the inbox.
	go func() {
		now := time.Now()
		for code, rm := range snapshot {
			reply := make(chan room.View, 1)
			select {
			case rm.Inbox() <- room.GetState{Reply: reply}:
			case <-rm.Done():
				reg.enqueueRemove(code)
				continue
			case <-reg.ctx.Done():
				return
			}

			select {
			case view := <-reply:
				idle := !view.IdleSince.IsZero() && now.Sub(view.IdleSince) >= maxIdle
				if view.Phase == battle.PhaseClosed || idle {
					reg.enqueueRemove(code)
				}
			case <-rm.Done():
				reg.enqueueRemove(code)
			case <-reg.ctx.Done():
				return
			}
		}
	}()
}

func (reg *Registry) enqueueRemove(code string) {
	select {
	case reg.inbox <- RemoveRoom{Code: code}:
	case <-reg.ctx.Done():
	}
}

func (reg *Registry) shutdown() {
	for code, rm := range reg.rooms {
		rm.Stop()
		delete(reg.rooms, code)
	}
	reg.cancel()
}

// NormalizeCode makes lookups case-insensitive: codes are stored upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
