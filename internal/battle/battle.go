package battle

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("event not legal in current phase")
var ErrNotAParticipant = errors.New("not a participant in this room")
var ErrDuplicateJoinRequest = errors.New("a join request is already pending")
var ErrRoomFull = errors.New("room is full")

type Phase string

const (
	PhaseWaitingForGuest      Phase = "waiting_for_guest"
	PhaseAwaitingJoinDecision Phase = "awaiting_join_decision"
	PhaseSetup                Phase = "setup"
	PhaseInProgress           Phase = "in_progress"
	PhaseJudging              Phase = "judging"
	PhaseResult               Phase = "result"
	PhaseClosed               Phase = "closed"
)

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

type Participant struct {
	ConnID    string
	Name      string
	Connected bool
	Confirmed bool
}

type PendingJoin struct {
	ConnID string
	Name   string
}

type Problem struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	InputFormat  string `json:"input_format"`
	OutputFormat string `json:"output_format"`
}

type Submission struct {
	Code string
	At   time.Time
}

type ChatEntry struct {
	Sender string
	Text   string
	At     time.Time
}

// Session is the authoritative state for one room. All mutation goes through
// Apply, which the room actor calls one command at a time.
type Session struct {
	Code       string
	Phase      Phase
	Host       Participant
	Guest      Participant
	GuestBound bool
	Pending    *PendingJoin

	Problem    *Problem
	Language   string
	Difficulty string
	Duration   int // seconds, current battle window

	Submissions  map[Role]Submission
	DeadlineAt   time.Time
	RematchVotes map[Role]bool

	Chat    []ChatEntry
	ChatCap int

	// Generation increments each time IN_PROGRESS is entered. Stale timer
	// fires and judge results carry an older generation and are dropped.
	Generation int

	// IdleSince is set when no participant is connected, zero otherwise.
	IdleSince time.Time
}

func NewSession(code, hostConnID, hostName string, chatCap int) *Session {
	return &Session{
		Code:  code,
		Phase: PhaseWaitingForGuest,
		Host: Participant{
			ConnID:    hostConnID,
			Name:      hostName,
			Connected: true,
			Confirmed: true,
		},
		Submissions:  map[Role]Submission{},
		RematchVotes: map[Role]bool{},
		ChatCap:      chatCap,
	}
}

type CommandType string

const (
	CmdJoinRequest  CommandType = "join_request"
	CmdJoinResponse CommandType = "join_response"
	CmdConfirmJoin  CommandType = "confirm_join"
	CmdStartBattle  CommandType = "start_battle"
	CmdSubmit       CommandType = "submit"
	CmdChat         CommandType = "chat"
	CmdRematchVote  CommandType = "rematch_vote"
	CmdDisconnect   CommandType = "disconnect"
	CmdDeadline     CommandType = "deadline_reached"
	CmdJudgeResult  CommandType = "judge_result"
)

type Command struct {
	Type   CommandType
	ConnID string // sender connection

	Name       string // join_request
	Accepted   bool   // join_response
	Language   string // start_battle
	Difficulty string // start_battle
	Code       string // submit
	Message    string // chat
	Vote       string // rematch_vote: "yes" | "no"

	Generation  int              // deadline_reached, judge_result
	Verdicts    map[Role]Verdict // judge_result
	JudgeFailed bool             // judge_result: retries exhausted, force a draw
}

// Effect is one outbound wire event with explicit connection targets.
type Effect struct {
	Event   string
	Payload any
	To      []string
}

func send(event string, payload any, conns ...string) Effect {
	return Effect{Event: event, Payload: payload, To: conns}
}

// Apply validates cmd against the current phase and, if legal, mutates the
// session and returns the outbound effects. On error nothing is mutated.
func (s *Session) Apply(cmd Command, now time.Time) ([]Effect, error) {
	switch cmd.Type {
	case CmdJoinRequest:
		return s.applyJoinRequest(cmd)
	case CmdJoinResponse:
		return s.applyJoinResponse(cmd)
	case CmdConfirmJoin:
		return s.applyConfirmJoin(cmd)
	case CmdStartBattle:
		return s.applyStartBattle(cmd, now)
	case CmdSubmit:
		return s.applySubmit(cmd, now)
	case CmdChat:
		return s.applyChat(cmd, now)
	case CmdRematchVote:
		return s.applyRematchVote(cmd)
	case CmdDisconnect:
		return s.applyDisconnect(cmd, now)
	case CmdDeadline:
		return s.applyDeadline(cmd)
	case CmdJudgeResult:
		return s.applyJudgeResult(cmd)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidTransition, cmd.Type)
	}
}

func (s *Session) roleOf(connID string) (Role, bool) {
	if s.Host.ConnID == connID {
		return RoleHost, true
	}
	if s.GuestBound && s.Guest.ConnID == connID {
		return RoleGuest, true
	}
	return "", false
}

func (s *Session) participant(role Role) *Participant {
	if role == RoleHost {
		return &s.Host
	}
	return &s.Guest
}

func (s *Session) other(role Role) Role {
	if role == RoleHost {
		return RoleGuest
	}
	return RoleHost
}

// participantConns returns the connection ids of all bound participants,
// connected or not; the delivery layer drops ids it no longer knows.
func (s *Session) participantConns() []string {
	conns := []string{s.Host.ConnID}
	if s.GuestBound {
		conns = append(conns, s.Guest.ConnID)
	}
	return conns
}

func (s *Session) connectedCount() int {
	n := 0
	if s.Host.Connected {
		n++
	}
	if s.GuestBound && s.Guest.Connected {
		n++
	}
	return n
}

func (s *Session) applyJoinRequest(cmd Command) ([]Effect, error) {
	// A name matching a disconnected participant is a reconnection, legal in
	// any phase before CLOSED: rebind the connection and replay the room.
	// A connected participant's name gets no shortcut, otherwise a stranger
	// sharing the name could steal the live binding.
	if s.Phase != PhaseClosed && cmd.Name != "" {
		if s.Host.Name == cmd.Name && !s.Host.Connected {
			return s.rejoin(RoleHost, cmd.ConnID), nil
		}
		if s.GuestBound && s.Guest.Name == cmd.Name && !s.Guest.Connected {
			return s.rejoin(RoleGuest, cmd.ConnID), nil
		}
	}

	if s.GuestBound {
		return nil, ErrRoomFull
	}
	if s.Pending != nil {
		return nil, ErrDuplicateJoinRequest
	}
	if s.Phase != PhaseWaitingForGuest {
		return nil, ErrInvalidTransition
	}

	name := cmd.Name
	if name == "" {
		name = "Opponent"
	}
	s.Pending = &PendingJoin{ConnID: cmd.ConnID, Name: name}
	s.Phase = PhaseAwaitingJoinDecision

	return []Effect{
		send(EvtJoinRequestNotify, JoinRequestNotifyPayload{PlayerName: name}, s.Host.ConnID),
	}, nil
}

func (s *Session) rejoin(role Role, connID string) []Effect {
	p := s.participant(role)
	p.ConnID = connID
	p.Connected = true
	s.IdleSince = time.Time{}
	return []Effect{
		send(EvtRejoined, RoomPayload{RoomCode: s.Code}, connID),
	}
}

func (s *Session) applyJoinResponse(cmd Command) ([]Effect, error) {
	role, ok := s.roleOf(cmd.ConnID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if role != RoleHost || s.Phase != PhaseAwaitingJoinDecision || s.Pending == nil {
		return nil, ErrInvalidTransition
	}

	pending := *s.Pending
	s.Pending = nil

	if !cmd.Accepted {
		s.Phase = PhaseWaitingForGuest
		return []Effect{
			send(EvtError, ErrorPayload{Message: "Host rejected request."}, pending.ConnID),
		}, nil
	}

	s.Guest = Participant{ConnID: pending.ConnID, Name: pending.Name, Connected: true}
	s.GuestBound = true
	s.Phase = PhaseSetup
	return []Effect{
		send(EvtJoinAccepted, RoomPayload{RoomCode: s.Code}, pending.ConnID),
	}, nil
}

func (s *Session) applyConfirmJoin(cmd Command) ([]Effect, error) {
	role, ok := s.roleOf(cmd.ConnID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if role != RoleGuest || s.Phase != PhaseSetup || s.Guest.Confirmed {
		return nil, ErrInvalidTransition
	}

	s.Guest.Confirmed = true
	conns := s.participantConns()
	return []Effect{
		send(EvtEntered, RoomPayload{RoomCode: s.Code}, conns...),
		send(EvtChatMessage, ChatMessagePayload{
			Sender:  systemSender,
			Message: s.Guest.Name + " joined the battle.",
			Type:    "system",
		}, conns...),
	}, nil
}

func (s *Session) applyStartBattle(cmd Command, now time.Time) ([]Effect, error) {
	role, ok := s.roleOf(cmd.ConnID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if role != RoleHost || s.Phase != PhaseSetup {
		return nil, ErrInvalidTransition
	}
	if !s.GuestBound || !s.Guest.Confirmed {
		return nil, fmt.Errorf("%w: opponent has not joined yet", ErrInvalidTransition)
	}

	problem, duration := PickProblem(cmd.Language, cmd.Difficulty)
	s.Problem = &problem
	s.Language = cmd.Language
	s.Difficulty = cmd.Difficulty
	s.Duration = duration
	s.Submissions = map[Role]Submission{}
	s.DeadlineAt = now.Add(time.Duration(duration) * time.Second)
	s.Generation++
	s.Phase = PhaseInProgress

	return []Effect{
		send(EvtStarted, StartedPayload{
			Problem:  problem,
			Duration: duration,
			Language: cmd.Language,
		}, s.participantConns()...),
	}, nil
}

func (s *Session) applySubmit(cmd Command, now time.Time) ([]Effect, error) {
	role, ok := s.roleOf(cmd.ConnID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if s.Phase != PhaseInProgress {
		return nil, ErrInvalidTransition
	}

	s.Submissions[role] = Submission{Code: cmd.Code, At: now}

	var effects []Effect
	opp := s.participant(s.other(role))
	if opp.Connected {
		effects = append(effects, send(EvtNotification, struct{}{}, opp.ConnID))
	}

	if len(s.Submissions) == 2 {
		effects = append(effects, s.enterJudging()...)
	}
	return effects, nil
}

func (s *Session) applyDeadline(cmd Command) ([]Effect, error) {
	// Stale fires are expected when both players submit early; drop silently.
	if s.Phase != PhaseInProgress || cmd.Generation != s.Generation {
		return nil, nil
	}
	return s.enterJudging(), nil
}

func (s *Session) enterJudging() []Effect {
	s.Phase = PhaseJudging
	return []Effect{
		send(EvtStateChange, StateChangePayload{State: "judging"}, s.participantConns()...),
	}
}

func (s *Session) applyJudgeResult(cmd Command) ([]Effect, error) {
	if s.Phase != PhaseJudging || cmd.Generation != s.Generation {
		return nil, nil
	}

	winner, reason := "Draw", "judge unavailable"
	if !cmd.JudgeFailed {
		var winnerRole Role
		var decided bool
		winnerRole, reason, decided = Decide(s.Submissions, cmd.Verdicts)
		if decided {
			winner = s.participant(winnerRole).Name
		}
	}

	s.Phase = PhaseResult
	s.RematchVotes = map[Role]bool{}

	return []Effect{
		send(EvtResult, ResultPayload{Winner: winner, Reason: reason}, s.participantConns()...),
	}, nil
}

func (s *Session) applyRematchVote(cmd Command) ([]Effect, error) {
	role, ok := s.roleOf(cmd.ConnID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if s.Phase != PhaseResult {
		return nil, ErrInvalidTransition
	}

	switch cmd.Vote {
	case "no":
		// A decline is authoritative regardless of the other vote.
		s.Phase = PhaseClosed
		return []Effect{
			send(EvtRematchDeclined, struct{}{}, s.participantConns()...),
		}, nil
	case "yes":
		s.RematchVotes[role] = true
		if len(s.RematchVotes) < 2 {
			return nil, nil
		}
		s.Phase = PhaseSetup
		s.Problem = nil
		s.Submissions = map[Role]Submission{}
		s.RematchVotes = map[Role]bool{}
		s.DeadlineAt = time.Time{}
		return []Effect{
			send(EvtRestart, struct{}{}, s.participantConns()...),
		}, nil
	default:
		return nil, fmt.Errorf("%w: vote must be yes or no", ErrInvalidTransition)
	}
}

func (s *Session) applyChat(cmd Command, now time.Time) ([]Effect, error) {
	role, ok := s.roleOf(cmd.ConnID)
	if !ok {
		return nil, ErrNotAParticipant
	}
	if s.Phase == PhaseClosed {
		return nil, ErrInvalidTransition
	}

	sender := s.participant(role).Name
	s.Chat = append(s.Chat, ChatEntry{Sender: sender, Text: cmd.Message, At: now})
	if s.ChatCap > 0 && len(s.Chat) > s.ChatCap {
		s.Chat = s.Chat[len(s.Chat)-s.ChatCap:]
	}

	// Sender already rendered its own message locally; exclude it.
	var conns []string
	for _, c := range s.participantConns() {
		if c != cmd.ConnID {
			conns = append(conns, c)
		}
	}
	if len(conns) == 0 {
		return nil, nil
	}
	return []Effect{
		send(EvtChatMessage, ChatMessagePayload{Sender: sender, Message: cmd.Message, Type: "user"}, conns...),
	}, nil
}

func (s *Session) applyDisconnect(cmd Command, now time.Time) ([]Effect, error) {
	if s.Pending != nil && s.Pending.ConnID == cmd.ConnID {
		s.Pending = nil
		if s.Phase == PhaseAwaitingJoinDecision {
			s.Phase = PhaseWaitingForGuest
		}
		return nil, nil
	}

	role, ok := s.roleOf(cmd.ConnID)
	if !ok {
		return nil, nil
	}

	p := s.participant(role)
	if p.ConnID != cmd.ConnID {
		return nil, nil
	}
	p.Connected = false

	if s.connectedCount() == 0 {
		s.Phase = PhaseClosed
		s.IdleSince = now
		// A candidate still waiting on a join decision must not be left
		// hanging on a dead room.
		if s.Pending != nil {
			pending := *s.Pending
			s.Pending = nil
			return []Effect{
				send(EvtError, ErrorPayload{Message: "Room invalid or expired."}, pending.ConnID),
			}, nil
		}
		return nil, nil
	}

	var effects []Effect
	opp := s.participant(s.other(role))
	if s.GuestBound && opp.Connected {
		effects = append(effects,
			send(EvtNotification, struct{}{}, opp.ConnID),
			send(EvtChatMessage, ChatMessagePayload{
				Sender:  systemSender,
				Message: p.Name + " disconnected.",
				Type:    "system",
			}, opp.ConnID),
		)
	}
	return effects, nil
}
