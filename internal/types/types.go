package types

import "encoding/json"

// ClientMessage is the JSON envelope for every inbound wire event:
// {"type": "battle_submit", "payload": {...}}.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage mirrors the envelope on the way out.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type CreatePayload struct {
	Name string `json:"name,omitempty"`
}

type JoinRequestPayload struct {
	RoomCode string `json:"room_code"`
	Name     string `json:"name,omitempty"`
}

type JoinResponsePayload struct {
	RoomCode string `json:"room_code"`
	Accepted bool   `json:"accepted"`
}

type RoomScopedPayload struct {
	RoomCode string `json:"room_code"`
}

type StartPayload struct {
	RoomCode   string `json:"room_code"`
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
}

type SubmitPayload struct {
	RoomCode string `json:"room_code"`
	Code     string `json:"code"`
}

type ChatSendPayload struct {
	RoomCode string `json:"room_code"`
	Message  string `json:"message"`
}

type RematchVotePayload struct {
	RoomCode string `json:"room_code"`
	Vote     string `json:"vote"`
}
