package battle

// Outbound wire event names. These (and the payload field names) are the
// contract the existing front end listens on; do not rename.
const (
	EvtCreated           = "battle_created"
	EvtJoinRequestNotify = "battle_join_request_notify"
	EvtJoinAccepted      = "join_accepted"
	EvtError             = "battle_error"
	EvtEntered           = "battle_entered"
	EvtStarted           = "battle_started"
	EvtStateChange       = "battle_state_change"
	EvtNotification      = "battle_notification"
	EvtResult            = "battle_result"
	EvtRestart           = "battle_restart"
	EvtRematchDeclined   = "battle_rematch_declined"
	EvtRejoined          = "battle_rejoined"
	EvtChatMessage       = "battle_chat_message"
)

// Inbound wire event names.
const (
	InCreate      = "battle_create"
	InJoinRequest = "battle_join_request"
	InJoinResp    = "battle_join_response"
	InConfirmJoin = "battle_confirm_join"
	InStart       = "battle_start"
	InSubmit      = "battle_submit"
	InChatSend    = "battle_chat_send"
	InRematchVote = "battle_rematch_vote"
)

const systemSender = "ByteBot"

type RoomPayload struct {
	RoomCode string `json:"room_code"`
}

type JoinRequestNotifyPayload struct {
	PlayerName string `json:"player_name"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type StartedPayload struct {
	Problem  Problem `json:"problem"`
	Duration int     `json:"duration"`
	Language string  `json:"language"`
}

type StateChangePayload struct {
	State string `json:"state"`
}

type ResultPayload struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

type ChatMessagePayload struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Type    string `json:"type"`
}
