package types

// Wire contract. Every frame is a JSON envelope:
//   { "type": <event name>, "payload": { ... } }

// Client -> Server
// battle_create:
//   name?: string
//
// battle_join_request:
//   room_code: string
//   name?: string   // matching a known participant's name is a rejoin
//
// battle_join_response:
//   room_code: string
//   accepted: boolean
//
// battle_confirm_join:
//   room_code: string
//
// battle_start:
//   room_code: string
//   language: string
//   difficulty: "easy" | "medium" | "hard"
//
// battle_submit:
//   room_code: string
//   code: string
//
// battle_chat_send:
//   room_code: string
//   message: string
//
// battle_rematch_vote:
//   room_code: string
//   vote: "yes" | "no"

// Server -> Client
// battle_created:
//   room_code: string
//
// battle_join_request_notify:     // to host only
//   player_name: string
//
// join_accepted:                  // to accepted guest only
//   room_code: string
//
// battle_entered:                 // both participants, guest confirmed
//   room_code: string
//
// battle_started:
//   problem: { title, description, input_format, output_format }
//   duration: number              // seconds
//   language: string
//
// battle_state_change:
//   state: "judging"
//
// battle_notification: {}         // opponent submitted / disconnected
//
// battle_result:
//   winner: string                // display name, or "Draw"
//   reason: string
//
// battle_restart: {}              // both voted yes, back to setup
// battle_rematch_declined: {}     // either voted no, room closed
//
// battle_rejoined:
//   room_code: string
//
// battle_chat_message:
//   sender: string
//   message: string
//   type: "user" | "system"
//
// battle_error:
//   message: string               // sent to the offending sender only
