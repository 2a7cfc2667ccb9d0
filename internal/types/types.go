// Package types holds the websocket wire messages.
//
// Client -> Server (one JSON object per frame):
//
//	{"type":"select_position","team":"blue","role":"MID","request_id":"1"}
//	{"type":"leave_position","team":"blue","role":"MID"}
//	{"type":"start"}
//	{"type":"submit","team":"red","action":"pick","champion":"Ahri","role":"MID"}
//	{"type":"hover","team":"red","champion":"Ahri"}
//	{"type":"skip"}
//
// Server -> Client: every session event as produced by the lobby
// ({"id","session_id","version","type","timestamp","data"}), an "ack" for each
// accepted request and an "error" for each rejected one. Acks and errors are
// only sent to the connection that made the request.
package types

import "github.com/DoyleJ11/nabi-draft/internal/drafterr"

const (
	MsgSelectPosition = "select_position"
	MsgLeavePosition  = "leave_position"
	MsgStart          = "start"
	MsgSubmit         = "submit"
	MsgHover          = "hover"
	MsgSkip           = "skip"
)

type ClientMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Team      string `json:"team,omitempty"`
	Role      string `json:"role,omitempty"`
	Action    string `json:"action,omitempty"`
	Champion  string `json:"champion,omitempty"`
}

type ServerMessage struct {
	Type      string        `json:"type"` // "ack" | "error"
	RequestID string        `json:"request_id,omitempty"`
	Kind      drafterr.Kind `json:"kind,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func Ack(requestID string) ServerMessage {
	return ServerMessage{Type: "ack", RequestID: requestID}
}

func Error(requestID string, err error) ServerMessage {
	return ServerMessage{Type: "error", RequestID: requestID, Kind: drafterr.KindOf(err), Error: err.Error()}
}
