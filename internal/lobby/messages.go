package lobby

import (
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/position"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

// Msg is anything the lobby loop accepts. Reply channels must be buffered so
// the loop never blocks on a caller that gave up.
type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Outbox   chan Event // where this client wants to receive events
	Reply    chan error
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type SelectPosition struct {
	Occupant string
	Slot     position.Slot
	Reply    chan error
}

func (SelectPosition) isLobbyMsg() {}

type LeavePosition struct {
	Caller string
	Slot   position.Slot
	Reply  chan error
}

func (LeavePosition) isLobbyMsg() {}

type AdvancePhase struct {
	Phase session.Phase
	Reply chan error
}

func (AdvancePhase) isLobbyMsg() {}

type StartDraft struct {
	Caller        string
	RequireFilled bool
	Reply         chan error
}

func (StartDraft) isLobbyMsg() {}

// FromClient carries a draft command. Forced commands are creator-only.
type FromClient struct {
	Caller string
	Cmd    engine.Command
	Reply  chan CommandReply
}

func (FromClient) isLobbyMsg() {}

type CommandReply struct {
	Event engine.Event
	Err   error
}

type GetResult struct {
	Reply chan ResultReply
}

func (GetResult) isLobbyMsg() {}

type AdjustResult struct {
	Patch result.Patch
	Reply chan ResultReply
}

func (AdjustResult) isLobbyMsg() {}

type ConfirmResult struct {
	Reply chan ResultReply
}

func (ConfirmResult) isLobbyMsg() {}

type ResultReply struct {
	Final result.Final
	Err   error
}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type timerFired struct{ gen int }

func (timerFired) isLobbyMsg() {}
