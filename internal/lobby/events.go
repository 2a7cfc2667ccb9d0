package lobby

import (
	"time"

	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/result"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

type EventType string

const (
	EvtSnapshot        EventType = "snapshot"
	EvtPhaseChanged    EventType = "phase_changed"
	EvtPositionChanged EventType = "position_changed"
	EvtChampionHovered EventType = "champion_hovered"
	EvtDraftAdvanced   EventType = "draft_advanced"
	EvtDraftCompleted  EventType = "draft_completed"
	EvtResultAdjusted  EventType = "result_adjusted"
	EvtResultConfirmed EventType = "result_confirmed"
)

// Event is the envelope delivered to every subscriber of a session.
// Version increases by one per accepted mutation; snapshots carry the
// version they reflect.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Version   int       `json:"version"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type PhasePayload struct {
	Phase session.Phase `json:"phase"`
}

type PositionPayload struct {
	Team     engine.Team          `json:"team"`
	Role     engine.Role          `json:"role"`
	Occupant *session.Participant `json:"occupant"`
	Previous string               `json:"previous,omitempty"`
	Evicted  bool                 `json:"evicted,omitempty"`
}

type DraftPayload struct {
	engine.Event
	Phase    engine.Phase  `json:"phase"`
	Deadline *time.Time    `json:"deadline,omitempty"`
	Result   *result.Final `json:"result,omitempty"`
}

type DraftView struct {
	Turns     []string                      `json:"turns"`
	TurnIndex int                           `json:"turn_index"`
	Turn      string                        `json:"turn"`
	Phase     engine.Phase                  `json:"phase"`
	Current   *engine.TurnStep              `json:"current,omitempty"`
	Bans      map[engine.Team][]string      `json:"bans"`
	Picks     map[engine.Team][]engine.Pick `json:"picks"`
	Hover     map[string]string             `json:"hover"`
	Countdown int                           `json:"countdown"`
	Deadline  *time.Time                    `json:"deadline,omitempty"`
}

// Snapshot is the full state of a session; applying every delta since
// version 0 yields the same shape.
type Snapshot struct {
	Version   int                                                 `json:"version"`
	Session   session.Session                                     `json:"session"`
	Positions map[engine.Team]map[engine.Role]session.Participant `json:"positions"`
	Draft     DraftView                                           `json:"draft"`
	Result    *result.Final                                       `json:"result,omitempty"`
}

// View is the introspection reply for GetState.
type View struct {
	Version    int
	NumClients int
	Snapshot   Snapshot
}
