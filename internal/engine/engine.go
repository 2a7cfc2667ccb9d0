package engine

import (
	"fmt"
	"slices"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
)

var (
	ErrWrongTurn           = fmt.Errorf("%w: not the active turn", drafterr.ErrTurnMismatch)
	ErrChampionUnavailable = fmt.Errorf("%w: champion already banned or picked", drafterr.ErrDuplicateSelection)
	ErrRoleTaken           = fmt.Errorf("%w: role already drafted for team", drafterr.ErrDuplicateSelection)
	ErrDraftCompleted      = fmt.Errorf("%w: draft already completed", drafterr.ErrInvalidPhase)
	ErrMissingChampion     = fmt.Errorf("%w: champion is required", drafterr.ErrInvalidInput)
	ErrUnsupportedCommand  = fmt.Errorf("%w: unsupported command", drafterr.ErrInvalidInput)
)

type Team string

const (
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

var Teams = []Team{TeamBlue, TeamRed}

func (t Team) Valid() bool { return t == TeamBlue || t == TeamRed }

type Action string

const (
	ActionBan  Action = "ban"
	ActionPick Action = "pick"
)

func (a Action) Valid() bool { return a == ActionBan || a == ActionPick }

type Role string

const (
	RoleTop     Role = "TOP"
	RoleJungle  Role = "JUNGLE"
	RoleMid     Role = "MID"
	RoleADC     Role = "ADC"
	RoleSupport Role = "SUPPORT"
)

// Roles is the canonical role order used for display and role fill-in.
var Roles = []Role{RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport}

func (r Role) Valid() bool { return slices.Contains(Roles, r) }

type TurnStep struct {
	Team   Team   `json:"team" yaml:"team"`
	Action Action `json:"action" yaml:"action"`
	Role   Role   `json:"role,omitempty" yaml:"role,omitempty"`
}

type Pick struct {
	Champion string `json:"champion"`
	Role     Role   `json:"role,omitempty"`
}

type Rules struct {
	BanTimerSec  int `json:"ban_timer_sec"`
	PickTimerSec int `json:"pick_timer_sec"`
}

// TimerFor returns the full countdown for a step of the given kind.
func (r Rules) TimerFor(a Action) int {
	if a == ActionBan {
		return r.BanTimerSec
	}
	return r.PickTimerSec
}

type State struct {
	Template  Template          `json:"template"`
	Cursor    int               `json:"cursor"`
	Bans      map[Team][]string `json:"bans"`
	Picks     map[Team][]Pick   `json:"picks"`
	Hover     map[string]string `json:"hover"`
	Countdown int               `json:"countdown"`
	Rules     Rules             `json:"rules"`
}

type CommandType string

const (
	CmdSubmit    CommandType = "Submit"
	CmdHover     CommandType = "Hover"
	CmdForceSkip CommandType = "ForceSkip"
	CmdForcePick CommandType = "ForcePick"
)

/*
	CmdSubmit    -> EvtDraftAdvanced | EvtDraftCompleted
	CmdHover     -> EvtChampionHovered (cursor untouched, cleared on every advance)
	CmdForceSkip -> EvtDraftAdvanced{Skipped} | EvtDraftCompleted{Skipped}
	CmdForcePick -> EvtDraftAdvanced{Forced}  | EvtDraftCompleted{Forced}
*/

type Command struct {
	Type     CommandType
	Team     Team
	Action   Action
	Role     Role
	Seat     string
	Champion string
}

type EventType string

const (
	EvtDraftAdvanced   EventType = "draft_advanced"
	EvtDraftCompleted  EventType = "draft_completed"
	EvtChampionHovered EventType = "champion_hovered"
)

// Event is the delta produced by one accepted command. TurnIndex and Turn
// describe the cursor after the command; Step is the entry that was acted on.
type Event struct {
	Type      EventType `json:"-"`
	TurnIndex int       `json:"turn_index"`
	Turn      string    `json:"turn"`
	Step      TurnStep  `json:"step"`
	Champion  string    `json:"champion,omitempty"`
	Role      Role      `json:"role,omitempty"`
	Seat      string    `json:"seat,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Forced    bool      `json:"forced,omitempty"`
	Countdown int       `json:"countdown"`
}

// Apply validates cmd against s and returns the resulting event and state.
// s is never modified; on error the returned state is s itself.
func Apply(s State, cmd Command) (Event, State, error) {
	step, done := currentStep(s)
	if done {
		return Event{}, s, ErrDraftCompleted
	}

	switch cmd.Type {
	case CmdSubmit:
		// Turn must match BOTH team & action
		if step.Team != cmd.Team || step.Action != cmd.Action {
			return Event{}, s, fmt.Errorf("%w: %s expected, got %s %s", ErrWrongTurn, s.Template.Label(s.Cursor), cmd.Team, cmd.Action)
		}
		// A step with a fixed role only accepts picks for that role.
		if step.Role != "" && cmd.Role != "" && cmd.Role != step.Role {
			return Event{}, s, fmt.Errorf("%w: %s is for %s, got %s", ErrWrongTurn, s.Template.Label(s.Cursor), step.Role, cmd.Role)
		}
		return record(s, step, cmd.Champion, cmd.Role, false)

	case CmdForcePick:
		return record(s, step, cmd.Champion, "", true)

	case CmdForceSkip:
		newState := s.Clone()
		evt := Event{Step: step, Skipped: true, Forced: true}
		return advance(newState, evt)

	case CmdHover:
		if step.Team != cmd.Team {
			return Event{}, s, fmt.Errorf("%w: %s is active", ErrWrongTurn, s.Template.Label(s.Cursor))
		}
		if cmd.Champion == "" {
			return Event{}, s, ErrMissingChampion
		}
		if isUsed(s, cmd.Champion) {
			return Event{}, s, fmt.Errorf("%w: %s", ErrChampionUnavailable, cmd.Champion)
		}
		newState := s.Clone()
		newState.Hover[cmd.Seat] = cmd.Champion
		return Event{
			Type:      EvtChampionHovered,
			TurnIndex: s.Cursor,
			Turn:      s.Template.Label(s.Cursor),
			Step:      step,
			Champion:  cmd.Champion,
			Seat:      cmd.Seat,
			Countdown: s.Countdown,
		}, newState, nil

	default:
		return Event{}, s, ErrUnsupportedCommand
	}
}

// record appends champion to the active team's ban or pick list and advances.
func record(s State, step TurnStep, champion string, role Role, forced bool) (Event, State, error) {
	if champion == "" {
		return Event{}, s, ErrMissingChampion
	}
	// Legality: a champion is consumed by its first ban or pick.
	if isUsed(s, champion) {
		return Event{}, s, fmt.Errorf("%w: %s", ErrChampionUnavailable, champion)
	}

	newState := s.Clone()
	evt := Event{Step: step, Champion: champion, Forced: forced}

	switch step.Action {
	case ActionBan:
		newState.Bans[step.Team] = append(newState.Bans[step.Team], champion)
	case ActionPick:
		if step.Role != "" {
			role = step.Role
		}
		if role != "" && roleTaken(s, step.Team, role) {
			return Event{}, s, fmt.Errorf("%w: %s %s", ErrRoleTaken, step.Team, role)
		}
		newState.Picks[step.Team] = append(newState.Picks[step.Team], Pick{Champion: champion, Role: role})
		evt.Role = role
	}

	return advance(newState, evt)
}

func advance(s State, evt Event) (Event, State, error) {
	s.Cursor++
	clear(s.Hover)

	next, done := currentStep(s)
	if done {
		s.Countdown = 0
		evt.Type = EvtDraftCompleted
	} else {
		s.Countdown = s.Rules.TimerFor(next.Action)
		evt.Type = EvtDraftAdvanced
	}

	evt.TurnIndex = s.Cursor
	evt.Turn = s.Template.Label(s.Cursor)
	evt.Countdown = s.Countdown
	return evt, s, nil
}

func (s State) Clone() State {
	c := s
	c.Bans = make(map[Team][]string, len(Teams))
	c.Picks = make(map[Team][]Pick, len(Teams))
	for _, t := range Teams {
		c.Bans[t] = slices.Clone(s.Bans[t])
		c.Picks[t] = slices.Clone(s.Picks[t])
		if c.Bans[t] == nil {
			c.Bans[t] = []string{}
		}
		if c.Picks[t] == nil {
			c.Picks[t] = []Pick{}
		}
	}
	c.Hover = make(map[string]string, len(s.Hover))
	for k, v := range s.Hover {
		c.Hover[k] = v
	}
	return c
}

func hasPick(s State, id string) bool {
	for _, t := range Teams {
		for _, p := range s.Picks[t] {
			if p.Champion == id {
				return true
			}
		}
	}
	return false
}

func hasBan(s State, id string) bool {
	return slices.Contains(s.Bans[TeamBlue], id) || slices.Contains(s.Bans[TeamRed], id)
}

func isUsed(s State, id string) bool {
	return hasBan(s, id) || hasPick(s, id)
}

func roleTaken(s State, team Team, role Role) bool {
	for _, p := range s.Picks[team] {
		if p.Role == role {
			return true
		}
	}
	return false
}

func currentStep(s State) (TurnStep, bool) {
	if s.Cursor >= len(s.Template) {
		return TurnStep{}, true
	}
	return s.Template[s.Cursor], false
}
