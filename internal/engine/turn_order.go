package engine

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
)

// Template is the ordered list of turns. The completed marker is implicit at
// index len(Template).
type Template []TurnStep

const CompletedLabel = "completed"

func b(team Team) TurnStep { return TurnStep{Team: team, Action: ActionBan} }

func p(team Team, role Role) TurnStep { return TurnStep{Team: team, Action: ActionPick, Role: role} }

// DefaultTemplate is the reference order: two ban rounds of four interleaved
// with pick rounds, alternating first priority.
func DefaultTemplate() Template {
	return Template{
		// Ban Phase 1
		b(TeamBlue), b(TeamRed), b(TeamRed), b(TeamBlue),
		// Pick Phase 1
		p(TeamBlue, ""), p(TeamRed, ""), p(TeamRed, ""), p(TeamBlue, ""),
		// Ban Phase 2
		b(TeamBlue), b(TeamRed), b(TeamRed), b(TeamBlue),
		// Pick Phase 2
		p(TeamRed, ""), p(TeamBlue, ""), p(TeamBlue, ""), p(TeamRed, ""), p(TeamRed, ""), p(TeamBlue, ""),
	}
}

// TournamentTemplate is the 3-3 / 2-2 ban order with a fixed role per pick.
func TournamentTemplate() Template {
	return Template{
		// Ban Phase 1
		b(TeamBlue), b(TeamRed), b(TeamBlue), b(TeamRed), b(TeamBlue), b(TeamRed),
		// Pick Phase 1
		p(TeamBlue, RoleTop), p(TeamRed, RoleTop), p(TeamRed, RoleJungle),
		p(TeamBlue, RoleJungle), p(TeamBlue, RoleMid), p(TeamRed, RoleMid),
		// Ban Phase 2
		b(TeamRed), b(TeamBlue), b(TeamRed), b(TeamBlue),
		// Pick Phase 2
		p(TeamRed, RoleADC), p(TeamBlue, RoleADC), p(TeamBlue, RoleSupport), p(TeamRed, RoleSupport),
	}
}

// Validate rejects empty templates and unknown teams, actions or roles.
func (t Template) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: turn order is empty", drafterr.ErrInvalidInput)
	}
	for i, step := range t {
		if !step.Team.Valid() {
			return fmt.Errorf("%w: step %d: unknown team %q", drafterr.ErrInvalidInput, i, step.Team)
		}
		if !step.Action.Valid() {
			return fmt.Errorf("%w: step %d: unknown action %q", drafterr.ErrInvalidInput, i, step.Action)
		}
		if step.Role != "" && !step.Role.Valid() {
			return fmt.Errorf("%w: step %d: unknown role %q", drafterr.ErrInvalidInput, i, step.Role)
		}
		if step.Action == ActionBan && step.Role != "" {
			return fmt.Errorf("%w: step %d: bans do not take a role", drafterr.ErrInvalidInput, i)
		}
	}
	return nil
}

// Label names the turn at index i, e.g. "red_pick_3", or "completed" once past the end.
func (t Template) Label(i int) string {
	if i < 0 || i >= len(t) {
		return CompletedLabel
	}
	step := t[i]
	n := 0
	for _, s := range t[:i+1] {
		if s.Team == step.Team && s.Action == step.Action {
			n++
		}
	}
	return fmt.Sprintf("%s_%s_%d", step.Team, step.Action, n)
}

// Labels lists every turn label followed by the completed marker.
func (t Template) Labels() []string {
	out := make([]string, 0, len(t)+1)
	for i := range t {
		out = append(out, t.Label(i))
	}
	return append(out, CompletedLabel)
}

func ParseTeam(s string) (Team, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blue":
		return TeamBlue, true
	case "red":
		return TeamRed, true
	default:
		return "", false
	}
}

func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ban":
		return ActionBan, true
	case "pick":
		return ActionPick, true
	default:
		return "", false
	}
}

// ParseRole accepts canonical role names and the common short forms.
func ParseRole(s string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TOP":
		return RoleTop, true
	case "JUNGLE", "JUG", "JGL", "JG":
		return RoleJungle, true
	case "MID", "MIDDLE":
		return RoleMid, true
	case "ADC", "BOT", "BOTTOM":
		return RoleADC, true
	case "SUPPORT", "SUP", "SUPP":
		return RoleSupport, true
	default:
		return "", false
	}
}
