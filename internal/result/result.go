// Package result projects a finished draft into final team compositions.
package result

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
	"github.com/DoyleJ11/nabi-draft/internal/session"
)

var ErrDraftInProgress = fmt.Errorf("%w: draft has not completed", drafterr.ErrInvalidPhase)

type Final struct {
	SessionID string `json:"session_id"`
	// MatchID is assigned on first confirmation. Session codes are reused
	// across restarts; match ids never are.
	MatchID      string                                              `json:"match_id,omitempty"`
	Picks        map[engine.Team]map[engine.Role]string              `json:"picks"`
	Bench        map[engine.Team][]string                            `json:"bench,omitempty"`
	Bans         map[engine.Team][]string                            `json:"bans"`
	Lineup       map[engine.Team]map[engine.Role]session.Participant `json:"lineup"`
	Participants []session.Participant                               `json:"participants"`
	Adjusted     bool                                                `json:"adjusted"`
	Confirmed    bool                                                `json:"confirmed"`
	ConfirmedAt  *time.Time                                          `json:"confirmed_at,omitempty"`
}

// Patch overrides parts of a Final. Picks and Lineup entries set a cell; an
// empty value clears it. Bans replace a team's list wholesale.
type Patch struct {
	Picks  map[engine.Team]map[engine.Role]string `json:"picks,omitempty"`
	Bans   map[engine.Team][]string               `json:"bans,omitempty"`
	Lineup map[engine.Team]map[engine.Role]string `json:"lineup,omitempty"`
}

// Build projects a completed draft. Picks drafted without a role take the
// first role still free for their team; picks beyond five go to the bench.
func Build(sessionID string, s engine.State, seats map[engine.Team]map[engine.Role]string, participants []session.Participant) (Final, error) {
	if !s.Done() {
		return Final{}, ErrDraftInProgress
	}

	f := empty(sessionID, participants)
	for _, team := range engine.Teams {
		f.Bans[team] = slices.Clone(s.Bans[team])

		var unassigned []string
		for _, pick := range s.Picks[team] {
			if _, taken := f.Picks[team][pick.Role]; pick.Role != "" && !taken {
				f.Picks[team][pick.Role] = pick.Champion
				continue
			}
			unassigned = append(unassigned, pick.Champion)
		}
		for _, champ := range unassigned {
			if role, ok := freeRole(f.Picks[team]); ok {
				f.Picks[team][role] = champ
			} else {
				f.Bench[team] = append(f.Bench[team], champ)
			}
		}

		for role, id := range seats[team] {
			f.Lineup[team][role] = lookup(participants, id)
		}
	}
	return f, nil
}

// Apply returns a copy of f with p applied. No consistency checks are made.
func (f Final) Apply(p Patch) Final {
	out := f.Clone()
	for team, roles := range p.Picks {
		ensureTeam(&out, team)
		for role, champ := range roles {
			if champ == "" {
				delete(out.Picks[team], role)
				continue
			}
			out.Picks[team][role] = champ
		}
	}
	for team, bans := range p.Bans {
		out.Bans[team] = slices.Clone(bans)
	}
	for team, roles := range p.Lineup {
		ensureTeam(&out, team)
		for role, id := range roles {
			if id == "" {
				delete(out.Lineup[team], role)
				continue
			}
			out.Lineup[team][role] = lookup(out.Participants, id)
		}
	}
	out.Adjusted = true
	return out
}

func (f Final) Clone() Final {
	out := f
	out.Picks = make(map[engine.Team]map[engine.Role]string, len(f.Picks))
	for team, roles := range f.Picks {
		out.Picks[team] = maps.Clone(roles)
	}
	out.Lineup = make(map[engine.Team]map[engine.Role]session.Participant, len(f.Lineup))
	for team, roles := range f.Lineup {
		out.Lineup[team] = maps.Clone(roles)
	}
	out.Bans = make(map[engine.Team][]string, len(f.Bans))
	for team, bans := range f.Bans {
		out.Bans[team] = slices.Clone(bans)
	}
	out.Bench = make(map[engine.Team][]string, len(f.Bench))
	for team, bench := range f.Bench {
		out.Bench[team] = slices.Clone(bench)
	}
	out.Participants = slices.Clone(f.Participants)
	if f.ConfirmedAt != nil {
		at := *f.ConfirmedAt
		out.ConfirmedAt = &at
	}
	return out
}

func empty(sessionID string, participants []session.Participant) Final {
	f := Final{
		SessionID:    sessionID,
		Picks:        map[engine.Team]map[engine.Role]string{},
		Bench:        map[engine.Team][]string{},
		Bans:         map[engine.Team][]string{},
		Lineup:       map[engine.Team]map[engine.Role]session.Participant{},
		Participants: slices.Clone(participants),
	}
	for _, team := range engine.Teams {
		ensureTeam(&f, team)
	}
	return f
}

func ensureTeam(f *Final, team engine.Team) {
	if f.Picks[team] == nil {
		f.Picks[team] = map[engine.Role]string{}
	}
	if f.Lineup[team] == nil {
		f.Lineup[team] = map[engine.Role]session.Participant{}
	}
}

func freeRole(picks map[engine.Role]string) (engine.Role, bool) {
	for _, role := range engine.Roles {
		if _, taken := picks[role]; !taken {
			return role, true
		}
	}
	return "", false
}

func lookup(participants []session.Participant, id string) session.Participant {
	for _, p := range participants {
		if p.ID == id {
			return p
		}
	}
	return session.Participant{ID: id}
}
