package engine

import (
	"fmt"
	"maps"
	"slices"
)

type Phase string

const (
	PhaseDone Phase = "done"
)

func NewState(template Template, rules Rules) State {
	s := State{
		Template: template,
		Picks:    map[Team][]Pick{TeamBlue: {}, TeamRed: {}},
		Bans:     map[Team][]string{TeamBlue: {}, TeamRed: {}},
		Hover:    map[string]string{},
		Rules:    rules,
		Cursor:   0,
	}
	if len(template) > 0 {
		s.Countdown = rules.TimerFor(template[0].Action)
	}
	return s
}

// DerivePhase groups consecutive steps of the same action into rounds and
// names the round holding cursor: ban1, pick1, ban2, ...
func DerivePhase(t Template, cursor int) Phase {
	if cursor < 0 || cursor >= len(t) {
		return PhaseDone
	}
	round := map[Action]int{}
	for i := 0; i <= cursor; i++ {
		if i == 0 || t[i].Action != t[i-1].Action {
			round[t[i].Action]++
		}
	}
	action := t[cursor].Action
	return Phase(fmt.Sprintf("%s%d", action, round[action]))
}

// Done reports whether the cursor has moved past the last turn.
func (s State) Done() bool { return s.Cursor >= len(s.Template) }

// Current returns the active turn, or false when the draft is complete.
func (s State) Current() (TurnStep, bool) {
	step, done := currentStep(s)
	return step, !done
}

// IsAvailable reports whether champion has not been banned or picked yet.
func (s State) IsAvailable(champion string) bool { return !isUsed(s, champion) }

// HoverFor returns the first hovered champion still available, if any.
func (s State) HoverFor(seat string) (string, bool) {
	if c, ok := s.Hover[seat]; ok && !isUsed(s, c) {
		return c, true
	}
	for _, k := range slices.Sorted(maps.Keys(s.Hover)) {
		if c := s.Hover[k]; !isUsed(s, c) {
			return c, true
		}
	}
	return "", false
}
