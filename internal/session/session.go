// Package session holds the metadata of one draft session and its lifecycle phase.
package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
)

// Participant is an identity resolved by the calling layer.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhasePositionSelect Phase = "position_select"
	PhaseDrafting       Phase = "drafting"
	PhaseCompleted      Phase = "completed"
)

var order = []Phase{PhaseLobby, PhasePositionSelect, PhaseDrafting, PhaseCompleted}

func (p Phase) rank() int { return slices.Index(order, p) }

func (p Phase) Valid() bool { return p.rank() >= 0 }

type Session struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Creator      Participant   `json:"creator"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
	Phase        Phase         `json:"phase"`
}

// Validate checks the participant list against maxParticipants (0 means no cap).
func Validate(participants []Participant, creator Participant, maxParticipants int) error {
	if len(participants) == 0 {
		return fmt.Errorf("%w: at least one participant is required", drafterr.ErrInvalidInput)
	}
	if maxParticipants > 0 && len(participants) > maxParticipants {
		return fmt.Errorf("%w: %d participants exceeds the cap of %d", drafterr.ErrInvalidInput, len(participants), maxParticipants)
	}
	if creator.ID == "" {
		return fmt.Errorf("%w: creator is required", drafterr.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.ID == "" {
			return fmt.Errorf("%w: participant without id", drafterr.ErrInvalidInput)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: participant %s listed twice", drafterr.ErrInvalidInput, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Advance moves the session to next. Moving backwards is rejected and
// re-entering the current phase is a no-op; the bool reports a change.
func (s *Session) Advance(next Phase) (bool, error) {
	if !next.Valid() {
		return false, fmt.Errorf("%w: unknown phase %q", drafterr.ErrInvalidInput, next)
	}
	if next.rank() < s.Phase.rank() {
		return false, fmt.Errorf("%w: cannot move from %s back to %s", drafterr.ErrInvalidPhase, s.Phase, next)
	}
	if next == s.Phase {
		return false, nil
	}
	s.Phase = next
	return true, nil
}

// Participant looks up a member of the session by id.
func (s *Session) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// IsCreator reports whether id created the session.
func (s *Session) IsCreator(id string) bool { return id != "" && s.Creator.ID == id }

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	s.Participants = slices.Clone(s.Participants)
	return s
}
