// Package position holds the team × role seating table of a session.
package position

import (
	"fmt"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/engine"
)

var ErrSlotTaken = fmt.Errorf("%w: position already taken", drafterr.ErrDuplicateSelection)

type Slot struct {
	Team engine.Team `json:"team"`
	Role engine.Role `json:"role"`
}

func (s Slot) Valid() bool { return s.Team.Valid() && s.Role.Valid() }

func (s Slot) String() string { return fmt.Sprintf("%s %s", s.Team, s.Role) }

// Change describes one cell transition. Occupant is empty when the cell was cleared.
type Change struct {
	Slot     Slot   `json:"slot"`
	Occupant string `json:"occupant,omitempty"`
	Previous string `json:"previous,omitempty"`
	Evicted  bool   `json:"evicted,omitempty"`
}

// Table maps each slot to an occupant id. The zero value is not usable; call New.
type Table struct {
	cells map[Slot]string
}

func New() *Table {
	return &Table{cells: make(map[Slot]string, len(engine.Teams)*len(engine.Roles))}
}

// Select seats occupant at slot. A different occupant already seated there wins
// and nothing changes. If occupant was seated elsewhere, the old cell is vacated
// first and reported before the assignment.
func (t *Table) Select(occupant string, slot Slot) ([]Change, error) {
	if occupant == "" || !slot.Valid() {
		return nil, fmt.Errorf("%w: occupant %q slot %s", drafterr.ErrInvalidInput, occupant, slot)
	}
	if cur := t.cells[slot]; cur != "" && cur != occupant {
		return nil, fmt.Errorf("%w: %s held by %s", ErrSlotTaken, slot, cur)
	}

	var changes []Change
	if old, ok := t.Find(occupant); ok && old != slot {
		delete(t.cells, old)
		changes = append(changes, Change{Slot: old, Previous: occupant, Evicted: true})
	}

	prev := t.cells[slot]
	t.cells[slot] = occupant
	return append(changes, Change{Slot: slot, Occupant: occupant, Previous: prev}), nil
}

// Leave clears slot whether or not it is occupied.
func (t *Table) Leave(slot Slot) (Change, error) {
	if !slot.Valid() {
		return Change{}, fmt.Errorf("%w: slot %s", drafterr.ErrInvalidInput, slot)
	}
	prev := t.cells[slot]
	delete(t.cells, slot)
	return Change{Slot: slot, Previous: prev}, nil
}

func (t *Table) Find(occupant string) (Slot, bool) {
	for slot, o := range t.cells {
		if o == occupant {
			return slot, true
		}
	}
	return Slot{}, false
}

func (t *Table) Occupant(slot Slot) string { return t.cells[slot] }

func (t *Table) Filled() int { return len(t.cells) }

// AllFilled reports whether every team × role cell has an occupant.
func (t *Table) AllFilled() bool {
	return len(t.cells) == len(engine.Teams)*len(engine.Roles)
}

// Teams returns team → role → occupant for every seated cell.
func (t *Table) Teams() map[engine.Team]map[engine.Role]string {
	out := make(map[engine.Team]map[engine.Role]string, len(engine.Teams))
	for _, team := range engine.Teams {
		out[team] = map[engine.Role]string{}
	}
	for slot, o := range t.cells {
		out[slot.Team][slot.Role] = o
	}
	return out
}
