package match

import "slices"

// Delta carries only the sections of State that changed between two
// versions. A nil pointer means "unchanged"; Casters points at the full new
// slice so a removal is distinguishable from no change.
type Delta struct {
	Player1        *Player    `json:"player1,omitempty"`
	Player2        *Player    `json:"player2,omitempty"`
	Teams          *TeamPair  `json:"teams,omitempty"`
	Casters        *[]Caster  `json:"casters,omitempty"`
	Event          *EventInfo `json:"event,omitempty"`
	ActiveTemplate *string    `json:"active_template,omitempty"`
}

// DeltaSections is the number of independently diffed sections of State.
const DeltaSections = 6

// Diff compares two states section by section and reports how many of the
// DeltaSections changed. The hub falls back to a full snapshot when the
// delta would not be meaningfully smaller.
func Diff(old, cur State) (Delta, int) {
	var d Delta
	changed := 0

	if old.Players[0] != cur.Players[0] {
		p := cur.Players[0]
		d.Player1 = &p
		changed++
	}
	if old.Players[1] != cur.Players[1] {
		p := cur.Players[1]
		d.Player2 = &p
		changed++
	}
	if !teamsEqual(old.Teams, cur.Teams) {
		if cur.Teams != nil {
			teams := *cur.Teams
			d.Teams = &teams
		} else {
			d.Teams = &TeamPair{}
		}
		changed++
	}
	if !slices.Equal(old.Casters, cur.Casters) {
		casters := make([]Caster, len(cur.Casters))
		copy(casters, cur.Casters)
		d.Casters = &casters
		changed++
	}
	if old.Event != cur.Event {
		ev := cur.Event
		d.Event = &ev
		changed++
	}
	if old.ActiveTemplate != cur.ActiveTemplate {
		id := cur.ActiveTemplate
		d.ActiveTemplate = &id
		changed++
	}

	return d, changed
}

func teamsEqual(a, b *TeamPair) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
