package match

// DefaultTemplateID is the template a fresh install starts on.
const DefaultTemplateID = "default"

// Side marks a player as coming from the winners or losers bracket.
type Side string

const (
	SideWinners Side = "winners"
	SideLosers  Side = "losers"
	SideNone    Side = ""
)

// Flag is a player's country flag, either a country code or a path to an
// uploaded image. The two are mutually exclusive.
type Flag struct {
	Country    string `json:"country,omitempty"`
	CustomPath string `json:"custom_path,omitempty"`
}

type Player struct {
	Name      string `json:"name"`
	Tag       string `json:"tag"`
	GamerID   string `json:"gamer_id"`
	Score     int    `json:"score"`
	Side      Side   `json:"side,omitempty"`
	Character string `json:"character,omitempty"`
	Flag      Flag   `json:"flag"`
}

type Team struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// TeamPair exists only while a team-mode template is in use; it is
// materialized by the first team mutation.
type TeamPair [2]Team

type Caster struct {
	Name    string `json:"name"`
	Twitch  string `json:"twitch"`
	Twitter string `json:"twitter"`
}

// EventInfo holds the top-bar text fields. Preset menus are a controller
// concern; the server stores whatever text arrives.
type EventInfo struct {
	Stage     string `json:"stage"`
	MatchType string `json:"match_type"`
	TopText   string `json:"top_text"`
}

// State is the full match state pushed to overlays. The zero value is not
// usable; start from DefaultState.
type State struct {
	Players        [2]Player `json:"players"`
	Teams          *TeamPair `json:"teams,omitempty"`
	Casters        []Caster  `json:"casters,omitempty"`
	Event          EventInfo `json:"event"`
	ActiveTemplate string    `json:"active_template"`
}

func DefaultState() State {
	return State{ActiveTemplate: DefaultTemplateID}
}

// Clone returns a deep copy. Player, Team and EventInfo are plain value
// types; only Teams and Casters share memory.
func (s State) Clone() State {
	out := s
	if s.Teams != nil {
		teams := *s.Teams
		out.Teams = &teams
	}
	if s.Casters != nil {
		out.Casters = make([]Caster, len(s.Casters))
		copy(out.Casters, s.Casters)
	}
	return out
}

func validSide(side int) bool { return side == 0 || side == 1 }

func validSideFlag(f Side) bool {
	switch f {
	case SideWinners, SideLosers, SideNone:
		return true
	default:
		return false
	}
}
