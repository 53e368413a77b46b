package match

import "errors"

var ErrInvalidSide = errors.New("side index out of range")
var ErrInvalidCaster = errors.New("caster index out of range")
var ErrInvalidField = errors.New("unknown field")
var ErrInvalidSideFlag = errors.New("invalid side flag")
var ErrScoreOutOfRange = errors.New("score must be zero or positive")
var ErrInvalidSelection = errors.New("character not in active template")
var ErrUnknownTemplate = errors.New("unknown template")
var ErrFlagConflict = errors.New("country flag and custom image are mutually exclusive")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Catalog answers template questions during validation. The template
// registry implements it.
type Catalog interface {
	HasTemplate(id string) bool
	HasCharacter(templateID, characterID string) bool
}

// Apply validates cmd against s and the catalog and returns the resulting
// state. s is never modified; on error it is returned unchanged. Callers
// serialize Apply through a single writer, so no locking happens here.
func Apply(s State, cmd Command, cat Catalog) (State, error) {
	switch cmd.Type {
	case CmdSetPlayerField:
		if !validSide(cmd.Side) {
			return s, ErrInvalidSide
		}
		next := s.Clone()
		p := &next.Players[cmd.Side]
		switch cmd.Field {
		case FieldName:
			p.Name = cmd.Value
		case FieldTag:
			p.Tag = cmd.Value
		case FieldGamerID:
			p.GamerID = cmd.Value
		default:
			return s, ErrInvalidField
		}
		return next, nil

	case CmdSetPlayerScore:
		if !validSide(cmd.Side) {
			return s, ErrInvalidSide
		}
		if cmd.Score < 0 {
			return s, ErrScoreOutOfRange
		}
		next := s.Clone()
		next.Players[cmd.Side].Score = cmd.Score
		return next, nil

	case CmdSetPlayerSide:
		if !validSide(cmd.Side) {
			return s, ErrInvalidSide
		}
		if !validSideFlag(cmd.SideFlag) {
			return s, ErrInvalidSideFlag
		}
		next := s.Clone()
		next.Players[cmd.Side].Side = cmd.SideFlag
		return next, nil

	case CmdSetCharacter:
		if !validSide(cmd.Side) {
			return s, ErrInvalidSide
		}
		if cmd.CharacterID != "" && !cat.HasCharacter(s.ActiveTemplate, cmd.CharacterID) {
			return s, ErrInvalidSelection
		}
		next := s.Clone()
		next.Players[cmd.Side].Character = cmd.CharacterID
		return next, nil

	case CmdSetPlayerFlag:
		if !validSide(cmd.Side) {
			return s, ErrInvalidSide
		}
		if cmd.Country != "" && cmd.CustomPath != "" {
			return s, ErrFlagConflict
		}
		next := s.Clone()
		next.Players[cmd.Side].Flag = Flag{Country: cmd.Country, CustomPath: cmd.CustomPath}
		return next, nil

	case CmdSetTeamField:
		if !validSide(cmd.Side) {
			return s, ErrInvalidSide
		}
		if cmd.Field != FieldName {
			return s, ErrInvalidField
		}
		next := s.Clone()
		next.ensureTeams()
		next.Teams[cmd.Side].Name = cmd.Value
		return next, nil

	case CmdSetTeamScore:
		if !validSide(cmd.Side) {
			return s, ErrInvalidSide
		}
		if cmd.Score < 0 {
			return s, ErrScoreOutOfRange
		}
		next := s.Clone()
		next.ensureTeams()
		next.Teams[cmd.Side].Score = cmd.Score
		return next, nil

	case CmdSetCasterField:
		if !validSide(cmd.Side) {
			return s, ErrInvalidCaster
		}
		next := s.Clone()
		for len(next.Casters) <= cmd.Side {
			next.Casters = append(next.Casters, Caster{})
		}
		c := &next.Casters[cmd.Side]
		switch cmd.Field {
		case FieldName:
			c.Name = cmd.Value
		case FieldTwitch:
			c.Twitch = cmd.Value
		case FieldTwitter:
			c.Twitter = cmd.Value
		default:
			return s, ErrInvalidField
		}
		return next, nil

	case CmdRemoveCaster:
		if cmd.Side < 0 || cmd.Side >= len(s.Casters) {
			return s, ErrInvalidCaster
		}
		next := s.Clone()
		next.Casters = append(next.Casters[:cmd.Side], next.Casters[cmd.Side+1:]...)
		if len(next.Casters) == 0 {
			next.Casters = nil
		}
		return next, nil

	case CmdSetEventField:
		next := s.Clone()
		switch cmd.Field {
		case FieldStage:
			next.Event.Stage = cmd.Value
		case FieldMatchType:
			next.Event.MatchType = cmd.Value
		case FieldTopText:
			next.Event.TopText = cmd.Value
		default:
			return s, ErrInvalidField
		}
		return next, nil

	case CmdSwitchTemplate:
		if !cat.HasTemplate(cmd.TemplateID) {
			return s, ErrUnknownTemplate
		}
		next := s.Clone()
		next.ActiveTemplate = cmd.TemplateID
		// Selections that don't exist in the new template are cleared;
		// shared characters carry over.
		for i := range next.Players {
			if ch := next.Players[i].Character; ch != "" && !cat.HasCharacter(cmd.TemplateID, ch) {
				next.Players[i].Character = ""
			}
		}
		return next, nil

	case CmdSwapSides:
		next := s.Clone()
		next.Players[0], next.Players[1] = next.Players[1], next.Players[0]
		if next.Teams != nil {
			next.Teams[0], next.Teams[1] = next.Teams[1], next.Teams[0]
		}
		return next, nil

	case CmdResetScores:
		next := s.Clone()
		next.Players[0].Score = 0
		next.Players[1].Score = 0
		if next.Teams != nil {
			next.Teams[0].Score = 0
			next.Teams[1].Score = 0
		}
		return next, nil

	default:
		return s, ErrUnsupportedCommand
	}
}

func (s *State) ensureTeams() {
	if s.Teams == nil {
		s.Teams = &TeamPair{}
	}
}
