package match

type CommandType string

const (
	CmdSetPlayerField CommandType = "SetPlayerField"
	CmdSetPlayerScore CommandType = "SetPlayerScore"
	CmdSetPlayerSide  CommandType = "SetPlayerSide"
	CmdSetCharacter   CommandType = "SetCharacter"
	CmdSetPlayerFlag  CommandType = "SetPlayerFlag"
	CmdSetTeamField   CommandType = "SetTeamField"
	CmdSetTeamScore   CommandType = "SetTeamScore"
	CmdSetCasterField CommandType = "SetCasterField"
	CmdRemoveCaster   CommandType = "RemoveCaster"
	CmdSetEventField  CommandType = "SetEventField"
	CmdSwitchTemplate CommandType = "SwitchTemplate"
	CmdSwapSides      CommandType = "SwapSides"
	CmdResetScores    CommandType = "ResetScores"
)

// Field selectors accepted by the Set*Field commands.
const (
	FieldName      = "name"
	FieldTag       = "tag"
	FieldGamerID   = "gamer_id"
	FieldTwitch    = "twitch"
	FieldTwitter   = "twitter"
	FieldStage     = "stage"
	FieldMatchType = "match_type"
	FieldTopText   = "top_text"
)

// Command is one mutation request. Side doubles as the team slot and caster
// index for the commands that need one.
type Command struct {
	Type        CommandType
	Side        int
	Field       string
	Value       string
	Score       int
	SideFlag    Side
	CharacterID string
	Country     string
	CustomPath  string
	TemplateID  string
}
