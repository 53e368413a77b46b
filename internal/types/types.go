// Package types defines the JSON frames exchanged over the websocket.
//
// Clients send ClientMessage frames; only connections opened with
// ?role=controller may mutate. The server pushes ServerMessage frames: a
// full "snapshot" on join and after large changes, a "delta" for small
// ones, and an "error" (to the sender only) for rejected commands.
package types

import "github.com/fgcaster/overlay/internal/match"

type ClientMessage struct {
	Type        string `json:"type"`
	Side        int    `json:"side,omitempty"`
	Field       string `json:"field,omitempty"`
	Value       string `json:"value,omitempty"`
	Score       int    `json:"score,omitempty"`
	SideFlag    string `json:"side_flag,omitempty"`
	CharacterID string `json:"character_id,omitempty"`
	Country     string `json:"country,omitempty"`
	CustomPath  string `json:"custom_path,omitempty"`
	TemplateID  string `json:"template_id,omitempty"`
}

type ServerMessage struct {
	Type    string       `json:"type"` // "snapshot" | "delta" | "error"
	Version int          `json:"version,omitempty"`
	State   *match.State `json:"state,omitempty"`
	Delta   *match.Delta `json:"delta,omitempty"`
	Error   string       `json:"error,omitempty"`
}
