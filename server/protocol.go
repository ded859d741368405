package server

import (
	"Toonbeat/core/drag"
	"Toonbeat/core/player"
	"Toonbeat/core/tracker"
	"Toonbeat/model"
)

// 渲染端 -> 服务端
const (
	MsgViewport      = "viewport"
	MsgIntersections = "intersections"
	MsgRegister      = "register"
	MsgUnregister    = "unregister"
	MsgMount         = "mount"
	MsgLoad          = "load"
	MsgSave          = "save"
	MsgPointer       = "pointer"
	MsgZone          = "zone"
	MsgMedia         = "media"
	MsgAck           = "ack"
	MsgAddMarker     = "addMarker"
	MsgDeleteMarker  = "deleteMarker"
	MsgAddNote       = "addNote"
	MsgUpdateNote    = "updateNote"
	MsgDeleteNote    = "deleteNote"
	MsgControl       = "control"
)

// 服务端 -> 渲染端
const (
	MsgCommand  = "command"
	MsgState    = "state"
	MsgScene    = "scene"
	MsgDrag     = "drag"
	MsgOutcome  = "outcome"
	MsgEditNote = "editNote"
	MsgSaved    = "saved"
	MsgError    = "error"
)

// Pointer phases.
const (
	PhasePress   = "press"
	PhaseMove    = "move"
	PhaseRelease = "release"
	PhaseCancel  = "cancel"
)

// Control actions.
const (
	ActionToggle   = "toggle"
	ActionNext     = "next"
	ActionPrevious = "previous"
	ActionStop     = "stop"
	ActionSeek     = "seek"
	ActionVolume   = "volume"
	ActionMute     = "mute"
)

// InboundMessage is any message sent by the renderer. Only the fields of
// its type are set.
type InboundMessage struct {
	Type string `json:"type"`
	// Surface is "desktop" (default) or "mobile" for geometry and pointer
	// messages.
	Surface string `json:"surface,omitempty"`

	Viewport *tracker.Viewport `json:"viewport,omitempty"`
	Entries  []tracker.Entry   `json:"entries,omitempty"`
	MarkerID string            `json:"markerId,omitempty"`
	Height   float64           `json:"height,omitempty"`

	Phase  string       `json:"phase,omitempty"`
	Target *drag.Target `json:"target,omitempty"`
	Point  drag.Point   `json:"point"`
	ZoneID string       `json:"zoneId,omitempty"`
	Rect   *drag.Rect   `json:"rect,omitempty"`

	Event *player.Event `json:"event,omitempty"`
	Seq   uint64        `json:"seq,omitempty"`
	Error string        `json:"error,omitempty"`

	ID        string          `json:"id,omitempty"`
	TrackID   string          `json:"trackId,omitempty"`
	Y         float64         `json:"y,omitempty"`
	Content   string          `json:"content,omitempty"`
	TextColor string          `json:"textColor,omitempty"`
	Position  *model.Position `json:"position,omitempty"`

	Action string  `json:"action,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// OutboundMessage is any message sent to the renderer.
type OutboundMessage struct {
	Type     string          `json:"type"`
	Command  *Command        `json:"command,omitempty"`
	State    *player.State   `json:"state,omitempty"`
	Scene    *SceneView      `json:"scene,omitempty"`
	Target   *drag.Target    `json:"target,omitempty"`
	Position *model.Position `json:"position,omitempty"`
	Outcome  drag.Outcome    `json:"outcome,omitempty"`
	ID       string          `json:"id,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// SceneView is the renderable content of a scene.
type SceneView struct {
	Markers []model.TrackMarker `json:"markers"`
	Notes   []model.MemoNote    `json:"notes"`
	Passed  []string            `json:"passed"`
}

// Command is one media element call forwarded to the renderer. Play
// commands carry a sequence number the renderer acknowledges.
type Command struct {
	Op    string  `json:"op"`
	Seq   uint64  `json:"seq,omitempty"`
	Src   string  `json:"src,omitempty"`
	Value float64 `json:"value"`
	Muted bool    `json:"muted,omitempty"`
}
