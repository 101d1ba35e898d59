package models

// Websocket message types sent by the status server.
const (
	MessageStatus   = "STATUS"
	MessageProgress = "PROGRESS"
)

// MStatusMessage is one frame pushed to status subscribers.
type MStatusMessage struct {
	Type   string          `json:"type"`
	Status *MRunStatus     `json:"status,omitempty"`
	Event  *MProgressEvent `json:"event,omitempty"`
}

// MClientCommand is what a subscriber may send ({"command": "status"}).
type MClientCommand struct {
	Command string `json:"command"`
}
