package event

import "time"

// Buttons
type ButtonId int

const (
	LEFT_BUTTON ButtonId = iota
	RIGHT_BUTTON
)

func (b ButtonId) String() string {
	switch b {
	case LEFT_BUTTON:
		return "left"
	case RIGHT_BUTTON:
		return "right"
	default:
		return "unknown"
	}
}

// ButtonEvent is a debounced press.
type ButtonEvent struct {
	ButtonId  ButtonId
	PressedAt time.Time
}

// Api
type ApiEvent struct {
	Result chan error
	Data   interface{}
}

type ApiEventNextAppData struct{}
type ApiEventNextScreenData struct{}
type ApiEventRefreshData struct{}
