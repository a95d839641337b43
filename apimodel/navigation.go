package apimodel

import "time"

// Position addresses one screen of one app.
type Position struct {
	App    int `json:"app" yaml:"app"`
	Screen int `json:"screen" yaml:"screen"`
}

// Navigation is a consistent copy of the navigation state. Only the
// position part is persisted in the state file.
type Navigation struct {
	CurrentApp    int         `json:"current_app" yaml:"current_app"`
	ScreenOfApp   map[int]int `json:"screen_of_app" yaml:"screen_of_app"`
	ForceRedraw   bool        `json:"force_redraw" yaml:"-"`
	LastAppSwitch time.Time   `json:"last_app_switch" yaml:"-"`
}

func (n Navigation) Position() Position {
	return Position{App: n.CurrentApp, Screen: n.ScreenOfApp[n.CurrentApp]}
}
