package apimodel

import "fmt"

// MetaInfo is the app/screen topology published by the server as info.json.
type MetaInfo struct {
	Apps []AppInfo `json:"apps"`
}

type AppInfo struct {
	ScreenCount int `json:"nb_screens"`
}

// Validate checks that the topology can be navigated: at least one app, and
// at least one screen per app.
func (m MetaInfo) Validate() error {
	if len(m.Apps) == 0 {
		return fmt.Errorf("no app declared")
	}
	for appIndex, app := range m.Apps {
		if app.ScreenCount < 1 {
			return fmt.Errorf("app %d declares %d screens", appIndex, app.ScreenCount)
		}
	}
	return nil
}

func (m MetaInfo) AppCount() int {
	return len(m.Apps)
}

func (m MetaInfo) ScreenCount(appIndex int) (int, error) {
	if appIndex < 0 || appIndex >= len(m.Apps) {
		return 0, fmt.Errorf("app %d is undefined (%d apps)", appIndex, len(m.Apps))
	}
	return m.Apps[appIndex].ScreenCount, nil
}
