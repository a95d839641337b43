package config

import (
	"fmt"
	"github.com/jypelle/epdframe/apimodel"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"os"
	"sync"
	"time"
)

const defaultSaveDelay = 10 * time.Second

// ServerState holds what must survive a restart. Writes are coalesced: the
// file is saved once no change happened for saveDelay.
type ServerState struct {
	serverStateConfig     ServerStateConfig
	lock                  sync.RWMutex
	backupTimer           *time.Timer
	saveDelay             time.Duration
	completeStateFilename string
}

type ServerStateConfig struct {
	Navigation apimodel.Navigation `yaml:"navigation"`
}

func NewServerState(completeStateFilename string) (*ServerState, error) {
	serverState := &ServerState{
		completeStateFilename: completeStateFilename,
		saveDelay:             defaultSaveDelay,
	}

	rawConfig, err := os.ReadFile(completeStateFilename)
	if err == nil {
		// Interpret state file
		err = yaml.Unmarshal(rawConfig, &serverState.serverStateConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to interpret state file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to read state file: %w", err)
	}

	return serverState, nil
}

func (ss *ServerState) Navigation() apimodel.Navigation {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	navigation := ss.serverStateConfig.Navigation
	navigation.ScreenOfApp = copyScreens(navigation.ScreenOfApp)
	return navigation
}

// SaveNavigation records the navigation position and schedules a save.
func (ss *ServerState) SaveNavigation(navigation apimodel.Navigation) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	ss.serverStateConfig.Navigation = apimodel.Navigation{
		CurrentApp:  navigation.CurrentApp,
		ScreenOfApp: copyScreens(navigation.ScreenOfApp),
	}
	ss.scheduleSave()
}

func (ss *ServerState) scheduleSave() {
	if ss.backupTimer == nil {
		ss.backupTimer = time.AfterFunc(ss.saveDelay, func() {
			ss.lock.Lock()
			defer ss.lock.Unlock()
			ss.save()
		})
	} else {
		ss.backupTimer.Reset(ss.saveDelay)
	}
}

func (ss *ServerState) save() {
	logrus.Infof("Save state file: %s", ss.completeStateFilename)
	rawConfig, err := yaml.Marshal(&ss.serverStateConfig)
	if err != nil {
		logrus.Errorf("Unable to serialize state file: %v", err)
		return
	}
	err = os.WriteFile(ss.completeStateFilename, rawConfig, 0660)
	if err != nil {
		logrus.Errorf("Unable to save state file: %v", err)
	}
}

// FlushSave writes a pending change immediately.
func (ss *ServerState) FlushSave() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.backupTimer != nil {
		if ss.backupTimer.Stop() {
			ss.save()
		}
	}
}

func copyScreens(screens map[int]int) map[int]int {
	copied := make(map[int]int, len(screens))
	for app, screen := range screens {
		copied[app] = screen
	}
	return copied
}
