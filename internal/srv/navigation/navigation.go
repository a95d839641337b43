// Package navigation holds the app/screen position shared by the workers.
//
// All fields are guarded by one mutex so that a reader never sees an app
// index without its clamped screen index. The topology is fetched before the
// lock is taken: no network call happens while holding it.
package navigation

import (
	"context"
	"github.com/jypelle/epdframe/apimodel"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

type Topology interface {
	MetaInfo(ctx context.Context) (apimodel.MetaInfo, error)
}

// Store receives every new position, to persist it.
type Store interface {
	SaveNavigation(navigation apimodel.Navigation)
}

type State struct {
	topology Topology
	store    Store
	now      func() time.Time
	log      *logrus.Entry

	lock          sync.Mutex
	currentApp    int
	screenOfApp   map[int]int
	forceRedraw   bool
	lastAppSwitch time.Time
	reconciled    bool
}

func NewState(topology Topology, now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		topology:      topology,
		now:           now,
		log:           logrus.WithField("source", "navigation"),
		screenOfApp:   make(map[int]int),
		lastAppSwitch: now(),
	}
}

func (s *State) SetStore(store Store) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.store = store
}

// Restore sets a previously saved position. It is checked against the
// topology on the next navigation operation.
func (s *State) Restore(saved apimodel.Navigation) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.currentApp = saved.CurrentApp
	s.screenOfApp = make(map[int]int, len(saved.ScreenOfApp))
	for app, screen := range saved.ScreenOfApp {
		s.screenOfApp[app] = screen
	}
	s.reconciled = false
}

// NextApp moves to the following app, wrapping after the last one, and
// requests a redraw.
func (s *State) NextApp(ctx context.Context) error {
	metaInfo, err := s.topology.MetaInfo(ctx)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.reconcile(metaInfo)

	s.lastAppSwitch = s.now()
	s.currentApp = (s.currentApp + 1) % metaInfo.AppCount()
	s.screenOfApp[s.currentApp] = s.screenOfApp[s.currentApp] % metaInfo.Apps[s.currentApp].ScreenCount
	s.forceRedraw = true
	s.log.Infof("switch to next app: app %d screen %d", s.currentApp, s.screenOfApp[s.currentApp])
	s.save()
	return nil
}

// NextScreen moves to the following screen of the current app, wrapping after
// the last one, and requests a redraw.
func (s *State) NextScreen(ctx context.Context) error {
	metaInfo, err := s.topology.MetaInfo(ctx)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.reconcile(metaInfo)

	s.screenOfApp[s.currentApp] = (s.screenOfApp[s.currentApp] + 1) % metaInfo.Apps[s.currentApp].ScreenCount
	s.forceRedraw = true
	s.log.Infof("switch to next screen: app %d screen %d", s.currentApp, s.screenOfApp[s.currentApp])
	s.save()
	return nil
}

// Position returns the current app and its current screen, both valid for
// the topology.
func (s *State) Position(ctx context.Context) (apimodel.Position, error) {
	metaInfo, err := s.topology.MetaInfo(ctx)
	if err != nil {
		return apimodel.Position{}, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.reconcile(metaInfo)

	return apimodel.Position{App: s.currentApp, Screen: s.screenOfApp[s.currentApp]}, nil
}

func (s *State) ForceRedraw() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.forceRedraw = true
}

// ConsumeForceRedraw reports whether a redraw was requested and clears the
// request.
func (s *State) ConsumeForceRedraw() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	forced := s.forceRedraw
	s.forceRedraw = false
	return forced
}

func (s *State) LastAppSwitch() time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastAppSwitch
}

// Snapshot returns a copy of the whole state.
func (s *State) Snapshot() apimodel.Navigation {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.snapshot()
}

func (s *State) snapshot() apimodel.Navigation {
	screens := make(map[int]int, len(s.screenOfApp))
	for app, screen := range s.screenOfApp {
		screens[app] = screen
	}
	return apimodel.Navigation{
		CurrentApp:    s.currentApp,
		ScreenOfApp:   screens,
		ForceRedraw:   s.forceRedraw,
		LastAppSwitch: s.lastAppSwitch,
	}
}

// reconcile brings a restored position back into the topology. Must be
// called with the lock held.
func (s *State) reconcile(metaInfo apimodel.MetaInfo) {
	if s.reconciled {
		return
	}
	s.reconciled = true

	appCount := metaInfo.AppCount()
	if s.currentApp < 0 || s.currentApp >= appCount {
		s.log.Warnf("restored app %d is out of range (%d apps), back to app 0", s.currentApp, appCount)
		s.currentApp = 0
	}
	for app, screen := range s.screenOfApp {
		if app < 0 || app >= appCount {
			delete(s.screenOfApp, app)
			continue
		}
		if screen < 0 {
			screen = 0
		}
		s.screenOfApp[app] = screen % metaInfo.Apps[app].ScreenCount
	}
}

func (s *State) save() {
	if s.store != nil {
		s.store.SaveNavigation(s.snapshot())
	}
}
