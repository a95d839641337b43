package srv

import (
	"context"
	"errors"
	"fmt"
	"github.com/jypelle/epdframe/apimodel"
	"github.com/jypelle/epdframe/internal/srv/device"
	"github.com/jypelle/epdframe/internal/srv/remote"
	"github.com/jypelle/epdframe/internal/srv/render"
	"github.com/sirupsen/logrus"
	"image"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

type DisplayState int32

const (
	DISPLAY_INITIALIZING DisplayState = iota
	DISPLAY_RUNNING
	DISPLAY_SHUTTING_DOWN
	DISPLAY_STOPPED
	DISPLAY_ERRORED
)

func (s DisplayState) String() string {
	switch s {
	case DISPLAY_INITIALIZING:
		return "initializing"
	case DISPLAY_RUNNING:
		return "running"
	case DISPLAY_SHUTTING_DOWN:
		return "shutting down"
	case DISPLAY_STOPPED:
		return "stopped"
	case DISPLAY_ERRORED:
		return "errored"
	default:
		return "unknown"
	}
}

const DefaultCycleInterval = time.Second

type ImageSource interface {
	Fetch(ctx context.Context, app int, screen int) image.Image
}

type DisplayNavigation interface {
	render.Navigation
	Position(ctx context.Context) (apimodel.Position, error)
	NextApp(ctx context.Context) error
}

// DisplayFrame is the last image pushed to the panel.
type DisplayFrame struct {
	Image     image.Image
	FetchedAt time.Time
}

// DisplayWorker owns the panel: it is opened once, refreshed only when the
// fetched image changes, and always closed when Run returns.
type DisplayWorker struct {
	openPanel     func() (device.Panel, error)
	navigation    DisplayNavigation
	fetcher       ImageSource
	decision      *render.Decision
	rotation      int
	splashLines   []string
	cycleInterval time.Duration
	now           func() time.Time
	log           *logrus.Entry

	state DisplayState

	frameLock   sync.RWMutex
	frame       DisplayFrame
	renderCount int
}

func NewDisplayWorker(openPanel func() (device.Panel, error), navigation DisplayNavigation, fetcher ImageSource, decision *render.Decision, rotation int) *DisplayWorker {
	return &DisplayWorker{
		openPanel:     openPanel,
		navigation:    navigation,
		fetcher:       fetcher,
		decision:      decision,
		rotation:      rotation,
		cycleInterval: DefaultCycleInterval,
		now:           time.Now,
		log:           logrus.WithField("source", "display"),
	}
}

// SetSplash draws lines once the panel is open. The splash is not kept as
// the last frame.
func (w *DisplayWorker) SetSplash(lines []string) {
	w.splashLines = lines
}

func (w *DisplayWorker) Name() string {
	return "display"
}

func (w *DisplayWorker) State() DisplayState {
	return DisplayState(atomic.LoadInt32((*int32)(&w.state)))
}

func (w *DisplayWorker) setState(state DisplayState) {
	atomic.StoreInt32((*int32)(&w.state), int32(state))
	w.log.Debugf("display worker %s", state)
}

func (w *DisplayWorker) LastFrame() DisplayFrame {
	w.frameLock.RLock()
	defer w.frameLock.RUnlock()
	return w.frame
}

func (w *DisplayWorker) RenderCount() int {
	w.frameLock.RLock()
	defer w.frameLock.RUnlock()
	return w.renderCount
}

func (w *DisplayWorker) Run(ctx context.Context) (err error) {
	w.setState(DISPLAY_INITIALIZING)
	panel, err := w.openPanel()
	if err != nil {
		w.setState(DISPLAY_ERRORED)
		return fmt.Errorf("open panel: %w: %w", device.ErrHardwareFault, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			w.log.Errorf("recovered from panic : [%v] - stack trace : \n [%s]", rec, debug.Stack())
			err = fmt.Errorf("%w: display: %v", ErrWorkerCrash, rec)
		}
		w.log.Infof("Power down panel")
		if closeErr := panel.Close(); closeErr != nil {
			w.log.Errorf("Unable to close panel: %v", closeErr)
		}
		if err != nil {
			w.setState(DISPLAY_ERRORED)
		} else {
			w.setState(DISPLAY_STOPPED)
		}
	}()

	if len(w.splashLines) > 0 {
		if err = w.render(panel, Splash(w.logicalBounds(panel), w.splashLines)); err != nil {
			return err
		}
	}

	w.setState(DISPLAY_RUNNING)
	ticker := time.NewTicker(w.cycleInterval)
	defer ticker.Stop()
	for {
		if err = w.runCycle(ctx, panel); err != nil {
			if ctx.Err() != nil && errors.Is(err, remote.ErrMetadataUnavailable) {
				// Interrupted by the shutdown
				w.setState(DISPLAY_SHUTTING_DOWN)
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			w.setState(DISPLAY_SHUTTING_DOWN)
			return nil
		case <-ticker.C:
		}
	}
}

func (w *DisplayWorker) runCycle(ctx context.Context, panel device.Panel) error {
	now := w.now()
	if w.decision.ShouldUpdate(w.navigation, now) {
		if err := w.update(ctx, panel, now); err != nil {
			return err
		}
	}
	if ctx.Err() == nil && w.decision.ShouldAutoAdvance(w.navigation, w.now()) {
		w.log.Infof("Switch to next app")
		if err := w.navigation.NextApp(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *DisplayWorker) update(ctx context.Context, panel device.Panel, now time.Time) error {
	position, err := w.navigation.Position(ctx)
	if err != nil {
		return err
	}
	img := w.fetcher.Fetch(ctx, position.App, position.Screen)
	w.decision.RecordFetchAttempt(now)
	if img == nil {
		return nil
	}

	if !render.ImagesDiffer(w.LastFrame().Image, img) {
		w.log.Debugf("screen %d of app %d unchanged", position.Screen, position.App)
		return nil
	}

	if err := w.render(panel, img); err != nil {
		return err
	}
	w.frameLock.Lock()
	w.frame = DisplayFrame{Image: img, FetchedAt: now}
	w.renderCount++
	w.frameLock.Unlock()
	return nil
}

// render runs one refresh. The panel is put back to sleep even when the
// init or display step fails.
func (w *DisplayWorker) render(panel device.Panel, img image.Image) error {
	canvas := render.Compose(img, panel.Bounds(), w.rotation)

	startTime := w.now()
	if err := panel.Init(); err != nil {
		err = fmt.Errorf("init panel: %w: %w", device.ErrHardwareFault, err)
		if sleepErr := panel.Sleep(); sleepErr != nil {
			err = errors.Join(err, fmt.Errorf("sleep panel: %w", sleepErr))
		}
		return err
	}
	displayErr := panel.Display(canvas)
	sleepErr := panel.Sleep()
	if displayErr != nil {
		return fmt.Errorf("display: %w: %w", device.ErrHardwareFault, displayErr)
	}
	if sleepErr != nil {
		return fmt.Errorf("sleep panel: %w: %w", device.ErrHardwareFault, sleepErr)
	}
	w.log.Infof("Panel refreshed in %v", w.now().Sub(startTime))
	return nil
}

// logicalBounds is the panel size in the viewer orientation.
func (w *DisplayWorker) logicalBounds(panel device.Panel) image.Rectangle {
	bounds := panel.Bounds()
	if w.rotation == 90 || w.rotation == 270 {
		return image.Rect(0, 0, bounds.Dy(), bounds.Dx())
	}
	return image.Rect(0, 0, bounds.Dx(), bounds.Dy())
}
