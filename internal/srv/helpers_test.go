package srv

import (
	"context"
	"fmt"
	"github.com/jypelle/epdframe/apimodel"
	"github.com/jypelle/epdframe/internal/srv/device"
	"github.com/jypelle/epdframe/internal/srv/event"
	"github.com/jypelle/epdframe/internal/srv/navigation"
	"github.com/jypelle/epdframe/internal/srv/remote"
	"github.com/jypelle/epdframe/internal/srv/render"
	"image"
	"image/color"
	"sync"
	"time"
)

type fakeClock struct {
	lock sync.Mutex
	t    time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.t = c.t.Add(d)
}

type fakeTopology struct {
	metaInfo apimodel.MetaInfo
	fail     bool
}

func (f *fakeTopology) MetaInfo(ctx context.Context) (apimodel.MetaInfo, error) {
	if f.fail {
		return apimodel.MetaInfo{}, fmt.Errorf("%w: server unreachable", remote.ErrMetadataUnavailable)
	}
	return f.metaInfo, nil
}

func topologyOf(screenCounts ...int) *fakeTopology {
	topology := &fakeTopology{}
	for _, count := range screenCounts {
		topology.metaInfo.Apps = append(topology.metaInfo.Apps, apimodel.AppInfo{ScreenCount: count})
	}
	return topology
}

// fakePanel records the calls made by the display worker.
type fakePanel struct {
	lock       sync.Mutex
	bounds     image.Rectangle
	calls      []string
	displayed  []image.Image
	initErr    error
	displayErr error
	closed     bool
}

func newFakePanel() *fakePanel {
	return &fakePanel{bounds: image.Rect(0, 0, 8, 4)}
}

func (p *fakePanel) record(call string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakePanel) Bounds() image.Rectangle {
	return p.bounds
}

func (p *fakePanel) Init() error {
	p.record("init")
	return p.initErr
}

func (p *fakePanel) Display(img image.Image) error {
	p.record("display")
	p.lock.Lock()
	p.displayed = append(p.displayed, img)
	p.lock.Unlock()
	return p.displayErr
}

func (p *fakePanel) Sleep() error {
	p.record("sleep")
	return nil
}

func (p *fakePanel) Close() error {
	p.record("close")
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed = true
	return nil
}

func (p *fakePanel) Calls() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePanel) Displayed() []image.Image {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]image.Image(nil), p.displayed...)
}

func (p *fakePanel) IsClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

func openerOf(panel device.Panel) func() (device.Panel, error) {
	return func() (device.Panel, error) {
		return panel, nil
	}
}

// fakeImageSource serves the image set for each position.
type fakeImageSource struct {
	lock    sync.Mutex
	images  map[apimodel.Position]image.Image
	fetches []apimodel.Position
	panics  bool
}

func newFakeImageSource() *fakeImageSource {
	return &fakeImageSource{images: make(map[apimodel.Position]image.Image)}
}

func (f *fakeImageSource) Set(app, screen int, img image.Image) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.images[apimodel.Position{App: app, Screen: screen}] = img
}

func (f *fakeImageSource) Fetch(ctx context.Context, app int, screen int) image.Image {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.panics {
		panic("decoder exploded")
	}
	position := apimodel.Position{App: app, Screen: screen}
	f.fetches = append(f.fetches, position)
	return f.images[position]
}

func (f *fakeImageSource) Fetches() []apimodel.Position {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]apimodel.Position(nil), f.fetches...)
}

func uniform(w, h int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

func withPixel(img *image.Gray, x, y int, level uint8) *image.Gray {
	out := uniform(img.Rect.Dx(), img.Rect.Dy(), 0)
	copy(out.Pix, img.Pix)
	out.SetGray(x, y, color.Gray{Y: level})
	return out
}

// fakeInput is an InputSource fed by the test.
type fakeInput struct {
	eventChannel chan event.ButtonEvent
	errChannel   chan error
	startErr     error

	lock    sync.Mutex
	started bool
	stopped bool
}

func newFakeInput() *fakeInput {
	return &fakeInput{eventChannel: make(chan event.ButtonEvent), errChannel: make(chan error, 1)}
}

// Fail stops the input on its own, like an unplugged device.
func (f *fakeInput) Fail() {
	f.errChannel <- fmt.Errorf("%w: device unplugged", device.ErrInputLost)
}

func (f *fakeInput) Err() <-chan error {
	return f.errChannel
}

func (f *fakeInput) Start(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeInput) EventChannel() <-chan event.ButtonEvent {
	return f.eventChannel
}

func (f *fakeInput) Stop() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.stopped = true
}

func (f *fakeInput) IsStopped() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.stopped
}

func newTestDisplayWorker(panel device.Panel, nav *navigation.State, source ImageSource, clock *fakeClock) *DisplayWorker {
	decision := render.NewDecision(render.DefaultUpdateInterval, render.DefaultAppSwitchInterval)
	w := NewDisplayWorker(openerOf(panel), nav, source, decision, 0)
	w.now = clock.Now
	w.cycleInterval = 5 * time.Millisecond
	return w
}
