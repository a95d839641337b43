package device

import (
	"context"
	"fmt"
	"github.com/holoplot/go-evdev"
	"github.com/jypelle/epdframe/internal/srv/config"
	"github.com/jypelle/epdframe/internal/srv/event"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

const evdevKeyPressed = 1

// EvdevButtons maps two keys of a Linux input device to the left and right
// buttons.
type EvdevButtons struct {
	devicePath   string
	keys         map[evdev.EvCode]event.ButtonId
	debouncers   map[event.ButtonId]*debouncer
	eventChannel chan event.ButtonEvent
	errChannel   chan error
	now          func() time.Time
	log          *logrus.Entry

	device *evdev.InputDevice
	wg     sync.WaitGroup
}

func NewEvdevButtons(param config.ButtonsParam) *EvdevButtons {
	leftKey := evdev.EvCode(param.LeftKey)
	if leftKey == 0 {
		leftKey = evdev.KEY_LEFT
	}
	rightKey := evdev.EvCode(param.RightKey)
	if rightKey == 0 {
		rightKey = evdev.KEY_RIGHT
	}
	return &EvdevButtons{
		devicePath: param.EvdevDevice,
		keys: map[evdev.EvCode]event.ButtonId{
			leftKey:  event.LEFT_BUTTON,
			rightKey: event.RIGHT_BUTTON,
		},
		debouncers: map[event.ButtonId]*debouncer{
			event.LEFT_BUTTON:  newDebouncer(param.Debounce),
			event.RIGHT_BUTTON: newDebouncer(param.Debounce),
		},
		eventChannel: make(chan event.ButtonEvent),
		errChannel:   make(chan error, 1),
		now:          time.Now,
		log:          logrus.WithField("source", "buttons"),
	}
}

func (d *EvdevButtons) Start(ctx context.Context) error {
	d.log.Infof("Start evdev buttons on %s", d.devicePath)
	device, err := evdev.Open(d.devicePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.devicePath, err)
	}
	d.device = device

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		<-ctx.Done()
		// Unblocks ReadOne
		d.device.Close()
	}()
	go func() {
		defer d.wg.Done()
		d.readLoop(ctx, d.device.ReadOne)
	}()
	return nil
}

// readLoop forwards presses until ctx is done. A read failure while ctx is
// still live is reported on Err.
func (d *EvdevButtons) readLoop(ctx context.Context, readOne func() (*evdev.InputEvent, error)) {
	for {
		e, err := readOne()
		if err != nil {
			if ctx.Err() == nil {
				d.log.Errorf("Unable to read %s: %v", d.devicePath, err)
				d.errChannel <- fmt.Errorf("%w: read %s: %w", ErrInputLost, d.devicePath, err)
			}
			return
		}
		buttonEvent, ok := d.translate(e)
		if !ok {
			continue
		}
		if !send(ctx, d.eventChannel, buttonEvent) {
			return
		}
	}
}

// translate keeps key presses of the two configured keys, debounced.
func (d *EvdevButtons) translate(e *evdev.InputEvent) (event.ButtonEvent, bool) {
	if e.Type != evdev.EV_KEY || e.Value != evdevKeyPressed {
		return event.ButtonEvent{}, false
	}
	buttonId, ok := d.keys[e.Code]
	if !ok {
		return event.ButtonEvent{}, false
	}
	now := d.now()
	if !d.debouncers[buttonId].accept(now) {
		return event.ButtonEvent{}, false
	}
	return event.ButtonEvent{ButtonId: buttonId, PressedAt: now}, true
}

func (d *EvdevButtons) EventChannel() <-chan event.ButtonEvent {
	return d.eventChannel
}

func (d *EvdevButtons) Err() <-chan error {
	return d.errChannel
}

func (d *EvdevButtons) Stop() {
	d.wg.Wait()
	d.log.Infof("Evdev buttons stopped")
}
