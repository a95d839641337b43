package device

import (
	"context"
	"fmt"
	"github.com/jypelle/epdframe/internal/srv/config"
	"github.com/jypelle/epdframe/internal/srv/event"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"sync"
	"time"
)

// Button is an active low input with a pull up resistor.
type Button struct {
	buttonId  event.ButtonId
	pin       gpio.PinIn
	debouncer *debouncer
}

func NewButton(buttonId event.ButtonId, pin gpio.PinIn, debounce time.Duration) *Button {
	return &Button{buttonId: buttonId, pin: pin, debouncer: newDebouncer(debounce)}
}

// Buttons watches the falling edges of the left and right pins.
type Buttons struct {
	eventChannel chan event.ButtonEvent
	buttons      []*Button
	edgeTimeout  time.Duration
	now          func() time.Time
	log          *logrus.Entry

	wg sync.WaitGroup
}

func NewButtons(param config.ButtonsParam) (*Buttons, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	left, err := pinByName(param.LeftPin)
	if err != nil {
		return nil, fmt.Errorf("left button: %w", err)
	}
	right, err := pinByName(param.RightPin)
	if err != nil {
		return nil, fmt.Errorf("right button: %w", err)
	}
	return NewButtonsFromPins(left, right, param.Debounce), nil
}

func NewButtonsFromPins(left gpio.PinIn, right gpio.PinIn, debounce time.Duration) *Buttons {
	return &Buttons{
		eventChannel: make(chan event.ButtonEvent),
		buttons: []*Button{
			NewButton(event.LEFT_BUTTON, left, debounce),
			NewButton(event.RIGHT_BUTTON, right, debounce),
		},
		edgeTimeout: time.Second,
		now:         time.Now,
		log:         logrus.WithField("source", "buttons"),
	}
}

func (d *Buttons) Start(ctx context.Context) error {
	d.log.Infof("Start gpio buttons")
	for _, btn := range d.buttons {
		if err := btn.pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return fmt.Errorf("setup %s button: %w", btn.buttonId, err)
		}
	}
	for _, btn := range d.buttons {
		d.wg.Add(1)
		go d.watch(ctx, btn)
	}
	return nil
}

// watch wakes up at least once per edge timeout to observe ctx.
func (d *Buttons) watch(ctx context.Context, btn *Button) {
	defer d.wg.Done()
	for ctx.Err() == nil {
		if !btn.pin.WaitForEdge(d.edgeTimeout) {
			continue
		}
		if btn.pin.Read() != gpio.Low {
			continue
		}
		now := d.now()
		if !btn.debouncer.accept(now) {
			d.log.Debugf("%s button bounce ignored", btn.buttonId)
			continue
		}
		if !send(ctx, d.eventChannel, event.ButtonEvent{ButtonId: btn.buttonId, PressedAt: now}) {
			return
		}
	}
}

func (d *Buttons) EventChannel() <-chan event.ButtonEvent {
	return d.eventChannel
}

func (d *Buttons) Err() <-chan error {
	return nil
}

// Stop waits for the watchers, which end once the Start context is done.
func (d *Buttons) Stop() {
	d.wg.Wait()
	d.log.Infof("Gpio buttons stopped")
}
