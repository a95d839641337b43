package device

import (
	"context"
	"errors"
	"github.com/jypelle/epdframe/internal/srv/event"
	"sync"
	"time"
)

const DefaultDebounce = 100 * time.Millisecond

var ErrInputLost = errors.New("button input lost")

// InputSource emits debounced button presses until its context is done.
// Err delivers at most one error, wrapping ErrInputLost, when the input stops
// on its own. A nil channel means the source cannot fail once started.
type InputSource interface {
	Start(ctx context.Context) error
	EventChannel() <-chan event.ButtonEvent
	Err() <-chan error
	Stop()
}

// debouncer accepts at most one press per window.
type debouncer struct {
	lock         sync.Mutex
	window       time.Duration
	lastAccepted time.Time
	accepted     bool
}

func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &debouncer{window: window}
}

func (d *debouncer) accept(now time.Time) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.accepted && now.Sub(d.lastAccepted) < d.window {
		return false
	}
	d.accepted = true
	d.lastAccepted = now
	return true
}

// NoButtons never emits anything.
type NoButtons struct {
	eventChannel chan event.ButtonEvent
}

func NewNoButtons() *NoButtons {
	return &NoButtons{eventChannel: make(chan event.ButtonEvent)}
}

func (n *NoButtons) Start(ctx context.Context) error {
	return nil
}

func (n *NoButtons) EventChannel() <-chan event.ButtonEvent {
	return n.eventChannel
}

func (n *NoButtons) Err() <-chan error {
	return nil
}

func (n *NoButtons) Stop() {
}

// send delivers a press unless ctx is done first.
func send(ctx context.Context, eventChannel chan<- event.ButtonEvent, buttonEvent event.ButtonEvent) bool {
	select {
	case eventChannel <- buttonEvent:
		return true
	case <-ctx.Done():
		return false
	}
}
