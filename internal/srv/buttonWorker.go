package srv

import (
	"context"
	"errors"
	"fmt"
	"github.com/jypelle/epdframe/internal/srv/device"
	"github.com/jypelle/epdframe/internal/srv/event"
	"github.com/jypelle/epdframe/internal/srv/remote"
	"github.com/sirupsen/logrus"
)

type ButtonNavigation interface {
	NextApp(ctx context.Context) error
	NextScreen(ctx context.Context) error
	ForceRedraw()
}

// ButtonWorker applies button presses and control API requests to the
// navigation state.
type ButtonWorker struct {
	input      device.InputSource
	apiEvents  <-chan event.ApiEvent
	navigation ButtonNavigation
	log        *logrus.Entry
}

func NewButtonWorker(input device.InputSource, navigation ButtonNavigation) *ButtonWorker {
	return &ButtonWorker{
		input:      input,
		navigation: navigation,
		log:        logrus.WithField("source", "buttons"),
	}
}

func (w *ButtonWorker) SetApiEvents(apiEvents <-chan event.ApiEvent) {
	w.apiEvents = apiEvents
}

func (w *ButtonWorker) Name() string {
	return "buttons"
}

func (w *ButtonWorker) Run(ctx context.Context) error {
	inputCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		w.input.Stop()
	}()
	if err := w.input.Start(inputCtx); err != nil {
		return fmt.Errorf("start buttons: %w", err)
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.input.EventChannel():
			err = w.onButton(ctx, ev)
		case ev := <-w.apiEvents:
			err = w.onApi(ctx, ev)
		case inputErr := <-w.input.Err():
			return fmt.Errorf("buttons: %w", inputErr)
		}
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, remote.ErrMetadataUnavailable) {
				return nil
			}
			return err
		}
	}
}

func (w *ButtonWorker) onButton(ctx context.Context, ev event.ButtonEvent) error {
	w.log.Infof("%s button pressed", ev.ButtonId)
	switch ev.ButtonId {
	case event.LEFT_BUTTON:
		return w.navigation.NextApp(ctx)
	case event.RIGHT_BUTTON:
		return w.navigation.NextScreen(ctx)
	}
	return nil
}

// onApi answers the request, then stops the worker like a button would on
// a navigation failure.
func (w *ButtonWorker) onApi(ctx context.Context, ev event.ApiEvent) error {
	var err error
	switch ev.Data.(type) {
	case event.ApiEventNextAppData:
		w.log.Infof("Next app requested by api")
		err = w.navigation.NextApp(ctx)
	case event.ApiEventNextScreenData:
		w.log.Infof("Next screen requested by api")
		err = w.navigation.NextScreen(ctx)
	case event.ApiEventRefreshData:
		w.log.Infof("Refresh requested by api")
		w.navigation.ForceRedraw()
	default:
		err = fmt.Errorf("unknown api event %T", ev.Data)
		ev.Result <- err
		return nil
	}
	ev.Result <- err
	return err
}
