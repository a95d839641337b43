package device

import (
	"errors"
	"fmt"
	"github.com/jypelle/epdframe/internal/srv/config"
	"image"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

var ErrHardwareFault = errors.New("hardware fault")

// Panel is an e-paper display. A refresh is always Init, Display, Sleep:
// the panel must not stay powered between two refreshes.
type Panel interface {
	Bounds() image.Rectangle
	Init() error
	Display(img image.Image) error
	Sleep() error
	// Close powers the panel down and releases the bus and pins.
	Close() error
}

// NewPanel opens the panel selected by param.Driver.
func NewPanel(param config.DisplayParam, simulationFrameFilename string, simulationWindow bool) (Panel, error) {
	switch param.Driver {
	case config.WAVESHARE_7IN5_V2_DRIVER:
		return OpenEpd7in5v2(param)
	case config.INKY_DRIVER:
		return OpenInky(param)
	case config.SIMULATION_DRIVER:
		simulator := NewSimulator(image.Rect(0, 0, Epd7in5v2Width, Epd7in5v2Height), simulationFrameFilename)
		if simulationWindow {
			simulator.OpenWindow()
		}
		return simulator, nil
	default:
		return nil, fmt.Errorf("unknown display driver %q", param.Driver)
	}
}

func pinByName(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("failed to find pin %s", name)
	}
	return pin, nil
}
