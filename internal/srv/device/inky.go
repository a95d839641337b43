package device

import (
	"fmt"
	"github.com/jypelle/epdframe/internal/srv/config"
	"image"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/inky"
	"periph.io/x/host/v3"
	"strings"
)

// Inky drives a Pimoroni Inky pHAT or wHAT. The controller is reset and put
// back to deep sleep by every draw, so Init and Sleep have nothing to do.
type Inky struct {
	port spi.PortCloser
	dev  *inky.Dev
}

func OpenInky(param config.DisplayParam) (*Inky, error) {
	opts, err := inkyOpts(param)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	dc, err := pinByName(param.DcPin)
	if err != nil {
		return nil, err
	}
	reset, err := pinByName(param.RstPin)
	if err != nil {
		return nil, err
	}
	busy, err := pinByName(param.BusyPin)
	if err != nil {
		return nil, err
	}

	port, err := spireg.Open(param.SpiPort)
	if err != nil {
		return nil, fmt.Errorf("inky: %w", err)
	}
	dev, err := inky.New(port, dc, reset, busy, opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("inky: %w", err)
	}
	return &Inky{port: port, dev: dev}, nil
}

func inkyOpts(param config.DisplayParam) (*inky.Opts, error) {
	opts := &inky.Opts{BorderColor: inky.White}
	switch strings.ToLower(param.InkyModel) {
	case "phat":
		opts.Model = inky.PHAT
	case "what", "":
		opts.Model = inky.WHAT
	default:
		return nil, fmt.Errorf("unknown inky model %q", param.InkyModel)
	}
	switch strings.ToLower(param.InkyColor) {
	case "black", "":
		opts.ModelColor = inky.Black
	case "red":
		opts.ModelColor = inky.Red
	case "yellow":
		opts.ModelColor = inky.Yellow
	default:
		return nil, fmt.Errorf("unknown inky color %q", param.InkyColor)
	}
	return opts, nil
}

func (d *Inky) Bounds() image.Rectangle {
	return d.dev.Bounds()
}

func (d *Inky) Init() error {
	return nil
}

func (d *Inky) Display(img image.Image) error {
	return d.dev.Draw(d.dev.Bounds(), img, img.Bounds().Min)
}

func (d *Inky) Sleep() error {
	return nil
}

func (d *Inky) Close() error {
	if err := d.dev.Halt(); err != nil {
		d.port.Close()
		return err
	}
	return d.port.Close()
}
