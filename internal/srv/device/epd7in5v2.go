package device

import (
	"errors"
	"fmt"
	"github.com/disintegration/imaging"
	"github.com/jypelle/epdframe/internal/srv/config"
	"github.com/sirupsen/logrus"
	"image"
	"io"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"time"
)

const (
	Epd7in5v2Width  = 800
	Epd7in5v2Height = 480
)

var ErrBusyTimeout = errors.New("panel busy timeout")

// Epd7in5v2 drives a Waveshare 7.5" e-Paper HAT (V2), 800x480 black and white.
type Epd7in5v2 struct {
	port io.Closer
	conn spi.Conn
	pins Epd7in5v2Pins

	maxTx       int
	busyTimeout time.Duration
	sleep       func(time.Duration)
	log         *logrus.Entry
}

type Epd7in5v2Pins struct {
	Rst  gpio.PinOut
	Dc   gpio.PinOut
	Busy gpio.PinIn
	// Cs and Pwr are optional: Cs is left to the SPI controller when nil,
	// Pwr only exists on recent HAT revisions.
	Cs  gpio.PinOut
	Pwr gpio.PinOut
}

func OpenEpd7in5v2(param config.DisplayParam) (*Epd7in5v2, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}

	pins := Epd7in5v2Pins{}
	var err error
	if pins.Rst, err = pinByName(param.RstPin); err != nil {
		return nil, err
	}
	if pins.Dc, err = pinByName(param.DcPin); err != nil {
		return nil, err
	}
	var busy gpio.PinIO
	if busy, err = pinByName(param.BusyPin); err != nil {
		return nil, err
	}
	pins.Busy = busy
	if param.CsPin != "" {
		if pins.Cs, err = pinByName(param.CsPin); err != nil {
			return nil, err
		}
	}
	if param.PwrPin != "" {
		if pins.Pwr, err = pinByName(param.PwrPin); err != nil {
			return nil, err
		}
	}

	// Use spireg SPI port registry, an empty name selects the first available bus.
	port, err := spireg.Open(param.SpiPort)
	if err != nil {
		return nil, fmt.Errorf("epd7in5v2: %w", err)
	}
	c, err := port.Connect(physic.Frequency(param.SpiSpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("epd7in5v2: %w", err)
	}

	d, err := NewEpd7in5v2(port, c, pins)
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

// NewEpd7in5v2 wraps an already connected bus. port is closed by Close.
func NewEpd7in5v2(port io.Closer, c spi.Conn, pins Epd7in5v2Pins) (*Epd7in5v2, error) {
	d := &Epd7in5v2{
		port:        port,
		conn:        c,
		pins:        pins,
		maxTx:       4096,
		busyTimeout: 30 * time.Second,
		sleep:       time.Sleep,
		log:         logrus.WithField("source", "epd7in5v2"),
	}
	if lim, ok := c.(conn.Limits); ok && lim.MaxTxSize() > 0 {
		d.maxTx = lim.MaxTxSize()
	}

	for _, p := range []gpio.PinOut{pins.Rst, pins.Dc, pins.Cs} {
		if p == nil {
			continue
		}
		if err := p.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("epd7in5v2: %w", err)
		}
	}
	if pins.Pwr != nil {
		if err := pins.Pwr.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("epd7in5v2: %w", err)
		}
	}
	if err := pins.Busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("epd7in5v2: %w", err)
	}
	return d, nil
}

func (d *Epd7in5v2) Bounds() image.Rectangle {
	return image.Rect(0, 0, Epd7in5v2Width, Epd7in5v2Height)
}

// Init powers the panel on and loads its settings.
func (d *Epd7in5v2) Init() error {
	if d.pins.Pwr != nil {
		if err := d.pins.Pwr.Out(gpio.High); err != nil {
			return err
		}
	}
	if err := d.reset(); err != nil {
		return err
	}

	s := d.sequence()
	s.command(0x06 /*BTST: booster soft start*/, 0x17, 0x17, 0x28, 0x17)
	s.command(0x01 /*PWR: power setting*/, 0x07, 0x07, 0x28, 0x17)
	s.command(0x04 /*PON: power on*/)
	d.sleep(100 * time.Millisecond)
	s.waitIdle()
	s.command(0x00 /*PSR: panel setting, KW mode*/, 0x1f)
	s.command(0x61 /*TRES: 800x480*/, 0x03, 0x20, 0x01, 0xe0)
	s.command(0x15 /*DUSPI*/, 0x00)
	s.command(0x50 /*CDI: vcom and data interval*/, 0x10, 0x07)
	s.command(0x60 /*TCON*/, 0x22)
	return s.err
}

// Buffer packs img into the panel memory layout: one bit per pixel, rows of
// 100 bytes, most significant bit first, 1 for black. An image with the
// panel size turned by 90 degrees is rotated; any other size yields a blank
// buffer.
func (d *Epd7in5v2) Buffer(img image.Image) []byte {
	buf := make([]byte, Epd7in5v2Width/8*Epd7in5v2Height)

	size := img.Bounds().Size()
	switch size {
	case image.Pt(Epd7in5v2Width, Epd7in5v2Height):
	case image.Pt(Epd7in5v2Height, Epd7in5v2Width):
		img = imaging.Rotate90(img)
	default:
		d.log.Warnf("wrong image dimensions: must be %dx%d, got %dx%d", Epd7in5v2Width, Epd7in5v2Height, size.X, size.Y)
		return buf
	}

	grayImg := imaging.Grayscale(img)
	for y := 0; y < Epd7in5v2Height; y++ {
		for x := 0; x < Epd7in5v2Width; x++ {
			// NRGBA, gray levels are repeated in R, G and B
			i := y*grayImg.Stride + x*4
			level, alpha := grayImg.Pix[i], grayImg.Pix[i+3]
			if alpha >= 0x80 && level < 0x80 {
				buf[y*Epd7in5v2Width/8+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return buf
}

// DisplayBuffer sends a packed buffer and refreshes the panel.
func (d *Epd7in5v2) DisplayBuffer(buf []byte) error {
	if len(buf) != Epd7in5v2Width/8*Epd7in5v2Height {
		return fmt.Errorf("epd7in5v2: buffer is %d bytes, want %d", len(buf), Epd7in5v2Width/8*Epd7in5v2Height)
	}
	old := make([]byte, len(buf))
	for i, b := range buf {
		old[i] = ^b
	}

	s := d.sequence()
	s.command(0x10 /*DTM1: old data*/)
	s.data(old)
	s.command(0x13 /*DTM2: new data*/)
	s.data(buf)
	s.command(0x12 /*DRF: display refresh*/)
	d.sleep(100 * time.Millisecond)
	s.waitIdle()
	return s.err
}

func (d *Epd7in5v2) Display(img image.Image) error {
	return d.DisplayBuffer(d.Buffer(img))
}

// Sleep powers the panel off and enters deep sleep.
func (d *Epd7in5v2) Sleep() error {
	s := d.sequence()
	s.command(0x50 /*CDI*/, 0xf7)
	s.command(0x02 /*POF: power off*/)
	s.waitIdle()
	s.command(0x07 /*DSLP: deep sleep*/, 0xa5)
	if s.err != nil {
		return s.err
	}
	d.sleep(2 * time.Second)
	if d.pins.Pwr != nil {
		return d.pins.Pwr.Out(gpio.Low)
	}
	return nil
}

// Close drives the control pins low and releases the SPI port.
func (d *Epd7in5v2) Close() error {
	var errs []error
	for _, p := range []gpio.PinOut{d.pins.Rst, d.pins.Dc, d.pins.Pwr} {
		if p == nil {
			continue
		}
		if err := p.Out(gpio.Low); err != nil {
			errs = append(errs, err)
		}
	}
	if d.port != nil {
		if err := d.port.Close(); err != nil {
			errs = append(errs, err)
		}
		d.port = nil
	}
	return errors.Join(errs...)
}

func (d *Epd7in5v2) reset() error {
	for _, step := range []struct {
		level gpio.Level
		delay time.Duration
	}{
		{gpio.High, 20 * time.Millisecond},
		{gpio.Low, 2 * time.Millisecond},
		{gpio.High, 20 * time.Millisecond},
	} {
		if err := d.pins.Rst.Out(step.level); err != nil {
			return err
		}
		d.sleep(step.delay)
	}
	return nil
}

// sequence returns a command writer keeping the first error: once a transfer
// failed, the following ones are skipped.
func (d *Epd7in5v2) sequence() *epdSequence {
	return &epdSequence{dev: d}
}

type epdSequence struct {
	dev *Epd7in5v2
	err error
}

func (s *epdSequence) command(cmd byte, data ...byte) {
	if s.err != nil {
		return
	}
	s.err = s.dev.transfer(gpio.Low, []byte{cmd})
	if len(data) > 0 {
		s.data(data)
	}
}

func (s *epdSequence) data(data []byte) {
	if s.err != nil {
		return
	}
	s.err = s.dev.transfer(gpio.High, data)
}

// waitIdle polls the busy line, low while the panel works.
func (s *epdSequence) waitIdle() {
	if s.err != nil {
		return
	}
	d := s.dev
	deadline := time.Now().Add(d.busyTimeout)
	for {
		if s.err = d.transfer(gpio.Low, []byte{0x71 /*FLG: get status*/}); s.err != nil {
			return
		}
		if d.pins.Busy.Read() == gpio.High {
			break
		}
		if time.Now().After(deadline) {
			s.err = ErrBusyTimeout
			return
		}
		d.sleep(10 * time.Millisecond)
	}
	d.sleep(20 * time.Millisecond)
}

func (d *Epd7in5v2) transfer(dc gpio.Level, w []byte) error {
	if err := d.pins.Dc.Out(dc); err != nil {
		return err
	}
	if d.pins.Cs != nil {
		if err := d.pins.Cs.Out(gpio.Low); err != nil {
			return err
		}
		defer d.pins.Cs.Out(gpio.High)
	}
	for len(w) > 0 {
		n := len(w)
		if n > d.maxTx {
			n = d.maxTx
		}
		if err := d.conn.Tx(w[:n], nil); err != nil {
			return err
		}
		w = w[n:]
	}
	return nil
}
