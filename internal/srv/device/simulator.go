package device

import (
	"errors"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"image"
	"image/png"
	"os"
	"sync"
)

var ErrPanelAsleep = errors.New("panel is not initialized")

// Simulator is a panel without hardware. It enforces the Init, Display,
// Sleep sequence, keeps the last frame, and optionally writes it as a PNG
// file and shows it in a window.
type Simulator struct {
	lock          sync.RWMutex
	bounds        image.Rectangle
	frameFilename string
	powered       bool
	closed        bool
	lastImg       image.Image
	refreshCount  int
	log           *logrus.Entry

	simulationWindow
}

func NewSimulator(bounds image.Rectangle, frameFilename string) *Simulator {
	return &Simulator{
		bounds:        bounds,
		frameFilename: frameFilename,
		log:           logrus.WithField("source", "simulator"),
	}
}

func (s *Simulator) Bounds() image.Rectangle {
	return s.bounds
}

func (s *Simulator) Init() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return errors.New("simulator: panel closed")
	}
	s.powered = true
	return nil
}

func (s *Simulator) Display(img image.Image) error {
	s.lock.Lock()
	if !s.powered {
		s.lock.Unlock()
		return ErrPanelAsleep
	}
	s.lastImg = imaging.Clone(img)
	s.refreshCount++
	lastImg := s.lastImg
	s.lock.Unlock()

	s.log.Debugf("refresh #%d", s.RefreshCount())
	if s.frameFilename != "" {
		if err := writePng(s.frameFilename, lastImg); err != nil {
			s.log.Warnf("Unable to write simulation frame: %v", err)
		}
	}
	s.invalidateWindow()
	return nil
}

func (s *Simulator) Sleep() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.powered = false
	return nil
}

func (s *Simulator) Close() error {
	s.lock.Lock()
	s.powered = false
	s.closed = true
	s.lock.Unlock()
	s.closeWindow()
	return nil
}

func (s *Simulator) LastImage() image.Image {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.lastImg
}

func (s *Simulator) RefreshCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.refreshCount
}

func (s *Simulator) IsPowered() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.powered
}

func (s *Simulator) IsClosed() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.closed
}

func writePng(filename string, img image.Image) error {
	tmpFilename := filename + ".tmp"
	f, err := os.Create(tmpFilename)
	if err != nil {
		return err
	}
	if err = png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpFilename, filename)
}
