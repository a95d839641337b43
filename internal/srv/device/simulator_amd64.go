//go:build amd64 && cgo

package device

import (
	"gioui.org/app"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
)

type simulationWindow struct {
	window *app.Window
}

// OpenWindow shows the simulated panel in a desktop window, at half size.
func (s *Simulator) OpenWindow() {
	width, height := float32(s.bounds.Dx()), float32(s.bounds.Dy())
	s.window = app.NewWindow(
		app.Title("epdframe"),
		app.Size(unit.Px(width/2), unit.Px(height/2)),
		app.MinSize(unit.Px(width/4), unit.Px(height/4)),
	)
	go func() {
		if err := s.gioloop(); err != nil {
			s.log.Errorf("Simulation window: %v", err)
		}
	}()
	go app.Main()
}

func (s *Simulator) invalidateWindow() {
	if s.window != nil {
		s.window.Invalidate()
	}
}

func (s *Simulator) closeWindow() {
	if s.window != nil {
		s.window.Close()
	}
}

func (s *Simulator) gioloop() error {
	var ops op.Ops
	for {
		e := <-s.window.Events()
		switch e := e.(type) {
		case system.DestroyEvent:
			return e.Err
		case system.FrameEvent:
			gtx := layout.NewContext(&ops, e)

			if lastImg := s.LastImage(); lastImg != nil {
				img := widget.Image{Src: paint.NewImageOp(lastImg), Fit: widget.Contain}
				img.Layout(gtx)
			}
			e.Frame(gtx.Ops)
		}
	}
}
