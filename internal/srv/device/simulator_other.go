//go:build !amd64 || !cgo

package device

type simulationWindow struct{}

// OpenWindow is only available on amd64 desktops: the frame is still
// written to the simulation PNG file.
func (s *Simulator) OpenWindow() {
	s.log.Warnf("Simulation window is not supported on this platform")
}

func (s *Simulator) invalidateWindow() {
}

func (s *Simulator) closeWindow() {
}
