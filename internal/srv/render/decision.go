// Package render decides when the panel must be redrawn and prepares the
// canvas pushed to it.
package render

import (
	"github.com/sirupsen/logrus"
	"time"
)

const (
	DefaultUpdateInterval    = 60 * time.Second
	DefaultAppSwitchInterval = time.Hour
)

type Navigation interface {
	ConsumeForceRedraw() bool
	LastAppSwitch() time.Time
}

// Decision tracks the fetch attempt cadence. It is owned by the display
// worker and is not safe for concurrent use.
type Decision struct {
	updateInterval    time.Duration
	appSwitchInterval time.Duration
	lastFetchAttempt  time.Time
	log               *logrus.Entry
}

func NewDecision(updateInterval time.Duration, appSwitchInterval time.Duration) *Decision {
	if updateInterval <= 0 {
		updateInterval = DefaultUpdateInterval
	}
	if appSwitchInterval <= 0 {
		appSwitchInterval = DefaultAppSwitchInterval
	}
	return &Decision{
		updateInterval:    updateInterval,
		appSwitchInterval: appSwitchInterval,
		log:               logrus.WithField("source", "display"),
	}
}

// ShouldUpdate reports whether an image must be fetched now. A pending
// redraw request is consumed.
func (d *Decision) ShouldUpdate(navigation Navigation, now time.Time) bool {
	if navigation.ConsumeForceRedraw() {
		d.log.Info("should update because of forced update")
		return true
	}
	if d.lastFetchAttempt.IsZero() || now.Sub(d.lastFetchAttempt) > d.updateInterval {
		d.log.Info("should update because last update was long time ago")
		return true
	}
	return false
}

// RecordFetchAttempt must be called after each fetch, successful or not.
func (d *Decision) RecordFetchAttempt(at time.Time) {
	d.lastFetchAttempt = at
}

func (d *Decision) LastFetchAttempt() time.Time {
	return d.lastFetchAttempt
}

func (d *Decision) ShouldAutoAdvance(navigation Navigation, now time.Time) bool {
	return now.Sub(navigation.LastAppSwitch()) > d.appSwitchInterval
}
