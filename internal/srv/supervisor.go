package srv

import (
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"runtime/debug"
	"sync"
	"time"
)

var ErrWorkerCrash = errors.New("worker crashed")

const DefaultPollInterval = time.Second

type workerHandle struct {
	worker Worker
	done   chan struct{}
	err    error
}

func (h *workerHandle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Supervisor runs the workers until a shutdown is requested or one of them
// stops on its own. Workers are never restarted.
type Supervisor struct {
	workers      []Worker
	pollInterval time.Duration
	log          *logrus.Entry
}

func NewSupervisor(workers ...Worker) *Supervisor {
	return &Supervisor{
		workers:      workers,
		pollInterval: DefaultPollInterval,
		log:          logrus.WithField("source", "supervisor"),
	}
}

// Run returns the process exit status: 0 when the stop was requested and
// every worker ended without error, 1 otherwise.
func (s *Supervisor) Run(shutdown *ShutdownSignal) int {
	var wg sync.WaitGroup
	handles := make([]*workerHandle, 0, len(s.workers))
	for _, worker := range s.workers {
		handle := &workerHandle{worker: worker, done: make(chan struct{})}
		handles = append(handles, handle)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runWorker(shutdown, handle)
		}()
	}
	s.log.Infof("%d workers started", len(handles))

	workerDied := false
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for loop := true; loop; {
		select {
		case <-ticker.C:
		case <-shutdown.Done():
		}
		if shutdown.IsSet() {
			loop = false
			continue
		}
		for _, handle := range handles {
			if handle.finished() {
				s.log.Errorf("one worker died -> exit (%s)", handle.worker.Name())
				workerDied = true
				shutdown.trigger(handle.worker.Name() + " worker died")
				loop = false
				break
			}
		}
	}

	s.log.Infof("Waiting for workers to stop")
	wg.Wait()

	exitCode := 0
	if workerDied || !shutdown.Requested() {
		exitCode = 1
	}
	for _, handle := range handles {
		if handle.err != nil {
			s.log.Errorf("%s worker failed: %v", handle.worker.Name(), handle.err)
			exitCode = 1
		} else {
			s.log.Infof("%s worker stopped", handle.worker.Name())
		}
	}
	return exitCode
}

func (s *Supervisor) runWorker(shutdown *ShutdownSignal, handle *workerHandle) {
	defer close(handle.done)
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Errorf("recovered from panic in %s worker : [%v] - stack trace : \n [%s]", handle.worker.Name(), rec, debug.Stack())
			handle.err = fmt.Errorf("%w: %s: %v", ErrWorkerCrash, handle.worker.Name(), rec)
		}
	}()
	handle.err = handle.worker.Run(shutdown.Context())
}
