package monitor

import (
	"errors"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBusy is returned when a backfill run is already in flight.
var ErrBusy = errors.New("backfill already running")

// Runner launches backfill runs as detached child processes and
// enforces single-flight: at most one run at a time per monitor.
type Runner struct {
	mu      sync.Mutex
	running bool
	lastRun time.Time

	// Command is the argv of the child process to launch.
	Command []string

	logger *logrus.Entry
}

// NewRunner creates a runner that executes the given command per run.
func NewRunner(command []string, logger *logrus.Logger) *Runner {
	return &Runner{
		Command: command,
		logger:  logger.WithField("component", "runner"),
	}
}

// Start launches a run unless one is already in flight, in which case
// it returns ErrBusy. The child runs detached; its progress is
// observed through the run log, not through this process.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrBusy
	}
	if len(r.Command) == 0 {
		return errors.New("runner has no command configured")
	}

	cmd := exec.Command(r.Command[0], r.Command[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}

	r.running = true
	r.lastRun = time.Now()
	r.logger.WithFields(logrus.Fields{
		"pid":     cmd.Process.Pid,
		"command": r.Command[0],
	}).Info("Backfill run launched")

	go func() {
		err := cmd.Wait()

		r.mu.Lock()
		r.running = false
		r.mu.Unlock()

		if err != nil {
			r.logger.WithError(err).Warn("Backfill run exited with error")
			return
		}
		r.logger.Info("Backfill run finished")
	}()

	return nil
}

// IsRunning reports whether a launched run is still in flight.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastRun returns when the most recent run was launched, zero if none.
func (r *Runner) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}
