// Package worker runs one supervised child process per task. Each
// Worker owns exactly one *service.Pipeline for its lifetime and talks
// to its goroutine through a request/reply channel pair, isolating all
// os/exec and process-signal calls from the coordinator that drives it.
package worker

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/erochest/straw-boss/internal/service"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyRunning is returned by Start when the worker already has a
// live pipeline.
var ErrAlreadyRunning = errors.New("worker: already running")

// ErrNotRunning is returned by operations that require a live pipeline
// when none exists.
var ErrNotRunning = errors.New("worker: not running")

// Completion records how a worker's child finished. It is recorded
// whether the child exits on its own, is joined, or is killed; Join is
// the call that returns it.
type Completion struct {
	State *os.ProcessState
	Err   error
}

type requestKind int

const (
	reqProcessID requestKind = iota
	reqJoin
	reqKill
)

type request struct {
	kind  requestKind
	reply chan reply
}

type reply struct {
	pid        int
	completion Completion
	err        error
}

// Worker is the in-process supervisor for one task. A Worker made by
// New is Stopped; call Start to bring its child up.
type Worker struct {
	svc service.Service

	inbox chan request
	done  chan struct{}

	running    atomic.Bool
	completion atomic.Pointer[Completion]
}

// New creates a Stopped worker for svc.
func New(svc service.Service) *Worker {
	return &Worker{svc: svc}
}

// Service returns the task this worker supervises. Safe to call in any
// state; reflects the worker's last-known name and command even after
// it has stopped.
func (w *Worker) Service() service.Service {
	return w.svc
}

// IsRunning reports whether the worker currently owns a live child.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// Start builds the worker's pipeline per the service's command line,
// spawns it, and launches the worker's message-handling goroutine. It
// is an error to Start a worker that is already running.
func (w *Worker) Start() error {
	if w.running.Load() {
		return ErrAlreadyRunning
	}

	pipeline, err := service.BuildPipeline(w.svc.Name, w.svc.Command)
	if err != nil {
		return err
	}
	if err := pipeline.Start(); err != nil {
		return err
	}

	w.inbox = make(chan request)
	w.done = make(chan struct{})
	w.running.Store(true)

	log.Info().
		Str("name", w.svc.Name).
		Int("pid", pipeline.LastPID()).
		Msg("started worker")

	go w.run(pipeline)

	return nil
}

// run is the worker's dedicated goroutine: it owns the pipeline
// exclusively, processes inbox requests one at a time in FIFO order,
// and watches for the child exiting on its own. A dedicated watcher
// goroutine reaps the pipeline exactly once and signals exited; this
// is the voluntary-exit path a Join/Kill request never triggers.
func (w *Worker) run(pipeline *service.Pipeline) {
	defer close(w.done)

	name := w.svc.Name

	exited := make(chan struct{})
	go func() {
		err := pipeline.Wait()
		c := Completion{State: pipeline.LastState(), Err: err}
		w.completion.Store(&c)
		log.Info().Str("name", name).Err(err).Msg("worker child exited")
		close(exited)
	}()

	for {
		select {
		case req := <-w.inbox:
			switch req.kind {
			case reqProcessID:
				req.reply <- reply{pid: pipeline.LastPID()}

			case reqJoin:
				<-exited
				w.running.Store(false)
				req.reply <- reply{completion: *w.completion.Load()}
				return

			case reqKill:
				err := pipeline.Kill()
				if err != nil {
					log.Error().Str("name", name).Err(err).Msg("error killing worker child")
				} else {
					log.Info().Str("name", name).Msg("killed worker child")
				}
				<-exited
				w.running.Store(false)
				req.reply <- reply{err: err}
				return
			}

		case <-exited:
			// The child exited on its own; no one is waiting on
			// Join/Kill. Transition straight to Stopped.
			w.running.Store(false)
			return
		}
	}
}

// ProcessID returns the OS pid of the worker's child, or an error if
// the worker is not running.
func (w *Worker) ProcessID() (int, error) {
	r, err := w.send(reqProcessID)
	if err != nil {
		return 0, err
	}
	return r.pid, nil
}

// Join waits for the worker's child to exit naturally and returns its
// completion. After Join returns, the worker is Stopped; calling Join
// again returns ErrNotRunning.
func (w *Worker) Join() (Completion, error) {
	r, err := w.send(reqJoin)
	if err != nil {
		return Completion{}, err
	}
	return r.completion, nil
}

// Kill terminates the worker's child and stops the worker. Safe to call
// on a worker that is already Stopped, in which case it is a no-op.
func (w *Worker) Kill() error {
	if !w.running.Load() {
		return nil
	}
	r, err := w.send(reqKill)
	if err != nil {
		if errors.Is(err, ErrNotRunning) {
			return nil
		}
		return err
	}
	return r.err
}

// Close tears the worker down unconditionally, ignoring errors. It is
// the scoped-teardown callback: a Worker must never be abandoned while
// Running.
func (w *Worker) Close() {
	if err := w.Kill(); err != nil {
		log.Error().Str("name", w.svc.Name).Err(err).Msg("error during worker teardown")
	}
}

func (w *Worker) send(kind requestKind) (reply, error) {
	if !w.running.Load() {
		return reply{}, ErrNotRunning
	}

	r := make(chan reply, 1)
	select {
	case w.inbox <- request{kind: kind, reply: r}:
	case <-w.done:
		return reply{}, ErrNotRunning
	}

	select {
	case resp := <-r:
		return resp, nil
	case <-w.done:
		// The worker may have exited concurrently (e.g. voluntary exit
		// racing with a Kill); treat it as already stopped.
		select {
		case resp := <-r:
			return resp, nil
		default:
			return reply{}, fmt.Errorf("worker %s: %w", w.svc.Name, ErrNotRunning)
		}
	}
}
