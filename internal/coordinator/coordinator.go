// Package coordinator implements the supervisor: it owns every
// worker, binds the control-plane Unix socket, and serves the request
// protocol until a StopServer request or a fatal error ends the loop.
package coordinator

import (
	"fmt"
	"net"
	"os"

	"github.com/erochest/straw-boss/internal/protocol"
	"github.com/erochest/straw-boss/internal/service"
	"github.com/erochest/straw-boss/internal/worker"
	"github.com/rs/zerolog/log"
)

// Coordinator is the top-level supervising process: it holds every
// worker in Procfile order and serves the control-plane socket.
type Coordinator struct {
	socketPath string
	pidFile    string

	workers  []*worker.Worker
	listener net.Listener
}

// AtPath creates a Coordinator that will bind its control socket at
// socketPath. The worker list starts empty.
func AtPath(socketPath string) *Coordinator {
	return &Coordinator{socketPath: socketPath}
}

// SetPIDFile records pidFile so it is removed on teardown. Called by
// the daemon bootstrap path once it has written the file.
func (c *Coordinator) SetPIDFile(pidFile string) {
	c.pidFile = pidFile
}

// StartWorkers creates and starts one worker per service, in order. If
// any worker fails to start, every worker already started is killed
// before the error is returned.
func (c *Coordinator) StartWorkers(services []service.Service) error {
	workers := make([]*worker.Worker, 0, len(services))
	for _, svc := range services {
		w := worker.New(svc)
		if err := w.Start(); err != nil {
			for _, started := range workers {
				started.Close()
			}
			return fmt.Errorf("error starting worker %s: %w", svc.Name, err)
		}
		workers = append(workers, w)
	}
	c.workers = workers
	return nil
}

// StartServer binds the control socket and serves requests until a
// StopServer request is received or a fatal error occurs. On return
// (clean or not) it removes the socket file and, if set, the pid file.
func (c *Coordinator) StartServer() error {
	listener, err := net.Listen("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("unable to open socket %s: %w", c.socketPath, err)
	}
	c.listener = listener

	defer c.teardown()

	log.Info().Str("socket", c.socketPath).Msg("control socket listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("unable to accept connection: %w", err)
		}

		stop, err := c.handleConnection(conn)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// handleConnection processes exactly one request on conn, then closes
// it. It returns stop=true if the coordinator should end its serve
// loop (a StopServer request was processed).
func (c *Coordinator) handleConnection(conn net.Conn) (stop bool, err error) {
	defer conn.Close()

	codec := protocol.NewCodec(conn, protocol.RequestTags)
	msg, err := codec.ReadMessage()
	if err != nil {
		log.Error().Err(err).Msg("error decoding control request; connection dropped")
		return false, nil
	}

	switch req := msg.(type) {
	case *protocol.GetWorkers:
		response := protocol.Workers{Workers: c.snapshot()}
		respCodec := protocol.NewCodec(conn, protocol.ResponseTags)
		if err := respCodec.WriteMessage(response); err != nil {
			log.Error().Err(err).Msg("error encoding GetWorkers response")
		}
		return false, nil

	case *protocol.StopTasks:
		if err := c.stopTasks(req.Names); err != nil {
			return false, err
		}
		return false, nil

	case *protocol.StopServer:
		log.Info().Msg("received StopServer; shutting down")
		if err := c.killAll(); err != nil {
			return false, err
		}
		return true, nil

	default:
		log.Error().Str("type", fmt.Sprintf("%T", msg)).Msg("unexpected control request type")
		return false, nil
	}
}

// snapshot returns the (name, command) of every worker, including
// stopped ones, in insertion order.
func (c *Coordinator) snapshot() []protocol.WorkerInfo {
	infos := make([]protocol.WorkerInfo, 0, len(c.workers))
	for _, w := range c.workers {
		svc := w.Service()
		infos = append(infos, protocol.WorkerInfo{Name: svc.Name, Command: svc.Command})
	}
	return infos
}

// stopTasks kills every worker whose name is in names, in worker-list
// order. A name that matches no worker is a silent no-op. A failed
// kill is fatal to the serve loop, per the accepted error-handling
// design.
func (c *Coordinator) stopTasks(names []string) error {
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	for _, w := range c.workers {
		if _, ok := wanted[w.Service().Name]; !ok {
			continue
		}
		if err := w.Kill(); err != nil {
			return fmt.Errorf("error killing task %s: %w", w.Service().Name, err)
		}
	}
	return nil
}

// killAll stops every worker, in list order.
func (c *Coordinator) killAll() error {
	for _, w := range c.workers {
		if err := w.Kill(); err != nil {
			return fmt.Errorf("error killing task %s: %w", w.Service().Name, err)
		}
	}
	return nil
}

// teardown removes the socket file and, if set, the pid file. Errors
// are silenced: the coordinator is already shutting down.
func (c *Coordinator) teardown() {
	if c.listener != nil {
		_ = c.listener.Close()
	}
	if _, err := os.Stat(c.socketPath); err == nil {
		_ = os.Remove(c.socketPath)
	}
	if c.pidFile != "" {
		if _, err := os.Stat(c.pidFile); err == nil {
			_ = os.Remove(c.pidFile)
		}
	}
}
