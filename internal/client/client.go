// Package client is what the straw-boss CLI uses to talk to a running
// coordinator: connect, send one request, optionally decode one reply.
package client

import (
	"fmt"
	"net"
	"os"

	"github.com/erochest/straw-boss/internal/protocol"
	"github.com/erochest/straw-boss/internal/service"
)

// TaskSpec identifies which tasks a Stop request targets.
type TaskSpec struct {
	All   bool
	Names []string
}

// StopAll targets every supervised task.
func StopAll() TaskSpec { return TaskSpec{All: true} }

// StopList targets only the named tasks.
func StopList(names []string) TaskSpec { return TaskSpec{Names: names} }

// Client is a thin wrapper around a coordinator's control socket path.
// Every call opens a fresh connection.
type Client struct {
	SocketPath string
}

// New returns a Client pointed at socketPath.
func New(socketPath string) *Client {
	return &Client{SocketPath: socketPath}
}

// IsRunning is a cheap probe: it checks whether the socket file exists
// without attempting to connect.
func (c *Client) IsRunning() bool {
	_, err := os.Stat(c.SocketPath)
	return err == nil
}

func (c *Client) connect() (net.Conn, error) {
	conn, err := net.Dial("unix", c.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to coordinator on %s: %w", c.SocketPath, err)
	}
	return conn, nil
}

// GetWorkers connects, sends GetWorkers, and decodes the Workers
// reply.
func (c *Client) GetWorkers() ([]service.Service, error) {
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	reqCodec := protocol.NewCodec(conn, protocol.RequestTags)
	if err := reqCodec.WriteMessage(protocol.GetWorkers{}); err != nil {
		return nil, err
	}

	respCodec := protocol.NewCodec(conn, protocol.ResponseTags)
	msg, err := respCodec.ReadMessage()
	if err != nil {
		return nil, err
	}

	resp, ok := msg.(*protocol.Workers)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", msg)
	}

	services := make([]service.Service, 0, len(resp.Workers))
	for _, info := range resp.Workers {
		services = append(services, service.New(info.Name, info.Command))
	}
	return services, nil
}

// Stop sends a shutdown request scoped by spec. It does not wait for a
// reply; the coordinator closes the connection once it has processed
// the request.
func (c *Client) Stop(spec TaskSpec) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	codec := protocol.NewCodec(conn, protocol.RequestTags)
	if spec.All {
		return codec.WriteMessage(protocol.StopServer{})
	}
	return codec.WriteMessage(protocol.StopTasks{Names: spec.Names})
}
