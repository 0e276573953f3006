package coordinator

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/erochest/straw-boss/internal/client"
	"github.com/erochest/straw-boss/internal/service"
)

func tempSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "straw-boss.sock")
}

func TestSocketLifecycle(t *testing.T) {
	socketPath := tempSocketPath(t)
	coord := AtPath(socketPath)
	if err := coord.StartWorkers([]service.Service{service.New("sleep", "sleep 5")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- coord.StartServer() }()

	waitForExists(t, socketPath)

	c := client.New(socketPath)
	if err := c.Stop(client.StopAll()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("unexpected error from StartServer: %v", err)
	}

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("expected socket to be removed, stat err = %v", err)
	}
}

func TestGetWorkersOrderPreserved(t *testing.T) {
	socketPath := tempSocketPath(t)
	coord := AtPath(socketPath)
	services := []service.Service{
		service.New("a", "sleep 5"),
		service.New("b", "sleep 5"),
		service.New("c", "sleep 5"),
	}
	if err := coord.StartWorkers(services); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- coord.StartServer() }()
	waitForExists(t, socketPath)

	c := client.New(socketPath)
	got, err := c.GetWorkers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d workers, want 3", len(got))
	}
	for i, svc := range services {
		if got[i].Name != svc.Name {
			t.Errorf("position %d: got %q, want %q", i, got[i].Name, svc.Name)
		}
	}

	if err := c.Stop(client.StopAll()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-done
}

func TestStopTasksKillsOnlyNamed(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	socketPath := tempSocketPath(t)
	coord := AtPath(socketPath)
	services := []service.Service{
		service.New("web1", "python3 -m http.server 3061"),
		service.New("web2", "python3 -m http.server 3062"),
	}
	if err := coord.StartWorkers(services); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- coord.StartServer() }()
	waitForExists(t, socketPath)

	c := client.New(socketPath)
	if err := c.Stop(client.StopList([]string{"web1"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	if coord.workers[0].IsRunning() {
		t.Error("expected web1 to be stopped")
	}
	if !coord.workers[1].IsRunning() {
		t.Error("expected web2 to still be running")
	}

	if err := c.Stop(client.StopAll()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-done
}

func TestStopUnknownNameIsNoop(t *testing.T) {
	socketPath := tempSocketPath(t)
	coord := AtPath(socketPath)
	if err := coord.StartWorkers([]service.Service{service.New("web", "sleep 5")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- coord.StartServer() }()
	waitForExists(t, socketPath)

	c := client.New(socketPath)
	if err := c.Stop(client.StopList([]string{"does-not-exist"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if !coord.workers[0].IsRunning() {
		t.Error("expected unrelated worker to keep running")
	}

	if err := c.Stop(client.StopAll()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-done
}

func TestBindFailsWhenPathAlreadyBound(t *testing.T) {
	socketPath := tempSocketPath(t)
	coord := AtPath(socketPath)
	if err := coord.StartWorkers(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- coord.StartServer() }()
	waitForExists(t, socketPath)
	defer func() {
		c := client.New(socketPath)
		_ = c.Stop(client.StopAll())
		<-done
	}()

	second := AtPath(socketPath)
	if err := second.StartWorkers(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := second.StartServer(); err == nil {
		t.Fatal("expected bind to fail on an already-bound socket path")
	}
}

func waitForExists(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s to exist", path)
}
