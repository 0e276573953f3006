package service

import (
	"bytes"
	"strings"
	"testing"
)

func TestYamlizeContainsEveryService(t *testing.T) {
	services := []Service{
		New("web", "start web-server"),
		New("worker", "start worker"),
		New("queue", "queue-mgr"),
	}

	var buf bytes.Buffer
	if err := Yamlize(services, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"web:", "start web-server", "worker:", "start worker", "queue:", "queue-mgr"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
