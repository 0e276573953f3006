package service

import (
	"reflect"
	"testing"
)

func TestParseProcfile(t *testing.T) {
	t.Run("reads one service per line", func(t *testing.T) {
		input := []byte("web: start web-server\nworker: start worker\nqueue: queue-mgr\n")
		services, err := ParseProcfile(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []Service{
			New("web", "start web-server"),
			New("worker", "start worker"),
			New("queue", "queue-mgr"),
		}
		if !reflect.DeepEqual(services, want) {
			t.Errorf("got %+v, want %+v", services, want)
		}
	})

	t.Run("skips blank lines and comments", func(t *testing.T) {
		input := []byte("\n# a comment\nweb: start web-server\n   \n#another\n")
		services, err := ParseProcfile(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(services) != 1 || services[0].Name != "web" {
			t.Fatalf("got %+v", services)
		}
	})

	t.Run("errors on missing colon", func(t *testing.T) {
		input := []byte("web start web-server\n")
		if _, err := ParseProcfile(input); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("errors on empty name", func(t *testing.T) {
		input := []byte(": start web-server\n")
		if _, err := ParseProcfile(input); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("preserves duplicate names in order", func(t *testing.T) {
		input := []byte("web: one\nweb: two\n")
		services, err := ParseProcfile(input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(services) != 2 {
			t.Fatalf("got %+v", services)
		}
	})
}

func TestIndex(t *testing.T) {
	t.Run("last wins on duplicates", func(t *testing.T) {
		services := []Service{
			New("a", "1"),
			New("b", "2"),
			New("a", "3"),
		}
		index := Index(services)
		if index["a"].Command != "3" {
			t.Errorf("got %q, want %q", index["a"].Command, "3")
		}
		if index["b"].Command != "2" {
			t.Errorf("got %q, want %q", index["b"].Command, "2")
		}
	})
}

func TestProcfileRoundTrip(t *testing.T) {
	services := []Service{
		New("web", "start web-server"),
		New("worker", "start worker"),
		New("queue", "queue-mgr"),
	}
	serialized := SerializeProcfile(services)
	parsed, err := ParseProcfile(serialized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(parsed, services) {
		t.Errorf("got %+v, want %+v", parsed, services)
	}
}
