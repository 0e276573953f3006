// Package service holds the Service value type and the Procfile parser
// that turns raw Procfile bytes into an ordered list of services.
package service

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Service is an immutable (name, command) pair describing one task that
// straw-boss supervises. The zero value is never valid: both fields must
// be non-empty once constructed via New or ParseProcfile.
type Service struct {
	Name    string `yaml:"-"`
	Command string `yaml:"command"`
}

// New builds a Service from a name and a command line.
func New(name, command string) Service {
	return Service{Name: name, Command: command}
}

// ParseProcfile reads a Procfile and returns the services it declares, in
// source order. Blank lines and lines whose first non-whitespace
// character is '#' are skipped. Every other line must contain a ':'
// separating a non-empty name from its command; the command is
// whitespace-trimmed. Duplicate names are preserved -- callers that want
// last-wins semantics should run the result through Index.
func ParseProcfile(input []byte) ([]Service, error) {
	scanner := bufio.NewScanner(bytes.NewReader(input))
	var services []Service

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		name, command, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("invalid Procfile line %d: %q: missing ':'", lineNo, line)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid Procfile line %d: %q: empty name", lineNo, line)
		}
		command = strings.TrimSpace(command)
		if command == "" {
			return nil, fmt.Errorf("invalid Procfile line %d: %q: empty command", lineNo, line)
		}

		services = append(services, New(name, command))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read Procfile: %w", err)
	}

	return services, nil
}

// Index maps services by name. If more than one service shares a name,
// the later one in the input wins.
func Index(services []Service) map[string]Service {
	index := make(map[string]Service, len(services))
	for _, svc := range services {
		index[svc.Name] = svc
	}
	return index
}

// SerializeProcfile writes services back out in Procfile syntax, one
// per line, in the order given. It is the inverse of ParseProcfile and
// exists mainly so P1 (round-trip) is directly testable.
func SerializeProcfile(services []Service) []byte {
	var buf bytes.Buffer
	for _, svc := range services {
		fmt.Fprintf(&buf, "%s: %s\n", svc.Name, svc.Command)
	}
	return buf.Bytes()
}
