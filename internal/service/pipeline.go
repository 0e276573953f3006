package service

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// Pipeline is a chain of one or more exec.Cmd built from a single,
// possibly piped, command line. Stage k's stdout feeds stage k+1's
// stdin; the final stage's stdout/stderr are inherited from the
// supervising process.
type Pipeline struct {
	name   string
	stages []*exec.Cmd
}

// BuildPipeline shell-splits command (honoring quotes and backslash
// escapes), splits the resulting tokens on the literal token "|" into
// sub-commands, and wires up an exec.Cmd chain for them. It does not
// start anything.
func BuildPipeline(name, command string) (*Pipeline, error) {
	// The parser stops at the first unquoted shell operator and records
	// its position, so each "|" is re-inserted as a token here.
	parser := shellwords.NewParser()
	var tokens []string
	for rest := []rune(command); ; {
		toks, err := parser.Parse(string(rest))
		if err != nil {
			return nil, fmt.Errorf("error parsing command for %s: %w", name, err)
		}
		tokens = append(tokens, toks...)
		if parser.Position < 0 || rest[parser.Position] != '|' {
			break
		}
		tokens = append(tokens, "|")
		rest = rest[parser.Position+1:]
	}

	stageTokens := splitPipes(tokens)
	if len(stageTokens) == 0 {
		return nil, fmt.Errorf("invalid command line for service %s: empty after splitting", name)
	}

	stages := make([]*exec.Cmd, 0, len(stageTokens))
	for i, toks := range stageTokens {
		if len(toks) == 0 {
			return nil, fmt.Errorf("invalid command line for service %s: empty stage %d", name, i)
		}
		cmd := exec.Command(toks[0], toks[1:]...)
		stages = append(stages, cmd)
	}

	for i := 0; i < len(stages)-1; i++ {
		out, err := stages[i].StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("error wiring pipeline stage %d for %s: %w", i, name, err)
		}
		stages[i+1].Stdin = out
	}

	last := stages[len(stages)-1]
	last.Stdout = os.Stdout
	last.Stderr = os.Stderr
	for _, cmd := range stages[:len(stages)-1] {
		cmd.Stderr = os.Stderr
	}

	return &Pipeline{name: name, stages: stages}, nil
}

func splitPipes(tokens []string) [][]string {
	var stages [][]string
	var current []string
	for _, tok := range tokens {
		if tok == "|" {
			stages = append(stages, current)
			current = nil
			continue
		}
		current = append(current, tok)
	}
	stages = append(stages, current)
	return stages
}

// Start launches every stage in the pipeline, earliest first.
func (p *Pipeline) Start() error {
	for i, cmd := range p.stages {
		if err := cmd.Start(); err != nil {
			p.killStarted(i)
			return fmt.Errorf("error spawning service %s: %w", p.name, err)
		}
	}
	return nil
}

// killStarted kills every stage that has already been started, in
// reverse order, used to unwind a partially-started pipeline.
func (p *Pipeline) killStarted(upTo int) {
	for i := upTo - 1; i >= 0; i-- {
		if p.stages[i].Process != nil {
			_ = p.stages[i].Process.Kill()
		}
	}
}

// Wait blocks until every stage has exited, returning the first error
// encountered, if any. Use LastState after Wait returns to inspect the
// final stage's exit status.
func (p *Pipeline) Wait() error {
	var firstErr error
	for _, cmd := range p.stages {
		if err := cmd.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LastState returns the final stage's exit state. It is nil until that
// stage has been waited on.
func (p *Pipeline) LastState() *os.ProcessState {
	return p.stages[len(p.stages)-1].ProcessState
}

// Kill sends SIGKILL to every stage of the pipeline that is still
// running. It does not wait for them to exit.
func (p *Pipeline) Kill() error {
	var firstErr error
	for _, cmd := range p.stages {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LastPID returns the OS process id of the final stage, which is the
// stage whose stdout/stderr are observable by the rest of the system.
func (p *Pipeline) LastPID() int {
	last := p.stages[len(p.stages)-1]
	if last.Process == nil {
		return 0
	}
	return last.Process.Pid
}

