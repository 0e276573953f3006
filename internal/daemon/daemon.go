// Package daemon wraps the one external collaborator straw-boss never
// re-implements: the fork/pid-file/detach primitive that puts the
// coordinator into the background. It is a thin adapter over
// github.com/sevlyar/go-daemon, scoped exactly to the contract
// spec.md describes (fork, write a pid file, change working directory,
// return control to the caller on success).
package daemon

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sevlyar/go-daemon"
)

// Daemonize detaches the current process into the background and
// writes pidFile. It returns (true, nil) in the parent process, which
// should exit immediately; it returns (false, nil) in the child, which
// should proceed to run the coordinator. Any error aborts both.
func Daemonize(pidFile string) (isParent bool, err error) {
	ctx := &daemon.Context{
		PidFileName: pidFile,
		PidFilePerm: 0o644,
		WorkDir:     "/",
		Umask:       0o027,
	}

	child, err := ctx.Reborn()
	if err != nil {
		return false, fmt.Errorf("unable to daemonize: %w", err)
	}

	if child != nil {
		log.Info().Int("pid", child.Pid).Str("pidFile", pidFile).Msg("daemon started")
		return true, nil
	}

	// The child inherits responsibility for the pid file; the
	// coordinator removes it as part of its own teardown, so the
	// daemon context is deliberately never Release()d here.
	return false, nil
}
