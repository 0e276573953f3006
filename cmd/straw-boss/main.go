// Command straw-boss launches and supervises the tasks declared in a
// Procfile, and lets separate invocations query or stop them through
// its control socket.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/erochest/straw-boss/internal/client"
	"github.com/erochest/straw-boss/internal/config"
	"github.com/erochest/straw-boss/internal/coordinator"
	"github.com/erochest/straw-boss/internal/daemon"
	"github.com/erochest/straw-boss/internal/service"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// procfileEnvVar carries the Procfile's resolved absolute path across
// Daemonize's re-exec, since the reborn child runs with a different
// working directory and cannot re-resolve a relative --procfile flag.
const procfileEnvVar = "STRAWBOSS_PROCFILE"

func main() {
	configureLogging()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "straw-boss: %v\n", err)
		os.Exit(1)
	}

	root := newRootCommand(cfg)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func configureLogging() {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "straw-boss",
		Short: "A local process supervisor driven by a Procfile",
	}

	root.AddCommand(
		newStartCommand(cfg),
		newStatusCommand(cfg),
		newStopCommand(cfg),
		newYamlizeCommand(),
	)

	return root
}

func newStartCommand(cfg config.Config) *cobra.Command {
	var procfilePath string
	var daemonMode bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cfg, procfilePath, daemonMode)
		},
	}

	cmd.Flags().StringVar(&procfilePath, "procfile", "./Procfile", "path to the Procfile")
	cmd.Flags().BoolVar(&daemonMode, "daemon", false, "detach and run in the background")

	return cmd
}

func runStart(cfg config.Config, procfilePath string, daemonMode bool) error {
	if v := os.Getenv(procfileEnvVar); v != "" {
		procfilePath = v
	}

	absProcfile, err := filepath.Abs(procfilePath)
	if err != nil {
		return fmt.Errorf("unable to resolve Procfile path %s: %w", procfilePath, err)
	}
	procfilePath = absProcfile

	raw, err := os.ReadFile(procfilePath)
	if err != nil {
		return fmt.Errorf("unable to read Procfile %s: %w", procfilePath, err)
	}

	services, err := service.ParseProcfile(raw)
	if err != nil {
		return err
	}

	coord := coordinator.AtPath(cfg.SocketPath)

	if daemonMode {
		// The reborn child inherits our environment but runs with
		// WorkDir "/", so export the already-resolved absolute path
		// rather than let it re-resolve the (possibly relative) flag.
		if err := os.Setenv(procfileEnvVar, procfilePath); err != nil {
			return fmt.Errorf("unable to export Procfile path: %w", err)
		}
		isParent, err := daemon.Daemonize(cfg.PIDFile)
		if err != nil {
			return err
		}
		if isParent {
			return nil
		}
		coord.SetPIDFile(cfg.PIDFile)
	}

	if err := coord.StartWorkers(services); err != nil {
		return err
	}

	return coord.StartServer()
}

func newStatusCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List currently supervised tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, cfg)
		},
	}
}

func runStatus(cmd *cobra.Command, cfg config.Config) error {
	c := client.New(cfg.SocketPath)
	if !c.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "Straw-boss not running. Why don't you try `straw-boss start --daemon`")
		return nil
	}

	services, err := c.GetWorkers()
	if err != nil {
		return err
	}

	for _, svc := range services {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", svc.Name, svc.Command)
	}
	return nil
}

func newStopCommand(cfg config.Config) *cobra.Command {
	var tasks []string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop one, some, or all supervised tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(cfg.SocketPath)
			if len(tasks) == 0 {
				return c.Stop(client.StopAll())
			}
			return c.Stop(client.StopList(tasks))
		},
	}

	cmd.Flags().StringArrayVar(&tasks, "task", nil, "name of a task to stop (repeatable); stops everything if omitted")

	return cmd
}

func newYamlizeCommand() *cobra.Command {
	var procfilePath string

	cmd := &cobra.Command{
		Use:   "yamlize",
		Short: "Emit the indexed Procfile services as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(procfilePath)
			if err != nil {
				return fmt.Errorf("unable to read Procfile %s: %w", procfilePath, err)
			}
			services, err := service.ParseProcfile(raw)
			if err != nil {
				return err
			}
			return service.Yamlize(services, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&procfilePath, "procfile", "./Procfile", "path to the Procfile")

	return cmd
}
