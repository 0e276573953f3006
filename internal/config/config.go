// Package config resolves straw-boss's environment-driven defaults,
// following the same env-tag-on-struct idiom the teacher declares for
// its own WorkerConfig (internal/worker.WorkerConfig in porkg), decoded
// here with github.com/caarlos0/env instead of a hand-rolled reader.
package config

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// DefaultSocketPath is used when STRAWBOSS_SOCKET_PATH is unset.
const DefaultSocketPath = "/tmp/straw-boss-server.sock"

// defaultPIDFile is used when STRAWBOSS_PID_FILE is unset.
func defaultPIDFile() string {
	return filepath.Join(os.TempDir(), "straw-boss.pid")
}

// Config holds the environment-resolved paths straw-boss needs at
// startup.
type Config struct {
	SocketPath string `env:"STRAWBOSS_SOCKET_PATH" envDefault:"/tmp/straw-boss-server.sock"`
	PIDFile    string `env:"STRAWBOSS_PID_FILE"`
}

// Load resolves Config from the environment, applying straw-boss's
// documented defaults for any variable left unset.
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.PIDFile == "" {
		cfg.PIDFile = defaultPIDFile()
	}
	return cfg, nil
}
