package herotask

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/herotask/task-engine/herotask/database"
	"github.com/pelletier/go-toml/v2"
)

// LoadConfig reads the TOML config file, then lets environment variables
// override secrets and connection details for deployments where the file is
// checked in without them.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log   LogConfig            `toml:"log"`
	DB    database.DBConfig    `toml:"db"`
	Mongo database.MongoConfig `toml:"mongo"`
	Sweep SweepConfig          `toml:"sweep"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	AddSource bool       `toml:"add_source"`
}

type SweepConfig struct {
	// Schedule is a cron spec; the default runs hourly on the hour.
	Schedule string `toml:"schedule" env:"SWEEP_SCHEDULE"`
}

func (c *Config) applyDefaults() {
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "0 * * * *"
	}
	if c.DB.PoolSize == 0 {
		c.DB.PoolSize = 10
	}
}
