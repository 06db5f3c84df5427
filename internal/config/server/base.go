package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	HTTP     HTTPServerConfig     `mapstructure:"http"     yaml:"http"`
	Database DatabaseServerConfig `mapstructure:"database" yaml:"database"`
	Storage  StorageServerConfig  `mapstructure:"storage"  yaml:"storage"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the agent cannot start with.
func (cfg *BaseServerConfig) Validate() error {
	if _, err := time.ParseDuration(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown_timeout: %w", err)
	}
	if cfg.Database.Type != "sqlite" {
		return fmt.Errorf("database.type: unsupported store type '%s'", cfg.Database.Type)
	}
	if cfg.Database.SQLite.Path == "" {
		return fmt.Errorf("database.sqlite.path is required")
	}
	if cfg.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}
	if cfg.HTTP.PageSize <= 0 {
		return fmt.Errorf("http.page_size must be positive, got %d", cfg.HTTP.PageSize)
	}
	return nil
}

// ShutdownDuration returns the parsed shutdown timeout, or 60 seconds when unparsable.
func (cfg *BaseServerConfig) ShutdownDuration() time.Duration {
	timeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return timeout
}
