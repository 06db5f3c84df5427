package server

// DatabaseServerConfig holds catalog store configuration
type DatabaseServerConfig struct {
	Type     string               `mapstructure:"type"      yaml:"type"`
	LogLevel string               `mapstructure:"log_level" yaml:"log_level"`
	SQLite   DatabaseSQLiteConfig `mapstructure:"sqlite"    yaml:"sqlite"`
}

type DatabaseSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}
