package server

import "time"

// HTTPServerConfig configures the JSON API listener.
type HTTPServerConfig struct {
	Address        string `mapstructure:"address"         yaml:"address"`
	RequestTimeout string `mapstructure:"request_timeout" yaml:"request_timeout"`
	// MaxUploadSize limits request bodies, in bytes.
	MaxUploadSize int64 `mapstructure:"max_upload_size" yaml:"max_upload_size"`
	PageSize      int   `mapstructure:"page_size"       yaml:"page_size"`
}

// RequestDuration returns the parsed request timeout, or 60 seconds when unparsable.
func (cfg HTTPServerConfig) RequestDuration() time.Duration {
	timeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil || timeout <= 0 {
		return 60 * time.Second
	}
	return timeout
}
