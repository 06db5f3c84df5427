package server

// StorageServerConfig configures where uploaded images are kept.
type StorageServerConfig struct {
	UploadDir         string   `mapstructure:"upload_dir"         yaml:"upload_dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`
}
