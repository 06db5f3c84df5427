package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Name:       "promptgallery",
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
		HTTP: HTTPServerConfig{
			Address:        ":8080",
			RequestTimeout: "60s",
			MaxUploadSize:  32 << 20,
			PageSize:       12,
		},
		Database: DatabaseServerConfig{
			Type:     "sqlite",
			LogLevel: "silent",
			SQLite: DatabaseSQLiteConfig{
				Path: "./data/prompts.db",
			},
		},
		Storage: StorageServerConfig{
			UploadDir:         "./data/uploads",
			AllowedExtensions: []string{"png", "jpg", "jpeg", "gif"},
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.name", defaults.Log.Name)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("http.address", defaults.HTTP.Address)
	viper.SetDefault("http.request_timeout", defaults.HTTP.RequestTimeout)
	viper.SetDefault("http.max_upload_size", defaults.HTTP.MaxUploadSize)
	viper.SetDefault("http.page_size", defaults.HTTP.PageSize)

	viper.SetDefault("database.type", defaults.Database.Type)
	viper.SetDefault("database.log_level", defaults.Database.LogLevel)
	viper.SetDefault("database.sqlite.path", defaults.Database.SQLite.Path)

	viper.SetDefault("storage.upload_dir", defaults.Storage.UploadDir)
	viper.SetDefault("storage.allowed_extensions", defaults.Storage.AllowedExtensions)
}
