// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DatabaseConfig selects the persistence profile. The on-device profile uses
// sqlite; the hosted profile uses postgres. Exactly one is active, chosen by
// Driver.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	SqlitePath string `mapstructure:"sqlite_path"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Database   string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// TranscriptionConfig carries the fixed parameters of the speech-to-text
// call. Temperature stays at zero for deterministic decoding.
type TranscriptionConfig struct {
	ApiKey      string        `mapstructure:"api_key" validate:"required"`
	Model       string        `mapstructure:"model" validate:"required"`
	Language    string        `mapstructure:"language" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"required"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	ProbeURL    string        `mapstructure:"probe_url" validate:"required,url"`
	ProbePeriod time.Duration `mapstructure:"probe_period"`
}

// AudioConfig bounds local audio storage. CacheLimitBytes is the byte budget
// EnforceCacheLimit trims the recording directory down to.
type AudioConfig struct {
	Directory       string `mapstructure:"directory" validate:"required"`
	CacheLimitBytes int64  `mapstructure:"cache_limit_bytes" validate:"required"`
}

// Application config structure
type AppConfig struct {
	Name          string              `mapstructure:"service_name" validate:"required"`
	Version       string              `mapstructure:"version" validate:"required"`
	Host          string              `mapstructure:"host" validate:"required"`
	Port          int                 `mapstructure:"port" validate:"required"`
	LogLevel      string              `mapstructure:"log_level" validate:"required"`
	LogPath       string              `mapstructure:"log_path"`
	Database      DatabaseConfig      `mapstructure:"database" validate:"required"`
	RedisConfig   RedisConfig         `mapstructure:"redis" validate:"required"`
	Transcription TranscriptionConfig `mapstructure:"transcription" validate:"required"`
	Audio         AudioConfig         `mapstructure:"audio" validate:"required"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	v.SetDefault("SERVICE_NAME", "talktobook")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "")

	v.SetDefault("DATABASE__DRIVER", "sqlite")
	v.SetDefault("DATABASE__SQLITE_PATH", "talktobook.db")
	v.SetDefault("DATABASE__HOST", "localhost")
	v.SetDefault("DATABASE__PORT", 5432)

	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__DATABASE", 0)

	v.SetDefault("TRANSCRIPTION__MODEL", "whisper-1")
	v.SetDefault("TRANSCRIPTION__LANGUAGE", "en")
	v.SetDefault("TRANSCRIPTION__TIMEOUT", "120s")
	v.SetDefault("TRANSCRIPTION__CACHE_TTL", "720h")
	v.SetDefault("TRANSCRIPTION__PROBE_URL", "https://api.openai.com/v1/models")
	v.SetDefault("TRANSCRIPTION__PROBE_PERIOD", "30s")

	v.SetDefault("AUDIO__DIRECTORY", "recordings")
	v.SetDefault("AUDIO__CACHE_LIMIT_BYTES", 1<<30)
}

// GetAppConfig unmarshals and validates the application configuration.
func GetAppConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
