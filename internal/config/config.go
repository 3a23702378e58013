package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server  Server  `mapstructure:"server"`
	Redis   Redis   `mapstructure:"redis"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Storage Storage `mapstructure:"storage"`
	Tools   Tools   `mapstructure:"tools"`
	Worker  Worker  `mapstructure:"worker"`
	Retry   Retry   `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort string `mapstructure:"http_port"` // HTTP port to listen on
}

// Redis holds connection parameters for the key-value store backing the
// configuration provider and the statistics sink.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID     string   `mapstructure:"group_id"`     // Consumer group ID
	SubmitTopic string   `mapstructure:"submit_topic"` // batch submissions
	ReadyTopic  string   `mapstructure:"ready_topic"`  // finished-archive announcements
	Brokers     []string `mapstructure:"brokers"`      // List of Kafka broker addresses
}

// Storage holds configuration for the optional archive object storage.
type Storage struct {
	Enable     bool   `mapstructure:"enable"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Tools names the external binaries the pipeline invokes.
type Tools struct {
	Magick   string `mapstructure:"magick"`
	Exiftool string `mapstructure:"exiftool"`
}

// Worker holds batch worker settings.
type Worker struct {
	WorkDir string `mapstructure:"work_dir"` // extraction and result directories live here
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv() {
	bindings := map[string]string{
		"redis.addr":         "REDIS_ADDR",
		"redis.password":     "REDIS_PASSWORD",
		"storage.access_key": "STORAGE_ACCESS_KEY",
		"storage.secret_key": "STORAGE_SECRET_KEY",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to read config")
	}

	mustBindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		zlog.Logger.Panic().Err(err).Msgf("failed to unmarshal config: %v", err)
	}

	return &cfg
}
