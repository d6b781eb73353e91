package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Inference InferenceConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	UploadPerHour     int
	TranscribePerHour int
	DownloadPerMin    int
}

type StorageConfig struct {
	UploadsDir string
	OutputsDir string
}

type UploadConfig struct {
	MaxSizeMB  int
	Extensions []string
}

type InferenceConfig struct {
	ServiceURL string
	Timeout    int // seconds
	// Concurrency caps simultaneous model calls; the models are memory-bound
	// and a single host can rarely afford more than one.
	Concurrency int
}

type PipelineConfig struct {
	DefaultMode         string
	ConfidenceThreshold float64
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("storage.uploads_dir", "UPLOADS_DIR")
	_ = viper.BindEnv("storage.outputs_dir", "OUTPUTS_DIR")
	_ = viper.BindEnv("upload.max_size_mb", "UPLOAD_MAX_SIZE_MB")
	_ = viper.BindEnv("inference.service_url", "INFERENCE_SERVICE_URL")
	_ = viper.BindEnv("inference.timeout", "INFERENCE_SERVICE_TIMEOUT")
	_ = viper.BindEnv("inference.concurrency", "INFERENCE_CONCURRENCY")
	_ = viper.BindEnv("pipeline.default_mode", "PIPELINE_DEFAULT_MODE")
	_ = viper.BindEnv("pipeline.confidence_threshold", "PIPELINE_CONFIDENCE_THRESHOLD")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.transcribe_per_hour", 20)
	viper.SetDefault("ratelimit.download_per_min", 120)

	// Storage defaults
	viper.SetDefault("storage.uploads_dir", "uploads")
	viper.SetDefault("storage.outputs_dir", "outputs")

	// Upload defaults
	viper.SetDefault("upload.max_size_mb", 50)
	viper.SetDefault("upload.extensions", []string{".wav", ".mp3", ".flac", ".ogg", ".m4a"})

	// Inference sidecar defaults
	viper.SetDefault("inference.service_url", "http://localhost:8084")
	viper.SetDefault("inference.timeout", 600)
	viper.SetDefault("inference.concurrency", 1)

	// Pipeline defaults
	viper.SetDefault("pipeline.default_mode", "hybrid")
	viper.SetDefault("pipeline.confidence_threshold", 0.5)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour:     viper.GetInt("ratelimit.upload_per_hour"),
			TranscribePerHour: viper.GetInt("ratelimit.transcribe_per_hour"),
			DownloadPerMin:    viper.GetInt("ratelimit.download_per_min"),
		},
		Storage: StorageConfig{
			UploadsDir: viper.GetString("storage.uploads_dir"),
			OutputsDir: viper.GetString("storage.outputs_dir"),
		},
		Upload: UploadConfig{
			MaxSizeMB:  viper.GetInt("upload.max_size_mb"),
			Extensions: viper.GetStringSlice("upload.extensions"),
		},
		Inference: InferenceConfig{
			ServiceURL:  viper.GetString("inference.service_url"),
			Timeout:     viper.GetInt("inference.timeout"),
			Concurrency: viper.GetInt("inference.concurrency"),
		},
		Pipeline: PipelineConfig{
			DefaultMode:         viper.GetString("pipeline.default_mode"),
			ConfidenceThreshold: viper.GetFloat64("pipeline.confidence_threshold"),
		},
	}

	return cfg, nil
}
