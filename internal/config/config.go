package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server Server
	Model  Model
	Output Output
	Logger Logger
	Probe  Probe
}

type Server struct {
	Host string
	Port int
}

type Model struct {
	Path           string
	Device         string
	PoolSize       int
	InputSize      int
	ScoreThreshold float64
	IoUThreshold   float64
	OnnxLibPath    string
}

type Output struct {
	Dir string
}

type Logger struct {
	Level  string
	Format string
}

type Probe struct {
	URL         string
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 13111)
	v.SetDefault("MODEL_PATH", "models/best_hf.ckpt")
	v.SetDefault("MODEL_DEVICE", "auto")
	v.SetDefault("MODEL_POOL_SIZE", 2)
	v.SetDefault("MODEL_INPUT_SIZE", 640)
	v.SetDefault("MODEL_SCORE_THRESHOLD", 0.3)
	v.SetDefault("MODEL_IOU_THRESHOLD", 0.45)
	v.SetDefault("ONNX_LIB_PATH", "")
	v.SetDefault("OUTPUT_DIR", "assets/output")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")
	v.SetDefault("PROBE_URL", "http://127.0.0.1:13111/health")
	v.SetDefault("PROBE_INTERVAL", "30s")
	v.SetDefault("PROBE_TIMEOUT", "30s")
	v.SetDefault("PROBE_START_PERIOD", "5s")
	v.SetDefault("PROBE_RETRIES", 3)

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Server: Server{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Model: Model{
			Path:           v.GetString("MODEL_PATH"),
			Device:         v.GetString("MODEL_DEVICE"),
			PoolSize:       v.GetInt("MODEL_POOL_SIZE"),
			InputSize:      v.GetInt("MODEL_INPUT_SIZE"),
			ScoreThreshold: v.GetFloat64("MODEL_SCORE_THRESHOLD"),
			IoUThreshold:   v.GetFloat64("MODEL_IOU_THRESHOLD"),
			OnnxLibPath:    v.GetString("ONNX_LIB_PATH"),
		},
		Output: Output{
			Dir: v.GetString("OUTPUT_DIR"),
		},
		Logger: Logger{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Probe: Probe{
			URL:         v.GetString("PROBE_URL"),
			Interval:    parseDuration(v.GetString("PROBE_INTERVAL"), 30*time.Second),
			Timeout:     parseDuration(v.GetString("PROBE_TIMEOUT"), 30*time.Second),
			StartPeriod: parseDuration(v.GetString("PROBE_START_PERIOD"), 5*time.Second),
			Retries:     v.GetInt("PROBE_RETRIES"),
		},
	}

	return cfg, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
