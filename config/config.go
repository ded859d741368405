package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string
	LogLevel string
	LogFile  string // empty means stdout only

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置, RedisHost 为空时使用进程内 LRU 缓存
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	StreamKeyFmt   string        // object key pattern, %s is the track id
	StreamURLTTL   time.Duration // lifetime of presigned stream handles

	// Engine tuning
	PollInterval     time.Duration // scroll poll throttle
	PreloadAhead     int           // how many following markers to preload
	PreloadBytes     int64         // size of the ranged prefetch
	TapMaxDuration   time.Duration // press shorter than this without movement is a tap
	DragThresholdPx  float64
	RestartThreshold time.Duration // previous() restarts the track past this point
	PlayTimeout      time.Duration // deadline for a single play() round trip
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvMillis reads a duration expressed in milliseconds.
func getEnvMillis(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "toonbeat"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "toonbeat"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		StreamKeyFmt:   getEnv("STREAM_KEY_FMT", "audio/%s.mp3"),
		StreamURLTTL:   getEnvDuration("STREAM_URL_TTL", time.Hour),

		PollInterval:     getEnvMillis("POLL_INTERVAL_MS", 50*time.Millisecond),
		PreloadAhead:     getEnvInt("PRELOAD_AHEAD", 2),
		PreloadBytes:     int64(getEnvInt("PRELOAD_BYTES", 256*1024)),
		TapMaxDuration:   getEnvMillis("TAP_MAX_MS", 200*time.Millisecond),
		DragThresholdPx:  getEnvFloat("DRAG_THRESHOLD_PX", 3),
		RestartThreshold: getEnvDuration("RESTART_THRESHOLD", 3*time.Second),
		PlayTimeout:      getEnvDuration("PLAY_TIMEOUT", 15*time.Second),
	}
}

// RedisEnabled reports whether a Redis endpoint was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
