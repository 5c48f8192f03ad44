package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	AuthCookieSecure bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Storage   StorageConfig
	Generator GeneratorConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

// StorageConfig configures the object store for uploads and outputs.
type StorageConfig struct {
	Root          string
	Bucket        string
	PublicBaseURL string
	MaxUploadSize int64
}

// GeneratorConfig configures the image-generation backend.
type GeneratorConfig struct {
	Driver            string
	OpenAIAPIKey      string
	OpenAIModel       string
	RequestTimeout    time.Duration
	StoreTimeout      time.Duration
	PollInterval      time.Duration
	RecoveryThreshold time.Duration
	BatchSize         int
}

// RateLimitConfig configures redis-backed limits on the generate endpoint.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GenerateRate          float64
	GenerateBurst         int
	ConcurrencyTTLSeconds int
}

// BootstrapConfig controls startup seeding for local and self-hosted installs.
type BootstrapConfig struct {
	EnsureDefaultTemplate bool
	EnsureDevUser         bool
	SignupCreditGrant     int64
}

const (
	GeneratorDriverPlaceholder = "placeholder"
	GeneratorDriverOpenAI      = "openai"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "timehug"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		HTTPReadTimeout:  getenvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout: getenvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		AuthCookieSecure: authCookieSecure,
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "timehug"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Storage: StorageConfig{
			Root:          getenv("STORAGE_ROOT", "./data/storage"),
			Bucket:        getenv("STORAGE_BUCKET", "generations"),
			PublicBaseURL: getenv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/storage"),
			MaxUploadSize: getenvInt64("STORAGE_MAX_UPLOAD_SIZE", 10*1024*1024),
		},
		Generator: GeneratorConfig{
			Driver:            normalizeGeneratorDriver(getenv("GENERATOR_DRIVER", GeneratorDriverPlaceholder)),
			OpenAIAPIKey:      strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
			OpenAIModel:       getenv("OPENAI_IMAGE_MODEL", "dall-e-3"),
			RequestTimeout:    getenvDuration("GENERATOR_REQUEST_TIMEOUT", 60*time.Second),
			StoreTimeout:      getenvDuration("GENERATOR_STORE_TIMEOUT", 10*time.Second),
			PollInterval:      getenvDuration("GENERATOR_POLL_INTERVAL", 2*time.Second),
			RecoveryThreshold: getenvDuration("GENERATOR_RECOVERY_THRESHOLD", 15*time.Minute),
			BatchSize:         getenvInt("GENERATOR_BATCH_SIZE", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:               getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:             getenv("RATE_LIMIT_REDIS_ADDR", ""),
			RedisPassword:         getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:               getenvInt("RATE_LIMIT_REDIS_DB", 0),
			GenerateRate:          getenvFloat("RATE_LIMIT_GENERATE_RATE", 0.2),
			GenerateBurst:         getenvInt("RATE_LIMIT_GENERATE_BURST", 3),
			ConcurrencyTTLSeconds: getenvInt("RATE_LIMIT_CONCURRENCY_TTL_SECONDS", 300),
		},
		Bootstrap: BootstrapConfig{
			EnsureDefaultTemplate: getenvBool("BOOTSTRAP_DEFAULT_TEMPLATE", true),
			EnsureDevUser:         getenvBool("BOOTSTRAP_DEV_USER", environment != "production"),
			SignupCreditGrant:     getenvInt64("SIGNUP_CREDIT_GRANT", 3),
		},
	}

	return cfg
}

func normalizeGeneratorDriver(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case GeneratorDriverOpenAI:
		return GeneratorDriverOpenAI
	default:
		return GeneratorDriverPlaceholder
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
