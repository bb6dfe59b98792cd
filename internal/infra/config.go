package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	StoragePath    string
	StorageBaseURL string

	// InferenceMode selects the fallback chain used for generation.
	// One of: "auto", "cloud_only", "local_only", "on_device".
	InferenceMode string

	QueueCapacity  int
	JobConcurrency int
	RetryAttempts  int
	DefaultScenes  int
	MaxScenes      int

	CloudAttemptTimeout  time.Duration
	VendorAttemptTimeout time.Duration
	LocalAttemptTimeout  time.Duration

	GuardrailRulesPath string

	CloudAPIKey   string
	CloudBaseURL  string
	CloudModel    string
	VendorAPIKey  string
	VendorBaseURL string

	// PaidAPIKeys lists the API keys admitted at the paid tier. The real
	// identity system lives upstream; this is its minimal stand-in.
	PaidAPIKeys []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		InferenceMode: getEnv("INFERENCE_MODE", "auto"),

		QueueCapacity:  getEnvInt("QUEUE_CAPACITY", 32),
		JobConcurrency: getEnvInt("JOB_CONCURRENCY", 1),
		RetryAttempts:  getEnvInt("RETRY_ATTEMPTS", 2),
		DefaultScenes:  getEnvInt("DEFAULT_SCENES", 3),
		MaxScenes:      getEnvInt("MAX_SCENES", 8),

		CloudAttemptTimeout:  time.Second * time.Duration(getEnvInt("CLOUD_ATTEMPT_TIMEOUT_SECONDS", 45)),
		VendorAttemptTimeout: time.Second * time.Duration(getEnvInt("VENDOR_ATTEMPT_TIMEOUT_SECONDS", 30)),
		LocalAttemptTimeout:  time.Second * time.Duration(getEnvInt("LOCAL_ATTEMPT_TIMEOUT_SECONDS", 120)),

		GuardrailRulesPath: getEnv("GUARDRAIL_RULES_PATH", "./config/guardrails.yaml"),

		CloudAPIKey:   os.Getenv("CLOUD_API_KEY"),
		CloudBaseURL:  getEnv("CLOUD_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		CloudModel:    getEnv("CLOUD_MODEL", "gemini-2.5-flash"),
		VendorAPIKey:  os.Getenv("VENDOR_API_KEY"),
		VendorBaseURL: getEnv("VENDOR_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),

		PaidAPIKeys: splitCSV(os.Getenv("PAID_API_KEYS")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("QUEUE_CAPACITY must be at least 1")
	}
	if cfg.JobConcurrency < 1 {
		return nil, fmt.Errorf("JOB_CONCURRENCY must be at least 1")
	}
	if cfg.DefaultScenes < 1 || cfg.DefaultScenes > cfg.MaxScenes {
		return nil, fmt.Errorf("DEFAULT_SCENES must be between 1 and MAX_SCENES")
	}

	return cfg, nil
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
