package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/contract-risk-assistant/internal/infrastructure/resilience"
)

const (
	AnalyzerHeuristic = "heuristic"
	AnalyzerOllama    = "ollama"

	StorageLocalFS = "localfs"
	StorageS3      = "s3"
)

type Config struct {
	APIPort  string
	LogLevel string

	Analyzer        string
	OllamaURL       string
	OllamaGenModel  string
	OllamaTimeout   time.Duration
	AnalysisTimeout time.Duration
	MaxUploadBytes  int64

	QARulesPath string

	NATSURL     string
	NATSSubject string

	Storage     string
	StoragePath string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIBackpressureMax    int
	APIBackpressureWaitMS int

	ResilienceRetryMaxAttempts  int
	ResilienceRetryInitial      time.Duration
	ResilienceRetryMax          time.Duration
	ResilienceBreakerEnabled    bool
	ResilienceBreakerMinReqs    int
	ResilienceBreakerFailRatio  float64
	ResilienceBreakerOpenPeriod time.Duration
	ResilienceOverrides         map[string]resilience.Override
}

// Per-operation resilience tuning. Each key reads RESILIENCE_<PREFIX>_* and
// falls back to the listed defaults.
var resilienceOverrideDefaults = []struct {
	prefix    string
	operation string
	defaults  resilience.Override
}{
	{"OLLAMA", "ollama.analyze", resilience.Override{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     5 * time.Second,
		BreakerMinRequests:  3,
		BreakerOpenTimeout:  time.Minute,
	}},
	{"NATS", "nats", resilience.Override{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:     200 * time.Millisecond,
	}},
	{"S3", "s3", resilience.Override{
		RetryMaxAttempts:    4,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
	}},
}

// Load reads the environment, after merging an optional .env file that never
// overrides variables already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		Analyzer:        strings.ToLower(mustEnv("ANALYZER", AnalyzerHeuristic)),
		OllamaURL:       mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:  mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaTimeout:   mustEnvDuration("OLLAMA_TIMEOUT", 90*time.Second),
		AnalysisTimeout: mustEnvDuration("ANALYSIS_TIMEOUT", 2*time.Minute),
		MaxUploadBytes:  int64(mustEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),

		QARulesPath: mustEnv("QA_RULES_PATH", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "documents.changed"),

		Storage:     strings.ToLower(mustEnv("STORAGE_BACKEND", StorageLocalFS)),
		StoragePath: mustEnv("STORAGE_PATH", "./data/uploads"),
		S3Endpoint:  mustEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: mustEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: mustEnv("S3_SECRET_KEY", ""),
		S3Bucket:    mustEnv("S3_BUCKET", "contract-uploads"),
		S3UseSSL:    mustEnvBool("S3_USE_SSL", false),

		APIRateLimitRPS:       mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:     mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIBackpressureMax:    mustEnvInt("API_BACKPRESSURE_MAX_IN_FLIGHT", 64),
		APIBackpressureWaitMS: mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250),

		ResilienceRetryMaxAttempts:  mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceRetryInitial:      mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		ResilienceRetryMax:          mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 400*time.Millisecond),
		ResilienceBreakerEnabled:    mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinReqs:    mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		ResilienceBreakerFailRatio:  mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
		ResilienceBreakerOpenPeriod: mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		ResilienceOverrides:         loadResilienceOverrides(),
	}
}

func loadResilienceOverrides() map[string]resilience.Override {
	out := make(map[string]resilience.Override, len(resilienceOverrideDefaults))
	for _, d := range resilienceOverrideDefaults {
		key := "RESILIENCE_" + d.prefix + "_"
		out[d.operation] = resilience.Override{
			RetryMaxAttempts:    mustEnvInt(key+"RETRY_MAX_ATTEMPTS", d.defaults.RetryMaxAttempts),
			RetryInitialBackoff: mustEnvDuration(key+"RETRY_INITIAL_BACKOFF", d.defaults.RetryInitialBackoff),
			RetryMaxBackoff:     mustEnvDuration(key+"RETRY_MAX_BACKOFF", d.defaults.RetryMaxBackoff),
			BreakerDisabled:     !mustEnvBool(key+"BREAKER_ENABLED", !d.defaults.BreakerDisabled),
			BreakerMinRequests:  uint32(max(mustEnvInt(key+"BREAKER_MIN_REQUESTS", int(d.defaults.BreakerMinRequests)), 0)),
			BreakerOpenTimeout:  mustEnvDuration(key+"BREAKER_OPEN_TIMEOUT", d.defaults.BreakerOpenTimeout),
		}
	}
	return out
}

func (c Config) Resilience() resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = c.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = c.ResilienceRetryInitial
	out.RetryMaxBackoff = c.ResilienceRetryMax
	out.BreakerEnabled = c.ResilienceBreakerEnabled
	if c.ResilienceBreakerMinReqs > 0 {
		out.BreakerMinRequests = uint32(c.ResilienceBreakerMinReqs)
	}
	out.BreakerFailureRatio = c.ResilienceBreakerFailRatio
	out.BreakerOpenTimeout = c.ResilienceBreakerOpenPeriod
	out.Overrides = c.ResilienceOverrides
	return out
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
