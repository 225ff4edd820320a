package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	RedisHost         string
	RedisPort         string
	EtcdEndpoints     []string
	SchedulerInterval string
	LeaderElectionTTL int
	APIPort           string
	AIServiceURL      string
	// Auth settings
	JWTSecret   string
	JWTIssuer   string
	AuthEnabled bool

	// Pipeline tuning
	MaxConcurrentJobs  int
	MaxQueueSize       int
	RetryDelayBase     float64
	RetryDelayCap      time.Duration
	SchedulerTolerance string

	// Provider credentials and defaults
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	DeepseekAPIKey   string
	LlamaBaseURL     string
	DefaultProvider  string

	// Logging
	LogLevel    string
	LogEncoding string

	// Tracing
	OTLPEndpoint string

	// Job output archiving. Backend is "local" or "s3"; s3 fields are
	// only consulted when Backend is "s3".
	LogStoreBackend     string
	LogStoreLocalDir    string
	LogStoreBucket      string
	LogStorePrefix      string
	LogStoreRegion      string
	LogStoreEndpoint    string
	LogStoreAccessKeyID string
	LogStoreSecretKey   string
}

func LoadConfig() *Config {
	return &Config{
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "skeenode"),
		DBPassword:        getEnv("DB_PASSWORD", "password"),
		DBName:            getEnv("DB_NAME", "skeenode"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		EtcdEndpoints:     []string{getEnv("ETCD_ENDPOINTS", "localhost:2379")},
		SchedulerInterval: getEnv("SCHEDULER_INTERVAL", "10s"),
		LeaderElectionTTL: getEnvAsInt("LEADER_ELECTION_TTL", 15),
		APIPort:           getEnv("API_PORT", "8080"),
		AIServiceURL:      getEnv("AI_SERVICE_URL", "http://localhost:8000"),
		// Auth settings
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "skeenode"),
		AuthEnabled: getEnvAsBool("AUTH_ENABLED", false),

		MaxConcurrentJobs:  getEnvAsInt("MAX_CONCURRENT_JOBS", 5),
		MaxQueueSize:       getEnvAsInt("MAX_QUEUE_SIZE", 1000),
		RetryDelayBase:     getEnvAsFloat("RETRY_DELAY_BASE", 2.0),
		RetryDelayCap:      getEnvAsDuration("RETRY_DELAY_CAP", 10*time.Minute),
		SchedulerTolerance: getEnv("SCHEDULER_TOLERANCE", "30s"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		DeepseekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		LlamaBaseURL:    getEnv("LLAMA_BASE_URL", "http://localhost:11434"),
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "openai"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogEncoding: getEnv("LOG_ENCODING", "json"),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		LogStoreBackend:     getEnv("LOG_STORE_BACKEND", "local"),
		LogStoreLocalDir:    getEnv("LOG_STORE_LOCAL_DIR", "/tmp/skeenode-logs"),
		LogStoreBucket:      getEnv("LOG_STORE_BUCKET", ""),
		LogStorePrefix:      getEnv("LOG_STORE_PREFIX", "logs/jobs/"),
		LogStoreRegion:      getEnv("LOG_STORE_REGION", "us-east-1"),
		LogStoreEndpoint:    getEnv("LOG_STORE_ENDPOINT", ""),
		LogStoreAccessKeyID: getEnv("LOG_STORE_ACCESS_KEY_ID", ""),
		LogStoreSecretKey:   getEnv("LOG_STORE_SECRET_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
