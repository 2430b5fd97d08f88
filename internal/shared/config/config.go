package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	LogLevel        string
	DatabaseURL     string
	RunMigrations   bool

	ObjectStoreType  string
	LocalStoreDir    string
	AWSRegion        string
	S3Bucket         string
	S3Prefix         string
	SSEKMSKeyID      string
	Minio            MinioConfig
	MaxDocumentBytes int64

	JWTSecret       string
	JWTPublicKeyPEM string
	JWTIssuer       string
	JWTAudience     string

	LLMProvider         string
	LLMModel            string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	ClassifyMaxTokens   int
	ClassifyTemperature float64
	ClassifyExcerpt     int
	TaxonomyFile        string

	Zoho                 ZohoConfig
	RootFolderSource     string
	FolderMatchThreshold float64

	Filing     FilingConfig
	Resilience ResilienceConfig

	RedisURL string
	QueueURL string
}

// MinioConfig configures the MinIO object store backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ZohoConfig carries OAuth credentials and API base URLs for WorkDrive and CRM.
type ZohoConfig struct {
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	AccountsURL    string
	WorkDriveURL   string
	CRMURL         string
	CRMFolderField string
	RatePerSec     float64
	Burst          int
}

// Configured reports whether enough credentials are present to call Zoho APIs.
func (z ZohoConfig) Configured() bool {
	return z.ClientID != "" && z.ClientSecret != "" && z.RefreshToken != ""
}

// FilingConfig controls the background filing run.
type FilingConfig struct {
	Interval        time.Duration
	BatchSize       int
	ClaimTTL        time.Duration
	LockTTL         time.Duration
	FetchTimeout    time.Duration
	ClassifyTimeout time.Duration
	FolderTimeout   time.Duration
	UploadTimeout   time.Duration
	CRMTimeout      time.Duration
	ShutdownTimeout time.Duration
	MetricsAddr     string
}

// ResilienceConfig tunes retries and circuit breakers around outbound calls.
type ResilienceConfig struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	BreakerEnabled      bool
	BreakerMinRequests  int
	BreakerOpenTimeout  time.Duration
}

// Load reads configuration from defaults, optional .env files and the environment.
func Load() Config {
	v := viper.New()
	setDefaults(v)
	// Best-effort load of local env files for dev convenience.
	mergeEnvFiles(v, ".env", "cmd/.env")
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	env := normalizeEnv(v.GetString("env"))
	dbURL := strings.TrimSpace(v.GetString("database_url"))

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            v.GetString("port"),
		CORSAllowOrigin: splitAndTrim(v.GetString("cors_allow_origins")),
		Env:             env,
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		DatabaseURL:     dbURL,
		RunMigrations:   v.GetBool("run_migrations"),

		ObjectStoreType: normalizeStoreType(v.GetString("object_store")),
		LocalStoreDir:   v.GetString("local_store_dir"),
		AWSRegion:       v.GetString("aws_region"),
		S3Bucket:        v.GetString("s3_bucket"),
		S3Prefix:        v.GetString("s3_prefix"),
		SSEKMSKeyID:     v.GetString("sse_kms_key_id"),
		Minio: MinioConfig{
			Endpoint:  v.GetString("minio_endpoint"),
			AccessKey: v.GetString("minio_access_key"),
			SecretKey: v.GetString("minio_secret_key"),
			UseSSL:    v.GetBool("minio_use_ssl"),
		},
		MaxDocumentBytes: v.GetInt64("max_document_bytes"),

		JWTSecret:       v.GetString("jwt_secret"),
		JWTPublicKeyPEM: v.GetString("jwt_public_key_pem"),
		JWTIssuer:       v.GetString("jwt_issuer"),
		JWTAudience:     v.GetString("jwt_audience"),

		LLMProvider:         strings.ToLower(strings.TrimSpace(v.GetString("llm_provider"))),
		LLMModel:            v.GetString("llm_model"),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		ClassifyMaxTokens:   v.GetInt("classify_max_tokens"),
		ClassifyTemperature: v.GetFloat64("classify_temperature"),
		ClassifyExcerpt:     v.GetInt("classify_excerpt_chars"),
		TaxonomyFile:        v.GetString("taxonomy_file"),

		Zoho: ZohoConfig{
			ClientID:       v.GetString("zoho_client_id"),
			ClientSecret:   v.GetString("zoho_client_secret"),
			RefreshToken:   v.GetString("zoho_refresh_token"),
			AccountsURL:    strings.TrimRight(v.GetString("zoho_accounts_url"), "/"),
			WorkDriveURL:   strings.TrimRight(v.GetString("zoho_workdrive_url"), "/"),
			CRMURL:         strings.TrimRight(v.GetString("zoho_crm_url"), "/"),
			CRMFolderField: v.GetString("zoho_crm_folder_field"),
			RatePerSec:     v.GetFloat64("zoho_rate_per_sec"),
			Burst:          v.GetInt("zoho_burst"),
		},
		RootFolderSource:     normalizeRootSource(v.GetString("root_folder_source")),
		FolderMatchThreshold: v.GetFloat64("folder_match_threshold"),

		Filing: FilingConfig{
			Interval:        v.GetDuration("filing_interval"),
			BatchSize:       v.GetInt("filing_batch_size"),
			ClaimTTL:        v.GetDuration("filing_claim_ttl"),
			LockTTL:         v.GetDuration("filing_lock_ttl"),
			FetchTimeout:    v.GetDuration("fetch_timeout"),
			ClassifyTimeout: v.GetDuration("classify_timeout"),
			FolderTimeout:   v.GetDuration("folder_timeout"),
			UploadTimeout:   v.GetDuration("upload_timeout"),
			CRMTimeout:      v.GetDuration("crm_timeout"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
			MetricsAddr:     v.GetString("worker_metrics_addr"),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:    v.GetInt("retry_max_attempts"),
			RetryInitialBackoff: v.GetDuration("retry_initial_backoff"),
			BreakerEnabled:      v.GetBool("breaker_enabled"),
			BreakerMinRequests:  v.GetInt("breaker_min_requests"),
			BreakerOpenTimeout:  v.GetDuration("breaker_open_timeout"),
		},

		RedisURL: strings.TrimSpace(v.GetString("redis_url")),
		QueueURL: strings.TrimSpace(v.GetString("filing_sqs_queue_url")),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("cors_allow_origins", "http://localhost:5173")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("run_migrations", false)

	v.SetDefault("object_store", "local")
	v.SetDefault("local_store_dir", "./data")
	v.SetDefault("aws_region", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("sse_kms_key_id", "")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_use_ssl", true)
	v.SetDefault("max_document_bytes", 25<<20)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_public_key_pem", "")
	v.SetDefault("jwt_issuer", "")
	v.SetDefault("jwt_audience", "")

	v.SetDefault("llm_provider", "openai")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("classify_max_tokens", 500)
	v.SetDefault("classify_temperature", 0.1)
	v.SetDefault("classify_excerpt_chars", 4000)
	v.SetDefault("taxonomy_file", "")

	v.SetDefault("zoho_client_id", "")
	v.SetDefault("zoho_client_secret", "")
	v.SetDefault("zoho_refresh_token", "")
	v.SetDefault("zoho_accounts_url", "https://accounts.zoho.com")
	v.SetDefault("zoho_workdrive_url", "https://www.zohoapis.com/workdrive")
	v.SetDefault("zoho_crm_url", "https://www.zohoapis.com")
	v.SetDefault("zoho_crm_folder_field", "WorkDrive_Folder_ID")
	v.SetDefault("zoho_rate_per_sec", 5.0)
	v.SetDefault("zoho_burst", 5)
	v.SetDefault("root_folder_source", "crm")
	v.SetDefault("folder_match_threshold", 0.7)

	v.SetDefault("filing_interval", "10m")
	v.SetDefault("filing_batch_size", 50)
	v.SetDefault("filing_claim_ttl", "30m")
	v.SetDefault("filing_lock_ttl", "15m")
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("classify_timeout", "60s")
	v.SetDefault("folder_timeout", "20s")
	v.SetDefault("upload_timeout", "120s")
	v.SetDefault("crm_timeout", "15s")
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("worker_metrics_addr", ":9091")

	v.SetDefault("retry_max_attempts", 2)
	v.SetDefault("retry_initial_backoff", "200ms")
	v.SetDefault("breaker_enabled", true)
	v.SetDefault("breaker_min_requests", 10)
	v.SetDefault("breaker_open_timeout", "30s")

	v.SetDefault("redis_url", "")
	v.SetDefault("filing_sqs_queue_url", "")
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeRootSource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "db", "database", "postgres":
		return "db"
	default:
		return "crm"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
