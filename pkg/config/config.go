package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Supported document source drivers.
const (
	SourceGitHub     = "github"
	SourceFilesystem = "filesystem"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Source   SourceConfig
	Sync     SyncConfig
	Cache    CacheConfig
	Jobs     JobsConfig
	Scopes   ScopeConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SourceConfig selects and configures the repository legal documents are read from.
type SourceConfig struct {
	Driver      string
	Owner       string
	Repository  string
	Branch      string
	AccessToken string
	Timeout     time.Duration
	RootDir     string
}

// Authenticated reports whether requests to the source carry a token.
func (c SourceConfig) Authenticated() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// SyncConfig bounds how aggressively the sync engine talks to the source.
type SyncConfig struct {
	Concurrency int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// CacheConfig toggles redis caching of derived data.
type CacheConfig struct {
	Enabled             bool
	RequiredVersionsTTL time.Duration
}

// JobsConfig tunes the in-process worker queue used by compliance sweeps.
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// ScopeConfig identifies the distinguished scopes of the organisation.
type ScopeConfig struct {
	EveryoneID string
	BoardRole  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Source = SourceConfig{
		Driver:      strings.ToLower(v.GetString("DOCUMENT_SOURCE")),
		Owner:       v.GetString("GITHUB_OWNER"),
		Repository:  v.GetString("GITHUB_REPOSITORY"),
		Branch:      v.GetString("GITHUB_BRANCH"),
		AccessToken: v.GetString("GITHUB_ACCESS_TOKEN"),
		Timeout:     parseDuration(v.GetString("GITHUB_TIMEOUT"), 30*time.Second),
		RootDir:     v.GetString("SOURCE_ROOT_DIR"),
	}

	cfg.Sync = SyncConfig{
		Concurrency: v.GetInt("SYNC_CONCURRENCY"),
		BackoffBase: parseDuration(v.GetString("SYNC_BACKOFF_BASE"), 15*time.Minute),
		BackoffMax:  parseDuration(v.GetString("SYNC_BACKOFF_MAX"), 24*time.Hour),
	}
	// Unauthenticated GitHub allows 60 requests per hour; never fan out against it.
	if cfg.Source.Driver == SourceGitHub && !cfg.Source.Authenticated() {
		cfg.Sync.Concurrency = 1
	}
	if cfg.Sync.Concurrency <= 0 {
		cfg.Sync.Concurrency = 1
	}

	cfg.Cache = CacheConfig{
		Enabled:             v.GetBool("CACHE_ENABLED"),
		RequiredVersionsTTL: parseDuration(v.GetString("REQUIRED_VERSIONS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Scopes = ScopeConfig{
		EveryoneID: v.GetString("SCOPE_EVERYONE_ID"),
		BoardRole:  v.GetString("BOARD_ROLE_NAME"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "membership")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "membership-consent-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DOCUMENT_SOURCE", SourceGitHub)
	v.SetDefault("GITHUB_OWNER", "nobodies-collective")
	v.SetDefault("GITHUB_REPOSITORY", "legal")
	v.SetDefault("GITHUB_BRANCH", "main")
	v.SetDefault("GITHUB_ACCESS_TOKEN", "")
	v.SetDefault("GITHUB_TIMEOUT", "30s")
	v.SetDefault("SOURCE_ROOT_DIR", "./legal")

	v.SetDefault("SYNC_CONCURRENCY", 4)
	v.SetDefault("SYNC_BACKOFF_BASE", "15m")
	v.SetDefault("SYNC_BACKOFF_MAX", "24h")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("REQUIRED_VERSIONS_CACHE_TTL", "5m")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_BUFFER_SIZE", 256)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")

	v.SetDefault("SCOPE_EVERYONE_ID", "00000000-0000-0000-0001-000000000001")
	v.SetDefault("BOARD_ROLE_NAME", "Board")
}

// isMissingFile covers SetConfigFile, which reports an absent .env as a path error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
