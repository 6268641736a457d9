package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Archive   ArchiveConfig
	Platforms PlatformsConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ArchiveConfig tunes the background archive worker.
type ArchiveConfig struct {
	WorkerConcurrency int
	QueueBuffer       int
	UpstreamTimeout   time.Duration
	UserCacheTTL      time.Duration
	RecoverPending    bool
	RecoveryInterval  time.Duration
	RecoveryBatch     int
	DrainTimeout      time.Duration
}

// PlatformsConfig overrides the GraphQL endpoints of the supported forums.
type PlatformsConfig struct {
	EAForumEndpoint   string
	LessWrongEndpoint string
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Archive = ArchiveConfig{
		WorkerConcurrency: v.GetInt("ARCHIVE_WORKER_CONCURRENCY"),
		QueueBuffer:       v.GetInt("ARCHIVE_QUEUE_BUFFER"),
		UpstreamTimeout:   parseDuration(v.GetString("ARCHIVE_UPSTREAM_TIMEOUT"), 30*time.Second),
		UserCacheTTL:      parseDuration(v.GetString("ARCHIVE_USER_CACHE_TTL"), 6*time.Hour),
		RecoverPending:    v.GetBool("ARCHIVE_RECOVER_PENDING"),
		RecoveryInterval:  parseDuration(v.GetString("ARCHIVE_RECOVERY_INTERVAL"), time.Minute),
		RecoveryBatch:     v.GetInt("ARCHIVE_RECOVERY_BATCH"),
		DrainTimeout:      parseDuration(v.GetString("ARCHIVE_DRAIN_TIMEOUT"), 30*time.Second),
	}

	cfg.Platforms = PlatformsConfig{
		EAForumEndpoint:   v.GetString("EA_FORUM_GRAPHQL_URL"),
		LessWrongEndpoint: v.GetString("LESSWRONG_GRAPHQL_URL"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "forum_archive")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ARCHIVE_WORKER_CONCURRENCY", 2)
	v.SetDefault("ARCHIVE_QUEUE_BUFFER", 64)
	v.SetDefault("ARCHIVE_UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("ARCHIVE_USER_CACHE_TTL", "6h")
	v.SetDefault("ARCHIVE_RECOVER_PENDING", true)
	v.SetDefault("ARCHIVE_RECOVERY_INTERVAL", "1m")
	v.SetDefault("ARCHIVE_RECOVERY_BATCH", 100)
	v.SetDefault("ARCHIVE_DRAIN_TIMEOUT", "30s")

	v.SetDefault("EA_FORUM_GRAPHQL_URL", "https://forum.effectivealtruism.org/graphql")
	v.SetDefault("LESSWRONG_GRAPHQL_URL", "https://www.lesswrong.com/graphql")
}

// viper reports a missing explicit config file as an fs error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
