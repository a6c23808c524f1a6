package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // SITE_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lacuina/content-service/internal/storage"
	"github.com/lacuina/content-service/pkg/logger"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendFirebase = "firebase"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Firebase  FirebaseConfig
	MinIO     storage.MinIOConfig
	AMQP      AMQPConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Site      SiteConfig
	Sessions  SessionsConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// StoreConfig selects where the document tree lives.
type StoreConfig struct {
	Backend string
	Prefix  string // redis key prefix
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr is host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	DatabaseURL     string
	APIKey          string
	PollInterval    time.Duration
	IdentityURL     string
	TokenURL        string
	CheckRevoked    bool
}

type AMQPConfig struct {
	URL   string
	Queue string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type RateLimitConfig struct {
	RPS    float64
	Burst  int
	Window time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Options maps the settings onto the logger.
func (l LogConfig) Options() logger.Options {
	return logger.Options{Format: l.Format, File: l.File, MaxSizeMB: l.MaxSizeMB, MaxBackups: l.MaxBackups, MaxAgeDays: l.MaxAgeDays, Compress: true}
}

type SiteConfig struct {
	Timezone string
	// AllowInsecureToken skips ID token signature checks. Development only.
	AllowInsecureToken bool
}

// Location resolves Timezone, falling back to UTC.
func (s SiteConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		logger.Warnf("config: unknown timezone %q, using UTC", s.Timezone)
		return time.UTC
	}
	return loc
}

type SessionsConfig struct {
	TTL          time.Duration
	ExportURLTTL time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("CORS_ORIGINS", "*")
	viper.SetDefault("STORE_BACKEND", BackendMemory)
	viper.SetDefault("STORE_PREFIX", "site")
	viper.SetDefault("MONGODB_DATABASE", "site")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("FIREBASE_POLL_INTERVAL_SECONDS", 5)
	viper.SetDefault("MINIO_BUCKET", "site-backups")
	viper.SetDefault("AMQP_QUEUE", "site.events")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("RATE_LIMIT_RPS", 0.2)
	viper.SetDefault("RATE_LIMIT_BURST", 5)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_MAX_SIZE_MB", 50)
	viper.SetDefault("LOG_MAX_BACKUPS", 5)
	viper.SetDefault("LOG_MAX_AGE_DAYS", 30)
	viper.SetDefault("SITE_TIMEZONE", "Europe/Madrid")
	viper.SetDefault("SESSION_TTL_HOURS", 720)
	viper.SetDefault("EXPORT_URL_TTL_MINUTES", 15)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // SSE streams stay open
			CORSOrigins:  splitList(viper.GetString("CORS_ORIGINS")),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(viper.GetString("STORE_BACKEND")),
			Prefix:  viper.GetString("STORE_PREFIX"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       viper.GetString("FIREBASE_PROJECT_ID"),
			CredentialsFile: viper.GetString("FIREBASE_CREDENTIALS_FILE"),
			DatabaseURL:     viper.GetString("FIREBASE_DATABASE_URL"),
			APIKey:          os.Getenv("FIREBASE_API_KEY"),
			PollInterval:    time.Duration(viper.GetInt("FIREBASE_POLL_INTERVAL_SECONDS")) * time.Second,
			IdentityURL:     viper.GetString("FIREBASE_IDENTITY_URL"),
			TokenURL:        viper.GetString("FIREBASE_TOKEN_URL"),
			CheckRevoked:    viper.GetBool("FIREBASE_CHECK_REVOKED"),
		},
		MinIO: storage.MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		AMQP: AMQPConfig{
			URL:   os.Getenv("AMQP_URL"),
			Queue: viper.GetString("AMQP_QUEUE"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: viper.GetString("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
			To:       splitList(viper.GetString("SMTP_TO")),
		},
		RateLimit: RateLimitConfig{
			RPS:    viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:  viper.GetInt("RATE_LIMIT_BURST"),
			Window: time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		Log: LogConfig{
			Level:      viper.GetString("LOG_LEVEL"),
			Format:     viper.GetString("LOG_FORMAT"),
			File:       viper.GetString("LOG_FILE"),
			MaxSizeMB:  viper.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: viper.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: viper.GetInt("LOG_MAX_AGE_DAYS"),
		},
		Site: SiteConfig{
			Timezone:           viper.GetString("SITE_TIMEZONE"),
			AllowInsecureToken: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		Sessions: SessionsConfig{
			TTL:          time.Duration(viper.GetInt("SESSION_TTL_HOURS")) * time.Hour,
			ExportURLTTL: time.Duration(viper.GetInt("EXPORT_URL_TTL_MINUTES")) * time.Minute,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Site.AllowInsecureToken {
		logger.Warnf("WARNING: ALLOW_INSECURE_TOKEN is set; ID token signatures are not checked")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr() == "" {
			return fmt.Errorf("config: STORE_BACKEND=redis requires REDIS_HOST")
		}
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("config: STORE_BACKEND=mongo requires MONGODB_URI")
		}
	case BackendFirebase:
		if c.Firebase.DatabaseURL == "" {
			return fmt.Errorf("config: STORE_BACKEND=firebase requires FIREBASE_DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
