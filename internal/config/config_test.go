package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/site")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("SMTP_TO", "sala@canfonda.cat, cuina@canfonda.cat")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected config values: %+v", cfg)
	}
	if cfg.Store.Backend != BackendMongo {
		t.Fatalf("backend = %q", cfg.Store.Backend)
	}
	if len(cfg.SMTP.To) != 2 || cfg.SMTP.To[1] != "cuina@canfonda.cat" {
		t.Fatalf("smtp recipients = %v", cfg.SMTP.To)
	}
	if cfg.Sessions.TTL != 720*time.Hour {
		t.Fatalf("session ttl = %v", cfg.Sessions.TTL)
	}
	if cfg.Site.Location().String() != "Europe/Madrid" {
		t.Fatalf("location = %v", cfg.Site.Location())
	}
}

func TestLoadConfigRequiresBackendSettings(t *testing.T) {
	t.Setenv("STORE_BACKEND", "firebase")
	t.Setenv("FIREBASE_DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without FIREBASE_DATABASE_URL")
	}

	t.Setenv("STORE_BACKEND", "sqlite")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRedisAddrEmptyWithoutHost(t *testing.T) {
	if (RedisConfig{Port: "6379"}).Addr() != "" {
		t.Fatal("expected empty addr")
	}
}
