// Package app connects the configured backends and builds the services
// shared by the HTTP server and sitectl.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lacuina/content-service/internal/backup"
	"github.com/lacuina/content-service/internal/config"
	"github.com/lacuina/content-service/internal/database"
	"github.com/lacuina/content-service/internal/identity"
	"github.com/lacuina/content-service/internal/notify"
	"github.com/lacuina/content-service/internal/oidc"
	"github.com/lacuina/content-service/internal/sessions"
	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/internal/storage"
	"github.com/lacuina/content-service/internal/store"
	"github.com/lacuina/content-service/pkg/logger"
	"github.com/lacuina/content-service/pkg/middleware"
)

var ErrNotReady = errors.New("site document not loaded in time")

type App struct {
	Config   *config.Config
	Store    store.Store
	Sync     *siteconfig.Synchronizer
	Backups  *backup.Service
	Redis    *redis.Client // nil when not configured or unreachable
	Mongo    *mongo.Client
	Firebase *database.Firebase

	closers []func()
}

// New connects what cfg asks for and builds the document store, the
// synchronizer and the backup service. Nothing is watched until Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	st, err := a.newStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.build(st, a.archive(ctx))
	return a, nil
}

// NewWithStore builds the services over an existing store without
// connecting anything else.
func NewWithStore(cfg *config.Config, st store.Store) *App {
	a := &App{Config: cfg}
	a.build(st, nil)
	return a
}

func (a *App) build(st store.Store, archive *backup.Archive) {
	a.Store = st
	a.Sync = siteconfig.NewSynchronizer(st)
	a.closers = append(a.closers, a.Sync.Stop)
	a.Backups = backup.NewService(st, a.Sync, archive, a.Config.Site.Location())
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	a.Redis = database.ConnectRedis(ctx, cfg.Redis)
	if a.Redis != nil {
		client := a.Redis
		a.closers = append(a.closers, func() { _ = client.Close() })
	} else if cfg.Store.Backend == config.BackendRedis {
		return fmt.Errorf("redis store: %s unreachable", cfg.Redis.Addr())
	}

	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB)
		if err != nil {
			if cfg.Store.Backend == config.BackendMongo {
				return err
			}
			logger.Warnf("mongo unavailable, sessions fall back: %v", err)
		} else {
			a.Mongo = client
			a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		}
	}

	if cfg.Store.Backend == config.BackendFirebase || cfg.Firebase.CredentialsFile != "" {
		fb, err := database.ConnectFirebase(ctx, cfg.Firebase)
		if err != nil {
			if cfg.Store.Backend == config.BackendFirebase {
				return err
			}
			logger.Warnf("firebase admin unavailable: %v", err)
		} else {
			a.Firebase = fb
		}
	}
	return nil
}

func (a *App) newStore() (store.Store, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return store.NewRedisStore(a.Redis, cfg.Store.Prefix+":"), nil
	case config.BackendMongo:
		return store.NewMongoStore(a.Mongo.Database(cfg.MongoDB.Database).Collection("nodes")), nil
	case config.BackendFirebase:
		if a.Firebase == nil || a.Firebase.DB == nil {
			return nil, errors.New("firebase store: no database client")
		}
		return store.NewFirebaseStore(a.Firebase.DB, cfg.Firebase.PollInterval), nil
	case config.BackendMemory:
		logger.Warnf("using the in-memory store; nothing survives a restart")
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// archive mirrors backups to MinIO when an endpoint is configured.
func (a *App) archive(ctx context.Context) *backup.Archive {
	if a.Config.MinIO.Endpoint == "" {
		return nil
	}
	objects, err := storage.NewMinIOStorage(ctx, a.Config.MinIO)
	if err != nil {
		logger.Warnf("backup archive disabled: %v", err)
		return nil
	}
	return backup.NewArchive(objects, a.Config.Sessions.ExportURLTTL)
}

// Start watches the site document and waits up to wait for the first copy.
func (a *App) Start(ctx context.Context, wait time.Duration) error {
	if err := a.Sync.Start(ctx); err != nil {
		return err
	}
	if wait <= 0 {
		return nil
	}
	select {
	case <-a.Sync.Ready():
		return nil
	case <-time.After(wait):
		return ErrNotReady
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Notifier fans staff notifications out to RabbitMQ and email, whichever
// are configured.
func (a *App) Notifier() notify.Notifier {
	var out notify.Multi
	if a.Config.AMQP.URL != "" {
		out = append(out, notify.NewAMQPPublisher(a.Config.AMQP.URL, a.Config.AMQP.Queue))
	}
	if s := a.Config.SMTP; s.Host != "" && len(s.To) > 0 {
		out = append(out, notify.NewMailer(s.Host, s.Port, s.Username, s.Password, s.From, s.To))
	}
	if len(out) == 0 {
		return notify.Nop{}
	}
	return out
}

// Verifier picks how admin ID tokens are checked: Firebase Admin, the
// securetoken OIDC issuer, or (explicitly allowed) no signature check.
func (a *App) Verifier(ctx context.Context) (middleware.Verifier, error) {
	cfg := a.Config
	if a.Firebase != nil && a.Firebase.Auth != nil {
		return oidc.NewFirebaseVerifier(a.Firebase.Auth, cfg.Firebase.CheckRevoked), nil
	}
	if cfg.Firebase.ProjectID != "" {
		ver, err := oidc.NewSecureTokenVerifier(ctx, cfg.Firebase.ProjectID)
		if err == nil {
			return ver, nil
		}
		if !cfg.Site.AllowInsecureToken {
			return nil, err
		}
		logger.Warnf("OIDC verifier unavailable: %v", err)
	}
	if cfg.Site.AllowInsecureToken {
		logger.Warn("enabling insecure ID token verifier")
		return oidc.NewInsecureVerifier(), nil
	}
	return nil, errors.New("no token verifier: set FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_FILE")
}

// Sessions keeps login sessions in Redis, else MongoDB, else memory.
func (a *App) Sessions(ctx context.Context) (*sessions.Service, error) {
	ttl := a.Config.Sessions.TTL
	switch {
	case a.Redis != nil:
		return sessions.NewService(sessions.NewRedisRepository(a.Redis, "session:"), ttl), nil
	case a.Mongo != nil:
		repo, err := sessions.NewMongoRepository(ctx, a.Mongo.Database(a.Config.MongoDB.Database).Collection("sessions"))
		if err != nil {
			return nil, err
		}
		return sessions.NewService(repo, ttl), nil
	}
	logger.Warnf("sessions kept in memory; users sign in again after a restart")
	return sessions.NewService(sessions.NewMemoryRepository(), ttl), nil
}

// Identity is the identity provider client, or nil without an API key.
func (a *App) Identity() *identity.Client {
	fb := a.Config.Firebase
	if fb.APIKey == "" {
		return nil
	}
	var opts []identity.Option
	if fb.IdentityURL != "" || fb.TokenURL != "" {
		idURL, tokURL := fb.IdentityURL, fb.TokenURL
		if idURL == "" {
			idURL = identity.DefaultIdentityURL
		}
		if tokURL == "" {
			tokURL = identity.DefaultTokenURL
		}
		opts = append(opts, identity.WithBaseURLs(idURL, tokURL))
	}
	return identity.NewClient(fb.APIKey, opts...)
}
