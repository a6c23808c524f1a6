package database

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"github.com/lacuina/content-service/internal/config"
)

// Firebase bundles the clients the service uses from one Firebase app.
type Firebase struct {
	App  *firebase.App
	DB   *db.Client // nil without a database URL
	Auth *auth.Client
}

// ConnectFirebase initialises the app from a service-account file, or from
// application default credentials when none is configured.
func ConnectFirebase(ctx context.Context, cfg config.FirebaseConfig) (*Firebase, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	fb := &Firebase{App: app}
	if fb.Auth, err = app.Auth(ctx); err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	if cfg.DatabaseURL != "" {
		if fb.DB, err = app.Database(ctx); err != nil {
			return nil, fmt.Errorf("firebase database client: %w", err)
		}
	}
	return fb, nil
}
