package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lacuina/content-service/pkg/logger"
)

// ObjectStore is the part of the object storage client the archive needs.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, body []byte) error
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key, filename string, expires time.Duration) (string, error)
}

// Archive mirrors backups into object storage as backups/<id>.json.
// Archive failures never fail the backup operation itself.
type Archive struct {
	objects ObjectStore
	ttl     time.Duration
}

func NewArchive(objects ObjectStore, urlTTL time.Duration) *Archive {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &Archive{objects: objects, ttl: urlTTL}
}

func objectKey(id string) string { return "backups/" + id + ".json" }

func (a *Archive) upload(ctx context.Context, rec Record) error {
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return a.objects.PutJSON(ctx, objectKey(rec.ID), body)
}

func (a *Archive) put(ctx context.Context, rec Record) {
	if a == nil {
		return
	}
	if err := a.upload(ctx, rec); err != nil {
		logger.Warnf("backup: archiving %s failed: %v", rec.ID, err)
	}
}

func (a *Archive) remove(ctx context.Context, id string) {
	if a == nil {
		return
	}
	if err := a.objects.Remove(ctx, objectKey(id)); err != nil {
		logger.Warnf("backup: removing archived %s failed: %v", id, err)
	}
}

// url re-uploads the record so the object exists, then presigns it.
func (a *Archive) url(ctx context.Context, rec Record) (string, error) {
	if err := a.upload(ctx, rec); err != nil {
		return "", fmt.Errorf("archive %s: %w", rec.ID, err)
	}
	return a.objects.PresignedURL(ctx, objectKey(rec.ID), rec.ID+".json", a.ttl)
}
