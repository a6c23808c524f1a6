// Package backup snapshots the site document and restores snapshots over it.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/internal/store"
	"github.com/lacuina/content-service/pkg/logger"
)

const (
	Collection = "backups"
	// MasterID is the reserved record used as the factory-reset target.
	MasterID = "master_delivery"
)

var (
	ErrNotFound        = errors.New("backup not found")
	ErrCorrupt         = errors.New("backup data is not a site document")
	ErrArchiveDisabled = errors.New("backup archive is not configured")
)

type Record struct {
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"timestamp"` // unix ms
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
}

// Summary is a record without its data.
type Summary struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Name      string `json:"name"`
	Master    bool   `json:"master"`
}

// Source tells where a factory reset took its document from.
type Source string

const (
	SourceMaster   Source = "master"
	SourceDefaults Source = "defaults"
)

type Service struct {
	backups *store.Collection[Record]
	sync    *siteconfig.Synchronizer
	archive *Archive
	loc     *time.Location
	now     func() time.Time
}

// NewService wires the backups collection to the synchronizer. archive may
// be nil.
func NewService(st store.Store, sync *siteconfig.Synchronizer, archive *Archive, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		backups: store.NewCollection[Record](st, Collection),
		sync:    sync,
		archive: archive,
		loc:     loc,
		now:     time.Now,
	}
}

func (s *Service) snapshot(name string) (Record, error) {
	data, err := s.sync.Raw()
	if err != nil {
		return Record{}, err
	}
	now := s.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Còpia " + now.In(s.loc).Format("02/01/2006 15:04")
	}
	return Record{Timestamp: now.UnixMilli(), Name: name, Data: data}, nil
}

// Create stores a copy of the current document.
func (s *Service) Create(ctx context.Context, name string) (Record, error) {
	rec, err := s.snapshot(name)
	if err != nil {
		return Record{}, err
	}
	id, err := s.backups.Add(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("create backup: %w", err)
	}
	rec.ID = id
	s.archive.put(ctx, rec)
	logger.Infof("backup: created %s (%s)", id, rec.Name)
	return rec, nil
}

// List returns every backup newest first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	all, err := s.backups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := make([]Summary, 0, len(all))
	for id, rec := range all {
		out = append(out, Summary{ID: id, Timestamp: rec.Timestamp, Name: rec.Name, Master: id == MasterID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.backups.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get backup %s: %w", id, err)
	}
	rec.ID = id
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.backups.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}
	s.archive.remove(ctx, id)
	return nil
}

// Restore overwrites the site document with the backup's data. Sections the
// backup lacks come from the defaults, never from the current document.
func (s *Service) Restore(ctx context.Context, id string) (siteconfig.Document, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return siteconfig.Document{}, err
	}
	t, err := decodeData(rec.Data)
	if err != nil {
		return siteconfig.Document{}, err
	}
	if err := s.sync.Replace(ctx, t); err != nil {
		return siteconfig.Document{}, err
	}
	logger.Infof("backup: restored %s", id)
	return s.sync.Get(), nil
}

// SetMaster overwrites the master record with the current document.
func (s *Service) SetMaster(ctx context.Context) (Record, error) {
	rec, err := s.snapshot("Versió d'entrega")
	if err != nil {
		return Record{}, err
	}
	if err := s.backups.Put(ctx, MasterID, rec); err != nil {
		return Record{}, fmt.Errorf("set master: %w", err)
	}
	rec.ID = MasterID
	s.archive.put(ctx, rec)
	return rec, nil
}

// FactoryReset restores the master backup, or the defaults when the master
// is missing or unreadable.
func (s *Service) FactoryReset(ctx context.Context) (Source, error) {
	t, src := siteconfig.DefaultTree(), SourceDefaults
	rec, err := s.Get(ctx, MasterID)
	switch {
	case err == nil:
		if d, derr := decodeData(rec.Data); derr == nil {
			t, src = d, SourceMaster
		} else {
			logger.Warnf("backup: master unreadable, resetting to defaults: %v", derr)
		}
	case errors.Is(err, ErrNotFound):
	default:
		logger.Warnf("backup: reading master failed, resetting to defaults: %v", err)
	}
	if err := s.sync.Replace(ctx, t); err != nil {
		return src, err
	}
	logger.Infof("backup: factory reset from %s", src)
	return src, nil
}

// Export returns a download URL for the archived copy of a backup.
func (s *Service) Export(ctx context.Context, id string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.archive.url(ctx, rec)
}

// decodeData fills the backup over the defaults, never over the current
// document.
func decodeData(data json.RawMessage) (siteconfig.Tree, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, ErrCorrupt
	}
	t, err := siteconfig.Ingest(siteconfig.DefaultTree(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return t, nil
}
