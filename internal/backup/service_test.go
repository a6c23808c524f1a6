package backup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/internal/store"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func (f *fakeObjects) PutJSON(ctx context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return errors.New("bucket unavailable")
	}
	f.objects[key] = body
	return nil
}

func (f *fakeObjects) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) PresignedURL(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	return "https://objects.test/" + key + "?name=" + filename, nil
}

func (f *fakeObjects) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

type fixture struct {
	st      *store.MemoryStore
	sync    *siteconfig.Synchronizer
	svc     *Service
	objects *fakeObjects
}

func newFixture(t *testing.T, withArchive bool) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	s := siteconfig.NewSynchronizer(st)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	<-s.Ready()

	f := &fixture{st: st, sync: s}
	var archive *Archive
	if withArchive {
		f.objects = &fakeObjects{objects: map[string][]byte{}}
		archive = NewArchive(f.objects, time.Minute)
	}
	f.svc = NewService(st, s, archive, time.UTC)
	return f
}

func (f *fixture) patch(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, f.sync.Update(context.Background(), siteconfig.Patch{key: json.RawMessage(value)}))
}

func TestCreateAndList(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	clock := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return clock }

	first, err := f.svc.Create(ctx, "  abans de l'estiu ")
	require.NoError(t, err)
	assert.Equal(t, "abans de l'estiu", first.Name)
	assert.Equal(t, clock.UnixMilli(), first.Timestamp)

	clock = clock.Add(time.Hour)
	second, err := f.svc.Create(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Còpia 14/03/2026 13:30", second.Name)

	clock = clock.Add(time.Minute)
	_, err = f.svc.SetMaster(ctx)
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, MasterID, list[0].ID)
	assert.True(t, list[0].Master)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)
}

func TestCreateIsDeepCopy(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	rec, err := f.svc.Create(ctx, "snap")
	require.NoError(t, err)
	f.patch(t, "brand", `{"name": "Changed later"}`)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	var doc siteconfig.Document
	require.NoError(t, json.Unmarshal(got.Data, &doc))
	assert.Equal(t, siteconfig.Defaults().Brand.Name, doc.Brand.Name)
}

func TestRestoreIsTotalOverwrite(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.patch(t, "brand", `{"name": "Backed up"}`)
	rec, err := f.svc.Create(ctx, "snap")
	require.NoError(t, err)
	want := f.sync.Get()

	f.patch(t, "extraMenus", `[{"id": "nadal", "title": "Menú de Nadal"}]`)
	f.patch(t, "brand", `{"name": "Edited"}`)

	doc, err := f.svc.Restore(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, want, doc)
	assert.Equal(t, want, f.sync.Get())
	assert.Empty(t, f.sync.Get().ExtraMenus)
}

func TestBackupKeepsUntypedContent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.st.Set(ctx, siteconfig.DocumentPath, json.RawMessage(
		`{"gallery": {"images": ["/g/1.jpg"]}, "hero": {"title": "Amb galeria", "badge": "Nou!"}}`)))
	require.Eventually(t, func() bool { return f.sync.Get().Hero.Title == "Amb galeria" }, 2*time.Second, 10*time.Millisecond)

	rec, err := f.svc.Create(ctx, "amb galeria")
	require.NoError(t, err)
	require.NoError(t, f.st.Set(ctx, siteconfig.DocumentPath, json.RawMessage(`{"brand": {"name": "Sense galeria"}}`)))
	require.NoError(t, f.sync.Replace(ctx, siteconfig.DefaultTree()))

	_, err = f.svc.Restore(ctx, rec.ID)
	require.NoError(t, err)
	raw, err := f.st.Get(ctx, siteconfig.DocumentPath)
	require.NoError(t, err)
	var stored struct {
		Gallery map[string][]string    `json:"gallery"`
		Hero    map[string]interface{} `json:"hero"`
	}
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, []string{"/g/1.jpg"}, stored.Gallery["images"])
	assert.Equal(t, "Nou!", stored.Hero["badge"])
	assert.Equal(t, "Amb galeria", stored.Hero["title"])
}

func TestRestoreFillsMissingSectionsFromDefaults(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.st.Set(ctx, "backups/legacy", json.RawMessage(
		`{"timestamp": 1, "name": "old", "data": {"brand": {"name": "Vella"}, "foodMenu": [{"title": "Plats"}]}}`)))
	f.patch(t, "contact", `{"phone": "not in backup"}`)

	doc, err := f.svc.Restore(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "Vella", doc.Brand.Name)
	assert.Equal(t, siteconfig.Defaults().Contact, doc.Contact)
	require.Len(t, doc.FoodMenu.Sections, 1)
}

func TestRestoreErrors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Restore(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.st.Set(ctx, "backups/broken", json.RawMessage(`{"timestamp": 1, "name": "x", "data": "oops"}`)))
	_, err = f.svc.Restore(ctx, "broken")
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestFactoryResetWithoutMasterYieldsDefaults(t *testing.T) {
	f := newFixture(t, false)
	f.patch(t, "brand", `{"name": "Edited"}`)

	src, err := f.svc.FactoryReset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceDefaults, src)
	assert.Equal(t, siteconfig.Defaults(), f.sync.Get())
}

func TestFactoryResetPrefersMaster(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.patch(t, "brand", `{"name": "Entrega"}`)
	_, err := f.svc.SetMaster(ctx)
	require.NoError(t, err)
	f.patch(t, "brand", `{"name": "Edited"}`)

	src, err := f.svc.FactoryReset(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceMaster, src)
	assert.Equal(t, "Entrega", f.sync.Get().Brand.Name)
}

func TestFactoryResetUnreadableMasterFallsBack(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.st.Set(ctx, "backups/"+MasterID, json.RawMessage(`{"name": "m", "data": [1]}`)))

	src, err := f.svc.FactoryReset(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceDefaults, src)
	assert.Equal(t, siteconfig.Defaults(), f.sync.Get())
}

func TestDelete(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	rec, err := f.svc.Create(ctx, "x")
	require.NoError(t, err)
	require.True(t, f.objects.has(objectKey(rec.ID)))

	require.NoError(t, f.svc.Delete(ctx, rec.ID))
	assert.False(t, f.objects.has(objectKey(rec.ID)))
	require.ErrorIs(t, f.svc.Delete(ctx, rec.ID), ErrNotFound)
	_, err = f.svc.Get(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t, true)
	f.objects.failPut = true

	rec, err := f.svc.Create(context.Background(), "x")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}

func TestExport(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	rec, err := f.svc.Create(ctx, "x")
	require.NoError(t, err)

	url, err := f.svc.Export(ctx, rec.ID)
	require.NoError(t, err)
	assert.Contains(t, url, objectKey(rec.ID))

	_, err = f.svc.Export(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	plain := newFixture(t, false)
	_, err = plain.svc.Export(ctx, rec.ID)
	require.ErrorIs(t, err, ErrArchiveDisabled)
}
