package keyrepo

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/keyrepo/internal/common"
	"github.com/dmitrijs2005/keyrepo/internal/logging"
	"github.com/dmitrijs2005/keyrepo/internal/objectstore"
	"github.com/dmitrijs2005/keyrepo/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a MemoryStore, failing the next N calls of each kind and
// recording which keys were downloaded.
type flakyStore struct {
	*objectstore.MemoryStore

	mu            sync.Mutex
	listFails     int
	downloadFails map[string]int
	uploadFails   int
	permanent     error
	lists         int
	downloads     []string
	uploads       []string
	contentTypes  map[string]string
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MemoryStore:   objectstore.NewMemoryStore(),
		downloadFails: map[string]int{},
		contentTypes:  map[string]string{},
	}
}

func (f *flakyStore) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	f.mu.Lock()
	f.lists++
	if f.permanent != nil {
		f.mu.Unlock()
		return nil, f.permanent
	}
	if f.listFails > 0 {
		f.listFails--
		f.mu.Unlock()
		return nil, errors.New("list: service unavailable")
	}
	f.mu.Unlock()
	return f.MemoryStore.List(ctx, prefix)
}

func (f *flakyStore) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	f.downloads = append(f.downloads, key)
	if f.downloadFails[key] > 0 {
		f.downloadFails[key]--
		f.mu.Unlock()
		return nil, errors.New("download: connection reset")
	}
	f.mu.Unlock()
	return f.MemoryStore.Download(ctx, key)
}

func (f *flakyStore) Upload(ctx context.Context, key, contentType string, data []byte) error {
	f.mu.Lock()
	f.uploads = append(f.uploads, key)
	f.contentTypes[key] = contentType
	if f.uploadFails > 0 {
		f.uploadFails--
		f.mu.Unlock()
		return errors.New("upload: throttled")
	}
	f.mu.Unlock()
	return f.MemoryStore.Upload(ctx, key, contentType, data)
}

type repoFixture struct {
	repo   *Repository
	store  *flakyStore
	delays []time.Duration
	logs   *bytes.Buffer
}

func newFixture(t *testing.T, prefix string, opts ...retry.Option) *repoFixture {
	t.Helper()
	fx := &repoFixture{store: newFlakyStore(), logs: &bytes.Buffer{}}

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(fx.logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	opts = append([]retry.Option{retry.WithSleep(func(_ context.Context, d time.Duration) error {
		fx.delays = append(fx.delays, d)
		return nil
	})}, opts...)
	exec := retry.New(retry.DefaultConfig(), log, opts...)

	repo, err := NewRepository(fx.store, exec, Options{Namespace: "vault", Prefix: prefix}, log)
	require.NoError(t, err)
	fx.repo = repo
	return fx
}

func (fx *repoFixture) put(t *testing.T, key, body string) {
	t.Helper()
	require.NoError(t, fx.store.MemoryStore.Upload(context.Background(), key, common.DocumentContentType, []byte(body)))
}

func TestNewRepository_RequiresNamespace(t *testing.T) {
	_, err := NewRepository(objectstore.NewMemoryStore(), nil, Options{Prefix: "keys/"}, nil)
	require.ErrorIs(t, err, common.ErrorMissingNamespace)

	repo, err := NewRepository(objectstore.NewMemoryStore(), nil, Options{Namespace: "vault"}, nil)
	require.NoError(t, err)
	assert.Equal(t, retry.DefaultConfig(), repo.exec.Config())
}

func TestStoreDocument_ValidNameRoundTrip(t *testing.T) {
	fx := newFixture(t, "keys/")
	ctx := context.Background()
	doc := newKeyDocument("a1b2")

	require.NoError(t, fx.repo.StoreDocument(ctx, doc, "key-2024-01-01"))
	assert.Equal(t, []string{"keys/key-2024-01-01.xml"}, fx.store.uploads)
	assert.Equal(t, "application/xml", fx.store.contentTypes["keys/key-2024-01-01.xml"])

	docs, err := fx.repo.GetAllDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	want, err := doc.Bytes()
	require.NoError(t, err)
	got, err := docs[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	stored, err := fx.store.MemoryStore.Download(ctx, "keys/key-2024-01-01.xml")
	require.NoError(t, err)
	assert.Equal(t, want, stored)

	assert.Contains(t, fx.logs.String(), `msg="writing document" namespace=vault key=keys/key-2024-01-01.xml`)
	assert.Contains(t, fx.logs.String(), `level=DEBUG msg="reading document" namespace=vault key=keys/key-2024-01-01.xml`)
}

func TestStoreDocument_EmptyNameGetsUUID(t *testing.T) {
	fx := newFixture(t, "keys/")

	require.NoError(t, fx.repo.StoreDocument(context.Background(), newKeyDocument("x"), ""))

	require.Len(t, fx.store.uploads, 1)
	uuidKey := regexp.MustCompile(`^keys/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.xml$`)
	assert.Regexp(t, uuidKey, fx.store.uploads[0])

	newName := strings.TrimSuffix(strings.TrimPrefix(fx.store.uploads[0], "keys/"), ".xml")
	assert.Contains(t, fx.logs.String(), `msg="unsuitable name, using generated name" namespace=vault friendly_name="" new_name=`+newName)
}

func TestStoreDocument_UnsuitableNames(t *testing.T) {
	orig := newName
	t.Cleanup(func() { newName = orig })
	newName = func() string { return "00000000-0000-0000-0000-000000000001" }

	for _, name := range []string{".hidden", "a\nb", "  ", strings.Repeat("k", 257)} {
		fx := newFixture(t, "")
		require.NoError(t, fx.repo.StoreDocument(context.Background(), newKeyDocument("x"), name))
		assert.Equal(t, []string{"00000000-0000-0000-0000-000000000001.xml"}, fx.store.uploads, "name %q", name)
	}
}

func TestStoreDocument_NilDocument(t *testing.T) {
	fx := newFixture(t, "keys/")
	err := fx.repo.StoreDocument(context.Background(), nil, "k")
	require.ErrorIs(t, err, common.ErrorNilDocument)
	assert.Empty(t, fx.store.uploads)
}

func TestStoreDocument_EmptyDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
	}{
		{name: "zero value", doc: &Document{}},
		{name: "nil root", doc: NewDocument(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, "keys/")
			var err error
			require.NotPanics(t, func() {
				err = fx.repo.StoreDocument(context.Background(), tt.doc, "k")
			})
			require.ErrorIs(t, err, common.ErrorNilDocument)
			assert.Empty(t, fx.store.uploads)
		})
	}
}

func TestStoreDocument_RetriesUpload(t *testing.T) {
	fx := newFixture(t, "keys/")
	fx.store.uploadFails = 2

	require.NoError(t, fx.repo.StoreDocument(context.Background(), newKeyDocument("x"), "k"))
	assert.Equal(t, []string{"keys/k.xml", "keys/k.xml", "keys/k.xml"}, fx.store.uploads)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fx.delays)
}

func TestStoreDocument_PersistentFailureSurfaces(t *testing.T) {
	fx := newFixture(t, "keys/")
	fx.store.uploadFails = 5

	err := fx.repo.StoreDocument(context.Background(), newKeyDocument("x"), "k")
	require.EqualError(t, err, "upload: throttled")
	assert.Len(t, fx.store.uploads, 5)
	assert.Len(t, fx.delays, 4)

	_, err = fx.store.MemoryStore.Download(context.Background(), "keys/k.xml")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetAllDocuments_SkipsForeignObjects(t *testing.T) {
	fx := newFixture(t, "keys/")
	fx.put(t, "keys/a.xml", `<key id="a"/>`)
	fx.put(t, "keys/b.json", `{"not":"xml"}`)
	fx.put(t, "keys/c.xml", `<key id="c"/>`)
	fx.put(t, "other/d.xml", `<key id="d"/>`)

	docs, err := fx.repo.GetAllDocuments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"keys/a.xml", "keys/c.xml"}, fx.store.downloads)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID())
	assert.Equal(t, "c", docs[1].ID())
}

func TestGetAllDocuments_Empty(t *testing.T) {
	fx := newFixture(t, "keys/")

	docs, err := fx.repo.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestGetAllDocuments_RetriesEachCallIndependently(t *testing.T) {
	fx := newFixture(t, "keys/")
	fx.put(t, "keys/1.xml", `<key id="1"/>`)
	fx.put(t, "keys/2.xml", `<key id="2"/>`)
	fx.put(t, "keys/3.xml", `<key id="3"/>`)
	fx.store.listFails = 1
	fx.store.downloadFails["keys/3.xml"] = 2

	docs, err := fx.repo.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, 2, fx.store.lists)
	assert.Equal(t, []string{"keys/1.xml", "keys/2.xml", "keys/3.xml", "keys/3.xml", "keys/3.xml"}, fx.store.downloads)
	assert.Equal(t, []time.Duration{time.Second, time.Second, 2 * time.Second}, fx.delays)
}

func TestGetAllDocuments_NoPartialResults(t *testing.T) {
	fx := newFixture(t, "keys/")
	fx.put(t, "keys/1.xml", `<key id="1"/>`)
	fx.put(t, "keys/2.xml", `<key id="2"/>`)
	fx.store.downloadFails["keys/2.xml"] = 5

	docs, err := fx.repo.GetAllDocuments(context.Background())
	require.EqualError(t, err, "download: connection reset")
	assert.Nil(t, docs)
}

func TestGetAllDocuments_MalformedIsNotRetried(t *testing.T) {
	fx := newFixture(t, "keys/")
	fx.put(t, "keys/1.xml", `<key id="1"/>`)
	fx.put(t, "keys/2.xml", `<key id="2">`)

	docs, err := fx.repo.GetAllDocuments(context.Background())
	require.ErrorIs(t, err, common.ErrorMalformedDocument)
	assert.Contains(t, err.Error(), `document "keys/2.xml"`)
	assert.Nil(t, docs)
	assert.Equal(t, []string{"keys/1.xml", "keys/2.xml"}, fx.store.downloads)
	assert.Empty(t, fx.delays)
}

func TestGetAllDocuments_PermanentErrorWithClassifier(t *testing.T) {
	denied := errors.New("access denied")
	fx := newFixture(t, "keys/", retry.WithClassifier(retry.Except(denied)))
	fx.store.permanent = denied

	_, err := fx.repo.GetAllDocuments(context.Background())
	require.ErrorIs(t, err, denied)
	assert.Equal(t, 1, fx.store.lists)
	assert.Empty(t, fx.delays)
}

func TestGetAllDocuments_PermanentErrorRetriedByDefault(t *testing.T) {
	denied := errors.New("access denied")
	fx := newFixture(t, "keys/")
	fx.store.permanent = denied

	_, err := fx.repo.GetAllDocuments(context.Background())
	require.ErrorIs(t, err, denied)
	assert.Equal(t, 5, fx.store.lists)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, fx.delays)
}

func TestStoreDocument_ConcurrentDistinctNames(t *testing.T) {
	repo, err := NewRepository(objectstore.NewMemoryStore(), nil, Options{Namespace: "vault", Prefix: "keys/"}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, repo.StoreDocument(context.Background(), newKeyDocument(id), "key-"+id))
		}(i)
	}
	wg.Wait()

	docs, err := repo.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 20)
}
