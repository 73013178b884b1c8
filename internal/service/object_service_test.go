package service_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
	"github.com/zzenonn/zbucket/internal/layout"
	"github.com/zzenonn/zbucket/internal/placement"
	"github.com/zzenonn/zbucket/internal/repository/objectstore"
	"github.com/zzenonn/zbucket/internal/service"
)

// mockMetadataRepository is an in-memory metadata repository for testing.
type mockMetadataRepository struct {
	mu         sync.Mutex
	items      map[string]domain.ObjectMetadata
	createFunc func(ctx context.Context, metadata domain.ObjectMetadata) error
}

func newMockMetadataRepository() *mockMetadataRepository {
	return &mockMetadataRepository{items: make(map[string]domain.ObjectMetadata)}
}

func (m *mockMetadataRepository) CreateMetadata(ctx context.Context, metadata domain.ObjectMetadata) (domain.ObjectMetadata, error) {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, metadata); err != nil {
			return domain.ObjectMetadata{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[metadata.GFID] = metadata
	return metadata, nil
}

func (m *mockMetadataRepository) GetMetadata(ctx context.Context, gfid domain.GFID) (domain.ObjectMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.items[gfid.String()]
	if !ok {
		return domain.ObjectMetadata{}, zerrors.ErrObjectNotFound
	}
	return meta, nil
}

func (m *mockMetadataRepository) DeleteMetadata(ctx context.Context, gfid domain.GFID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, gfid.String())
	return nil
}

func (m *mockMetadataRepository) ListMetadata(ctx context.Context) ([]domain.ObjectMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ObjectMetadata
	for _, meta := range m.items {
		out = append(out, meta)
	}
	return out, nil
}

// failingRepository wraps a repository and fails uploads.
type failingRepository struct {
	*objectstore.MemoryObjectRepository
	uploadErr error
}

func (f *failingRepository) Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error) {
	return "", f.uploadErr
}

type fixture struct {
	placer *placement.BucketPlacer
	repos  []*objectstore.MemoryObjectRepository
	meta   *mockMetadataRepository
}

func newFixture(t *testing.T, subvolumes int) *fixture {
	t.Helper()

	f := &fixture{placer: placement.NewBucketPlacer(), meta: newMockMetadataRepository()}
	for i := 0; i < subvolumes; i++ {
		repo := objectstore.NewMemoryObjectRepository(string(rune('a' + i)))
		f.repos = append(f.repos, repo)
		require.NoError(t, f.placer.RegisterBucket(repo.Name(), repo))
	}
	require.NoError(t, f.placer.Build(layout.StaticBucketType, &layout.Options{}))
	t.Cleanup(f.placer.Close)
	return f
}

func fixedAllocator(gfid domain.GFID) service.GFIDAllocator {
	return func(int) domain.GFID { return gfid }
}

func TestObjectService_PutGet(t *testing.T) {
	f := newFixture(t, 3)
	objectGFID := domain.NewGFID(10)
	svc := service.NewObjectService(f.placer, f.meta, service.WithAllocator(fixedAllocator(objectGFID)))

	content := []byte("the quick brown fox jumps over the lazy dog")
	gfid, err := svc.Put(context.Background(), "docs/fox.txt", bytes.NewReader(content), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, objectGFID, gfid)

	meta, err := f.meta.GetMetadata(context.Background(), gfid)
	require.NoError(t, err)
	require.Len(t, meta.Shards, 6)
	assert.Equal(t, "docs/fox.txt", meta.Name)
	assert.Equal(t, int64(len(content)), meta.OriginalSize)

	for i, shard := range meta.Shards {
		bucket := 10 + i
		assert.Equal(t, bucket, shard.Bucket)
		// bucket b is owned by subvolume b mod 3
		owner := f.repos[bucket%3]
		assert.Equal(t, owner.Name(), shard.Subvolume)
		assert.Equal(t, "mem", shard.StorageType)
		assert.Contains(t, owner.Keys(), shard.GFID)
	}

	data, got, err := svc.Get(context.Background(), gfid)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, meta, got)
}

func TestObjectService_GetSurvivesLostShards(t *testing.T) {
	f := newFixture(t, 6)
	svc := service.NewObjectService(f.placer, f.meta, service.WithAllocator(fixedAllocator(domain.NewGFID(0))))

	content := make([]byte, 64*1024)
	_, err := rand.Read(content)
	require.NoError(t, err)

	gfid, err := svc.Put(context.Background(), "blob.bin", bytes.NewReader(content), 4, 2)
	require.NoError(t, err)

	// Shards 0..5 live in buckets 0..5, one per subvolume. Losing two
	// subvolumes' worth is tolerated.
	meta, err := f.meta.GetMetadata(context.Background(), gfid)
	require.NoError(t, err)
	require.NoError(t, f.repos[1].Delete(context.Background(), meta.Shards[1].GFID))
	_, err = f.repos[4].Upload(context.Background(), meta.Shards[4].GFID, strings.NewReader("corrupt"), true)
	require.NoError(t, err)

	data, _, err := svc.Get(context.Background(), gfid)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	require.NoError(t, f.repos[2].Delete(context.Background(), meta.Shards[2].GFID))
	_, _, err = svc.Get(context.Background(), gfid)
	assert.ErrorIs(t, err, zerrors.ErrInsufficientShards)
}

func TestObjectService_Delete(t *testing.T) {
	f := newFixture(t, 2)
	svc := service.NewObjectService(f.placer, f.meta)

	gfid, err := svc.Put(context.Background(), "x", strings.NewReader("payload"), 2, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), gfid))
	for _, repo := range f.repos {
		assert.Empty(t, repo.Keys())
	}

	_, _, err = svc.Get(context.Background(), gfid)
	assert.ErrorIs(t, err, zerrors.ErrObjectNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), gfid), zerrors.ErrObjectNotFound)
}

func TestObjectService_PutErrors(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		f := newFixture(t, 1)
		svc := service.NewObjectService(f.placer, f.meta)
		_, err := svc.Put(context.Background(), "empty", strings.NewReader(""), 2, 1)
		assert.ErrorIs(t, err, zerrors.ErrEmptyFile)
	})

	t.Run("invalid shard counts", func(t *testing.T) {
		f := newFixture(t, 1)
		svc := service.NewObjectService(f.placer, f.meta)
		_, err := svc.Put(context.Background(), "x", strings.NewReader("data"), 0, 1)
		assert.Error(t, err)
	})

	t.Run("layout not built", func(t *testing.T) {
		svc := service.NewObjectService(placement.NewBucketPlacer(), newMockMetadataRepository())
		_, err := svc.Put(context.Background(), "x", strings.NewReader("data"), 2, 1)
		assert.ErrorIs(t, err, zerrors.ErrLayoutNotBuilt)
	})

	t.Run("upload failure cleans up", func(t *testing.T) {
		good := objectstore.NewMemoryObjectRepository("good")
		bad := &failingRepository{
			MemoryObjectRepository: objectstore.NewMemoryObjectRepository("bad"),
			uploadErr:              errors.New("upload failed"),
		}
		p := placement.NewBucketPlacer()
		require.NoError(t, p.RegisterBucket("good", good))
		require.NoError(t, p.RegisterBucket("bad", bad))
		require.NoError(t, p.Build(layout.StaticBucketType, &layout.Options{}))

		meta := newMockMetadataRepository()
		svc := service.NewObjectService(p, meta)
		_, err := svc.Put(context.Background(), "x", strings.NewReader("some data"), 2, 2)
		assert.ErrorContains(t, err, "upload failed")
		assert.Empty(t, good.Keys())
		assert.Empty(t, meta.items)
	})

	t.Run("metadata failure cleans up", func(t *testing.T) {
		f := newFixture(t, 2)
		f.meta.createFunc = func(ctx context.Context, metadata domain.ObjectMetadata) error {
			return errors.New("table missing")
		}
		svc := service.NewObjectService(f.placer, f.meta)
		_, err := svc.Put(context.Background(), "x", strings.NewReader("some data"), 2, 1)
		assert.ErrorContains(t, err, "table missing")
		for _, repo := range f.repos {
			assert.Empty(t, repo.Keys())
		}
	})
}

func TestObjectService_ShardBucketsWrap(t *testing.T) {
	f := newFixture(t, 3)
	svc := service.NewObjectService(f.placer, f.meta, service.WithAllocator(fixedAllocator(domain.NewGFID(65534))))

	gfid, err := svc.Put(context.Background(), "wrap", strings.NewReader("wrap around the table"), 2, 2)
	require.NoError(t, err)

	meta, err := f.meta.GetMetadata(context.Background(), gfid)
	require.NoError(t, err)

	var buckets []int
	for _, s := range meta.Shards {
		buckets = append(buckets, s.Bucket)
	}
	assert.Equal(t, []int{65534, 65535, 0, 1}, buckets)
}

func TestObjectService_LocateAndList(t *testing.T) {
	f := newFixture(t, 3)
	svc := service.NewObjectService(f.placer, f.meta)

	loc, err := svc.Locate(domain.NewGFID(4))
	require.NoError(t, err)
	assert.Equal(t, uint16(4), loc.Bucket)
	assert.Equal(t, "mem://b", loc.Subvolume)

	_, err = svc.Put(context.Background(), "one", strings.NewReader("1"), 1, 1)
	require.NoError(t, err)
	_, err = svc.Put(context.Background(), "two", strings.NewReader("2"), 1, 1)
	require.NoError(t, err)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestShardGFID(t *testing.T) {
	base := domain.NewGFID(100)
	s := service.ShardGFID(base, 3, layout.MaxBuckets)
	assert.Equal(t, uint16(103), s.Bucket())
	assert.Equal(t, base[2:], s[2:])
	assert.Equal(t, base, service.ShardGFID(base, 0, layout.MaxBuckets))

	assert.Equal(t, uint16(1), service.ShardGFID(domain.NewGFID(65535), 2, layout.MaxBuckets).Bucket())
	assert.Equal(t, uint16(1), service.ShardGFID(domain.NewGFID(5), 2, 6).Bucket())
	assert.Equal(t, uint16(104), service.ShardGFID(base, 4, 0).Bucket(), "zero means the full table")
}

func newShortFixture(t *testing.T, subvolumes, buckets int) *fixture {
	t.Helper()

	f := &fixture{placer: placement.NewBucketPlacer(), meta: newMockMetadataRepository()}
	for i := 0; i < subvolumes; i++ {
		repo := objectstore.NewMemoryObjectRepository(string(rune('a' + i)))
		f.repos = append(f.repos, repo)
		require.NoError(t, f.placer.RegisterBucket(repo.Name(), repo))
	}
	require.NoError(t, f.placer.Build(layout.StaticBucketType, &layout.Options{Buckets: buckets}))
	t.Cleanup(f.placer.Close)
	return f
}

func TestObjectService_ShortTable(t *testing.T) {
	f := newShortFixture(t, 3, 6)
	svc := service.NewObjectService(f.placer, f.meta)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		content := []byte(strings.Repeat("short table ", i+1))
		gfid, err := svc.Put(ctx, "obj", bytes.NewReader(content), 4, 2)
		require.NoError(t, err, "put %d", i)
		assert.Less(t, int(gfid.Bucket()), 6)

		meta, err := f.meta.GetMetadata(ctx, gfid)
		require.NoError(t, err)
		for _, shard := range meta.Shards {
			assert.Less(t, shard.Bucket, 6)
			assert.Equal(t, f.repos[shard.Bucket%3].Name(), shard.Subvolume)
		}

		data, _, err := svc.Get(ctx, gfid)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	}
}

func TestObjectService_ShortTableWraps(t *testing.T) {
	f := newShortFixture(t, 3, 6)
	svc := service.NewObjectService(f.placer, f.meta, service.WithAllocator(fixedAllocator(domain.NewGFID(5))))

	gfid, err := svc.Put(context.Background(), "wrap", strings.NewReader("wrap around a short table"), 2, 2)
	require.NoError(t, err)

	meta, err := f.meta.GetMetadata(context.Background(), gfid)
	require.NoError(t, err)

	var buckets []int
	for _, s := range meta.Shards {
		buckets = append(buckets, s.Bucket)
	}
	assert.Equal(t, []int{5, 0, 1, 2}, buckets)
}
