package layout

import (
	"fmt"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
)

type fakeSubvolume string

func (f fakeSubvolume) Name() string { return string(f) }

func subvolumes(names ...string) []Subvolume {
	out := make([]Subvolume, len(names))
	for i, n := range names {
		out[i] = fakeSubvolume(n)
	}
	return out
}

func gfidInBucket(bucket int) domain.GFID {
	return domain.NewGFID(uint16(bucket))
}

func TestStaticBucket_Example(t *testing.T) {
	svs := subvolumes("A", "B", "C")
	l, err := New(StaticBucketType, 3, svs, &Options{Buckets: 6})
	require.NoError(t, err)
	defer l.Destroy()

	want := []string{"A", "B", "C", "A", "B", "C"}
	require.Equal(t, len(want), l.Len())
	for i, name := range want {
		sv, err := l.Bucket(i)
		require.NoError(t, err)
		assert.Equal(t, name, sv.Name(), "bucket %d", i)
	}

	sv, err := l.Search(gfidInBucket(4))
	require.NoError(t, err)
	assert.Equal(t, "B", sv.Name())

	sv, err = l.Search(gfidInBucket(0))
	require.NoError(t, err)
	assert.Equal(t, "A", sv.Name())
}

func TestStaticBucket_Determinism(t *testing.T) {
	for _, k := range []int{1, 2, 3, 7, 10, 64, 1000} {
		names := make([]string, k)
		for i := range names {
			names[i] = fmt.Sprintf("sv-%d", i)
		}
		svs := subvolumes(names...)

		first, err := New(StaticBucketType, k, svs, &Options{})
		require.NoError(t, err)
		second, err := New(StaticBucketType, k, svs, &Options{})
		require.NoError(t, err)

		require.Equal(t, MaxBuckets, first.Len())
		for i := 0; i < MaxBuckets; i++ {
			a, err := first.Bucket(i)
			require.NoError(t, err)
			b, err := second.Bucket(i)
			require.NoError(t, err)
			if a != svs[i%k] || b != a {
				t.Fatalf("k=%d bucket %d: got %v/%v, want %v", k, i, a, b, svs[i%k])
			}
		}
		first.Destroy()
		second.Destroy()
	}
}

func TestStaticBucket_Coverage(t *testing.T) {
	tests := []struct {
		name    string
		k       int
		buckets int
	}{
		{name: "even split", k: 4, buckets: 0},
		{name: "uneven split", k: 3, buckets: 0},
		{name: "prime", k: 13, buckets: 0},
		{name: "small table", k: 4, buckets: 10},
		{name: "more subvolumes than buckets", k: 8, buckets: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := make([]string, tt.k)
			for i := range names {
				names[i] = "sv-" + string(rune('a'+i))
			}
			l, err := New(StaticBucketType, tt.k, subvolumes(names...), &Options{Buckets: tt.buckets})
			require.NoError(t, err)
			defer l.Destroy()

			dist, err := Distribution(l)
			require.NoError(t, err)

			n := l.Len()
			lo, hi := n/tt.k, (n+tt.k-1)/tt.k
			total := 0
			for _, name := range names {
				c := dist[name]
				total += c
				assert.GreaterOrEqual(t, c, lo, name)
				assert.LessOrEqual(t, c, hi, name)
			}
			assert.Equal(t, n, total)
		})
	}
}

func TestStaticBucket_RoundTripAndTotality(t *testing.T) {
	svs := subvolumes("A", "B", "C", "D", "E")
	l, err := New(StaticBucketType, len(svs), svs, &Options{})
	require.NoError(t, err)
	defer l.Destroy()

	for b := 0; b < MaxBuckets; b++ {
		got, err := l.Search(gfidInBucket(b))
		if err != nil {
			t.Fatalf("bucket %d: %v", b, err)
		}
		want, _ := l.Bucket(b)
		if got == nil || got != want {
			t.Fatalf("bucket %d: got %v, want %v", b, got, want)
		}
	}
}

func TestStaticBucket_UsesFirstCountSubvolumes(t *testing.T) {
	svs := subvolumes("A", "B", "C", "D")
	l, err := New(StaticBucketType, 2, svs, &Options{Buckets: 4})
	require.NoError(t, err)

	dist, err := Distribution(l)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 2, "B": 2}, dist)
}

func TestStaticBucket_CopiesSubvolumeList(t *testing.T) {
	svs := subvolumes("A", "B")
	l, err := New(StaticBucketType, 2, svs, &Options{Buckets: 2})
	require.NoError(t, err)

	svs[0] = fakeSubvolume("Z")

	sv, err := l.Bucket(0)
	require.NoError(t, err)
	assert.Equal(t, "A", sv.Name())
}

func TestStaticBucket_InitFailures(t *testing.T) {
	svs := subvolumes("A", "B")

	tests := []struct {
		name       string
		layoutType string
		count      int
		subvols    []Subvolume
		opts       *Options
		wantErr    error
	}{
		{name: "empty type", layoutType: "", count: 2, subvols: svs, opts: &Options{}, wantErr: zerrors.ErrInvalidLayoutType},
		{name: "wrong type", layoutType: "hash-range", count: 2, subvols: svs, opts: &Options{}, wantErr: zerrors.ErrInvalidLayoutType},
		{name: "truncated type", layoutType: "static", count: 2, subvols: svs, opts: &Options{}, wantErr: zerrors.ErrInvalidLayoutType},
		{name: "zero count", layoutType: StaticBucketType, count: 0, subvols: svs, opts: &Options{}, wantErr: zerrors.ErrInvalidSubvolumeCount},
		{name: "negative count", layoutType: StaticBucketType, count: -1, subvols: svs, opts: &Options{}, wantErr: zerrors.ErrInvalidSubvolumeCount},
		{name: "count beyond list", layoutType: StaticBucketType, count: 3, subvols: svs, opts: &Options{}, wantErr: zerrors.ErrInvalidSubvolumeCount},
		{name: "nil list", layoutType: StaticBucketType, count: 1, subvols: nil, opts: &Options{}, wantErr: zerrors.ErrNoSubvolumes},
		{name: "nil subvolume", layoutType: StaticBucketType, count: 2, subvols: []Subvolume{fakeSubvolume("A"), nil}, opts: &Options{}, wantErr: zerrors.ErrNilSubvolume},
		{name: "nil options", layoutType: StaticBucketType, count: 2, subvols: svs, opts: nil, wantErr: zerrors.ErrMissingOptions},
		{name: "negative buckets", layoutType: StaticBucketType, count: 2, subvols: svs, opts: &Options{Buckets: -1}, wantErr: zerrors.ErrInvalidBucketCount},
		{name: "too many buckets", layoutType: StaticBucketType, count: 2, subvols: svs, opts: &Options{Buckets: MaxBuckets + 1}, wantErr: zerrors.ErrInvalidBucketCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := StaticBucketStrategy{}.Init(tt.layoutType, tt.count, tt.subvols, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, l)
		})
	}
}

func TestStaticBucket_PrefixTag(t *testing.T) {
	l, err := New(StaticBucketType+"-v2", 1, subvolumes("A"), &Options{Buckets: 1})
	require.NoError(t, err)
	assert.Equal(t, StaticBucketType, l.Type())
}

func TestStaticBucket_Destroy(t *testing.T) {
	l, err := New(StaticBucketType, 2, subvolumes("A", "B"), &Options{})
	require.NoError(t, err)

	l.Destroy()
	assert.Equal(t, 0, l.Len())

	_, err = l.Search(gfidInBucket(1))
	assert.ErrorIs(t, err, zerrors.ErrLayoutDestroyed)
	_, err = l.Bucket(0)
	assert.ErrorIs(t, err, zerrors.ErrLayoutDestroyed)

	// second call and nil receiver are no-ops
	l.Destroy()
	var nilLayout *StaticBucketLayout
	nilLayout.Destroy()
	assert.Equal(t, 0, nilLayout.Len())
}

func TestStaticBucket_SearchOutsideShortTable(t *testing.T) {
	l, err := New(StaticBucketType, 3, subvolumes("A", "B", "C"), &Options{Buckets: 6})
	require.NoError(t, err)

	_, err = l.Search(gfidInBucket(6))
	assert.ErrorIs(t, err, zerrors.ErrBucketOutOfRange)
	_, err = l.Bucket(-1)
	assert.ErrorIs(t, err, zerrors.ErrBucketOutOfRange)
}

func TestStaticBucket_DebugDump(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.InfoLevel)

	_, err := New(StaticBucketType, 2, subvolumes("A", "B"), &Options{
		Debug:  true,
		Logger: log.NewEntry(logger),
	})
	require.NoError(t, err)

	entries := hook.AllEntries()
	require.Len(t, entries, debugBuckets)
	assert.Equal(t, "StaticBucket: 0 A", entries[0].Message)
	assert.Equal(t, "StaticBucket: 15 B", entries[15].Message)
}

func TestStaticBucket_ConcurrentSearch(t *testing.T) {
	svs := subvolumes("A", "B", "C")
	l, err := New(StaticBucketType, 3, svs, &Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for b := w; b < MaxBuckets; b += 8 {
				sv, err := l.Search(gfidInBucket(b))
				if err != nil {
					errCh <- err
					return
				}
				if sv != svs[b%3] {
					errCh <- fmt.Errorf("bucket %d: got %s, want %s", b, sv.Name(), svs[b%3].Name())
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
	l.Destroy()
}

func BenchmarkStaticBucket_Search(b *testing.B) {
	l, err := New(StaticBucketType, 4, subvolumes("A", "B", "C", "D"), &Options{})
	if err != nil {
		b.Fatal(err)
	}
	gfids := make([]domain.GFID, 1024)
	for i := range gfids {
		gfids[i] = gfidInBucket(i * 61)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := l.Search(gfids[i%len(gfids)]); err != nil {
			b.Fatal(err)
		}
	}
}
