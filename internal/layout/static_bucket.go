package layout

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
)

// StaticBucketType is the canonical tag of the static bucket strategy.
const StaticBucketType = "static-bucket"

// debugBuckets is how many leading table entries a debug build logs.
const debugBuckets = 16

// StaticBucketStrategy builds bucket tables that assume the object identifier
// already carries its bucket: the upper 16 bits of a GFID index the table
// directly, no hashing involved. Subvolumes are dealt into the table
// round-robin, so subvolume j owns every bucket i with i mod k == j.
type StaticBucketStrategy struct{}

// Name returns StaticBucketType.
func (StaticBucketStrategy) Name() string {
	return StaticBucketType
}

// Init builds a static bucket layout over the first count subvolumes.
func (s StaticBucketStrategy) Init(layoutType string, count int, subvols []Subvolume, opts *Options) (Layout, error) {
	if !matchesType(s.Name(), layoutType) {
		return nil, fmt.Errorf("%w: %q is not a %s layout", zerrors.ErrInvalidLayoutType, layoutType, s.Name())
	}
	if len(subvols) == 0 {
		return nil, zerrors.ErrNoSubvolumes
	}
	if count <= 0 || count > len(subvols) {
		return nil, fmt.Errorf("%w: count %d, %d subvolumes", zerrors.ErrInvalidSubvolumeCount, count, len(subvols))
	}
	if opts == nil {
		return nil, zerrors.ErrMissingOptions
	}
	n, err := opts.bucketCount()
	if err != nil {
		return nil, err
	}

	members := make([]Subvolume, count)
	for i, sv := range subvols[:count] {
		if sv == nil {
			return nil, fmt.Errorf("%w: index %d", zerrors.ErrNilSubvolume, i)
		}
		members[i] = sv
	}

	buckets := make([]Subvolume, n)
	for i := range buckets {
		buckets[i] = members[i%count]
	}

	l := &StaticBucketLayout{buckets: buckets}

	logger := opts.logger().WithFields(log.Fields{
		"layout":     StaticBucketType,
		"buckets":    n,
		"subvolumes": count,
	})
	logger.Debug("Built static bucket layout")
	if opts.Debug {
		for i := 0; i < n && i < debugBuckets; i++ {
			logger.Infof("StaticBucket: %d %s", i, buckets[i].Name())
		}
	}

	return l, nil
}

// StaticBucketLayout is a read-only bucket table.
type StaticBucketLayout struct {
	buckets []Subvolume
}

// Search returns the subvolume for the bucket carried by gfid.
func (l *StaticBucketLayout) Search(gfid domain.GFID) (Subvolume, error) {
	return l.Bucket(int(gfid.Bucket()))
}

// Bucket returns the subvolume at bucket index i.
func (l *StaticBucketLayout) Bucket(i int) (Subvolume, error) {
	if l == nil || l.buckets == nil {
		return nil, zerrors.ErrLayoutDestroyed
	}
	if i < 0 || i >= len(l.buckets) {
		return nil, zerrors.BucketOutOfRangeError(i, len(l.buckets))
	}
	return l.buckets[i], nil
}

// Len returns the table length.
func (l *StaticBucketLayout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.buckets)
}

// Type returns StaticBucketType.
func (l *StaticBucketLayout) Type() string {
	return StaticBucketType
}

// Destroy drops the table and the subvolume references it holds.
func (l *StaticBucketLayout) Destroy() {
	if l == nil {
		return
	}
	l.buckets = nil
}

func init() {
	if err := Register(StaticBucketStrategy{}); err != nil {
		panic(err)
	}
}
