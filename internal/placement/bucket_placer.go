package placement

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
	"github.com/zzenonn/zbucket/internal/layout"
	"github.com/zzenonn/zbucket/internal/repository/objectstore"
)

// subvolume binds a registered bucket name to its repository.
type subvolume struct {
	name string
	repo objectstore.ObjectRepository
}

func (s *subvolume) Name() string {
	return s.name
}

// BucketPlacer places objects through a bucket layout.
type BucketPlacer struct {
	mu           sync.RWMutex
	repositories map[string]objectstore.ObjectRepository
	subvolumes   []layout.Subvolume
	layout       layout.Layout
}

var _ Placer = &BucketPlacer{}

// NewBucketPlacer creates a placer with no buckets.
func NewBucketPlacer() *BucketPlacer {
	return &BucketPlacer{
		repositories: make(map[string]objectstore.ObjectRepository),
	}
}

// RegisterBucket adds a bucket and its repository
func (p *BucketPlacer) RegisterBucket(bucketName string, repo objectstore.ObjectRepository) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.layout != nil {
		return fmt.Errorf("%w: cannot register %s", zerrors.ErrLayoutAlreadyBuilt, bucketName)
	}
	if repo == nil {
		return fmt.Errorf("%w: %s", zerrors.ErrNilSubvolume, bucketName)
	}
	if _, exists := p.repositories[bucketName]; exists {
		return fmt.Errorf("%w: %s", zerrors.ErrBucketAlreadyRegistered, bucketName)
	}

	p.repositories[bucketName] = repo
	p.subvolumes = append(p.subvolumes, &subvolume{name: bucketName, repo: repo})
	return nil
}

// Build creates the layout over all registered buckets.
func (p *BucketPlacer) Build(layoutType string, opts *layout.Options) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.layout != nil {
		return zerrors.ErrLayoutAlreadyBuilt
	}

	l, err := layout.New(layoutType, len(p.subvolumes), p.subvolumes, opts)
	if err != nil {
		return fmt.Errorf("failed to build %s layout: %w", layoutType, err)
	}
	p.layout = l

	log.WithFields(log.Fields{
		"layout":  l.Type(),
		"buckets": l.Len(),
		"volumes": len(p.subvolumes),
	}).Info("Placement layout ready")
	return nil
}

// Place returns the bucket and repository that own gfid.
func (p *BucketPlacer) Place(gfid domain.GFID) (string, objectstore.ObjectRepository, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.layout == nil {
		return "", nil, zerrors.ErrLayoutNotBuilt
	}

	sv, err := p.layout.Search(gfid)
	if err != nil {
		return "", nil, fmt.Errorf("failed to place %s: %w", gfid, err)
	}
	owner := sv.(*subvolume)
	return owner.name, owner.repo, nil
}

// GetRepositoryForBucket returns the repository for a specific bucket
func (p *BucketPlacer) GetRepositoryForBucket(bucketName string) (objectstore.ObjectRepository, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	repo, exists := p.repositories[bucketName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", zerrors.ErrBucketNotRegistered, bucketName)
	}
	return repo, nil
}

// ListBuckets returns all registered bucket names
func (p *BucketPlacer) ListBuckets() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	buckets := make([]string, len(p.subvolumes))
	for i, sv := range p.subvolumes {
		buckets[i] = sv.Name()
	}
	return buckets
}

// Layout returns the built layout, or nil before Build.
func (p *BucketPlacer) Layout() layout.Layout {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.layout
}

// BucketCount is the length of the built layout table, zero before Build.
func (p *BucketPlacer) BucketCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.layout == nil {
		return 0
	}
	return p.layout.Len()
}

// Distribution counts the layout buckets owned by each registered bucket.
func (p *BucketPlacer) Distribution() (map[string]int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.layout == nil {
		return nil, zerrors.ErrLayoutNotBuilt
	}
	return layout.Distribution(p.layout)
}

// Close destroys the layout. The placer can be rebuilt afterwards.
func (p *BucketPlacer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.layout == nil {
		return
	}
	p.layout.Destroy()
	p.layout = nil
}
