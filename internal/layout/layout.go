// Package layout resolves which subvolume is authoritative for an object.
//
// A layout is built once from an ordered list of subvolumes and then answers
// Search calls for object identifiers without any I/O. Layout strategies are
// pluggable: each one implements Strategy and is registered under a canonical
// type tag. Callers obtain a layout through New, which selects the strategy
// from the tag.
//
// Example:
//
//	l, err := layout.New(layout.StaticBucketType, len(subvols), subvols, &layout.Options{})
//	if err != nil {
//		return err
//	}
//	defer l.Destroy()
//
//	subvol, err := l.Search(gfid)
//
// Built layouts are immutable, so Search may be called from many goroutines at
// once. Destroy must not overlap any Search on the same layout.
package layout

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
)

// MaxBuckets is the number of distinguishable bucket indices in a GFID and the
// default length of a bucket table.
const MaxBuckets = 1 << domain.BucketBits

// Subvolume is an opaque handle to one backend storage unit. Layouts only hold
// references to subvolumes and never manage their lifecycle.
type Subvolume interface {
	Name() string
}

// Options configures layout construction.
type Options struct {
	// Buckets is the table length. Zero means MaxBuckets.
	Buckets int
	// Debug logs the first few table entries after construction.
	Debug bool
	// Logger defaults to the standard logrus logger.
	Logger *log.Entry
}

func (o *Options) bucketCount() (int, error) {
	switch {
	case o.Buckets == 0:
		return MaxBuckets, nil
	case o.Buckets < 0 || o.Buckets > MaxBuckets:
		return 0, fmt.Errorf("%w: %d (must be in 1..%d)", zerrors.ErrInvalidBucketCount, o.Buckets, MaxBuckets)
	default:
		return o.Buckets, nil
	}
}

func (o *Options) logger() *log.Entry {
	if o.Logger != nil {
		return o.Logger
	}
	return log.NewEntry(log.StandardLogger())
}

// Layout answers which subvolume holds an object.
type Layout interface {
	// Search returns the subvolume stored at the bucket encoded in gfid.
	Search(gfid domain.GFID) (Subvolume, error)
	// Bucket returns the subvolume stored at bucket index i.
	Bucket(i int) (Subvolume, error)
	// Len is the table length, zero once destroyed.
	Len() int
	// Type is the canonical tag of the strategy that built the layout.
	Type() string
	// Destroy releases the table. Calling it again is a no-op.
	Destroy()
}

// Strategy builds layouts of one kind.
type Strategy interface {
	// Name is the canonical type tag.
	Name() string
	// Init validates its arguments and returns a fully built layout, or an error
	// and no layout.
	Init(layoutType string, count int, subvols []Subvolume, opts *Options) (Layout, error)
}

// Registry maps type tags to strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy under its canonical name.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if name == "" {
		return fmt.Errorf("%w: empty strategy name", zerrors.ErrInvalidLayoutType)
	}
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("%w: %s", zerrors.ErrDuplicateLayout, name)
	}
	r.strategies[name] = s
	return nil
}

// Lookup selects the strategy whose canonical name prefixes layoutType. When
// several names match, the longest wins.
func (r *Registry) Lookup(layoutType string) (Strategy, error) {
	if layoutType == "" {
		return nil, zerrors.ErrInvalidLayoutType
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best Strategy
	for name, s := range r.strategies {
		if !strings.HasPrefix(layoutType, name) {
			continue
		}
		if best == nil || len(name) > len(best.Name()) {
			best = s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", zerrors.ErrUnknownLayout, layoutType)
	}
	return best, nil
}

// New builds a layout with the strategy selected by layoutType.
func (r *Registry) New(layoutType string, count int, subvols []Subvolume, opts *Options) (Layout, error) {
	s, err := r.Lookup(layoutType)
	if err != nil {
		return nil, err
	}
	return s.Init(layoutType, count, subvols, opts)
}

// Strategies lists registered type tags in sorted order.
func (r *Registry) Strategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds a strategy to the default registry.
func Register(s Strategy) error {
	return defaultRegistry.Register(s)
}

// Lookup selects a strategy from the default registry.
func Lookup(layoutType string) (Strategy, error) {
	return defaultRegistry.Lookup(layoutType)
}

// New builds a layout using the default registry.
func New(layoutType string, count int, subvols []Subvolume, opts *Options) (Layout, error) {
	return defaultRegistry.New(layoutType, count, subvols, opts)
}

// Strategies lists the type tags of the default registry.
func Strategies() []string {
	return defaultRegistry.Strategies()
}

// matchesType reports whether layoutType selects the strategy called name.
func matchesType(name, layoutType string) bool {
	return layoutType != "" && strings.HasPrefix(layoutType, name)
}
