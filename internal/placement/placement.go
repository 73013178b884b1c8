// Package placement routes objects to the storage backends that own them.
//
// Backends (S3 or GCS buckets, or in-memory stores) are registered in a fixed
// order and become the subvolumes of a layout. Once the layout is built, every
// GFID resolves to exactly one backend without any lookup service: the bucket
// index carried in the upper bits of the GFID selects a slot in the layout's
// table, and the table was filled round-robin from the registration order.
//
// Usage Flow:
// 1. Configuration lists the subvolumes in order
// 2. The caller registers one repository per subvolume, in that order
// 3. Build creates the layout (static-bucket by default)
// 4. ObjectService calls Place(gfid) for every shard it writes or reads
//
// Example:
//
//	placer := NewBucketPlacer()
//	placer.RegisterBucket("s3://bucket-1", s3Repo1)
//	placer.RegisterBucket("gs://bucket-2", gcsRepo2)
//	placer.Build(layout.StaticBucketType, &layout.Options{})
//
//	name, repo, _ := placer.Place(domain.NewGFID(0)) // s3://bucket-1
//	name, repo, _ = placer.Place(domain.NewGFID(1))  // gs://bucket-2
//
// The same ordered subvolume list always yields the same routing, so every
// process that loads the same configuration agrees on where objects live.
// Changing the list changes the routing of existing objects; there is no
// migration.
package placement

import (
	"github.com/zzenonn/zbucket/internal/domain"
	"github.com/zzenonn/zbucket/internal/layout"
	"github.com/zzenonn/zbucket/internal/repository/objectstore"
)

// Placer manages object placement across multiple storage backends.
//
// Implementations must be safe for concurrent Place calls once built and
// deterministic: the same GFID always maps to the same bucket.
type Placer interface {
	// RegisterBucket adds a storage bucket and repository to the placer.
	// Registration order is significant and must be stable across processes.
	RegisterBucket(bucketName string, repo objectstore.ObjectRepository) error

	// Build creates the routing layout over the registered buckets.
	Build(layoutType string, opts *layout.Options) error

	// Place returns the bucket that owns gfid.
	Place(gfid domain.GFID) (string, objectstore.ObjectRepository, error)

	// GetRepositoryForBucket returns the repository for a specific bucket.
	// Used during downloads when bucket is known from metadata.
	GetRepositoryForBucket(bucketName string) (objectstore.ObjectRepository, error)

	// ListBuckets returns all registered bucket names in registration order.
	ListBuckets() []string

	// Close destroys the layout. Place must not be running.
	Close()
}
