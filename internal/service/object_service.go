// Package service provides the object operations of the store: writing,
// reading and deleting erasure-coded objects whose shards are routed to
// backends by the placement layout.
//
// Every object gets a GFID whose upper 16 bits name a bucket. Shard i of an
// object is stored under a GFID derived from the object's, with the bucket
// advanced by i, so consecutive shards fall into consecutive buckets and,
// with a round-robin table, onto different backends whenever there are
// enough of them.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
	"github.com/zzenonn/zbucket/internal/repository/objectstore"
)

// ObjectPlacer resolves the backend that owns a GFID.
type ObjectPlacer interface {
	Place(gfid domain.GFID) (string, objectstore.ObjectRepository, error)
	// BucketCount is the layout table length, zero when there is no layout.
	BucketCount() int
}

type MetadataRepository interface {
	CreateMetadata(ctx context.Context, metadata domain.ObjectMetadata) (domain.ObjectMetadata, error)
	GetMetadata(ctx context.Context, gfid domain.GFID) (domain.ObjectMetadata, error)
	DeleteMetadata(ctx context.Context, gfid domain.GFID) error
	ListMetadata(ctx context.Context) ([]domain.ObjectMetadata, error)
}

// GFIDAllocator hands out identifiers for new objects whose bucket lies in
// [0, buckets).
type GFIDAllocator func(buckets int) domain.GFID

type ObjectService struct {
	placer       ObjectPlacer
	metadataRepo MetadataRepository
	allocate     GFIDAllocator
	quiet        bool
}

// ObjectServiceOption customises an ObjectService.
type ObjectServiceOption func(*ObjectService)

// WithAllocator replaces the GFID allocator.
func WithAllocator(a GFIDAllocator) ObjectServiceOption {
	return func(s *ObjectService) {
		s.allocate = a
	}
}

// WithProgress enables transfer progress bars in the repositories.
func WithProgress() ObjectServiceOption {
	return func(s *ObjectService) {
		s.quiet = false
	}
}

// NewObjectService creates a new ObjectService instance
func NewObjectService(placer ObjectPlacer, metadataRepo MetadataRepository, opts ...ObjectServiceOption) *ObjectService {
	s := &ObjectService{
		placer:       placer,
		metadataRepo: metadataRepo,
		allocate:     domain.RandomGFIDIn,
		quiet:        true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShardGFID is the identifier of shard index of the object gfid. The bucket
// advances by index and wraps at the table length buckets.
func ShardGFID(gfid domain.GFID, index, buckets int) domain.GFID {
	if buckets <= 0 || buckets > 1<<domain.BucketBits {
		buckets = 1 << domain.BucketBits
	}
	return domain.WithBucket(gfid, uint16((int(gfid.Bucket())+index)%buckets))
}

// bucketCount returns the placer's table length or ErrLayoutNotBuilt.
func bucketCount(placer ObjectPlacer) (int, error) {
	n := placer.BucketCount()
	if n == 0 {
		return 0, zerrors.ErrLayoutNotBuilt
	}
	return n, nil
}

// Put erasure-codes the reader's contents, stores each shard on the backend
// that owns its GFID and records the object's metadata.
func (s *ObjectService) Put(ctx context.Context, name string, r io.Reader, dataShards, parityShards int) (domain.GFID, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.NilGFID, err
	}

	metadata, shards, err := ShardFile(data, dataShards, parityShards)
	if err != nil {
		return domain.NilGFID, err
	}

	buckets, err := bucketCount(s.placer)
	if err != nil {
		return domain.NilGFID, err
	}

	gfid := s.allocate(buckets)
	metadata.GFID = gfid.String()
	metadata.Name = name

	logger := log.WithFields(log.Fields{"gfid": gfid, "name": name})

	repos := make([]objectstore.ObjectRepository, len(shards))
	for i := range shards {
		shardID := ShardGFID(gfid, i, buckets)
		bucketName, repo, err := s.placer.Place(shardID)
		if err != nil {
			return domain.NilGFID, err
		}
		repos[i] = repo

		metadata.Shards[i].GFID = shardID.String()
		metadata.Shards[i].Bucket = int(shardID.Bucket())
		metadata.Shards[i].Subvolume = bucketName
		metadata.Shards[i].StorageType = repo.GetStorageType()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() error {
			key := metadata.Shards[i].GFID
			if _, err := repos[i].Upload(gctx, key, bytes.NewReader(shard), s.quiet); err != nil {
				return fmt.Errorf("failed to upload shard %d to %s: %w", i, metadata.Shards[i].Subvolume, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(ctx, logger, metadata)
		return domain.NilGFID, err
	}

	if _, err := s.metadataRepo.CreateMetadata(ctx, metadata); err != nil {
		s.discard(ctx, logger, metadata)
		return domain.NilGFID, err
	}

	logger.WithField("shards", len(shards)).Debug("Stored object")
	return gfid, nil
}

// Get fetches the shards of gfid, discards any that are missing or fail
// their checksum and reconstructs the object.
func (s *ObjectService) Get(ctx context.Context, gfid domain.GFID) ([]byte, domain.ObjectMetadata, error) {
	metadata, err := s.metadataRepo.GetMetadata(ctx, gfid)
	if err != nil {
		return nil, domain.ObjectMetadata{}, err
	}

	shards := make([][]byte, len(metadata.Shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range metadata.Shards {
		g.Go(func() error {
			data, err := s.fetchShard(gctx, shard)
			if err != nil {
				log.WithFields(log.Fields{"gfid": gfid, "shard": i}).Warnf("Skipping shard: %v", err)
				return nil
			}
			shards[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.ObjectMetadata{}, err
	}

	data, err := ReconstructFile(shards, metadata)
	if err != nil {
		return nil, domain.ObjectMetadata{}, fmt.Errorf("failed to reconstruct %s: %w", gfid, err)
	}
	return data, metadata, nil
}

func (s *ObjectService) fetchShard(ctx context.Context, shard domain.ShardStorage) ([]byte, error) {
	shardID, err := domain.ParseGFID(shard.GFID)
	if err != nil {
		return nil, err
	}

	bucketName, repo, err := s.placer.Place(shardID)
	if err != nil {
		return nil, err
	}
	if bucketName != shard.Subvolume {
		log.WithFields(log.Fields{
			"shard":    shardID,
			"recorded": shard.Subvolume,
			"placed":   bucketName,
		}).Warn("Shard placement differs from metadata; subvolume list changed")
	}

	rc, err := repo.Download(ctx, shardID.String(), s.quiet)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if got := shardHash(data); got != shard.Hash {
		return nil, fmt.Errorf("checksum mismatch: got %s, want %s", got, shard.Hash)
	}
	return data, nil
}

// Delete removes every shard of gfid and then its metadata.
func (s *ObjectService) Delete(ctx context.Context, gfid domain.GFID) error {
	metadata, err := s.metadataRepo.GetMetadata(ctx, gfid)
	if err != nil {
		return err
	}

	if err := s.removeShards(ctx, metadata); err != nil {
		return err
	}
	return s.metadataRepo.DeleteMetadata(ctx, gfid)
}

// removeShards deletes whatever shards of metadata exist.
func (s *ObjectService) removeShards(ctx context.Context, metadata domain.ObjectMetadata) error {
	var errs []error
	for _, shard := range metadata.Shards {
		if shard.GFID == "" {
			continue
		}
		shardID, err := domain.ParseGFID(shard.GFID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, repo, err := s.placer.Place(shardID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := repo.Delete(ctx, shardID.String()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// discard removes the shards of a failed Put.
func (s *ObjectService) discard(ctx context.Context, logger *log.Entry, metadata domain.ObjectMetadata) {
	if err := s.removeShards(ctx, metadata); err != nil {
		logger.Warnf("Failed to clean up shards: %v", err)
	}
}

// List returns the metadata of all stored objects.
func (s *ObjectService) List(ctx context.Context) ([]domain.ObjectMetadata, error) {
	return s.metadataRepo.ListMetadata(ctx)
}

// Location describes where a GFID is routed.
type Location struct {
	GFID      domain.GFID
	Bucket    uint16
	Subvolume string
}

// Locate resolves gfid without any I/O.
func (s *ObjectService) Locate(gfid domain.GFID) (Location, error) {
	bucketName, _, err := s.placer.Place(gfid)
	if err != nil {
		return Location{}, err
	}
	return Location{GFID: gfid, Bucket: gfid.Bucket(), Subvolume: bucketName}, nil
}
