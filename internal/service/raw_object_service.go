package service

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zbucket/internal/domain"
)

// RawObjectService stores whole objects on the backend that owns their GFID,
// without erasure coding or metadata. The GFID alone is enough to find the
// object again.
type RawObjectService struct {
	placer   ObjectPlacer
	allocate GFIDAllocator
	quiet    bool
}

// NewRawObjectService creates a RawObjectService.
func NewRawObjectService(placer ObjectPlacer) *RawObjectService {
	return &RawObjectService{
		placer:   placer,
		allocate: domain.RandomGFIDIn,
		quiet:    true,
	}
}

// PutRaw uploads reader under a new GFID.
func (r *RawObjectService) PutRaw(ctx context.Context, reader io.Reader) (domain.GFID, error) {
	buckets, err := bucketCount(r.placer)
	if err != nil {
		return domain.NilGFID, err
	}

	gfid := r.allocate(buckets)
	if err := r.PutRawAt(ctx, gfid, reader); err != nil {
		return domain.NilGFID, err
	}
	return gfid, nil
}

// PutRawAt uploads reader under a caller-chosen GFID.
func (r *RawObjectService) PutRawAt(ctx context.Context, gfid domain.GFID, reader io.Reader) error {
	bucketName, repo, err := r.placer.Place(gfid)
	if err != nil {
		return err
	}
	log.Debugf("Uploading raw object %s to %s", gfid, bucketName)
	_, err = repo.Upload(ctx, gfid.String(), reader, r.quiet)
	return err
}

// GetRaw downloads the object stored under gfid.
func (r *RawObjectService) GetRaw(ctx context.Context, gfid domain.GFID) (io.ReadCloser, error) {
	bucketName, repo, err := r.placer.Place(gfid)
	if err != nil {
		return nil, err
	}
	log.Debugf("Downloading raw object %s from %s", gfid, bucketName)
	return repo.Download(ctx, gfid.String(), r.quiet)
}

// PurgeBucket deletes every object keyed in bucket from the subvolume that
// owns it, shards of erasure-coded objects included. Their metadata is left
// in place.
func (r *RawObjectService) PurgeBucket(ctx context.Context, bucket uint16) error {
	bucketName, repo, err := r.placer.Place(domain.NewGFID(bucket))
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"bucket": bucket, "subvolume": bucketName}).Info("Purging bucket")
	return repo.DeletePrefix(ctx, domain.BucketPrefix(bucket))
}

// DeleteRaw removes the object stored under gfid.
func (r *RawObjectService) DeleteRaw(ctx context.Context, gfid domain.GFID) error {
	_, repo, err := r.placer.Place(gfid)
	if err != nil {
		return err
	}
	return repo.Delete(ctx, gfid.String())
}
