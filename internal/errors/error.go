package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrInsufficientShards    = errors.New("insufficient shards available for reconstruction")
	ErrEmptyFile             = errors.New("cannot upload empty file")
	ErrObjectNotFound        = errors.New("object not found")
)

// Layout construction and lookup errors.
var (
	ErrInvalidLayoutType     = errors.New("invalid layout type")
	ErrUnknownLayout         = errors.New("no layout registered for type")
	ErrDuplicateLayout       = errors.New("layout already registered")
	ErrInvalidSubvolumeCount = errors.New("subvolume count must be positive and not exceed the subvolume list")
	ErrNoSubvolumes          = errors.New("no subvolumes supplied")
	ErrNilSubvolume          = errors.New("nil subvolume in list")
	ErrMissingOptions        = errors.New("layout options are required")
	ErrInvalidBucketCount    = errors.New("invalid bucket count")
	ErrBucketOutOfRange      = errors.New("bucket index out of range")
	ErrLayoutDestroyed       = errors.New("layout has been destroyed")
)

// Placement errors.
var (
	ErrLayoutNotBuilt          = errors.New("layout has not been built")
	ErrLayoutAlreadyBuilt      = errors.New("layout already built")
	ErrBucketNotRegistered     = errors.New("no repository found for bucket")
	ErrBucketAlreadyRegistered = errors.New("bucket already registered")
)

func ConfigNotSetError(config string) error {
	return fmt.Errorf("the %s configuration value must be set", config)
}

// BucketOutOfRangeError reports a bucket index that a layout table cannot hold.
func BucketOutOfRangeError(bucket, length int) error {
	return fmt.Errorf("%w: bucket %d, table length %d", ErrBucketOutOfRange, bucket, length)
}
