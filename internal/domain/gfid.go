package domain

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// BucketBits is the width of the bucket sub-field at the top of a GFID.
const BucketBits = 16

// GFID is the 128-bit identifier of an object. Its upper 16 bits carry the
// bucket the object was allocated into.
type GFID uuid.UUID

// NilGFID is the all-zero identifier. It lives in bucket 0.
var NilGFID GFID

// NewGFID allocates a random identifier tagged with the given bucket.
func NewGFID(bucket uint16) GFID {
	return WithBucket(GFID(uuid.New()), bucket)
}

// WithBucket returns a copy of g whose bucket sub-field is replaced by bucket.
func WithBucket(g GFID, bucket uint16) GFID {
	binary.BigEndian.PutUint16(g[:2], bucket)
	return g
}

// ParseGFID decodes the canonical textual form of a GFID.
func ParseGFID(s string) (GFID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilGFID, fmt.Errorf("invalid gfid %q: %w", s, err)
	}
	return GFID(u), nil
}

// Bucket returns the bucket index stored in the upper 16 bits.
func (g GFID) Bucket() uint16 {
	return binary.BigEndian.Uint16(g[:2])
}

// BucketPrefix is the leading text shared by the string form of every GFID in
// bucket.
func BucketPrefix(bucket uint16) string {
	return fmt.Sprintf("%04x", bucket)
}

func (g GFID) String() string {
	return uuid.UUID(g).String()
}

// MarshalText and UnmarshalText let GFIDs travel as strings through JSON and
// DynamoDB attribute values.
func (g GFID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GFID) UnmarshalText(b []byte) error {
	parsed, err := ParseGFID(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// RandomGFID allocates an identifier in a uniformly random bucket.
func RandomGFID() GFID {
	return GFID(uuid.New())
}

// RandomGFIDIn allocates an identifier whose bucket lies in [0, buckets).
// Values outside 1..65535 allow every bucket.
func RandomGFIDIn(buckets int) GFID {
	g := RandomGFID()
	if buckets <= 0 || buckets >= 1<<BucketBits {
		return g
	}
	return WithBucket(g, uint16(int(g.Bucket())%buckets))
}
