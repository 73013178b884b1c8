package domain

// ShardStorage records where one erasure-coded shard of an object lives.
type ShardStorage struct {
	GFID        string `json:"gfid" dynamodbav:"gfid"`
	Bucket      int    `json:"bucket" dynamodbav:"bucket"`
	Subvolume   string `json:"subvolume" dynamodbav:"subvolume"`
	StorageType string `json:"storage_type" dynamodbav:"storage_type"`
	Hash        string `json:"hash" dynamodbav:"hash"` // CRC64 (ISO), hex
}

// ObjectMetadata - representation of an erasure coded object's metadata
type ObjectMetadata struct {
	GFID         string         `json:"gfid" dynamodbav:"gfid"` // Partition Key
	Name         string         `json:"name" dynamodbav:"name"`
	OriginalSize int64          `json:"original_size" dynamodbav:"original_size"`
	ShardSize    int64          `json:"shard_size" dynamodbav:"shard_size"`
	ParityShards int            `json:"parity_shards" dynamodbav:"parity_shards"`
	Shards       []ShardStorage `json:"shards" dynamodbav:"shards"` // Ordered by shard index
}

// DataShards is the number of shards that carry object data.
func (m ObjectMetadata) DataShards() int {
	return len(m.Shards) - m.ParityShards
}
