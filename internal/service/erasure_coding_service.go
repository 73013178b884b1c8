package service

import (
	"bytes"
	"fmt"
	"hash/crc64"

	"github.com/klauspost/reedsolomon"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
)

var crcTable = crc64.MakeTable(crc64.ISO)

func shardHash(shard []byte) string {
	return fmt.Sprintf("%016x", crc64.Checksum(shard, crcTable))
}

// ShardFile splits data into dataShards data shards plus parityShards parity
// shards. The returned metadata carries one entry per shard with its CRC64;
// placement fields are left for the caller.
func ShardFile(data []byte, dataShards, parityShards int) (domain.ObjectMetadata, [][]byte, error) {
	if len(data) == 0 {
		return domain.ObjectMetadata{}, nil, zerrors.ErrEmptyFile
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return domain.ObjectMetadata{}, nil, err
	}

	shards, err := enc.Split(data)
	if err != nil {
		return domain.ObjectMetadata{}, nil, err
	}

	if err := enc.Encode(shards); err != nil {
		return domain.ObjectMetadata{}, nil, err
	}

	storage := make([]domain.ShardStorage, len(shards))
	for i, shard := range shards {
		storage[i] = domain.ShardStorage{Hash: shardHash(shard)}
	}

	meta := domain.ObjectMetadata{
		OriginalSize: int64(len(data)),
		ShardSize:    int64(len(shards[0])),
		ParityShards: parityShards,
		Shards:       storage,
	}

	return meta, shards, nil
}

// ReconstructFile rebuilds the original data. Missing shards are nil entries;
// at least DataShards() of them must be present.
func ReconstructFile(shards [][]byte, meta domain.ObjectMetadata) ([]byte, error) {
	totalShards := len(meta.Shards)
	dataShards := meta.DataShards()
	if dataShards <= 0 {
		return nil, fmt.Errorf("invalid metadata: %d shards, %d parity", totalShards, meta.ParityShards)
	}

	present := 0
	for _, s := range shards {
		if s != nil {
			present++
		}
	}
	if present < dataShards {
		return nil, fmt.Errorf("%w: have %d, need %d", zerrors.ErrInsufficientShards, present, dataShards)
	}

	enc, err := reedsolomon.New(dataShards, meta.ParityShards)
	if err != nil {
		return nil, err
	}

	// Make shards slice with total shards capacity
	reconstructShards := make([][]byte, totalShards)
	copy(reconstructShards, shards)

	if err := enc.ReconstructData(reconstructShards); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := enc.Join(&buf, reconstructShards, int(meta.OriginalSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
