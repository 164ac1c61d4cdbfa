package lib

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

/*
	This file contains the blob and sliver identifiers that flow through the committee service, and the
	system wide encoding parameters derived from the shard count. The erasure coding itself is external.
*/

const BlobIDSize = 32

// BlobID identifies a stored object
type BlobID [BlobIDSize]byte

// NewBlobIDFromString() parses a hex encoded blob id
func NewBlobIDFromString(s string) (id BlobID, err ErrorI) {
	bz, e := hex.DecodeString(s)
	if e != nil {
		return id, ErrStringToBytes(e)
	}
	if len(bz) != BlobIDSize {
		return id, ErrInvalidArgument()
	}
	copy(id[:], bz)
	return
}

// String() returns the hex representation of the blob id
func (b BlobID) String() string { return hex.EncodeToString(b[:]) }

// Compare() orders blob ids lexicographically
func (b BlobID) Compare(o BlobID) int { return bytes.Compare(b[:], o[:]) }

// MarshalJSON() encodes the blob id as a hex string
func (b BlobID) MarshalJSON() ([]byte, error) { return json.Marshal(b.String()) }

// UnmarshalJSON() decodes the blob id from a hex string
func (b *BlobID) UnmarshalJSON(bz []byte) error {
	var s string
	if err := json.Unmarshal(bz, &s); err != nil {
		return err
	}
	id, err := NewBlobIDFromString(s)
	if err != nil {
		return err
	}
	*b = id
	return nil
}

// SliverType distinguishes the two halves of a sliver pair
type SliverType uint8

const (
	SliverTypePrimary   SliverType = 0
	SliverTypeSecondary SliverType = 1
)

// String() returns the name of the sliver type
func (s SliverType) String() string {
	switch s {
	case SliverTypePrimary:
		return "primary"
	case SliverTypeSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid() returns true for a known sliver type
func (s SliverType) Valid() bool { return s == SliverTypePrimary || s == SliverTypeSecondary }

// SliverPairIndex identifies a sliver pair of a blob
type SliverPairIndex uint16

// Sliver is an erasure coded fragment of a blob assigned to a shard
type Sliver struct {
	BlobID    BlobID          `json:"blobId"`
	PairIndex SliverPairIndex `json:"pairIndex"`
	Type      SliverType      `json:"type"`
	Data      HexBytes        `json:"data"`
}

// BlobSliver is an (identifier, sliver content) pair returned by a shard sync
type BlobSliver struct {
	BlobID BlobID  `json:"blobId"`
	Sliver *Sliver `json:"sliver"`
}

// BlobMetadata describes an encoded blob
type BlobMetadata struct {
	BlobID          BlobID     `json:"blobId"`
	UnencodedLength uint64     `json:"unencodedLength"`
	PairHashes      []HexBytes `json:"pairHashes"`
}

// EncodingConfig holds the system wide encoding parameters derived from the shard count
type EncodingConfig struct {
	NShards uint16 `json:"nShards"`
}

// NewEncodingConfig() creates the encoding configuration for n shards
func NewEncodingConfig(nShards uint16) *EncodingConfig { return &EncodingConfig{NShards: nShards} }

// MaxFaulty() returns the largest number of shards f that may be byzantine, with n >= 3f + 1
func (e *EncodingConfig) MaxFaulty() uint16 {
	if e.NShards == 0 {
		return 0
	}
	return (e.NShards - 1) / 3
}

// QuorumThreshold() returns the number of shards n - f required for a quorum
func (e *EncodingConfig) QuorumThreshold() uint16 { return e.NShards - e.MaxFaulty() }

// ShardForPair() maps a blob's sliver pair to the shard storing it by rotating the pair index with the blob id
func (e *EncodingConfig) ShardForPair(pair SliverPairIndex, blobID BlobID) ShardIndex {
	if e.NShards == 0 {
		return 0
	}
	rotation := binary.BigEndian.Uint64(blobID[:8]) % uint64(e.NShards)
	return ShardIndex((uint64(pair) + rotation) % uint64(e.NShards))
}

// PairForShard() is the inverse of ShardForPair()
func (e *EncodingConfig) PairForShard(shard ShardIndex, blobID BlobID) SliverPairIndex {
	if e.NShards == 0 {
		return 0
	}
	n := uint64(e.NShards)
	rotation := binary.BigEndian.Uint64(blobID[:8]) % n
	return SliverPairIndex((uint64(shard) + n - rotation) % n)
}
