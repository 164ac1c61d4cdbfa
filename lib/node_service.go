package lib

import (
	"context"
	"encoding/binary"

	"github.com/canopy-network/shardnode/lib/crypto"
)

/* This file contains the collaborator interfaces of the committee service and the remote peer protocol messages */

// NodeServiceI is a request-capable handle to one committee member's endpoint
// Implementations must be safe to share between goroutines; copies of the handle refer to the same connection
type NodeServiceI interface {
	// SyncShard() requests the slivers of a shard as of an epoch, starting at a blob id
	SyncShard(ctx context.Context, request *SyncShardRequest) ([]BlobSliver, ErrorI)
	// GetMetadata() requests the metadata of a blob
	GetMetadata(ctx context.Context, blobID BlobID) (*BlobMetadata, ErrorI)
	// GetSliver() requests one sliver of a blob
	GetSliver(ctx context.Context, blobID BlobID, pair SliverPairIndex, sliverType SliverType) (*Sliver, ErrorI)
	// SubmitInconsistencyProof() asks the member to attest that a blob is inconsistently encoded
	SubmitInconsistencyProof(ctx context.Context, proof *InconsistencyProof) (*InvalidBlobAttestation, ErrorI)
}

// NodeServiceFactoryI builds a NodeServiceI for a committee member; it may perform network round trips
type NodeServiceFactoryI interface {
	MakeService(ctx context.Context, member *Member, encoding *EncodingConfig) (NodeServiceI, ErrorI)
}

// NodeServiceFactoryFunc adapts a function to the NodeServiceFactoryI interface
type NodeServiceFactoryFunc func(ctx context.Context, member *Member, encoding *EncodingConfig) (NodeServiceI, ErrorI)

// MakeService() calls f
func (f NodeServiceFactoryFunc) MakeService(ctx context.Context, member *Member, encoding *EncodingConfig) (NodeServiceI, ErrorI) {
	return f(ctx, member, encoding)
}

// CommitteeLookupI supplies the authoritative committee window
type CommitteeLookupI interface {
	GetActiveCommittees(ctx context.Context) (ActiveCommittees, ErrorI)
}

// SyncShardRequest asks the owner of a shard in the previous epoch for its slivers
type SyncShardRequest struct {
	Shard          ShardIndex `json:"shard"`          // the shard to synchronize
	StartingBlobID BlobID     `json:"startingBlobId"` // the first blob id (inclusive) to return
	SliverCount    uint64     `json:"sliverCount"`    // the maximum number of slivers to return
	SliverType     SliverType `json:"sliverType"`     // the sliver type to return
	CurrentEpoch   Epoch      `json:"currentEpoch"`   // the epoch the requester is migrating into
	PublicKey      HexBytes   `json:"publicKey"`      // the identity of the requester
	Signature      HexBytes   `json:"signature"`      // the requester's signature over SignBytes()
}

// SignBytes() returns the canonical bytes covered by the signature
func (r *SyncShardRequest) SignBytes() []byte {
	bz := make([]byte, 0, 16+BlobIDSize+8+1+8+len(r.PublicKey))
	bz = append(bz, []byte("sync-shard")...)
	bz = binary.BigEndian.AppendUint16(bz, uint16(r.Shard))
	bz = append(bz, r.StartingBlobID[:]...)
	bz = binary.BigEndian.AppendUint64(bz, r.SliverCount)
	bz = append(bz, byte(r.SliverType))
	bz = binary.BigEndian.AppendUint64(bz, uint64(r.CurrentEpoch))
	return append(bz, r.PublicKey...)
}

// Sign() sets the requester identity and signature using the protocol key
func (r *SyncShardRequest) Sign(key crypto.PrivateKeyI) {
	r.PublicKey = key.PublicKey().Bytes()
	r.Signature = key.Sign(r.SignBytes())
}

// CheckSignature() verifies the requester's signature
func (r *SyncShardRequest) CheckSignature() bool {
	if len(r.Signature) == 0 {
		return false
	}
	pub, err := crypto.NewPublicKeyFromBytes(r.PublicKey)
	if err != nil {
		return false
	}
	return pub.VerifyBytes(r.SignBytes(), r.Signature)
}

// InconsistencyProof claims that a blob's slivers are inconsistent with its metadata
type InconsistencyProof struct {
	BlobID     BlobID          `json:"blobId"`
	SliverType SliverType      `json:"sliverType"`
	PairIndex  SliverPairIndex `json:"pairIndex"`
	Evidence   HexBytes        `json:"evidence"`
}

// InvalidBlobAttestation is one member's signed statement that a blob is invalid
type InvalidBlobAttestation struct {
	BlobID    BlobID   `json:"blobId"`
	Epoch     Epoch    `json:"epoch"`
	PublicKey HexBytes `json:"publicKey"`
	Signature HexBytes `json:"signature"`
}

// InvalidBlobSignBytes() returns the message a member signs to attest a blob is invalid in an epoch
func InvalidBlobSignBytes(blobID BlobID, epoch Epoch) []byte {
	bz := append([]byte("invalid-blob"), blobID[:]...)
	return binary.BigEndian.AppendUint64(bz, uint64(epoch))
}

// NewInvalidBlobAttestation() signs an attestation with the protocol key
func NewInvalidBlobAttestation(blobID BlobID, epoch Epoch, key crypto.PrivateKeyI) *InvalidBlobAttestation {
	return &InvalidBlobAttestation{
		BlobID:    blobID,
		Epoch:     epoch,
		PublicKey: key.PublicKey().Bytes(),
		Signature: key.Sign(InvalidBlobSignBytes(blobID, epoch)),
	}
}

// CheckSignature() verifies the attestation signature
func (a *InvalidBlobAttestation) CheckSignature() bool {
	pub, err := crypto.NewPublicKeyFromBytes(a.PublicKey)
	if err != nil {
		return false
	}
	return pub.VerifyBytes(InvalidBlobSignBytes(a.BlobID, a.Epoch), a.Signature)
}

// InvalidBlobCertificate aggregates attestations from members holding a quorum of shards
type InvalidBlobCertificate struct {
	BlobID     BlobID     `json:"blobId"`
	Epoch      Epoch      `json:"epoch"`
	Signers    []HexBytes `json:"signers"`
	Signatures []HexBytes `json:"signatures"`
}
