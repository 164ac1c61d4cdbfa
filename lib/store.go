package lib

/* This file contains persistence module interfaces that are used throughout the app */

// SliverStoreI defines the interface for the slivers and blob metadata held by a storage node
type SliverStoreI interface {
	RSliverStoreI
	WSliverStoreI
	Close() ErrorI // gracefully stop the database
}

// RSliverStoreI defines the read interface used to serve other storage nodes
type RSliverStoreI interface {
	// GetSliver() returns the sliver of the blob stored by the shard or a not found error
	GetSliver(shard ShardIndex, blobID BlobID, sliverType SliverType) (*Sliver, ErrorI)
	// IterateSlivers() returns up to count slivers of the shard in blob id order, starting at start (inclusive)
	IterateSlivers(shard ShardIndex, sliverType SliverType, start BlobID, count uint64) ([]BlobSliver, ErrorI)
	// GetMetadata() returns the metadata of the blob or a not found error
	GetMetadata(blobID BlobID) (*BlobMetadata, ErrorI)
	// GetSyncProgress() returns the migration checkpoint of the shard or nil if there is none
	GetSyncProgress(shard ShardIndex, sliverType SliverType) (*SyncProgress, ErrorI)
}

// WSliverStoreI defines the write interface used by shard migration and uploads
type WSliverStoreI interface {
	// PutSlivers() atomically writes the slivers of the shard
	PutSlivers(shard ShardIndex, slivers []BlobSliver) ErrorI
	// PutMetadata() writes the metadata of a blob
	PutMetadata(metadata *BlobMetadata) ErrorI
	// SetSyncProgress() saves the migration checkpoint of a shard
	SetSyncProgress(progress *SyncProgress) ErrorI
}

// SyncProgress is the checkpoint of a shard migration so an interrupted migration resumes where it stopped
type SyncProgress struct {
	Shard      ShardIndex `json:"shard"`      // the shard being migrated
	SliverType SliverType `json:"sliverType"` // the sliver type being migrated
	Epoch      Epoch      `json:"epoch"`      // the epoch the shard is migrated for
	Next       BlobID     `json:"next"`       // the first blob id not yet synced
	Done       bool       `json:"done"`       // true once the previous owner returned its last page
}
