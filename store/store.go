package store

import (
	"encoding/binary"
	"errors"
	"path/filepath"

	"github.com/alecthomas/units"
	"github.com/canopy-network/shardnode/lib"
	"github.com/dgraph-io/badger/v4"
)

var (
	sliverPrefix   = []byte("s/") // prefix designated for slivers, keyed by shard, sliver type and blob id
	metadataPrefix = []byte("m/") // prefix designated for blob metadata, keyed by blob id
	progressPrefix = []byte("p/") // prefix designated for shard migration checkpoints, keyed by shard and sliver type

	_ lib.SliverStoreI = &Store{} // enforce the store interface
)

/*
	The Store is a thin layer over a single BadgerDB instance that holds the slivers of the shards this node owns,
	the metadata of the blobs it knows, and the checkpoints of shard migrations.

	Slivers are keyed 's/' | shard (2 bytes, big endian) | sliver type (1 byte) | blob id (32 bytes) so a shard sync
	request is served by a single ordered prefix iteration starting at the requested blob id.
*/

type Store struct {
	db      *badger.DB   // underlying database
	metrics *lib.Metrics // telemetry
	log     lib.LoggerI  // logger
}

// New() creates a new instance of a Store either in memory or an actual disk DB
func New(config lib.Config, metrics *lib.Metrics, l lib.LoggerI) (*Store, lib.ErrorI) {
	if config.StoreConfig.InMemory {
		return NewStoreInMemory(metrics, l)
	}
	return NewStore(filepath.Join(config.DataDirPath, config.DBName), metrics, l)
}

// NewStore() creates a new instance of a disk DB
func NewStore(path string, metrics *lib.Metrics, log lib.LoggerI) (*Store, lib.ErrorI) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithMemTableSize(int64(64 * units.MB)). // larger memtable to absorb migration pages
		WithLogger(badgerLogger{log}).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, ErrOpenDB(err)
	}
	return NewStoreWithDB(db, metrics, log), nil
}

// NewStoreInMemory() creates a new instance of a mem DB
func NewStoreInMemory(metrics *lib.Metrics, log lib.LoggerI) (*Store, lib.ErrorI) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, ErrOpenDB(err)
	}
	return NewStoreWithDB(db, metrics, log), nil
}

// NewStoreWithDB() wraps an open database
func NewStoreWithDB(db *badger.DB, metrics *lib.Metrics, log lib.LoggerI) *Store {
	return &Store{db: db, metrics: metrics, log: log}
}

// PutSlivers() atomically writes the slivers of the shard
func (s *Store) PutSlivers(shard lib.ShardIndex, slivers []lib.BlobSliver) lib.ErrorI {
	if len(slivers) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, bs := range slivers {
		if bs.Sliver == nil || bs.Sliver.BlobID != bs.BlobID {
			return ErrInvalidEntry("sliver does not match its blob id")
		}
		bz, err := lib.MarshalJSON(bs.Sliver)
		if err != nil {
			return err
		}
		if e := wb.Set(sliverKey(shard, bs.Sliver.Type, bs.BlobID), bz); e != nil {
			return ErrStoreSet(e)
		}
	}
	if err := wb.Flush(); err != nil {
		return ErrStoreSet(err)
	}
	s.metrics.AddSliversWritten(len(slivers))
	return nil
}

// GetSliver() returns the sliver of the blob stored by the shard
func (s *Store) GetSliver(shard lib.ShardIndex, blobID lib.BlobID, sliverType lib.SliverType) (*lib.Sliver, lib.ErrorI) {
	sliver := new(lib.Sliver)
	if err := s.get(sliverKey(shard, sliverType, blobID), sliver); err != nil {
		return nil, err
	}
	return sliver, nil
}

// IterateSlivers() returns up to count slivers of the shard in blob id order, starting at start (inclusive)
func (s *Store) IterateSlivers(shard lib.ShardIndex, sliverType lib.SliverType, start lib.BlobID, count uint64) (slivers []lib.BlobSliver, err lib.ErrorI) {
	prefix := shardPrefix(shard, sliverType)
	e := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(sliverKey(shard, sliverType, start)); it.ValidForPrefix(prefix) && uint64(len(slivers)) < count; it.Next() {
			item := it.Item()
			blobID, ok := blobIDFromKey(item.Key(), len(prefix))
			if !ok {
				return ErrInvalidEntry("malformed sliver key")
			}
			sliver := new(lib.Sliver)
			if vErr := item.Value(func(val []byte) error { return lib.UnmarshalJSON(val, sliver) }); vErr != nil {
				return vErr
			}
			slivers = append(slivers, lib.BlobSliver{BlobID: blobID, Sliver: sliver})
		}
		return nil
	})
	if e != nil {
		var errI lib.ErrorI
		if errors.As(e, &errI) {
			return nil, errI
		}
		return nil, ErrStoreIterate(e)
	}
	return
}

// PutMetadata() writes the metadata of a blob
func (s *Store) PutMetadata(metadata *lib.BlobMetadata) lib.ErrorI {
	if metadata == nil {
		return ErrInvalidEntry("nil metadata")
	}
	return s.set(metadataKey(metadata.BlobID), metadata)
}

// GetMetadata() returns the metadata of the blob
func (s *Store) GetMetadata(blobID lib.BlobID) (*lib.BlobMetadata, lib.ErrorI) {
	metadata := new(lib.BlobMetadata)
	if err := s.get(metadataKey(blobID), metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// SetSyncProgress() saves the migration checkpoint of a shard
func (s *Store) SetSyncProgress(progress *lib.SyncProgress) lib.ErrorI {
	if progress == nil {
		return ErrInvalidEntry("nil sync progress")
	}
	return s.set(progressKey(progress.Shard, progress.SliverType), progress)
}

// GetSyncProgress() returns the migration checkpoint of the shard or nil if there is none
func (s *Store) GetSyncProgress(shard lib.ShardIndex, sliverType lib.SliverType) (*lib.SyncProgress, lib.ErrorI) {
	progress := new(lib.SyncProgress)
	if err := s.get(progressKey(shard, sliverType), progress); err != nil {
		if err.Code() == lib.CodeNotFoundInDB {
			return nil, nil
		}
		return nil, err
	}
	return progress, nil
}

// Close() gracefully stops the database
func (s *Store) Close() lib.ErrorI {
	if err := s.db.Close(); err != nil {
		return ErrCloseDB(err)
	}
	return nil
}

// set() writes a json encoded value
func (s *Store) set(key []byte, value any) lib.ErrorI {
	bz, err := lib.MarshalJSON(value)
	if err != nil {
		return err
	}
	if e := s.db.Update(func(txn *badger.Txn) error { return txn.Set(key, bz) }); e != nil {
		return ErrStoreSet(e)
	}
	return nil
}

// get() reads a json encoded value into ptr
func (s *Store) get(key []byte, ptr any) lib.ErrorI {
	var bz []byte
	e := s.db.View(func(txn *badger.Txn) (err error) {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		bz, err = item.ValueCopy(nil)
		return
	})
	if errors.Is(e, badger.ErrKeyNotFound) {
		return ErrNotFound(lib.BytesToString(key))
	}
	if e != nil {
		return ErrStoreGet(e)
	}
	return lib.UnmarshalJSON(bz, ptr)
}

// shardPrefix() returns the key prefix of the slivers of a shard
func shardPrefix(shard lib.ShardIndex, sliverType lib.SliverType) []byte {
	prefix := make([]byte, 0, len(sliverPrefix)+3+lib.BlobIDSize)
	prefix = append(prefix, sliverPrefix...)
	prefix = binary.BigEndian.AppendUint16(prefix, uint16(shard))
	return append(prefix, byte(sliverType))
}

func sliverKey(shard lib.ShardIndex, sliverType lib.SliverType, blobID lib.BlobID) []byte {
	return append(shardPrefix(shard, sliverType), blobID[:]...)
}

func metadataKey(blobID lib.BlobID) []byte {
	return append(append([]byte{}, metadataPrefix...), blobID[:]...)
}

func progressKey(shard lib.ShardIndex, sliverType lib.SliverType) []byte {
	key := binary.BigEndian.AppendUint16(append([]byte{}, progressPrefix...), uint16(shard))
	return append(key, byte(sliverType))
}

// blobIDFromKey() extracts the blob id that follows the prefix of a sliver key
func blobIDFromKey(key []byte, prefixLen int) (id lib.BlobID, ok bool) {
	if len(key) != prefixLen+lib.BlobIDSize {
		return id, false
	}
	copy(id[:], key[prefixLen:])
	return id, true
}

// badgerLogger routes database logs to the node logger
type badgerLogger struct{ lib.LoggerI }

func (l badgerLogger) Warningf(format string, args ...interface{}) { l.Warnf(format, args...) }
