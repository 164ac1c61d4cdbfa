package committee

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/canopy-network/shardnode/lib"
)

var (
	_ lib.CommitteeLookupI = new(StaticLookup)
	_ lib.CommitteeLookupI = new(FileLookup)
)

// StaticLookup is an in-memory committee source, used by single node deployments and tests
type StaticLookup struct {
	mu         sync.RWMutex
	committees lib.ActiveCommittees
	err        lib.ErrorI
}

// NewStaticLookup() creates a lookup source that reports the committees
func NewStaticLookup(committees lib.ActiveCommittees) *StaticLookup {
	return &StaticLookup{committees: committees}
}

// GetActiveCommittees() returns the committees most recently set
func (l *StaticLookup) GetActiveCommittees(_ context.Context) (lib.ActiveCommittees, lib.ErrorI) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return lib.ActiveCommittees{}, l.err
	}
	return l.committees, nil
}

// Set() replaces the reported committees
func (l *StaticLookup) Set(committees lib.ActiveCommittees) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.committees, l.err = committees, nil
}

// SetError() makes every lookup fail with err until Set() is called
func (l *StaticLookup) SetError(err lib.ErrorI) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

// FileLookup reads the committees from 'committees.toml' or 'committees.json' in the data directory on every call
type FileLookup struct {
	dataDirPath string
}

// NewFileLookup() creates a file backed lookup source
func NewFileLookup(dataDirPath string) *FileLookup { return &FileLookup{dataDirPath: dataDirPath} }

// GetActiveCommittees() reads the committee file, preferring the hand edited toml file when present
func (l *FileLookup) GetActiveCommittees(_ context.Context) (ac lib.ActiveCommittees, err lib.ErrorI) {
	tomlPath := filepath.Join(l.dataDirPath, lib.CommitteesTOMLFilePath)
	if _, e := os.Stat(tomlPath); e == nil {
		return readCommitteesTOML(tomlPath)
	} else if !errors.Is(e, os.ErrNotExist) {
		return ac, lib.ErrReadFile(e)
	}
	err = lib.NewJSONFromFile(&ac, l.dataDirPath, lib.CommitteesFilePath)
	return
}

// Write() saves the committees as json in the data directory
func (l *FileLookup) Write(committees lib.ActiveCommittees) lib.ErrorI {
	return lib.SaveJSONToFile(committees, l.dataDirPath, lib.CommitteesFilePath)
}

// tomlMember is the toml representation of a committee member
type tomlMember struct {
	PublicKey  string `toml:"publicKey"`
	NetAddress string `toml:"netAddress"`
	Name       string `toml:"name"`
	Shards     []int  `toml:"shards"`
}

// tomlCommittee is the toml representation of a committee
type tomlCommittee struct {
	Epoch   uint64       `toml:"epoch"`
	NShards int          `toml:"nShards"`
	Members []tomlMember `toml:"members"`
}

// tomlCommittees is the toml representation of the committee window
type tomlCommittees struct {
	Previous *tomlCommittee `toml:"previous"`
	Current  *tomlCommittee `toml:"current"`
	Next     *tomlCommittee `toml:"next"`
}

// readCommitteesTOML() decodes and validates a toml committee window
func readCommitteesTOML(path string) (lib.ActiveCommittees, lib.ErrorI) {
	file := new(tomlCommittees)
	if _, err := toml.DecodeFile(path, file); err != nil {
		return lib.ActiveCommittees{}, lib.ErrReadFile(err)
	}
	var committees [3]*lib.Committee
	for i, c := range []*tomlCommittee{file.Previous, file.Current, file.Next} {
		if c == nil {
			continue
		}
		committee, err := c.committee()
		if err != nil {
			return lib.ActiveCommittees{}, err
		}
		committees[i] = committee
	}
	return lib.NewActiveCommittees(committees[1], committees[0], committees[2])
}

// committee() converts and validates the toml committee
func (c *tomlCommittee) committee() (*lib.Committee, lib.ErrorI) {
	if c.NShards <= 0 || c.NShards > 1<<16-1 {
		return nil, lib.ErrInvalidCommittee("nShards is out of range")
	}
	members := make([]*lib.Member, 0, len(c.Members))
	for _, m := range c.Members {
		publicKey, err := lib.StringToBytes(m.PublicKey)
		if err != nil {
			return nil, err
		}
		shards := make([]lib.ShardIndex, 0, len(m.Shards))
		for _, s := range m.Shards {
			if s < 0 || s >= c.NShards {
				return nil, lib.ErrInvalidShardIndex(lib.ShardIndex(s), uint16(c.NShards))
			}
			shards = append(shards, lib.ShardIndex(s))
		}
		members = append(members, &lib.Member{PublicKey: publicKey, NetAddress: m.NetAddress, Name: m.Name, Shards: shards})
	}
	return lib.NewCommittee(lib.Epoch(c.Epoch), uint16(c.NShards), members)
}
