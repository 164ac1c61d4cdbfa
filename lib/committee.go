package lib

import (
	"bytes"
	"fmt"
	"sort"
)

/* This file contains the committee data model: the epoch-tagged set of storage members and their shard assignments */

// Epoch identifies one committee's reign; it increases monotonically
type Epoch uint64

// ShardIndex identifies a fixed partition of the stored data space
type ShardIndex uint16

// Member is a storage node that is part of a committee
type Member struct {
	PublicKey  HexBytes     `json:"publicKey"`  // the identity of the storage node
	NetAddress string       `json:"netAddress"` // the url where the node's rpc is reachable
	Name       string       `json:"name"`       // human readable name, only used in logs
	Shards     []ShardIndex `json:"shards"`     // the ordered shards assigned to the member
}

// Equals() returns true if both members have the same identity, address and shard assignment
func (m *Member) Equals(o *Member) bool {
	if m == nil || o == nil {
		return m == o
	}
	if !bytes.Equal(m.PublicKey, o.PublicKey) || m.NetAddress != o.NetAddress || m.Name != o.Name {
		return false
	}
	if len(m.Shards) != len(o.Shards) {
		return false
	}
	for i := range m.Shards {
		if m.Shards[i] != o.Shards[i] {
			return false
		}
	}
	return true
}

// String() returns a short identifier of the member for logging
func (m *Member) String() string {
	if m.Name != "" {
		return fmt.Sprintf("%s(%s)", m.Name, BytesToTruncatedString(m.PublicKey))
	}
	return BytesToTruncatedString(m.PublicKey)
}

// Committee is the authoritative set of storage members and shard assignments for one epoch
// CONTRACT: a published committee is never mutated; a new epoch requires a new Committee
type Committee struct {
	Epoch   Epoch     `json:"epoch"`   // the epoch of the committee
	NShards uint16    `json:"nShards"` // the total number of shards in the system
	Members []*Member `json:"members"` // the ordered list of members
}

// NewCommittee() creates a validated committee
func NewCommittee(epoch Epoch, nShards uint16, members []*Member) (*Committee, ErrorI) {
	c := &Committee{Epoch: epoch, NShards: nShards, Members: members}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// Check() validates that the members' shards partition exactly the full shard space
func (c *Committee) Check() ErrorI {
	if c == nil || len(c.Members) == 0 {
		return ErrNoMembers()
	}
	if c.NShards == 0 {
		return ErrInvalidCommittee("zero shards")
	}
	seen, keys := make([]bool, c.NShards), make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		if m == nil || len(m.PublicKey) == 0 {
			return ErrInvalidCommittee("member without a public key")
		}
		key := BytesToString(m.PublicKey)
		if _, found := keys[key]; found {
			return ErrInvalidCommittee(fmt.Sprintf("duplicate member %s", key))
		}
		keys[key] = struct{}{}
		for _, s := range m.Shards {
			if uint16(s) >= c.NShards {
				return ErrInvalidShardIndex(s, c.NShards)
			}
			if seen[s] {
				return ErrInvalidCommittee(fmt.Sprintf("shard %d assigned twice", s))
			}
			seen[s] = true
		}
	}
	for s, ok := range seen {
		if !ok {
			return ErrInvalidCommittee(fmt.Sprintf("shard %d is unassigned", s))
		}
	}
	return nil
}

// MemberIndexForShard() returns the index of the member that owns the shard
func (c *Committee) MemberIndexForShard(shard ShardIndex) (int, bool) {
	for i, m := range c.Members {
		for _, s := range m.Shards {
			if s == shard {
				return i, true
			}
		}
	}
	return 0, false
}

// MemberForShard() returns the member that owns the shard
func (c *Committee) MemberForShard(shard ShardIndex) (*Member, ErrorI) {
	i, ok := c.MemberIndexForShard(shard)
	if !ok {
		return nil, ErrInvalidShardIndex(shard, c.NShards)
	}
	return c.Members[i], nil
}

// Member() returns the member with the public key
func (c *Committee) Member(publicKey []byte) (*Member, bool) {
	for _, m := range c.Members {
		if bytes.Equal(m.PublicKey, publicKey) {
			return m, true
		}
	}
	return nil, false
}

// Contains() returns true if the public key identifies a member of the committee
func (c *Committee) Contains(publicKey []byte) bool {
	_, found := c.Member(publicKey)
	return found
}

// ShardsFor() returns the shards assigned to the public key, sorted ascending
func (c *Committee) ShardsFor(publicKey []byte) []ShardIndex {
	m, found := c.Member(publicKey)
	if !found {
		return nil
	}
	shards := append([]ShardIndex(nil), m.Shards...)
	sort.Slice(shards, func(i, j int) bool { return shards[i] < shards[j] })
	return shards
}

// Equals() returns true if both committees are identical
func (c *Committee) Equals(o *Committee) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Epoch != o.Epoch || c.NShards != o.NShards || len(c.Members) != len(o.Members) {
		return false
	}
	for i := range c.Members {
		if !c.Members[i].Equals(o.Members[i]) {
			return false
		}
	}
	return true
}

// String() returns a short description of the committee for logging
func (c *Committee) String() string {
	return fmt.Sprintf("committee{epoch: %d, members: %d, shards: %d}", c.Epoch, len(c.Members), c.NShards)
}
