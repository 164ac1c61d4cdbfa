package lib

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobIDJSON(t *testing.T) {
	var expected BlobID
	for i := range expected {
		expected[i] = byte(i)
	}
	bz, err := json.Marshal(expected)
	require.NoError(t, err)
	var got BlobID
	require.NoError(t, json.Unmarshal(bz, &got))
	require.Equal(t, expected, got)
	// the wrong size is rejected
	require.Error(t, json.Unmarshal([]byte(`"0102"`), &got))
}

func TestBlobIDCompare(t *testing.T) {
	a, b := BlobID{1}, BlobID{2}
	require.Equal(t, -1, a.Compare(b))
	require.Equal(t, 1, b.Compare(a))
	require.Equal(t, 0, a.Compare(a))
}

func TestEncodingConfigQuorum(t *testing.T) {
	tests := []struct {
		nShards uint16
		faulty  uint16
		quorum  uint16
	}{
		{nShards: 1, faulty: 0, quorum: 1},
		{nShards: 4, faulty: 1, quorum: 3},
		{nShards: 10, faulty: 3, quorum: 7},
		{nShards: 1000, faulty: 333, quorum: 667},
	}
	for _, test := range tests {
		e := NewEncodingConfig(test.nShards)
		require.Equal(t, test.faulty, e.MaxFaulty())
		require.Equal(t, test.quorum, e.QuorumThreshold())
	}
}

func TestEncodingConfigShardForPair(t *testing.T) {
	e := NewEncodingConfig(7)
	blob := BlobID{0, 0, 0, 0, 0, 0, 0, 9}
	seen := make(map[ShardIndex]bool)
	for pair := SliverPairIndex(0); pair < 7; pair++ {
		shard := e.ShardForPair(pair, blob)
		require.Less(t, uint16(shard), uint16(7))
		// the mapping is a bijection
		require.False(t, seen[shard])
		seen[shard] = true
		require.Equal(t, pair, e.PairForShard(shard, blob))
	}
	// rotation by blob id: 9 % 7 = 2
	require.Equal(t, ShardIndex(2), e.ShardForPair(0, blob))
}

func TestSliverType(t *testing.T) {
	require.True(t, SliverTypePrimary.Valid())
	require.True(t, SliverTypeSecondary.Valid())
	require.False(t, SliverType(2).Valid())
	require.Equal(t, "secondary", SliverTypeSecondary.String())
}
