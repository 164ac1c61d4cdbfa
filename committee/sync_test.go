package committee

import (
	"bytes"
	"context"
	"testing"

	"github.com/canopy-network/shardnode/lib"
	"github.com/stretchr/testify/require"
)

func TestSyncShardBeforeEpoch(t *testing.T) {
	f := newChangeFixture(t)
	f.advanceLookup(t, f.c1, f.c0)
	require.NoError(t, f.service.BeginCommitteeChange(context.Background(), 1))
	expected := []lib.BlobSliver{{
		BlobID: lib.BlobID{1},
		Sliver: &lib.Sliver{BlobID: lib.BlobID{1}, PairIndex: 3, Type: lib.SliverTypePrimary, Data: []byte("sliver")},
	}}
	f.factory.service(f.b).set(func(s *fakeService) { s.slivers = expected })
	// shard 7 moves from b to c
	slivers, err := f.service.SyncShardBeforeEpoch(context.Background(), 7, lib.BlobID{}, lib.SliverTypePrimary, 10, 1, f.c.key)
	require.NoError(t, err)
	require.Equal(t, expected, slivers)
	_, _, requests := f.factory.service(f.b).calls()
	require.Len(t, requests, 1)
	request := requests[0]
	require.Equal(t, lib.ShardIndex(7), request.Shard)
	require.Equal(t, uint64(10), request.SliverCount)
	require.Equal(t, lib.Epoch(1), request.CurrentEpoch)
	require.Equal(t, lib.SliverTypePrimary, request.SliverType)
	require.True(t, bytes.Equal(f.c.publicKey(), request.PublicKey))
	require.True(t, request.CheckSignature())
	// the owner of the shard in the previous epoch is asked, not the current owner
	_, _, requests = f.factory.service(f.c).calls()
	require.Empty(t, requests)
}

func TestSyncShardBeforeEpochNoClient(t *testing.T) {
	f := newChangeFixture(t)
	f.advanceLookup(t, f.c1, f.c0)
	require.NoError(t, f.service.BeginCommitteeChange(context.Background(), 1))
	tests := []struct {
		name           string
		shard          lib.ShardIndex
		epoch          lib.Epoch
		expectedModule lib.ErrorModule
		expectedCode   lib.ErrorCode
	}{
		{name: "genesis", shard: 1, epoch: 0, expectedModule: lib.CommitteeModule, expectedCode: lib.CodeNoSyncClient},
		{name: "unknown committee", shard: 1, epoch: 5, expectedModule: lib.CommitteeModule, expectedCode: lib.CodeNoSyncClient},
		{name: "invalid shard", shard: 10, epoch: 1, expectedModule: lib.MainModule, expectedCode: lib.CodeInvalidShardIndex},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.service.SyncShardBeforeEpoch(context.Background(), test.shard, lib.BlobID{}, lib.SliverTypePrimary, 1, test.epoch, f.c.key)
			require.True(t, lib.IsCode(err, test.expectedModule, test.expectedCode), err)
		})
	}
}

func TestSyncShardBeforeEpochErrors(t *testing.T) {
	tests := []struct {
		name         string
		remote       lib.ErrorI
		expectedCode lib.ErrorCode
	}{
		{name: "remote node error", remote: lib.ErrNode("shard is not owned"), expectedCode: lib.CodeSyncRequest},
		{name: "transport error", remote: lib.ErrServerTimeout(), expectedCode: lib.CodeSyncOther},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newChangeFixture(t)
			f.advanceLookup(t, f.c1, f.c0)
			require.NoError(t, f.service.BeginCommitteeChange(context.Background(), 1))
			f.factory.service(f.b).set(func(s *fakeService) { s.syncErr = test.remote })
			_, err := f.service.SyncShardBeforeEpoch(context.Background(), 5, lib.BlobID{}, lib.SliverTypeSecondary, 1, 1, f.c.key)
			require.True(t, lib.IsCode(err, lib.CommitteeModule, test.expectedCode), err)
		})
	}
}

func TestSyncShardBeforeEpochAfterChange(t *testing.T) {
	f := newChangeFixture(t)
	f.advanceLookup(t, f.c1, f.c0)
	require.NoError(t, f.service.BeginCommitteeChange(context.Background(), 1))
	require.NoError(t, f.service.EndCommitteeChange(1))
	require.Nil(t, f.service.NodeService(f.b.publicKey()))
	// the service of the retired owner is rebuilt without being registered
	made := f.factory.madeCount()
	_, err := f.service.SyncShardBeforeEpoch(context.Background(), 9, lib.BlobID{}, lib.SliverTypePrimary, 1, 1, f.c.key)
	require.NoError(t, err)
	require.Equal(t, made+1, f.factory.madeCount())
	require.Nil(t, f.service.NodeService(f.b.publicKey()))
	require.Equal(t, 2, f.service.NodeServiceCount())
	// the retired owner can no longer be reached
	f.factory.fail(f.b, true)
	_, err = f.service.SyncShardBeforeEpoch(context.Background(), 9, lib.BlobID{}, lib.SliverTypePrimary, 1, 1, f.c.key)
	require.True(t, lib.IsCode(err, lib.CommitteeModule, lib.CodeNoSyncClient), err)
}
