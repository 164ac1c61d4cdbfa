package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/canopy-network/shardnode/committee"
	"github.com/canopy-network/shardnode/lib"
	"github.com/canopy-network/shardnode/lib/crypto"
	"github.com/canopy-network/shardnode/store"
	"github.com/stretchr/testify/require"
)

// rpcFixture is node 'a' serving its rpc, with node 'b' taking over shard 1 in epoch 1
//
//	epoch 0: a{0, 1} b{2, 3}
//	epoch 1: a{0}    b{1, 2, 3}
type rpcFixture struct {
	a, b    crypto.PrivateKeyI
	url     string
	window  lib.ActiveCommittees
	config  lib.Config
	store   *store.Store
	service *committee.Service
	client  *Client
}

func newRPCFixture(t *testing.T) *rpcFixture {
	f := &rpcFixture{a: newKey(t), b: newKey(t)}
	// the handler is set once the server url is known to the committee
	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { handler.ServeHTTP(w, r) }))
	t.Cleanup(ts.Close)
	f.url = ts.URL
	members := func(aShards, bShards []lib.ShardIndex) []*lib.Member {
		return []*lib.Member{
			{PublicKey: f.a.PublicKey().Bytes(), NetAddress: f.url, Name: "a", Shards: aShards},
			{PublicKey: f.b.PublicKey().Bytes(), NetAddress: "http://b.invalid", Name: "b", Shards: bShards},
		}
	}
	c0, err := lib.NewCommittee(0, 4, members([]lib.ShardIndex{0, 1}, []lib.ShardIndex{2, 3}))
	require.NoError(t, err)
	c1, err := lib.NewCommittee(1, 4, members([]lib.ShardIndex{0}, []lib.ShardIndex{1, 2, 3}))
	require.NoError(t, err)
	f.window, err = lib.NewActiveCommittees(c1, c0, nil)
	require.NoError(t, err)
	f.config = lib.DefaultConfig()
	f.config.DataDirPath = t.TempDir()
	f.config.TimeoutS = 5
	f.config.SyncShardSliverCount = 2
	f.service = f.committeeService(t, f.a, f.config.RPCConfig)
	f.store, err = store.NewStoreInMemory(nil, lib.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, f.store.Close()) })
	handler = NewServer(f.service, f.store, f.a, f.config, lib.NewNullLogger()).Handler()
	f.client = NewClient(f.url, 5*time.Second, f.config.MaxResponseBytes)
	return f
}

// committeeService() builds the committee service of a node that reaches its peers over rpc
func (f *rpcFixture) committeeService(t *testing.T, local crypto.PrivateKeyI, config lib.RPCConfig) *committee.Service {
	s, err := committee.NewBuilder().
		WithNodeServiceFactory(NewNodeServiceFactory(config)).
		WithLocalIdentity(local.PublicKey().Bytes()).
		Build(context.Background(), committee.NewStaticLookup(f.window))
	require.NoError(t, err)
	return s
}

func newKey(t *testing.T) crypto.PrivateKeyI {
	pk, err := crypto.NewEd25519PrivateKey()
	require.NoError(t, err)
	return pk
}

func blobSlivers(pair lib.SliverPairIndex, sliverType lib.SliverType, ids ...byte) (slivers []lib.BlobSliver) {
	for _, id := range ids {
		blobID := lib.BlobID{id}
		slivers = append(slivers, lib.BlobSliver{
			BlobID: blobID,
			Sliver: &lib.Sliver{BlobID: blobID, PairIndex: pair, Type: sliverType, Data: []byte{id}},
		})
	}
	return
}

func TestQueries(t *testing.T) {
	f := newRPCFixture(t)
	ctx := context.Background()
	version, err := f.client.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, SoftwareVersion, *version)
	committees, err := f.client.GetActiveCommittees(ctx)
	require.NoError(t, err)
	require.True(t, f.window.Equals(committees))
	tracker, err := f.client.Tracker(ctx)
	require.NoError(t, err)
	got := struct {
		ChangeInProgress bool   `json:"changeInProgress"`
		State            string `json:"state"`
	}{}
	require.NoError(t, json.Unmarshal(*tracker, &got))
	require.False(t, got.ChangeInProgress)
	require.Equal(t, "stable", got.State)
	config, err := f.client.Config(ctx)
	require.NoError(t, err)
	require.Equal(t, f.config.RPCPort, config.RPCPort)
	require.Equal(t, f.config.SyncShardSliverCount, config.SyncShardSliverCount)
}

func TestSyncShard(t *testing.T) {
	f := newRPCFixture(t)
	require.NoError(t, f.store.PutSlivers(1, blobSlivers(1, lib.SliverTypePrimary, 1, 2, 3)))
	require.NoError(t, f.store.PutSlivers(1, blobSlivers(1, lib.SliverTypeSecondary, 4)))
	require.NoError(t, f.store.PutSlivers(0, blobSlivers(0, lib.SliverTypePrimary, 5)))
	stranger := newKey(t)
	tests := []struct {
		name        string
		request     lib.SyncShardRequest
		signer      crypto.PrivateKeyI
		tamper      bool
		expected    []byte
		expectedErr string
	}{
		{
			name:     "first page is capped by the server",
			request:  lib.SyncShardRequest{Shard: 1, SliverCount: 10, SliverType: lib.SliverTypePrimary, CurrentEpoch: 1},
			signer:   f.b,
			expected: []byte{1, 2},
		},
		{
			name:     "next page",
			request:  lib.SyncShardRequest{Shard: 1, StartingBlobID: lib.BlobID{3}, SliverCount: 10, SliverType: lib.SliverTypePrimary, CurrentEpoch: 1},
			signer:   f.b,
			expected: []byte{3},
		},
		{
			name:     "secondary slivers",
			request:  lib.SyncShardRequest{Shard: 1, SliverCount: 1, SliverType: lib.SliverTypeSecondary, CurrentEpoch: 1},
			signer:   f.b,
			expected: []byte{4},
		},
		{
			name:     "past the last blob",
			request:  lib.SyncShardRequest{Shard: 1, StartingBlobID: lib.BlobID{9}, SliverCount: 10, SliverType: lib.SliverTypePrimary, CurrentEpoch: 1},
			signer:   f.b,
			expected: []byte{},
		},
		{
			name:        "tampered signature",
			request:     lib.SyncShardRequest{Shard: 1, SliverCount: 10, SliverType: lib.SliverTypePrimary, CurrentEpoch: 1},
			signer:      f.b,
			tamper:      true,
			expectedErr: "signature",
		},
		{
			name:        "requester is not a storage node",
			request:     lib.SyncShardRequest{Shard: 1, SliverCount: 10, SliverType: lib.SliverTypePrimary, CurrentEpoch: 1},
			signer:      stranger,
			expectedErr: "not a storage node",
		},
		{
			name:        "requester does not own the shard",
			request:     lib.SyncShardRequest{Shard: 0, SliverCount: 10, SliverType: lib.SliverTypePrimary, CurrentEpoch: 1},
			signer:      f.b,
			expectedErr: "does not own shard 0",
		},
		{
			name:        "unknown epoch",
			request:     lib.SyncShardRequest{Shard: 1, SliverCount: 10, SliverType: lib.SliverTypePrimary, CurrentEpoch: 2},
			signer:      f.b,
			expectedErr: "epoch 2",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := test.request
			request.Sign(test.signer)
			if test.tamper {
				request.SliverCount++
			}
			slivers, err := f.client.SyncShard(context.Background(), &request)
			if test.expectedErr != "" {
				require.Error(t, err)
				require.True(t, lib.IsCode(err, lib.MainModule, lib.CodeNode))
				require.Contains(t, err.Error(), test.expectedErr)
				return
			}
			require.NoError(t, err)
			ids := make([]byte, 0, len(slivers))
			for _, s := range slivers {
				require.Equal(t, s.BlobID, s.Sliver.BlobID)
				ids = append(ids, s.BlobID[0])
			}
			require.Equal(t, test.expected, ids)
		})
	}
}

func TestSyncShardBeforeEpochOverRPC(t *testing.T) {
	f := newRPCFixture(t)
	require.NoError(t, f.store.PutSlivers(1, blobSlivers(1, lib.SliverTypePrimary, 1, 2)))
	config := f.config.RPCConfig
	config.SyncShardBytesPerSec = 1 << 20
	// node b pulls shard 1 from its epoch 0 owner, node a
	b := f.committeeService(t, f.b, config)
	slivers, err := b.SyncShardBeforeEpoch(context.Background(), 1, lib.BlobID{}, lib.SliverTypePrimary, 10, 1, f.b)
	require.NoError(t, err)
	require.Len(t, slivers, 2)
	require.Equal(t, lib.BlobID{1}, slivers[0].BlobID)
	// a rejected request is reported by the remote node
	_, err = b.SyncShardBeforeEpoch(context.Background(), 0, lib.BlobID{}, lib.SliverTypePrimary, 10, 1, f.b)
	require.True(t, lib.IsCode(err, lib.CommitteeModule, lib.CodeSyncRequest))
}

func TestMetadataAndSliver(t *testing.T) {
	f := newRPCFixture(t)
	ctx := context.Background()
	blobID := lib.BlobID{7, 7, 7, 7, 7, 7, 7, 7}
	metadata := &lib.BlobMetadata{BlobID: blobID, UnencodedLength: 100, PairHashes: []lib.HexBytes{{0}, {1}, {2}, {3}}}
	require.NoError(t, f.store.PutMetadata(metadata))
	got, err := f.client.GetMetadata(ctx, blobID)
	require.NoError(t, err)
	require.Equal(t, metadata, got)
	_, err = f.client.GetMetadata(ctx, lib.BlobID{1})
	require.True(t, lib.IsCode(err, lib.MainModule, lib.CodeNode))
	require.Contains(t, err.Error(), "not found")
	// the sliver of pair 2 is stored by the shard the pair rotates to
	encoding := f.service.EncodingConfig()
	shard := encoding.ShardForPair(2, blobID)
	sliver := &lib.Sliver{BlobID: blobID, PairIndex: 2, Type: lib.SliverTypeSecondary, Data: []byte("sliver")}
	require.NoError(t, f.store.PutSlivers(shard, []lib.BlobSliver{{BlobID: blobID, Sliver: sliver}}))
	gotSliver, err := f.client.GetSliver(ctx, blobID, 2, lib.SliverTypeSecondary)
	require.NoError(t, err)
	require.Equal(t, sliver, gotSliver)
	_, err = f.client.GetSliver(ctx, blobID, 2, lib.SliverTypePrimary)
	require.Contains(t, err.Error(), "not found")
	_, err = f.client.GetSliver(ctx, blobID, 4, lib.SliverTypeSecondary)
	require.Contains(t, err.Error(), "invalid sliver")
}

func TestInconsistency(t *testing.T) {
	f := newRPCFixture(t)
	ctx := context.Background()
	blobID := lib.BlobID{9}
	require.NoError(t, f.store.PutMetadata(&lib.BlobMetadata{
		BlobID:     blobID,
		PairHashes: []lib.HexBytes{crypto.Hash([]byte("p0")), crypto.Hash([]byte("p1"))},
	}))
	tests := []struct {
		name        string
		proof       lib.InconsistencyProof
		expectedErr string
	}{
		{
			name:  "evidence does not match the pair hash",
			proof: lib.InconsistencyProof{BlobID: blobID, SliverType: lib.SliverTypePrimary, PairIndex: 1, Evidence: []byte("forged")},
		},
		{
			name:        "evidence matches the pair hash",
			proof:       lib.InconsistencyProof{BlobID: blobID, SliverType: lib.SliverTypePrimary, PairIndex: 1, Evidence: []byte("p1")},
			expectedErr: "consistent",
		},
		{
			name:        "no evidence",
			proof:       lib.InconsistencyProof{BlobID: blobID, SliverType: lib.SliverTypePrimary, PairIndex: 1},
			expectedErr: "no evidence",
		},
		{
			name:        "pair out of range",
			proof:       lib.InconsistencyProof{BlobID: blobID, SliverType: lib.SliverTypePrimary, PairIndex: 2, Evidence: []byte("x")},
			expectedErr: "out of range",
		},
		{
			name:        "unknown blob",
			proof:       lib.InconsistencyProof{BlobID: lib.BlobID{1}, SliverType: lib.SliverTypePrimary, Evidence: []byte("x")},
			expectedErr: "not found",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			attestation, err := f.client.SubmitInconsistencyProof(ctx, &test.proof)
			if test.expectedErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), test.expectedErr)
				return
			}
			require.NoError(t, err)
			require.True(t, attestation.CheckSignature())
			require.Equal(t, blobID, attestation.BlobID)
			require.Equal(t, lib.Epoch(1), attestation.Epoch)
			require.Equal(t, lib.HexBytes(f.a.PublicKey().Bytes()), attestation.PublicKey)
		})
	}
}

func TestInvalidRequestBody(t *testing.T) {
	f := newRPCFixture(t)
	resp, err := http.Post(f.url+MetadataRoutePath, ApplicationJSON, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	// routes reject the wrong method
	resp2, err := http.Get(f.url + SyncShardRoutePath)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestNodeServiceFactory(t *testing.T) {
	factory := NewNodeServiceFactory(lib.DefaultRPCConfig())
	encoding := lib.NewEncodingConfig(4)
	for _, address := range []string{"", "localhost:50002", "ftp://node:50002", "http://", "::"} {
		_, err := factory.MakeService(context.Background(), &lib.Member{NetAddress: address}, encoding)
		require.True(t, lib.IsCode(err, lib.RPCModule, lib.CodeInvalidAddress), address)
	}
	service, err := factory.MakeService(context.Background(), &lib.Member{NetAddress: "https://node:50002/"}, encoding)
	require.NoError(t, err)
	require.Equal(t, "https://node:50002", service.(*Client).rpcURL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = factory.MakeService(ctx, &lib.Member{NetAddress: "https://node:50002"}, encoding)
	require.Error(t, err)
}

func TestClientErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	client := NewClient(ts.URL, time.Second, 0)
	// a status without a storage node error is a transport level failure
	_, err := client.GetMetadata(context.Background(), lib.BlobID{})
	require.True(t, lib.IsCode(err, lib.RPCModule, lib.CodeHttpStatus))
	ts.Close()
	_, err = client.GetMetadata(context.Background(), lib.BlobID{})
	require.True(t, lib.IsCode(err, lib.RPCModule, lib.CodePostRequest))
	_, err = client.GetActiveCommittees(context.Background())
	require.True(t, lib.IsCode(err, lib.RPCModule, lib.CodeGetRequest))
}
