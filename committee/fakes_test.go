package committee

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/canopy-network/shardnode/lib"
	"github.com/canopy-network/shardnode/lib/crypto"
	"github.com/stretchr/testify/require"
)

// testNode is a storage node identity used to build test committees
type testNode struct {
	name string
	key  crypto.PrivateKeyI
}

func (n *testNode) publicKey() []byte { return n.key.PublicKey().Bytes() }

// newTestNodes() creates named node identities
func newTestNodes(t *testing.T, names ...string) (nodes []*testNode) {
	for _, name := range names {
		pk, err := crypto.NewEd25519PrivateKey()
		require.NoError(t, err)
		nodes = append(nodes, &testNode{name: name, key: pk})
	}
	return
}

// newCommittee() assigns shards[i] to nodes[i]
func newCommittee(t *testing.T, epoch lib.Epoch, nShards uint16, nodes []*testNode, shards ...[]lib.ShardIndex) *lib.Committee {
	require.Equal(t, len(nodes), len(shards))
	members := make([]*lib.Member, len(nodes))
	for i, n := range nodes {
		members[i] = &lib.Member{PublicKey: n.publicKey(), NetAddress: "http://" + n.name, Name: n.name, Shards: shards[i]}
	}
	c, err := lib.NewCommittee(epoch, nShards, members)
	require.NoError(t, err)
	return c
}

// shardRange() returns the shards [from, to)
func shardRange(from, to lib.ShardIndex) (shards []lib.ShardIndex) {
	for s := from; s < to; s++ {
		shards = append(shards, s)
	}
	return
}

// newWindow() creates a validated committee window
func newWindow(t *testing.T, current, previous, next *lib.Committee) lib.ActiveCommittees {
	ac, err := lib.NewActiveCommittees(current, previous, next)
	require.NoError(t, err)
	return ac
}

// fakeService is an in-process member endpoint
type fakeService struct {
	node *testNode

	mu           sync.Mutex
	syncRequests []*lib.SyncShardRequest
	slivers      []lib.BlobSliver
	syncErr      lib.ErrorI
	metadata     *lib.BlobMetadata
	metaCalls    int
	sliverCalls  int
	hasSliver    bool
	attestEpoch  lib.Epoch
	attest       bool
	forgeAttest  bool
}

var _ lib.NodeServiceI = new(fakeService)

func (f *fakeService) SyncShard(_ context.Context, request *lib.SyncShardRequest) ([]lib.BlobSliver, lib.ErrorI) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncRequests = append(f.syncRequests, request)
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.slivers, nil
}

func (f *fakeService) GetMetadata(_ context.Context, blobID lib.BlobID) (*lib.BlobMetadata, lib.ErrorI) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	if f.metadata == nil {
		return nil, lib.ErrNode("metadata not found")
	}
	return f.metadata, nil
}

func (f *fakeService) GetSliver(_ context.Context, blobID lib.BlobID, pair lib.SliverPairIndex, sliverType lib.SliverType) (*lib.Sliver, lib.ErrorI) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sliverCalls++
	if !f.hasSliver {
		return nil, lib.ErrNode("sliver not found")
	}
	return &lib.Sliver{BlobID: blobID, PairIndex: pair, Type: sliverType, Data: []byte(f.node.name)}, nil
}

func (f *fakeService) SubmitInconsistencyProof(_ context.Context, proof *lib.InconsistencyProof) (*lib.InvalidBlobAttestation, lib.ErrorI) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.attest {
		return nil, lib.ErrNode("proof rejected")
	}
	attestation := lib.NewInvalidBlobAttestation(proof.BlobID, f.attestEpoch, f.node.key)
	if f.forgeAttest {
		attestation.Signature[0] ^= 0xff
	}
	return attestation, nil
}

func (f *fakeService) calls() (metaCalls, sliverCalls int, syncRequests []*lib.SyncShardRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls, f.sliverCalls, append([]*lib.SyncShardRequest(nil), f.syncRequests...)
}

// set() mutates the fake under its lock
func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// fakeFactory returns one fakeService per node and can be told to fail for specific nodes
type fakeFactory struct {
	mu       sync.Mutex
	nodes    map[string]*testNode
	services map[string]*fakeService
	failing  map[string]bool
	made     int
}

var _ lib.NodeServiceFactoryI = new(fakeFactory)

func newFakeFactory(nodes ...*testNode) *fakeFactory {
	f := &fakeFactory{nodes: map[string]*testNode{}, services: map[string]*fakeService{}, failing: map[string]bool{}}
	for _, n := range nodes {
		key := lib.BytesToString(n.publicKey())
		f.nodes[key] = n
		f.services[key] = &fakeService{node: n}
	}
	return f
}

func (f *fakeFactory) MakeService(ctx context.Context, member *lib.Member, _ *lib.EncodingConfig) (lib.NodeServiceI, lib.ErrorI) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, ErrServiceConstruction(member.String(), err)
	}
	key := lib.BytesToString(member.PublicKey)
	if f.failing[key] {
		return nil, ErrServiceConstruction(member.String(), errors.New("connection refused"))
	}
	service, found := f.services[key]
	if !found {
		return nil, ErrServiceConstruction(member.String(), errors.New("unknown node"))
	}
	f.made++
	return service, nil
}

// fail() makes the factory fail for the node
func (f *fakeFactory) fail(n *testNode, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[lib.BytesToString(n.publicKey())] = failing
}

// service() returns the fake endpoint of the node
func (f *fakeFactory) service(n *testNode) *fakeService {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.services[lib.BytesToString(n.publicKey())]
}

func (f *fakeFactory) madeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.made
}

// testConfig() returns a configuration with short retries so failing tests finish quickly
func testConfig() lib.CommitteeServiceConfig {
	c := lib.DefaultCommitteeServiceConfig()
	c.RetryInitialMS, c.RetryMaxMS, c.MaxRetries = 1, 5, 2
	c.MetadataRequestTimeoutMS, c.SliverRequestTimeoutMS, c.InvalidityCertTimeoutMS = 1000, 1000, 2000
	c.MaxConcurrentRequests = 4
	return c
}

// newTestService() builds a service over the lookup with the fake factory
func newTestService(t *testing.T, factory *fakeFactory, lookup lib.CommitteeLookupI, local *testNode) *Service {
	b := NewBuilder().
		WithNodeServiceFactory(factory).
		WithConfig(testConfig()).
		WithRandomness(rand.New(rand.NewSource(1)))
	if local != nil {
		b = b.WithLocalIdentity(local.publicKey())
	}
	s, err := b.Build(context.Background(), lookup)
	require.NoError(t, err)
	return s
}
