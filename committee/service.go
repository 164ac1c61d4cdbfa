package committee

import (
	"bytes"
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/canopy-network/shardnode/lib"
	"golang.org/x/sync/semaphore"
)

/*
	The committee service is the membership and connectivity core of the storage node.

	It publishes the CommitteeTracker through a single-writer observable cell, keeps a handle to every member
	of the current and next committees, drives the two-phase committee change, pulls shards from the outgoing
	committee during a change and hands its state to the quorum request executors.

	Locking:
	  - the tracker is written only through Watch.SendIfModified(); readers take snapshots and never block
	  - the registry has one mutex, never held across I/O
	  - the service factory is guarded by a context-aware semaphore since building a service may block
	  - the shared randomness has its own mutex
*/

// Service is the committee service of a storage node
type Service struct {
	tracker  *lib.Watch[lib.CommitteeTracker] // the observable membership state
	services *NodeServices                    // member handles for the active committees
	factory  *semaphore.Weighted              // exclusive use of builder.factory
	builder  serviceBuilder                   // creates member services
	lookup   lib.CommitteeLookupI             // the authoritative committee source

	config        lib.CommitteeServiceConfig // timeouts and limits read by the request executors
	encoding      *lib.EncodingConfig        // system wide encoding parameters
	localIdentity []byte                     // the public key of this node, may be empty

	rngLock sync.Mutex // guards rng
	rng     *rand.Rand // shared randomness for member selection

	log     lib.LoggerI
	metrics *lib.Metrics
}

// Builder configures and creates a Service
type Builder struct {
	factory       lib.NodeServiceFactoryI
	localIdentity []byte
	config        lib.CommitteeServiceConfig
	rng           *rand.Rand
	log           lib.LoggerI
	metrics       *lib.Metrics
}

// NewBuilder() returns a builder with the default configuration
func NewBuilder() *Builder {
	return &Builder{
		config: lib.DefaultCommitteeServiceConfig(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    lib.NewNullLogger(),
	}
}

// WithNodeServiceFactory() sets the factory used to build member services
func (b *Builder) WithNodeServiceFactory(f lib.NodeServiceFactoryI) *Builder {
	b.factory = f
	return b
}

// WithLocalIdentity() sets the public key of this node
func (b *Builder) WithLocalIdentity(publicKey []byte) *Builder {
	b.localIdentity = bytes.Clone(publicKey)
	return b
}

// WithConfig() sets the timeouts and limits of the service
func (b *Builder) WithConfig(c lib.CommitteeServiceConfig) *Builder {
	b.config = c
	return b
}

// WithRandomness() sets the source of randomness, used by tests for deterministic member selection
func (b *Builder) WithRandomness(rng *rand.Rand) *Builder {
	b.rng = rng
	return b
}

// WithLogger() sets the logger
func (b *Builder) WithLogger(l lib.LoggerI) *Builder {
	b.log = l
	return b
}

// WithMetrics() sets the telemetry, nil disables it
func (b *Builder) WithMetrics(m *lib.Metrics) *Builder {
	b.metrics = m
	return b
}

// Build() seeds the tracker from the lookup source and creates services for the current and next committees
func (b *Builder) Build(ctx context.Context, lookup lib.CommitteeLookupI) (*Service, lib.ErrorI) {
	if b.factory == nil || lookup == nil {
		return nil, lib.ErrInvalidArgument()
	}
	committees, err := lookup.GetActiveCommittees(ctx)
	if err != nil {
		return nil, ErrLookup(err)
	}
	s := &Service{
		tracker:       lib.NewWatch(lib.NewCommitteeTracker(committees)),
		factory:       semaphore.NewWeighted(1),
		lookup:        lookup,
		config:        b.config,
		encoding:      lib.NewEncodingConfig(committees.NShards()),
		localIdentity: b.localIdentity,
		rng:           b.rng,
		log:           b.log.WithModule("committee"),
		metrics:       b.metrics,
	}
	s.builder = serviceBuilder{
		factory:  b.factory,
		encoding: s.encoding,
		timeout:  lib.MSToDuration(b.config.ServiceConstructionTimeoutMS),
		log:      s.log,
		metrics:  s.metrics,
	}
	// the current committee must have at least one reachable member
	services, err := s.builder.fromCommittee(ctx, committees.CurrentCommittee())
	if err != nil {
		return nil, err
	}
	// members of an already known next committee are added on a best effort basis
	if next := committees.NextCommittee(); next != nil {
		if e := s.builder.addMembers(ctx, services, next); e != nil {
			s.log.Warnf("no services created for the next committee: %s", e.Error())
		}
	}
	s.services = NewNodeServices()
	s.services.extend(services)
	s.log.Infof("committee service started at epoch %d with %d member services", committees.Epoch(), len(services))
	s.updateMetrics()
	return s, nil
}

// GetEpoch() returns the current epoch
func (s *Service) GetEpoch() lib.Epoch {
	t := s.tracker.Borrow()
	return t.Epoch()
}

// GetShardCount() returns the number of shards in the system
func (s *Service) GetShardCount() uint16 { return s.encoding.NShards }

// EncodingConfig() returns the system wide encoding parameters
func (s *Service) EncodingConfig() *lib.EncodingConfig { return s.encoding }

// Config() returns the timeouts and limits of the service
func (s *Service) Config() lib.CommitteeServiceConfig { return s.config }

// Committee() returns the committee of the current epoch
func (s *Service) Committee() *lib.Committee { return s.ActiveCommittees().CurrentCommittee() }

// ActiveCommittees() returns a snapshot of the committee window
func (s *Service) ActiveCommittees() lib.ActiveCommittees {
	t := s.tracker.Borrow()
	return t.Committees()
}

// Tracker() returns a snapshot of the membership state
func (s *Service) Tracker() lib.CommitteeTracker { return s.tracker.Borrow() }

// IsStorageNode() returns true if the public key belongs to a member of the previous, current or next committee
func (s *Service) IsStorageNode(publicKey []byte) bool {
	return s.ActiveCommittees().Contains(publicKey)
}

// IsLocal() returns true if the public key is this node's identity
func (s *Service) IsLocal(publicKey []byte) bool {
	return len(s.localIdentity) != 0 && bytes.Equal(s.localIdentity, publicKey)
}

// LocalIdentity() returns this node's public key, if configured
func (s *Service) LocalIdentity() []byte { return s.localIdentity }

// NodeService() returns the registered service of the member or nil
func (s *Service) NodeService(publicKey []byte) lib.NodeServiceI { return s.services.Get(publicKey) }

// NodeServiceCount() returns the number of registered member services
func (s *Service) NodeServiceCount() int { return s.services.Len() }

// SubscribeToCommitteeChanges() returns a receiver of every committed membership state, in order
func (s *Service) SubscribeToCommitteeChanges() *lib.WatchReceiver[lib.CommitteeTracker] {
	return s.tracker.Subscribe()
}

// shuffled() returns a randomly ordered copy of the members
func (s *Service) shuffled(members []*lib.Member) []*lib.Member {
	out := append([]*lib.Member(nil), members...)
	s.rngLock.Lock()
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.rngLock.Unlock()
	return out
}

// serviceFor() returns the registered service of the member, building one if the member is unknown
// A built service is not registered; registration only happens through the committee change protocol
func (s *Service) serviceFor(ctx context.Context, member *lib.Member) (lib.NodeServiceI, lib.ErrorI) {
	if service := s.services.Get(member.PublicKey); service != nil {
		return service, nil
	}
	s.log.Debugf("service is unavailable for node %s, recreating it", member)
	if err := s.factory.Acquire(ctx, 1); err != nil {
		return nil, ErrServiceConstruction(member.String(), err)
	}
	defer s.factory.Release(1)
	return s.builder.make(ctx, member)
}

// updateMetrics() publishes the membership telemetry
func (s *Service) updateMetrics() {
	s.services.Lock()
	defer s.services.Unlock()
	s.updateMetricsLocked()
}

// updateMetricsLocked() publishes the membership telemetry, the registry lock must be held
func (s *Service) updateMetricsLocked() {
	t := s.tracker.Borrow()
	s.metrics.UpdateCommittee(t.Epoch(), t.IsChangeInProgress())
	s.metrics.UpdateNodeServices(len(s.services.m))
}
