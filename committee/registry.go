package committee

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/canopy-network/shardnode/lib"
)

// NodeServices is the registry of request-capable handles to committee members
// Reads and writes take the same lock; no I/O is ever performed while it is held
type NodeServices struct {
	sync.Mutex
	m map[string]lib.NodeServiceI // public key -> service
}

// NewNodeServices() creates an empty registry
func NewNodeServices() *NodeServices {
	return &NodeServices{m: make(map[string]lib.NodeServiceI)}
}

// Get() returns the service of the member or nil if the member is unknown
func (ns *NodeServices) Get(publicKey []byte) lib.NodeServiceI {
	ns.Lock()
	defer ns.Unlock()
	return ns.get(publicKey)
}

// Insert() adds or overwrites the service for the member
func (ns *NodeServices) Insert(publicKey []byte, service lib.NodeServiceI) {
	ns.Lock()
	defer ns.Unlock()
	ns.set(lib.BytesToString(publicKey), service)
}

// Len() returns the number of registered services
func (ns *NodeServices) Len() int {
	ns.Lock()
	defer ns.Unlock()
	return len(ns.m)
}

// PublicKeys() returns the hex public keys of every registered member, sorted
func (ns *NodeServices) PublicKeys() (keys []string) {
	ns.Lock()
	defer ns.Unlock()
	for k := range ns.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}

// the following helpers must be called while holding the lock

func (ns *NodeServices) get(publicKey []byte) lib.NodeServiceI {
	return ns.m[lib.BytesToString(publicKey)]
}
func (ns *NodeServices) set(key string, s lib.NodeServiceI) { ns.m[key] = s }
func (ns *NodeServices) del(publicKey []byte)               { delete(ns.m, lib.BytesToString(publicKey)) }

// extend() merges services into the registry, overwriting existing members
func (ns *NodeServices) extend(services map[string]lib.NodeServiceI) {
	for k, s := range services {
		ns.set(k, s)
	}
}

// serviceBuilder creates member services from a committee
type serviceBuilder struct {
	factory  lib.NodeServiceFactoryI
	encoding *lib.EncodingConfig
	timeout  time.Duration
	log      lib.LoggerI
	metrics  *lib.Metrics
}

// addMembers() builds a service for every member of the committee into services
// Individual failures are logged and skipped; the call fails only if no service was created
func (b *serviceBuilder) addMembers(ctx context.Context, services map[string]lib.NodeServiceI, c *lib.Committee) lib.ErrorI {
	created := 0
	for _, member := range c.Members {
		service, err := b.make(ctx, member)
		if err != nil {
			b.metrics.AddServiceConstructionFailure()
			b.log.Warnf("failed to create service for committee member %s: %s", member, err.Error())
			continue
		}
		created++
		key := lib.BytesToString(member.PublicKey)
		if _, found := services[key]; found {
			b.log.Debugf("replaced the service for storage node %s", member)
		} else {
			b.log.Debugf("added a service for storage node %s", member)
		}
		services[key] = service
	}
	if created == 0 {
		return ErrAllServicesFailed(c.Epoch)
	}
	return nil
}

// fromCommittee() builds a fresh set of services for the committee
func (b *serviceBuilder) fromCommittee(ctx context.Context, c *lib.Committee) (map[string]lib.NodeServiceI, lib.ErrorI) {
	services := make(map[string]lib.NodeServiceI, len(c.Members))
	if err := b.addMembers(ctx, services, c); err != nil {
		return nil, err
	}
	return services, nil
}

// make() builds the service of a single member bounded by the construction timeout
func (b *serviceBuilder) make(ctx context.Context, member *lib.Member) (lib.NodeServiceI, lib.ErrorI) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	service, err := b.factory.MakeService(ctx, member, b.encoding)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, ErrServiceConstruction(member.String(), lib.ErrInvalidArgument())
	}
	return service, nil
}
