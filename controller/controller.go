package controller

import (
	"context"
	"sync"
	"time"

	"github.com/canopy-network/shardnode/lib"
	"github.com/canopy-network/shardnode/lib/crypto"
)

// CommitteeI is the part of the committee service the controller drives
type CommitteeI interface {
	Tracker() lib.CommitteeTracker
	LocalIdentity() []byte
	BeginCommitteeChange(ctx context.Context, newEpoch lib.Epoch) lib.ErrorI
	EndCommitteeChange(epoch lib.Epoch) lib.ErrorI
	SyncShardBeforeEpoch(ctx context.Context, shard lib.ShardIndex, startingBlobID lib.BlobID, sliverType lib.SliverType,
		sliverCount uint64, epoch lib.Epoch, key crypto.PrivateKeyI) ([]lib.BlobSliver, lib.ErrorI)
	SubscribeToCommitteeChanges() *lib.WatchReceiver[lib.CommitteeTracker]
}

// Controller drives the epoch changes of a storage node
// It watches the lookup source and, once the next committee is published, begins the change, migrates the
// shards this node gains from their previous owners into the local store and ends the change
type Controller struct {
	committee CommitteeI
	lookup    lib.CommitteeLookupI
	store     lib.SliverStoreI
	key       crypto.PrivateKeyI
	config    lib.CommitteeServiceConfig
	log       lib.LoggerI

	mu     sync.Mutex         // guards cancel and done
	cancel context.CancelFunc // stops the poll loop
	done   chan struct{}      // closed when the poll loop exits

	step     sync.Mutex // serializes Poll()
	migrated *lib.Epoch // the epoch whose shards are fully migrated, nil until known
}

// New() creates a new instance of a Controller
func New(committee CommitteeI, lookup lib.CommitteeLookupI, store lib.SliverStoreI, key crypto.PrivateKeyI,
	config lib.CommitteeServiceConfig, log lib.LoggerI) (*Controller, lib.ErrorI) {
	if committee == nil || lookup == nil || store == nil {
		return nil, lib.ErrInvalidArgument()
	}
	if key == nil {
		return nil, ErrNoIdentity()
	}
	return &Controller{
		committee: committee,
		lookup:    lookup,
		store:     store,
		key:       key,
		config:    config,
		log:       log.WithModule("controller"),
	}, nil
}

// Start() begins polling the lookup source every EpochPollMS until Stop() or the context ends
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Stop() terminates the poll loop and waits for an in-flight change step to return
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run() is the poll loop; it steps on every tick and whenever the committee service commits a new state
func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	receiver := c.committee.SubscribeToCommitteeChanges()
	wake := make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.watchCommittee(ctx, receiver, wake)
	}()
	defer wg.Wait()
	defer receiver.Close()
	defer lib.CatchPanic(c.log)
	ticker := time.NewTicker(lib.MSToDuration(max(c.config.EpochPollMS, 1)))
	defer ticker.Stop()
	for {
		if err := c.Poll(ctx); err != nil && ctx.Err() == nil {
			c.log.Errorf("epoch change failed with err: %s", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// watchCommittee() signals wake for every membership state committed by the committee service, until the
// receiver is closed or the context ends
func (c *Controller) watchCommittee(ctx context.Context, receiver *lib.WatchReceiver[lib.CommitteeTracker], wake chan<- struct{}) {
	for {
		tracker, err := receiver.Next(ctx)
		if err != nil {
			return
		}
		c.log.Debugf("committee is %s at epoch %d", tracker.State(), tracker.Epoch())
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// Poll() executes one step of the controller: it resumes a change in progress, completes the migration into the
// current epoch, or starts the change to the next epoch once the lookup source publishes its committee
func (c *Controller) Poll(ctx context.Context) lib.ErrorI {
	c.step.Lock()
	defer c.step.Unlock()
	tracker := c.committee.Tracker()
	// a change that was begun but not ended is resumed
	if tracker.IsChangeInProgress() {
		return c.changeEpoch(ctx, tracker.NextEpoch())
	}
	if err := c.completeMigration(ctx, tracker); err != nil {
		return err
	}
	latest, err := c.lookup.GetActiveCommittees(ctx)
	if err != nil {
		return err
	}
	if latest.Epoch() < tracker.NextEpoch() {
		return nil
	}
	c.log.Infof("epoch %d published, current epoch is %d", latest.Epoch(), tracker.Epoch())
	if err = c.committee.BeginCommitteeChange(ctx, latest.Epoch()); err != nil {
		return err
	}
	return c.changeEpoch(ctx, latest.Epoch())
}

// changeEpoch() migrates the newly owned shards, then ends the change to epoch
func (c *Controller) changeEpoch(ctx context.Context, epoch lib.Epoch) lib.ErrorI {
	start := time.Now()
	tracker := c.committee.Tracker()
	committees := tracker.Committees()
	if err := c.migrate(ctx, committees.CurrentCommittee(), committees.NextCommittee(), epoch); err != nil {
		return err
	}
	if err := c.committee.EndCommitteeChange(epoch); err != nil {
		// another caller finished the change
		if lib.IsCode(err, lib.CommitteeModule, lib.CodeEpochChangeAlreadyDone) {
			return nil
		}
		return err
	}
	c.migrated = &epoch
	c.log.Infof("changed to epoch %d in %s", epoch, time.Since(start))
	return nil
}

// completeMigration() migrates the shards gained in the current epoch once per epoch
// A node restarted after the change ended starts with the new epoch as current; the store checkpoints tell
// which shards are finished, the others continue after their last stored blob
func (c *Controller) completeMigration(ctx context.Context, tracker lib.CommitteeTracker) lib.ErrorI {
	epoch := tracker.Epoch()
	if c.migrated != nil && *c.migrated == epoch {
		return nil
	}
	committees := tracker.Committees()
	if previous := committees.PreviousCommittee(); previous != nil {
		if err := c.migrate(ctx, previous, committees.CurrentCommittee(), epoch); err != nil {
			return err
		}
	}
	c.migrated = &epoch
	return nil
}
