package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/canopy-network/shardnode/lib"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// gainedShards() returns the shards publicKey owns in the incoming committee but not in the outgoing one
func gainedShards(outgoing, incoming *lib.Committee, publicKey []byte) (gained []lib.ShardIndex) {
	if incoming == nil {
		return nil
	}
	var owned []lib.ShardIndex
	if outgoing != nil {
		owned = outgoing.ShardsFor(publicKey)
	}
	for _, shard := range incoming.ShardsFor(publicKey) {
		if !slices.Contains(owned, shard) {
			gained = append(gained, shard)
		}
	}
	return
}

// migrate() pulls every gained shard, both sliver types, from its owner in the outgoing committee
func (c *Controller) migrate(ctx context.Context, outgoing, incoming *lib.Committee, epoch lib.Epoch) lib.ErrorI {
	shards := gainedShards(outgoing, incoming, c.committee.LocalIdentity())
	if len(shards) == 0 {
		return nil
	}
	c.log.Infof("migrating %d shards for epoch %d", len(shards), epoch)
	g, ctx := errgroup.WithContext(ctx)
	if n := c.config.MaxConcurrentRequests; n > 0 {
		g.SetLimit(n)
	}
	for _, shard := range shards {
		for _, sliverType := range []lib.SliverType{lib.SliverTypePrimary, lib.SliverTypeSecondary} {
			g.Go(func() error {
				return c.migrateShard(ctx, shard, sliverType, epoch)
			})
		}
	}
	if err := g.Wait(); err != nil {
		var e lib.ErrorI
		if errors.As(err, &e) {
			return e
		}
		return ErrMigrateShard(0, 0, err)
	}
	return nil
}

// migrateShard() pages the slivers of a shard into the store, checkpointing after every page so an
// interrupted migration resumes after the last stored blob
func (c *Controller) migrateShard(ctx context.Context, shard lib.ShardIndex, sliverType lib.SliverType, epoch lib.Epoch) error {
	progress, err := c.store.GetSyncProgress(shard, sliverType)
	if err != nil {
		return err
	}
	start := lib.BlobID{}
	if progress != nil && progress.Epoch == epoch {
		if progress.Done {
			return nil
		}
		start = progress.Next
	}
	pageSize := max(c.config.SyncShardSliverCount, 1)
	total := 0
	for {
		var page []lib.BlobSliver
		request := func() error {
			var e lib.ErrorI
			page, e = c.committee.SyncShardBeforeEpoch(ctx, shard, start, sliverType, pageSize, epoch, c.key)
			if e != nil {
				c.log.Debugf("syncing %s slivers of shard %d from %s failed: %s", sliverType, shard, start, e.Error())
			}
			return e
		}
		if e := backoff.Retry(request, c.retryPolicy(ctx)); e != nil {
			return ErrMigrateShard(shard, sliverType, e)
		}
		// an empty page marks the end of the shard
		if len(page) == 0 {
			c.log.Infof("migrated %d %s slivers of shard %d", total, sliverType, shard)
			return c.store.SetSyncProgress(&lib.SyncProgress{Shard: shard, SliverType: sliverType, Epoch: epoch, Next: start, Done: true})
		}
		if e := checkPage(page, start, sliverType); e != nil {
			return ErrMigrateShard(shard, sliverType, e)
		}
		if e := c.store.PutSlivers(shard, page); e != nil {
			return e
		}
		total += len(page)
		next, ok := nextBlobID(page[len(page)-1].BlobID)
		done := !ok
		if ok {
			start = next
		}
		if e := c.store.SetSyncProgress(&lib.SyncProgress{Shard: shard, SliverType: sliverType, Epoch: epoch, Next: start, Done: done}); e != nil {
			return e
		}
		if done {
			return nil
		}
	}
}

// retryPolicy() returns the exponential backoff of a single page request
func (c *Controller) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lib.MSToDuration(c.config.RetryInitialMS)
	b.MaxInterval = lib.MSToDuration(c.config.RetryMaxMS)
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.config.MaxRetries), ctx)
}

// checkPage() ensures a page holds slivers of the requested type in strictly increasing blob id order starting
// at or after start
func checkPage(page []lib.BlobSliver, start lib.BlobID, sliverType lib.SliverType) lib.ErrorI {
	previous := start
	for i, s := range page {
		if s.Sliver == nil {
			return ErrInvalidPage(fmt.Sprintf("sliver %d is empty", i))
		}
		if s.Sliver.Type != sliverType {
			return ErrInvalidPage(fmt.Sprintf("sliver %d is %s, expected %s", i, s.Sliver.Type, sliverType))
		}
		if s.Sliver.BlobID != s.BlobID {
			return ErrInvalidPage(fmt.Sprintf("sliver %d belongs to blob %s, not %s", i, s.Sliver.BlobID, s.BlobID))
		}
		if c := s.BlobID.Compare(previous); c < 0 || (c == 0 && i > 0) {
			return ErrInvalidPage(fmt.Sprintf("blob %s is out of order", s.BlobID))
		}
		previous = s.BlobID
	}
	return nil
}

// nextBlobID() returns the smallest blob id after id, false if id is the largest
func nextBlobID(id lib.BlobID) (lib.BlobID, bool) {
	for i := len(id) - 1; i >= 0; i-- {
		id[i]++
		if id[i] != 0 {
			return id, true
		}
	}
	return id, false
}
