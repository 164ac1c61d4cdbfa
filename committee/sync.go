package committee

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/shardnode/lib"
	"github.com/canopy-network/shardnode/lib/crypto"
)

// SyncShardBeforeEpoch() requests up to sliverCount slivers of a shard, starting at startingBlobID, from the member
// that owned the shard in the epoch before epoch
// Remote failures are wrapped and returned; retrying is up to the caller driving the migration
func (s *Service) SyncShardBeforeEpoch(ctx context.Context, shard lib.ShardIndex, startingBlobID lib.BlobID,
	sliverType lib.SliverType, sliverCount uint64, epoch lib.Epoch, key crypto.PrivateKeyI) (slivers []lib.BlobSliver, err lib.ErrorI) {
	start := time.Now()
	defer func() { s.metrics.ObserveSyncShard(err, time.Since(start)) }()
	if epoch == 0 {
		return nil, ErrNoSyncClient("there is no epoch before genesis")
	}
	committee := s.ActiveCommittees().CommitteeForEpoch(epoch - 1)
	if committee == nil {
		return nil, ErrNoSyncClient(fmt.Sprintf("the committee of epoch %d is unknown", epoch-1))
	}
	owner, err := committee.MemberForShard(shard)
	if err != nil {
		return nil, err
	}
	service, err := s.serviceFor(ctx, owner)
	if err != nil {
		return nil, ErrNoSyncClient(err.Error())
	}
	request := &lib.SyncShardRequest{
		Shard:          shard,
		StartingBlobID: startingBlobID,
		SliverCount:    sliverCount,
		SliverType:     sliverType,
		CurrentEpoch:   epoch,
	}
	request.Sign(key)
	if timeout := lib.MSToDuration(s.config.SyncShardTimeoutMS); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	slivers, err = service.SyncShard(ctx, request)
	if err != nil {
		// errors reported by the remote node are distinguished from transport failures
		if err.Module() == lib.MainModule && err.Code() == lib.CodeNode {
			return nil, ErrSyncRequest(err)
		}
		return nil, ErrSyncOther(err)
	}
	s.log.Debugf("synced %d slivers of shard %d from %s", len(slivers), shard, owner)
	return slivers, nil
}
