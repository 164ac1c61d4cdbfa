package committee

import (
	"fmt"

	"github.com/canopy-network/shardnode/lib"
)

func ErrEpochIsNotSequential(expected, actual lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeEpochIsNotSequential, lib.CommitteeModule,
		fmt.Sprintf("epoch %d is not sequential, expected %d", actual, expected))
}

func ErrEpochIsTheSameAsCurrent(epoch lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeEpochIsTheSameAsCurrent, lib.CommitteeModule,
		fmt.Sprintf("epoch %d is the same as the current epoch", epoch))
}

func ErrEpochIsLess(expected, actual lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeEpochIsLess, lib.CommitteeModule,
		fmt.Sprintf("epoch %d is less than the expected epoch %d", actual, expected))
}

func ErrLookup(err error) lib.ErrorI {
	return lib.NewError(lib.CodeLookup, lib.CommitteeModule, fmt.Sprintf("committee lookup failed with err: %s", err.Error()))
}

func ErrLatestCommitteeEpochDiffers(latest, expected lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeLatestCommitteeEpochDiffers, lib.CommitteeModule,
		fmt.Sprintf("the latest committee has epoch %d, expected %d", latest, expected))
}

func ErrChangeAlreadyInProgress() lib.ErrorI {
	return lib.NewError(lib.CodeChangeAlreadyInProgress, lib.CommitteeModule, "a committee change is already in progress")
}

func ErrAllServicesFailed(epoch lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeAllServicesFailed, lib.CommitteeModule,
		fmt.Sprintf("failed to create any service from the committee of epoch %d", epoch))
}

func ErrEpochInTheFuture(provided, expected lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeEpochInTheFuture, lib.CommitteeModule,
		fmt.Sprintf("provided epoch %d is in the future, expected %d", provided, expected))
}

func ErrEpochInThePast(provided, expected lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeEpochInThePast, lib.CommitteeModule,
		fmt.Sprintf("provided epoch %d is in the past, expected %d", provided, expected))
}

func ErrEpochChangeAlreadyDone() lib.ErrorI {
	return lib.NewError(lib.CodeEpochChangeAlreadyDone, lib.CommitteeModule, "the epoch change is already done")
}

func ErrNoSyncClient(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeNoSyncClient, lib.CommitteeModule, fmt.Sprintf("no sync client available: %s", reason))
}

// ErrSyncRequest wraps an error returned by the remote storage node
func ErrSyncRequest(err error) lib.ErrorI {
	return lib.NewError(lib.CodeSyncRequest, lib.CommitteeModule, fmt.Sprintf("sync shard request failed with err: %s", err.Error()))
}

// ErrSyncOther wraps a transport or local failure of a sync request
func ErrSyncOther(err error) lib.ErrorI {
	return lib.NewError(lib.CodeSyncOther, lib.CommitteeModule, fmt.Sprintf("sync shard failed with err: %s", err.Error()))
}

func ErrNoMetadata(blobID lib.BlobID) lib.ErrorI {
	return lib.NewError(lib.CodeNoMetadata, lib.CommitteeModule, fmt.Sprintf("unable to retrieve verified metadata for blob %s", blobID))
}

func ErrNoSliver(blobID lib.BlobID, pair lib.SliverPairIndex, sliverType lib.SliverType) lib.ErrorI {
	return lib.NewError(lib.CodeNoSliver, lib.CommitteeModule,
		fmt.Sprintf("unable to recover %s sliver %d of blob %s", sliverType, pair, blobID))
}

func ErrNoCertificateQuorum(blobID lib.BlobID, weight, threshold uint16) lib.ErrorI {
	return lib.NewError(lib.CodeNoCertificateQuorum, lib.CommitteeModule,
		fmt.Sprintf("invalid blob certificate for %s reached %d of %d shards", blobID, weight, threshold))
}

func ErrServiceConstruction(member string, err error) lib.ErrorI {
	return lib.NewError(lib.CodeServiceConstruction, lib.CommitteeModule,
		fmt.Sprintf("failed to create service for %s with err: %s", member, err.Error()))
}
