package controller

import (
	"fmt"

	"github.com/canopy-network/shardnode/lib"
)

func ErrMigrateShard(shard lib.ShardIndex, sliverType lib.SliverType, err error) lib.ErrorI {
	return lib.NewError(lib.CodeMigrateShard, lib.ControllerModule,
		fmt.Sprintf("migrating %s slivers of shard %d failed with err: %s", sliverType, shard, err.Error()))
}

func ErrInvalidPage(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidPage, lib.ControllerModule, fmt.Sprintf("invalid shard sync page: %s", reason))
}

func ErrNoIdentity() lib.ErrorI {
	return lib.NewError(lib.CodeNoIdentity, lib.ControllerModule, "the committee service has no local identity")
}
