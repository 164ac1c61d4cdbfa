package store

import (
	"fmt"

	"github.com/canopy-network/shardnode/lib"
)

func ErrOpenDB(err error) lib.ErrorI {
	return lib.NewError(lib.CodeOpenDB, lib.StorageModule, fmt.Sprintf("openDB() failed with err: %s", err.Error()))
}

func ErrCloseDB(err error) lib.ErrorI {
	return lib.NewError(lib.CodeCloseDB, lib.StorageModule, fmt.Sprintf("closeDB() failed with err: %s", err.Error()))
}

func ErrStoreGet(err error) lib.ErrorI {
	return lib.NewError(lib.CodeGetFromStore, lib.StorageModule, fmt.Sprintf("store.get() failed with err: %s", err.Error()))
}

func ErrStoreSet(err error) lib.ErrorI {
	return lib.NewError(lib.CodeSetInStore, lib.StorageModule, fmt.Sprintf("store.set() failed with err: %s", err.Error()))
}

func ErrStoreIterate(err error) lib.ErrorI {
	return lib.NewError(lib.CodeIterateStore, lib.StorageModule, fmt.Sprintf("store.iterate() failed with err: %s", err.Error()))
}

func ErrNotFound(what string) lib.ErrorI {
	return lib.NewError(lib.CodeNotFoundInDB, lib.StorageModule, fmt.Sprintf("%s not found", what))
}

func ErrInvalidEntry(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidDBEntry, lib.StorageModule, fmt.Sprintf("invalid store entry: %s", reason))
}
