package rpc

import (
	"fmt"

	"github.com/canopy-network/shardnode/lib"
)

func ErrInvalidParams(err error) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidParams, lib.RPCModule, fmt.Sprintf("invalid params: %s", err.Error()))
}

func ErrPostRequest(err error) lib.ErrorI {
	return lib.NewError(lib.CodePostRequest, lib.RPCModule, fmt.Sprintf("http.Post() failed with err: %s", err.Error()))
}

func ErrGetRequest(err error) lib.ErrorI {
	return lib.NewError(lib.CodeGetRequest, lib.RPCModule, fmt.Sprintf("http.Get() failed with err: %s", err.Error()))
}

func ErrNewRequest(err error) lib.ErrorI {
	return lib.NewError(lib.CodeNewRequest, lib.RPCModule, fmt.Sprintf("http.NewRequest() failed with err: %s", err.Error()))
}

func ErrHttpStatus(status string, statusCode int, body []byte) lib.ErrorI {
	return lib.NewError(lib.CodeHttpStatus, lib.RPCModule, fmt.Sprintf("http response bad status %s with code %d and body %s", status, statusCode, body))
}

func ErrReadBody(err error) lib.ErrorI {
	return lib.NewError(lib.CodeReadBody, lib.RPCModule, fmt.Sprintf("io.ReadAll(http.ResponseBody) failed with err: %s", err.Error()))
}

func ErrInvalidSignature() lib.ErrorI {
	return lib.NewError(lib.CodeInvalidSignature, lib.RPCModule, "the request signature is missing or invalid")
}

func ErrUnauthorized(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeUnauthorized, lib.RPCModule, fmt.Sprintf("unauthorized: %s", reason))
}

func ErrInvalidAddress(address string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidAddress, lib.RPCModule, fmt.Sprintf("net address %q is not a valid http url", address))
}

func ErrUnknownEpoch(epoch lib.Epoch) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownEpoch, lib.RPCModule, fmt.Sprintf("the committee of epoch %d is not known to this node", epoch))
}
