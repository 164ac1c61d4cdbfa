package lib

import (
	"errors"
	"fmt"
	"math"
)

type ErrorI interface {
	Code() ErrorCode     // Returns the error code
	Module() ErrorModule // Returns the error module
	error                // Implements the built-in error interface
}

var _ ErrorI = &Error{} // Ensures *Error implements ErrorI

type ErrorCode uint32 // Defines a type for error codes

type ErrorModule string // Defines a type for error modules

type Error struct {
	ECode   ErrorCode   `json:"code"`   // Error code
	EModule ErrorModule `json:"module"` // Error module
	Msg     string      `json:"msg"`    // Error message
}

func NewError(code ErrorCode, module ErrorModule, msg string) *Error {
	// Constructs a new Error instance
	return &Error{ECode: code, EModule: module, Msg: msg}
}

// Code() returns the associated error code
func (p *Error) Code() ErrorCode { return p.ECode }

// Module() returns module field
func (p *Error) Module() ErrorModule { return p.EModule }

// String() calls Error()
func (p *Error) String() string { return p.Error() }

// Error() returns a formatted string including module, code and message
func (p *Error) Error() string {
	return fmt.Sprintf("\nModule:  %s\nCode:    %d\nMessage: %s", p.EModule, p.ECode, p.Msg)
}

// Is() allows errors.Is to match two ErrorI values with the same module and code
func (p *Error) Is(target error) bool {
	var t ErrorI
	if !errors.As(target, &t) {
		return false
	}
	return t.Code() == p.ECode && t.Module() == p.EModule
}

// IsCode() returns true if err is an ErrorI with the module and code
func IsCode(err error, module ErrorModule, code ErrorCode) bool {
	var e ErrorI
	if !errors.As(err, &e) {
		return false
	}
	return e.Module() == module && e.Code() == code
}

const (
	NoCode ErrorCode = math.MaxUint32

	// Main Module
	MainModule ErrorModule = "main"

	// Main Module Error Codes
	CodeJSONMarshal         ErrorCode = 1
	CodeJSONUnmarshal       ErrorCode = 2
	CodeStringToBytes       ErrorCode = 3
	CodeWriteFile           ErrorCode = 4
	CodeReadFile            ErrorCode = 5
	CodeInvalidArgument     ErrorCode = 6
	CodePubKeyFromBytes     ErrorCode = 7
	CodeInvalidCommittee    ErrorCode = 8
	CodeInvalidShardIndex   ErrorCode = 9
	CodeNoMembers           ErrorCode = 10
	CodeWatchClosed         ErrorCode = 11
	CodeNextAlreadySet      ErrorCode = 12
	CodeUnknownNext         ErrorCode = 13
	CodeChangeInProgress    ErrorCode = 14
	CodeChangeNotInProgress ErrorCode = 15
	CodeInvalidNextEpoch    ErrorCode = 16
	CodeNode                ErrorCode = 17

	// Committee Module
	CommitteeModule ErrorModule = "committee"

	// Committee Module Error Codes
	CodeEpochIsNotSequential        ErrorCode = 1
	CodeEpochIsTheSameAsCurrent     ErrorCode = 2
	CodeEpochIsLess                 ErrorCode = 3
	CodeLookup                      ErrorCode = 4
	CodeLatestCommitteeEpochDiffers ErrorCode = 5
	CodeChangeAlreadyInProgress     ErrorCode = 6
	CodeAllServicesFailed           ErrorCode = 7
	CodeEpochInTheFuture            ErrorCode = 8
	CodeEpochInThePast              ErrorCode = 9
	CodeEpochChangeAlreadyDone      ErrorCode = 10
	CodeNoSyncClient                ErrorCode = 11
	CodeSyncRequest                 ErrorCode = 12
	CodeSyncOther                   ErrorCode = 13
	CodeNoMetadata                  ErrorCode = 14
	CodeNoSliver                    ErrorCode = 15
	CodeNoCertificateQuorum         ErrorCode = 16
	CodeServiceConstruction         ErrorCode = 17

	// Storage Module
	StorageModule ErrorModule = "store"

	// Storage Module Error Codes
	CodeOpenDB         ErrorCode = 1
	CodeCloseDB        ErrorCode = 2
	CodeGetFromStore   ErrorCode = 3
	CodeSetInStore     ErrorCode = 4
	CodeIterateStore   ErrorCode = 5
	CodeNotFoundInDB   ErrorCode = 6
	CodeInvalidDBEntry ErrorCode = 7

	// RPC Module
	RPCModule ErrorModule = "rpc"

	// RPC Module Error Codes
	CodeRPCTimeout       ErrorCode = 1
	CodeInvalidParams    ErrorCode = 2
	CodePostRequest      ErrorCode = 3
	CodeGetRequest       ErrorCode = 4
	CodeHttpStatus       ErrorCode = 5
	CodeReadBody         ErrorCode = 6
	CodeNewRequest       ErrorCode = 7
	CodeInvalidSignature ErrorCode = 8
	CodeUnauthorized     ErrorCode = 9
	CodeInvalidAddress   ErrorCode = 10
	CodeUnknownEpoch     ErrorCode = 11

	// Controller Module
	ControllerModule ErrorModule = "controller"

	// Controller Module Error Codes
	CodeMigrateShard ErrorCode = 1
	CodeInvalidPage  ErrorCode = 2
	CodeNoIdentity   ErrorCode = 3
)

func newLogError(err error) ErrorI {
	return NewError(NoCode, MainModule, err.Error())
}

func ErrJSONUnmarshal(err error) ErrorI {
	return NewError(CodeJSONUnmarshal, MainModule, fmt.Sprintf("json.unmarshal() failed with err: %s", err.Error()))
}

func ErrJSONMarshal(err error) ErrorI {
	return NewError(CodeJSONMarshal, MainModule, fmt.Sprintf("json.marshal() failed with err: %s", err.Error()))
}

func ErrStringToBytes(err error) ErrorI {
	return NewError(CodeStringToBytes, MainModule, fmt.Sprintf("stringToBytes() failed with err: %s", err.Error()))
}

func ErrWriteFile(err error) ErrorI {
	return NewError(CodeWriteFile, MainModule, fmt.Sprintf("os.WriteFile() failed with err: %s", err.Error()))
}

func ErrReadFile(err error) ErrorI {
	return NewError(CodeReadFile, MainModule, fmt.Sprintf("os.ReadFile() failed with err: %s", err.Error()))
}

func ErrInvalidArgument() ErrorI {
	return NewError(CodeInvalidArgument, MainModule, "the argument is invalid")
}

func ErrPubKeyFromBytes(err error) ErrorI {
	return NewError(CodePubKeyFromBytes, MainModule, fmt.Sprintf("publicKeyFromBytes() failed with err: %s", err.Error()))
}

func ErrInvalidCommittee(reason string) ErrorI {
	return NewError(CodeInvalidCommittee, MainModule, fmt.Sprintf("invalid committee: %s", reason))
}

func ErrInvalidShardIndex(shard ShardIndex, nShards uint16) ErrorI {
	return NewError(CodeInvalidShardIndex, MainModule, fmt.Sprintf("shard %d is out of range for %d shards", shard, nShards))
}

func ErrNoMembers() ErrorI {
	return NewError(CodeNoMembers, MainModule, "the committee has no members")
}

func ErrWatchClosed() ErrorI {
	return NewError(CodeWatchClosed, MainModule, "the watch receiver is closed")
}

func ErrNextCommitteeAlreadySet() ErrorI {
	return NewError(CodeNextAlreadySet, MainModule, "the committee for the next epoch is already set")
}

func ErrUnknownNextCommittee() ErrorI {
	return NewError(CodeUnknownNext, MainModule, "the committee for the next epoch is unknown")
}

func ErrChangeInProgress() ErrorI {
	return NewError(CodeChangeInProgress, MainModule, "a committee change is already in progress")
}

func ErrChangeNotInProgress() ErrorI {
	return NewError(CodeChangeNotInProgress, MainModule, "no committee change is in progress")
}

func ErrInvalidNextEpoch(expected, actual Epoch) ErrorI {
	return NewError(CodeInvalidNextEpoch, MainModule, fmt.Sprintf("next committee has epoch %d, expected %d", actual, expected))
}

// ErrNode wraps an error reported by a remote storage node in response to a request
func ErrNode(msg string) ErrorI {
	return NewError(CodeNode, MainModule, fmt.Sprintf("storage node returned err: %s", msg))
}

func ErrServerTimeout() ErrorI {
	return NewError(CodeRPCTimeout, RPCModule, "server timeout")
}
