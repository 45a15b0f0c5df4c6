package stakingTypes

import (
	"context"
	stdErrors "errors"

	"github.com/pkg/errors"
)

var (
	// ErrRpcUnavailable is returned for transport failures, timeouts and malformed node responses.
	ErrRpcUnavailable = errors.New("rpc unavailable")

	// ErrCallEncoding is returned when a contract call cannot be encoded, reverts, or decodes
	// into something other than what the ABI declares. It indicates a configuration defect.
	ErrCallEncoding = errors.New("call encoding error")

	// ErrProgramNotFound is returned by aggregators for staking programs they cannot serve.
	ErrProgramNotFound = errors.New("staking program not found")

	// ErrUnknownProgramOrChain is the single failure mode of the configuration registry.
	ErrUnknownProgramOrChain = errors.New("unknown program or chain")

	// ErrInvalidArgument is returned for malformed caller input (bad address, bad id).
	ErrInvalidArgument = errors.New("invalid argument")
)

type ErrorKind string

const (
	ErrorKind_None        ErrorKind = ""
	ErrorKind_Unavailable ErrorKind = "unavailable"
	ErrorKind_Unsupported ErrorKind = "unsupported"
	ErrorKind_Invalid     ErrorKind = "invalid"
	ErrorKind_Internal    ErrorKind = "internal"
)

// ClassifyError maps an error onto the kind a display layer should render.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKind_None
	case stdErrors.Is(err, ErrProgramNotFound), stdErrors.Is(err, ErrUnknownProgramOrChain):
		return ErrorKind_Unsupported
	case stdErrors.Is(err, ErrRpcUnavailable),
		stdErrors.Is(err, context.DeadlineExceeded):
		return ErrorKind_Unavailable
	case stdErrors.Is(err, ErrInvalidArgument):
		return ErrorKind_Invalid
	default:
		return ErrorKind_Internal
	}
}

// IsRetryable reports whether a caller's polling loop may try again on its own schedule.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ErrorKind_Unavailable
}
