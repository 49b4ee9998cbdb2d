package stream

import (
	"errors"
	"fmt"

	"github.com/streamingfast/substreams-poll/schema"
)

var (
	ErrNoModules         = errors.New("no output module requested")
	ErrUnknownModule     = schema.ErrUnknownModule
	ErrInvalidModuleKind = errors.New("invalid module kind")
	ErrInvalidRange      = errors.New("invalid block range")
	ErrMalformedPayload  = schema.ErrMalformedPayload
	ErrSchemaDecode      = schema.ErrSchemaDecode
	ErrStreamFailure     = errors.New("stream failure")
)

// PollError gives the module and block a poll failed on. It unwraps to one
// of the sentinel errors above.
type PollError struct {
	Module string
	Block  uint64
	Err    error
}

func (e *PollError) Error() string {
	switch {
	case e.Module != "" && e.Block != 0:
		return fmt.Sprintf("module %q at block %d: %s", e.Module, e.Block, e.Err)
	case e.Module != "":
		return fmt.Sprintf("module %q: %s", e.Module, e.Err)
	case e.Block != 0:
		return fmt.Sprintf("at block %d: %s", e.Block, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *PollError) Unwrap() error {
	return e.Err
}

type streamFailure struct {
	cause error
}

// NewStreamFailure wraps a transport error. The result matches
// ErrStreamFailure with errors.Is and still unwraps to cause.
func NewStreamFailure(cause error) error {
	return &streamFailure{cause: cause}
}

func (e *streamFailure) Error() string {
	return fmt.Sprintf("%s: %s", ErrStreamFailure, e.cause)
}

func (e *streamFailure) Is(target error) bool {
	return target == ErrStreamFailure
}

func (e *streamFailure) Unwrap() error {
	return e.cause
}
