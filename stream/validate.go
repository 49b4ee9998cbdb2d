package stream

import (
	"fmt"

	"github.com/streamingfast/substreams-poll/manifest"
)

// Validate rejects a poll request before any stream gets opened.
func Validate(modules *manifest.Modules, outputModules []string, startBlock int64, stopBlock uint64) error {
	if len(outputModules) == 0 {
		return ErrNoModules
	}

	for _, name := range outputModules {
		mod, found := modules.Get(name)
		if !found {
			return &PollError{Module: name, Err: ErrUnknownModule}
		}
		if !mod.IsMap() {
			return &PollError{Module: name, Err: fmt.Errorf("%w: %s module cannot be polled, only map modules can", ErrInvalidModuleKind, mod.Kind)}
		}
	}

	if stopBlock != 0 && startBlock >= 0 && uint64(startBlock) >= stopBlock {
		return fmt.Errorf("%w: stop block %d must be after start block %d", ErrInvalidRange, stopBlock, startBlock)
	}

	return nil
}
