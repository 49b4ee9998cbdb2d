package stream

import (
	"fmt"

	"github.com/streamingfast/substreams-poll/state"
)

type Outcome int

const (
	// OutcomeFull carries the buckets of every requested module.
	OutcomeFull Outcome = iota
	// OutcomeFirstMatch carries the batch that ended a first result poll.
	OutcomeFirstMatch
	// OutcomeProgressHint carries only the block to resume polling from.
	OutcomeProgressHint
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFull:
		return "full"
	case OutcomeFirstMatch:
		return "first_match"
	case OutcomeProgressHint:
		return "progress_hint"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Batch is the decoded output of one module for one block.
type Batch struct {
	Module      string     `json:"module"`
	BlockNumber uint64     `json:"block_number"`
	Items       []DataItem `json:"items"`
}

type Result struct {
	Outcome Outcome `json:"outcome"`

	Modules []*Bucket `json:"modules,omitempty"`
	Match   *Batch    `json:"match,omitempty"`

	// StoreModules holds the snapshots and deltas of the stores the polled
	// modules depend on, decoded like module outputs.
	StoreModules []*Bucket `json:"store_modules,omitempty"`

	// ProgressBlock is the block to resume from on OutcomeProgressHint.
	ProgressBlock uint64 `json:"progress_block,omitempty"`

	// NoData is set when the stream ended without any data item for the
	// requested modules, or without any match when returning the first result.
	NoData bool `json:"no_data"`

	// LastBlock is the last block seen on the stream, from data clocks or
	// reported progress, or the requested stop block when none was seen.
	LastBlock uint64 `json:"last_block"`

	// Cancelled is set when the context was cancelled while reading, the
	// buckets then hold what was aggregated so far.
	Cancelled bool `json:"cancelled,omitempty"`

	Stores    map[string]*state.Builder `json:"-"`
	Responses int                       `json:"responses"`
	Skipped   int                       `json:"skipped_items"`
}
