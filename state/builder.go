package state

import (
	"fmt"
	"strings"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"go.uber.org/zap"
)

// Builder is the client side view of a store module, rebuilt from the
// initial snapshot and the deltas streamed for each block.
type Builder struct {
	Name string

	// KV is the state, and assumes all Deltas were already applied to it.
	KV map[string][]byte

	// Deltas are the deltas of the block being applied, kept until Flush.
	Deltas      []StateDelta
	lastOrdinal uint64
	lastBlock   uint64
}

type StateDelta struct {
	Op       string // "c"reate, "u"pdate, "d"elete
	Ordinal  uint64
	Block    uint64
	Key      string
	OldValue []byte
	NewValue []byte
}

func New(name string) *Builder {
	return &Builder{
		Name: name,
		KV:   make(map[string][]byte),
	}
}

// FromProto converts a wire delta. Unset operations are refused.
func FromProto(blockNum uint64, delta *pbsubstreams.StoreDelta) (StateDelta, error) {
	out := StateDelta{
		Ordinal:  delta.GetOrdinal(),
		Block:    blockNum,
		Key:      delta.GetKey(),
		OldValue: delta.GetOldValue(),
		NewValue: delta.GetNewValue(),
	}

	switch delta.GetOperation() {
	case pbsubstreams.StoreDelta_CREATE:
		out.Op = "c"
	case pbsubstreams.StoreDelta_UPDATE:
		out.Op = "u"
	case pbsubstreams.StoreDelta_DELETE:
		out.Op = "d"
	default:
		return StateDelta{}, fmt.Errorf("invalid operation %q for delta of key %q", delta.GetOperation(), delta.GetKey())
	}

	return out, nil
}

// Apply records a delta of the current block and applies it to KV. Ordinals
// must not decrease within a block.
func (b *Builder) Apply(delta StateDelta) error {
	if delta.Block < b.lastBlock {
		return fmt.Errorf("store %q: delta for block %d received after block %d", b.Name, delta.Block, b.lastBlock)
	}
	if delta.Block != b.lastBlock && len(b.Deltas) > 0 {
		b.Flush()
	}
	if len(b.Deltas) > 0 && delta.Ordinal < b.lastOrdinal {
		return fmt.Errorf("store %q: delta ordinal %d lower than previous %d", b.Name, delta.Ordinal, b.lastOrdinal)
	}

	switch delta.Op {
	case "c", "u":
		b.KV[delta.Key] = delta.NewValue
	case "d":
		delete(b.KV, delta.Key)
	default:
		return fmt.Errorf("invalid value %q for StateDelta::Op for key %q", delta.Op, delta.Key)
	}

	b.lastBlock = delta.Block
	b.lastOrdinal = delta.Ordinal
	b.Deltas = append(b.Deltas, delta)

	zlog.Debug("delta applied", zap.String("store", b.Name), zap.String("op", delta.Op), zap.String("key", delta.Key), zap.Uint64("block", delta.Block))
	return nil
}

// GetFirst returns the value of key before any delta of the current block.
func (b *Builder) GetFirst(key string) ([]byte, bool) {
	for _, delta := range b.Deltas {
		if delta.Key == key {
			switch delta.Op {
			case "d", "u":
				return delta.OldValue, true
			case "c":
				return nil, false
			}
		}
	}
	return b.GetLast(key)
}

func (b *Builder) GetLast(key string) ([]byte, bool) {
	val, found := b.KV[key]
	return val, found
}

// GetAt returns the value of key once the delta at `ord` of the current block
// was applied.
func (b *Builder) GetAt(ord uint64, key string) (out []byte, found bool) {
	out, found = b.GetLast(key)

	for i := len(b.Deltas) - 1; i >= 0; i-- {
		delta := b.Deltas[i]
		if delta.Ordinal <= ord {
			break
		}
		if delta.Key == key {
			switch delta.Op {
			case "d", "u":
				out = delta.OldValue
				found = true
			case "c":
				out = nil
				found = false
			}
		}
	}
	return
}

// Flush closes the current block.
func (b *Builder) Flush() {
	b.Deltas = nil
	b.lastOrdinal = 0
}

func (b *Builder) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "store %q (%d keys, block %d)", b.Name, len(b.KV), b.lastBlock)
	for _, delta := range b.Deltas {
		fmt.Fprintf(&sb, "\n  %s (o=%d) KEY: %q OLD: %s NEW: %s", strings.ToUpper(delta.Op), delta.Ordinal, delta.Key, string(delta.OldValue), string(delta.NewValue))
	}
	return sb.String()
}

// StringMap renders the state with textual values, as found on most stores.
func (b *Builder) StringMap() map[string]string {
	out := map[string]string{}
	for k, v := range b.KV {
		out[k] = string(v)
	}
	return out
}
