package stream

import (
	"time"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"github.com/streamingfast/substreams-poll/schema"
	"github.com/streamingfast/substreams-poll/state"
)

type Clock struct {
	Number    uint64    `json:"block_number"`
	ID        string    `json:"block_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

func clockFromProto(clock *pbsubstreams.Clock) Clock {
	out := Clock{
		Number: clock.GetNumber(),
		ID:     clock.GetId(),
	}
	if ts := clock.GetTimestamp(); ts != nil {
		out.Timestamp = ts.AsTime()
	}
	return out
}

// DataItem is one decoded output item stamped with the block producing it.
type DataItem struct {
	Clock
	Fields schema.Fields `json:"fields"`
}

// Bucket holds everything aggregated for a module during one poll.
type Bucket struct {
	Module    string          `json:"module"`
	Snapshots []schema.Fields `json:"snapshots"`
	Data      []DataItem      `json:"data"`
}

// Aggregator accumulates decoded items per module in arrival order. It is
// owned by a single poll and is not safe for concurrent use.
type Aggregator struct {
	buckets map[string]*Bucket
	order   []string

	stores map[string]*state.Builder
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		buckets: map[string]*Bucket{},
		stores:  map[string]*state.Builder{},
	}
}

func (a *Aggregator) bucket(module string) *Bucket {
	b, found := a.buckets[module]
	if !found {
		b = &Bucket{Module: module}
		a.buckets[module] = b
		a.order = append(a.order, module)
	}
	return b
}

func (a *Aggregator) AddSnapshot(module string, items []schema.Fields) {
	b := a.bucket(module)
	b.Snapshots = append(b.Snapshots, items...)
}

// AddData stamps every item with clock, appends them to the module's bucket
// and returns the stamped batch.
func (a *Aggregator) AddData(module string, items []schema.Fields, clock Clock) []DataItem {
	b := a.bucket(module)

	batch := make([]DataItem, 0, len(items))
	for _, item := range items {
		batch = append(batch, DataItem{Clock: clock, Fields: item})
	}
	b.Data = append(b.Data, batch...)

	return batch
}

// ApplyStoreDeltas folds deltas into the module's store view.
func (a *Aggregator) ApplyStoreDeltas(module string, blockNum uint64, deltas []*pbsubstreams.StoreDelta) error {
	store, found := a.stores[module]
	if !found {
		store = state.New(module)
		a.stores[module] = store
	}

	for _, delta := range deltas {
		d, err := state.FromProto(blockNum, delta)
		if err != nil {
			return err
		}
		if err := store.Apply(d); err != nil {
			return err
		}
	}
	return nil
}

// Bucket returns the bucket of module, nil when nothing referenced it.
func (a *Aggregator) Bucket(module string) *Bucket {
	return a.buckets[module]
}

// Buckets returns a bucket per module, empty ones included, in the given order.
func (a *Aggregator) Buckets(modules []string) []*Bucket {
	out := make([]*Bucket, 0, len(modules))
	for _, module := range modules {
		if b, found := a.buckets[module]; found {
			out = append(out, b)
			continue
		}
		out = append(out, &Bucket{Module: module})
	}
	return out
}

func (a *Aggregator) Stores() map[string]*state.Builder {
	return a.stores
}

// DataCount counts the data items aggregated for the given modules.
func (a *Aggregator) DataCount(modules []string) (count int) {
	for _, module := range modules {
		if b, found := a.buckets[module]; found {
			count += len(b.Data)
		}
	}
	return
}
