package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"github.com/streamingfast/substreams-poll/schema"
	"go.uber.org/zap"
)

// ResponseStream is the receiving side of a `Blocks` call.
type ResponseStream interface {
	Recv() (*pbsubstreams.Response, error)
}

type Resolver interface {
	ResolveOutputType(module string) (*schema.Ref, error)
}

type phase int

const (
	phaseInit phase = iota
	phaseReading
	phaseFirstMatch
	phaseFull
	phaseProgressHint
	phaseFailed
	phaseDone
)

var phaseNames = map[phase]string{
	phaseInit:         "init",
	phaseReading:      "reading",
	phaseFirstMatch:   "returning_first_match",
	phaseFull:         "returning_full",
	phaseProgressHint: "returning_progress_hint",
	phaseFailed:       "failed",
	phaseDone:         "done",
}

func (p phase) String() string {
	return phaseNames[p]
}

// Controller drives one poll: it reads the stream sequentially, decodes and
// aggregates the payloads of requested modules and applies the policy after
// every message. Snapshots and deltas of the tracked stores are aggregated
// too and folded into the store view, they never end a poll. A Controller is
// used for a single Run.
type Controller struct {
	resolver  Resolver
	modules   []string
	requested map[string]bool
	stores    []string
	tracked   map[string]bool
	stopBlock uint64
	policy    Policy
	logger    *zap.Logger

	aggregator *Aggregator
	refs       map[string]*schema.Ref

	phase     phase
	result    *Result
	seen      bool
	lastBlock uint64
	responses int
	skipped   int
}

func NewController(resolver Resolver, modules []string, stores []string, stopBlock uint64, policy Policy, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zlog
	}

	requested := make(map[string]bool, len(modules))
	for _, module := range modules {
		requested[module] = true
	}
	tracked := make(map[string]bool, len(stores))
	for _, store := range stores {
		tracked[store] = true
	}

	return &Controller{
		resolver:   resolver,
		modules:    modules,
		requested:  requested,
		stores:     stores,
		tracked:    tracked,
		stopBlock:  stopBlock,
		policy:     policy,
		logger:     logger,
		aggregator: NewAggregator(),
		refs:       map[string]*schema.Ref{},
		phase:      phaseInit,
	}
}

func (c *Controller) transition(to phase) {
	c.logger.Debug("poll state transition", zap.Stringer("from", c.phase), zap.Stringer("to", to))
	c.phase = to
}

// Run consumes the stream until the policy ends the poll, the stream ends or
// an error occurs. Failures never come with a partial result.
func (c *Controller) Run(ctx context.Context, stream ResponseStream) (*Result, error) {
	if c.phase != phaseInit {
		return nil, fmt.Errorf("controller already ran")
	}
	c.transition(phaseReading)

	for {
		if ctx.Err() != nil {
			return c.cancelled(), nil
		}

		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return c.exhausted(), nil
			}
			if ctx.Err() != nil {
				return c.cancelled(), nil
			}
			return nil, c.fail(&PollError{Block: c.lastBlock, Err: NewStreamFailure(err)})
		}
		c.responses++

		done, err := c.Step(Classify(resp))
		if err != nil {
			return nil, c.fail(err)
		}
		if done {
			c.transition(phaseDone)
			return c.result, nil
		}
	}
}

// Step applies one classified message. It returns true once the poll reached
// a returning state, the result being ready.
func (c *Controller) Step(frame Frame) (bool, error) {
	if c.phase != phaseReading {
		return false, fmt.Errorf("cannot step in state %s", c.phase)
	}

	c.logger.Debug("stream message", zap.Stringer("kind", frame.Kind), zap.Int("responses", c.responses))

	switch frame.Kind {
	case KindEmpty, KindSession, KindSnapshotComplete:
		return false, nil
	case KindSnapshot:
		return false, c.handleSnapshot(frame.Snapshot)
	case KindData:
		return c.handleData(frame.Data)
	case KindProgress:
		return c.handleProgress(frame.Progress), nil
	default:
		return false, fmt.Errorf("unhandled message kind %s", frame.Kind)
	}
}

func (c *Controller) handleSnapshot(snapshot *pbsubstreams.InitialSnapshotData) error {
	module := snapshot.GetModuleName()
	if !c.requested[module] && !c.tracked[module] {
		c.logger.Debug("skipping snapshot of module not requested", zap.String("module", module))
		return nil
	}

	ref, err := c.resolve(module)
	if err != nil {
		return err
	}

	deltas := snapshot.GetDeltas().GetDeltas()
	items := make([]schema.Fields, 0, len(deltas))
	for _, delta := range deltas {
		fields, err := c.decode(module, delta.GetNewValue(), delta.GetKey(), ref)
		if err != nil {
			return err
		}
		if fields != nil {
			items = append(items, fields)
		}
	}
	c.aggregator.AddSnapshot(module, items)

	if err := c.aggregator.ApplyStoreDeltas(module, 0, deltas); err != nil {
		c.logger.Warn("unable to apply snapshot deltas to store view", zap.String("module", module), zap.Error(err))
	}
	return nil
}

func (c *Controller) handleData(data *pbsubstreams.BlockScopedData) (bool, error) {
	clock := clockFromProto(data.GetClock())
	c.observe(clock.Number)

	for _, output := range data.GetOutputs() {
		// outputs are keyed by their own name, never by request order
		module := output.GetName()
		if !c.requested[module] && !c.tracked[module] {
			c.logger.Debug("skipping output of module not requested", zap.String("module", module), zap.Uint64("block", clock.Number))
			continue
		}

		items, err := c.decodeOutput(module, output, clock.Number)
		if err != nil {
			return false, err
		}

		batch := c.aggregator.AddData(module, items, clock)
		if !c.requested[module] || !c.policy.ReturnFirstResult || len(batch) == 0 {
			continue
		}

		candidate := &Batch{Module: module, BlockNumber: clock.Number, Items: batch}
		if c.policy.Match != nil && !c.policy.Match(candidate) {
			c.logger.Debug("batch rejected by match predicate", zap.String("module", module), zap.Uint64("block", clock.Number))
			continue
		}

		c.transition(phaseFirstMatch)
		c.result = c.newResult(OutcomeFirstMatch)
		c.result.Match = candidate
		c.result.LastBlock = clock.Number
		return true, nil
	}

	return false, nil
}

func (c *Controller) handleProgress(progress *pbsubstreams.ModulesProgress) bool {
	if len(c.modules) == 0 {
		return false
	}

	endBlock, found := furthestProcessedBlock(progress, c.modules[0])
	if !found {
		return false
	}
	c.observe(endBlock)

	if !c.policy.ProgressDriven || endBlock <= c.policy.HighestProcessedBlock+c.policy.CatchUpThreshold {
		return false
	}

	c.logger.Info("progress moved past catch up threshold",
		zap.String("module", c.modules[0]),
		zap.Uint64("processed_end_block", endBlock),
		zap.Uint64("highest_processed_block", c.policy.HighestProcessedBlock),
	)

	c.transition(phaseProgressHint)
	c.result = c.newResult(OutcomeProgressHint)
	c.result.ProgressBlock = endBlock
	c.result.LastBlock = endBlock
	return true
}

func (c *Controller) decodeOutput(module string, output *pbsubstreams.ModuleOutput, blockNum uint64) ([]schema.Fields, error) {
	ref, err := c.resolve(module)
	if err != nil {
		return nil, err
	}

	switch {
	case output.GetMapOutput() != nil:
		raw := output.GetMapOutput().GetValue()
		if len(raw) == 0 {
			return nil, nil
		}

		fields, err := c.decode(module, raw, "", ref)
		if err != nil || fields == nil {
			return nil, err
		}
		if ref == nil {
			return []schema.Fields{fields}, nil
		}
		return schema.Items(fields), nil

	case output.GetStoreDeltas() != nil:
		deltas := output.GetStoreDeltas().GetDeltas()
		items := make([]schema.Fields, 0, len(deltas))
		for _, delta := range deltas {
			fields, err := c.decode(module, delta.GetNewValue(), delta.GetKey(), ref)
			if err != nil {
				return nil, err
			}
			if fields != nil {
				items = append(items, fields)
			}
		}

		if err := c.aggregator.ApplyStoreDeltas(module, blockNum, deltas); err != nil {
			c.logger.Warn("unable to apply deltas to store view", zap.String("module", module), zap.Uint64("block", blockNum), zap.Error(err))
		}
		return items, nil
	}

	return nil, nil
}

func (c *Controller) observe(block uint64) {
	if !c.seen || block > c.lastBlock {
		c.lastBlock = block
	}
	c.seen = true
}

// decode returns nil fields without error when a tolerated item error
// occurred, the item is then skipped.
func (c *Controller) decode(module string, raw []byte, key string, ref *schema.Ref) (schema.Fields, error) {
	fields, err := schema.Decode(raw, key, ref)
	if err == nil {
		return fields, nil
	}

	if c.policy.Strict || !(errors.Is(err, ErrSchemaDecode) || errors.Is(err, ErrMalformedPayload)) {
		return nil, &PollError{Module: module, Block: c.lastBlock, Err: err}
	}

	c.skipped++
	c.logger.Warn("skipping undecodable item", zap.String("module", module), zap.String("key", key), zap.Uint64("block", c.lastBlock), zap.Error(err))
	return nil, nil
}

// resolve looks up a module schema once per poll.
func (c *Controller) resolve(module string) (*schema.Ref, error) {
	if ref, found := c.refs[module]; found {
		return ref, nil
	}

	ref, err := c.resolver.ResolveOutputType(module)
	if err != nil {
		return nil, &PollError{Module: module, Err: err}
	}
	if ref == nil {
		c.logger.Info("no schema found for module output, using heuristic decoding", zap.String("module", module))
	}

	c.refs[module] = ref
	return ref, nil
}

func (c *Controller) exhausted() *Result {
	c.transition(phaseFull)
	result := c.newResult(OutcomeFull)
	if result.NoData {
		c.logger.Info("block range exhausted without data", zap.Strings("modules", c.modules), zap.Uint64("last_block", result.LastBlock))
	}
	c.transition(phaseDone)
	return result
}

func (c *Controller) cancelled() *Result {
	c.transition(phaseFull)
	result := c.newResult(OutcomeFull)
	result.Cancelled = true
	c.transition(phaseDone)
	return result
}

func (c *Controller) fail(err error) error {
	c.transition(phaseFailed)
	c.logger.Warn("poll failed", zap.Error(err), zap.Int("responses", c.responses))
	c.transition(phaseDone)
	return err
}

func (c *Controller) newResult(outcome Outcome) *Result {
	lastBlock := c.stopBlock
	if c.seen {
		lastBlock = c.lastBlock
	}

	result := &Result{
		Outcome:   outcome,
		LastBlock: lastBlock,
		Responses: c.responses,
		Skipped:   c.skipped,
		Stores:    c.aggregator.Stores(),
	}
	if outcome == OutcomeFull {
		result.Modules = c.aggregator.Buckets(c.modules)
		result.StoreModules = c.aggregator.Buckets(c.stores)
		// a first result poll ending here matched nothing
		result.NoData = c.policy.ReturnFirstResult || c.aggregator.DataCount(c.modules) == 0
	}
	return result
}
