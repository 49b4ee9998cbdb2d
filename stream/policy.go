package stream

const DefaultCatchUpThreshold uint64 = 100

// MatchFunc decides if a decoded batch ends a first result poll.
type MatchFunc func(batch *Batch) bool

// Policy controls when a poll stops reading the stream.
type Policy struct {
	// InitialSnapshot requests the stores' initial snapshot before deltas.
	InitialSnapshot bool

	// ReturnFirstResult stops at the first non-empty batch of a requested
	// module accepted by Match (any non-empty batch when Match is nil).
	ReturnFirstResult bool
	Match             MatchFunc

	// ProgressDriven returns a progress hint as soon as the first requested
	// module was processed more than CatchUpThreshold blocks past
	// HighestProcessedBlock.
	ProgressDriven        bool
	HighestProcessedBlock uint64
	CatchUpThreshold      uint64

	// Strict turns per item decoding errors into poll failures.
	Strict bool
}

type Option func(*Policy)

func WithInitialSnapshot(enabled bool) Option {
	return func(p *Policy) {
		p.InitialSnapshot = enabled
	}
}

func WithReturnFirstResult(enabled bool) Option {
	return func(p *Policy) {
		p.ReturnFirstResult = enabled
	}
}

// WithMatch implies WithReturnFirstResult(true).
func WithMatch(match MatchFunc) Option {
	return func(p *Policy) {
		p.ReturnFirstResult = true
		p.Match = match
	}
}

func WithProgressDriven(enabled bool) Option {
	return func(p *Policy) {
		p.ProgressDriven = enabled
	}
}

func WithHighestProcessedBlock(block uint64) Option {
	return func(p *Policy) {
		p.HighestProcessedBlock = block
	}
}

func WithCatchUpThreshold(blocks uint64) Option {
	return func(p *Policy) {
		p.CatchUpThreshold = blocks
	}
}

func WithStrict(enabled bool) Option {
	return func(p *Policy) {
		p.Strict = enabled
	}
}

func NewPolicy(opts ...Option) Policy {
	p := Policy{
		CatchUpThreshold: DefaultCatchUpThreshold,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
