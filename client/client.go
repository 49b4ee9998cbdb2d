package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"github.com/streamingfast/substreams-poll/manifest"
	"github.com/streamingfast/substreams-poll/schema"
	"github.com/streamingfast/substreams-poll/stream"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"
)

const (
	DefaultEndpoint    = "api.streamingfast.io:443"
	DefaultTokenEnvVar = "SUBSTREAMS_API_TOKEN"
)

var ErrMissingToken = errors.New("missing substreams API token")

type Config struct {
	PackagePath string
	Endpoint    string
	Token       string

	// InsecureMode skips certificate validation, Plaintext disables TLS
	// altogether, the token is then not sent.
	InsecureMode bool
	Plaintext    bool
}

type Client struct {
	pkg     *pbsubstreams.Package
	modules *manifest.Modules

	indexOnce sync.Once
	index     *schema.Index

	streamClient pbsubstreams.StreamClient
	callOpts     []grpc.CallOption
	conn         *grpc.ClientConn
}

// New reads the package once and dials the endpoint.
func New(config *Config) (*Client, error) {
	if config.Token == "" && !config.Plaintext {
		return nil, ErrMissingToken
	}

	pkg, err := manifest.ReadPackage(config.PackagePath)
	if err != nil {
		return nil, err
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	conn, callOpts, err := dial(endpoint, config)
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", endpoint, err)
	}

	c, err := NewWithStreamClient(pkg, pbsubstreams.NewStreamClient(conn), callOpts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn

	zlog.Info("substreams client ready",
		zap.String("endpoint", endpoint),
		zap.String("package", c.Name()),
		zap.String("version", c.Version()),
		zap.Int("module_count", len(c.modules.All())),
	)
	return c, nil
}

// NewWithStreamClient builds a client on an already established session.
func NewWithStreamClient(pkg *pbsubstreams.Package, streamClient pbsubstreams.StreamClient, callOpts ...grpc.CallOption) (*Client, error) {
	modules, err := manifest.NewModules(pkg)
	if err != nil {
		return nil, err
	}

	return &Client{
		pkg:          pkg,
		modules:      modules,
		streamClient: streamClient,
		callOpts:     callOpts,
	}, nil
}

func dial(endpoint string, config *Config) (*grpc.ClientConn, []grpc.CallOption, error) {
	var dialOpts []grpc.DialOption
	var callOpts []grpc.CallOption

	switch {
	case config.Plaintext:
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	default:
		tlsConfig := &tls.Config{InsecureSkipVerify: config.InsecureMode}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))

		tokenSource := oauth.TokenSource{TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token, TokenType: "Bearer"})}
		callOpts = append(callOpts, grpc.PerRPCCredentials(tokenSource))
	}

	dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(1024*1024*1024)))

	conn, err := grpc.Dial(endpoint, dialOpts...)
	if err != nil {
		return nil, nil, err
	}
	return conn, callOpts, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Name() string {
	if meta := c.pkg.GetPackageMeta(); len(meta) > 0 {
		return meta[0].GetName()
	}
	return ""
}

func (c *Client) Version() string {
	if meta := c.pkg.GetPackageMeta(); len(meta) > 0 {
		return meta[0].GetVersion()
	}
	return ""
}

func (c *Client) Modules() *manifest.Modules {
	return c.modules
}

// Schema returns the schema index of the package, built on first use.
func (c *Client) Schema() *schema.Index {
	c.indexOnce.Do(func() {
		c.index = schema.NewIndex(c.modules, c.pkg.GetProtoFiles())
	})
	return c.index
}

// Poll streams the irreversible blocks of [startBlock, stopBlock) for the
// given map modules and returns what the policy selected. The stores the
// modules depend on are streamed along, their snapshots and deltas end up in
// the result's store buckets and store view. Concurrent polls are
// independent, each one owns its stream and its aggregation.
func (c *Client) Poll(ctx context.Context, outputModules []string, startBlock int64, stopBlock uint64, opts ...stream.Option) (*stream.Result, error) {
	if err := stream.Validate(c.modules, outputModules, startBlock, stopBlock); err != nil {
		return nil, err
	}

	stores, err := c.modules.StoreDependencies(outputModules)
	if err != nil {
		return nil, fmt.Errorf("resolving store dependencies: %w", err)
	}

	policy := stream.NewPolicy(opts...)
	logger := zlog.With(zap.String("poll_id", uuid.New().String()))

	req := &pbsubstreams.Request{
		StartBlockNum: startBlock,
		StopBlockNum:  stopBlock,
		ForkSteps:     []pbsubstreams.ForkStep{pbsubstreams.ForkStep_STEP_IRREVERSIBLE},
		Modules:       c.pkg.GetModules(),
		OutputModules: append(append([]string{}, outputModules...), stores...),
	}
	if policy.InitialSnapshot {
		req.InitialStoreSnapshotForModules = stores
	}

	// early returns release the stream through this cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("starting poll",
		zap.Strings("modules", outputModules),
		zap.Strings("stores", stores),
		zap.Int64("start_block", startBlock),
		zap.Uint64("stop_block", stopBlock),
		zap.Bool("return_first_result", policy.ReturnFirstResult),
		zap.Bool("progress_driven", policy.ProgressDriven),
	)

	blocks, err := c.streamClient.Blocks(ctx, req, c.callOpts...)
	if err != nil {
		return nil, &stream.PollError{Err: stream.NewStreamFailure(fmt.Errorf("call sf.substreams.v1.Stream/Blocks: %w", err))}
	}

	result, err := stream.NewController(c.Schema(), outputModules, stores, stopBlock, policy, logger).Run(ctx, blocks)
	if err != nil {
		return nil, err
	}

	logger.Info("poll completed",
		zap.Stringer("outcome", result.Outcome),
		zap.Uint64("last_block", result.LastBlock),
		zap.Int("responses", result.Responses),
		zap.Int("skipped_items", result.Skipped),
	)
	return result, nil
}
