package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/jhump/protoreflect/dynamic"
	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"github.com/streamingfast/substreams-poll/manifest"
	"github.com/streamingfast/substreams-poll/schema"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"
)

type fakeStream struct {
	responses []*pbsubstreams.Response
	err       error
	reads     int

	// onRead is called before each read with the 1-based read number
	onRead func(read int)
}

func (s *fakeStream) Recv() (*pbsubstreams.Response, error) {
	s.reads++
	if s.onRead != nil {
		s.onRead(s.reads)
	}

	if s.reads <= len(s.responses) {
		return s.responses[s.reads-1], nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func newTestIndex(t *testing.T) *schema.Index {
	t.Helper()

	pkg := manifest.TestPackage()
	modules, err := manifest.NewModules(pkg)
	require.NoError(t, err)

	return schema.NewIndex(modules, pkg.GetProtoFiles())
}

func runController(t *testing.T, modules []string, policy Policy, stream *fakeStream) (*Result, error) {
	t.Helper()

	return runControllerWithStores(t, modules, nil, policy, stream)
}

func runControllerWithStores(t *testing.T, modules []string, stores []string, policy Policy, stream *fakeStream) (*Result, error) {
	t.Helper()

	return NewController(newTestIndex(t), modules, stores, 2000, policy, nil).Run(context.Background(), stream)
}

type transfer struct {
	from, to string
	amount   uint64
}

func encodeTransfer(t *testing.T, idx *schema.Index, tr transfer) []byte {
	t.Helper()

	ref := idx.Lookup("proto:eth.token.v1.Transfer")
	require.NotNil(t, ref)

	content, err := newTransferMessage(t, ref, tr).Marshal()
	require.NoError(t, err)
	return content
}

func encodeTransfers(t *testing.T, idx *schema.Index, transfers ...transfer) []byte {
	t.Helper()

	ref := idx.Lookup("proto:eth.token.v1.Transfers")
	require.NotNil(t, ref)
	item := idx.Lookup("proto:eth.token.v1.Transfer")

	msg := dynamic.NewMessage(ref.Descriptor())
	for _, tr := range transfers {
		require.NoError(t, msg.TryAddRepeatedFieldByName("items", newTransferMessage(t, item, tr)))
	}

	content, err := msg.Marshal()
	require.NoError(t, err)
	return content
}

func newTransferMessage(t *testing.T, ref *schema.Ref, tr transfer) *dynamic.Message {
	t.Helper()

	msg := dynamic.NewMessage(ref.Descriptor())
	require.NoError(t, msg.TrySetFieldByName("from", tr.from))
	require.NoError(t, msg.TrySetFieldByName("to", tr.to))
	require.NoError(t, msg.TrySetFieldByName("amount", tr.amount))
	return msg
}

func jsonResponse(t *testing.T, content string) *pbsubstreams.Response {
	t.Helper()

	resp := &pbsubstreams.Response{}
	require.NoError(t, protojson.Unmarshal([]byte(content), resp))
	return resp
}

func sessionResponse(t *testing.T) *pbsubstreams.Response {
	return jsonResponse(t, `{"session":{"traceId":"4bf92f3577b34da6"}}`)
}

func progressResponse(t *testing.T, module string, endBlock uint64) *pbsubstreams.Response {
	return jsonResponse(t, fmt.Sprintf(`{"progress":{"modules":[{"name":%q,"processedRanges":{"processedRanges":[{"startBlock":"0","endBlock":"%d"}]}}]}}`, module, endBlock))
}

func dataResponse(block uint64, outputs ...*pbsubstreams.ModuleOutput) *pbsubstreams.Response {
	return &pbsubstreams.Response{Message: &pbsubstreams.Response_Data{Data: &pbsubstreams.BlockScopedData{
		Outputs: outputs,
		Clock:   &pbsubstreams.Clock{Id: fmt.Sprintf("%08x", block), Number: block},
		Step:    pbsubstreams.ForkStep_STEP_IRREVERSIBLE,
		Cursor:  fmt.Sprintf("cursor-%d", block),
	}}}
}

func mapOutput(module string, value []byte) *pbsubstreams.ModuleOutput {
	return &pbsubstreams.ModuleOutput{
		Name: module,
		Data: &pbsubstreams.ModuleOutput_MapOutput{MapOutput: &anypb.Any{TypeUrl: "type.googleapis.com/eth.token.v1.Transfers", Value: value}},
	}
}

func storeOutput(module string, deltas ...*pbsubstreams.StoreDelta) *pbsubstreams.ModuleOutput {
	return &pbsubstreams.ModuleOutput{
		Name: module,
		Data: &pbsubstreams.ModuleOutput_StoreDeltas{StoreDeltas: &pbsubstreams.StoreDeltas{Deltas: deltas}},
	}
}

func snapshotResponse(module string, deltas ...*pbsubstreams.StoreDelta) *pbsubstreams.Response {
	return &pbsubstreams.Response{Message: &pbsubstreams.Response_SnapshotData{SnapshotData: &pbsubstreams.InitialSnapshotData{
		ModuleName: module,
		Deltas:     &pbsubstreams.StoreDeltas{Deltas: deltas},
	}}}
}

func storeDelta(key string, value []byte) *pbsubstreams.StoreDelta {
	return &pbsubstreams.StoreDelta{Operation: pbsubstreams.StoreDelta_CREATE, Key: key, NewValue: value}
}

var errConnectionReset = errors.New("rpc error: code = Unavailable desc = connection reset by peer")
