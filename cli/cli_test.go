package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/streamingfast/substreams-poll/manifest"
	"github.com/streamingfast/substreams-poll/schema"
	"github.com/streamingfast/substreams-poll/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestDecodeConfig(t *testing.T) {
	t.Setenv("POLL_ENDPOINT", "localhost:9000")

	config, err := DecodeConfig(`
endpoint: ${POLL_ENDPOINT}
plaintext: true
package: ./token_tracker.spkg
modules: [map_transfers, map_volumes]
start_block: 100
stop_block: 200
policy:
  match: to=0xbb
  catch_up_threshold: 50
`)
	require.NoError(t, err)

	assert.Equal(t, "localhost:9000", config.Endpoint)
	assert.True(t, config.Plaintext)
	assert.Equal(t, []string{"map_transfers", "map_volumes"}, config.Modules)
	assert.Equal(t, int64(100), config.StartBlock)
	assert.Equal(t, uint64(200), config.StopBlock)
	assert.Equal(t, "to=0xbb", config.Policy.Match)
	assert.Equal(t, uint64(50), config.Policy.CatchUpThreshold)
	assert.False(t, config.Policy.Strict)
}

func TestDecodeConfig_Invalid(t *testing.T) {
	_, err := DecodeConfig("start_block: [1")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseMatch(t *testing.T) {
	batch := &stream.Batch{
		Module: "map_transfers",
		Items: []stream.DataItem{
			{Fields: schema.Fields{"to": "0xaa", "amount": "500"}},
			{Fields: schema.Fields{"to": "0xbb", "amount": "1500"}},
		},
	}

	tests := []struct {
		name          string
		expr          string
		expectedMatch bool
		expectedErr   bool
	}{
		{name: "matching field", expr: "to=0xbb", expectedMatch: true},
		{name: "matching number", expr: "amount=500", expectedMatch: true},
		{name: "no matching value", expr: "to=0xcc", expectedMatch: false},
		{name: "unknown field", expr: "from=0xaa", expectedMatch: false},
		{name: "missing value separator", expr: "to", expectedErr: true},
		{name: "missing field", expr: "=0xaa", expectedErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			match, err := parseMatch(test.expr)
			if test.expectedErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expectedMatch, match(batch))
		})
	}
}

func writeTestPackage(t *testing.T) string {
	t.Helper()

	content, err := proto.Marshal(manifest.TestPackage())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "token_tracker.spkg")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestModulesCommand(t *testing.T) {
	out := execute(t, "modules", writeTestPackage(t))

	assert.Contains(t, out, "Package: token_tracker v0.1.0")
	assert.Contains(t, out, "map_transfers (map)")
	assert.Contains(t, out, "store_balances (store)")
	assert.Contains(t, out, "none, heuristic decoding")
	assert.Contains(t, out, "depends on:    map_transfers")
}

func TestDecodeCommand(t *testing.T) {
	// "1200" has no schema in the package
	out := execute(t, "decode", writeTestPackage(t), "map_volumes", "MTIwMA==")

	assert.JSONEq(t, `{"value": "1200"}`, out)
}
