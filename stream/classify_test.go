package stream

import (
	"testing"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		resp     *pbsubstreams.Response
		expected Kind
	}{
		{name: "nil response", resp: nil, expected: KindEmpty},
		{name: "no message", resp: &pbsubstreams.Response{}, expected: KindEmpty},
		{name: "session", resp: jsonResponse(t, `{"session":{"traceId":"abc"}}`), expected: KindSession},
		{name: "progress", resp: progressResponse(t, "map_transfers", 1150), expected: KindProgress},
		{name: "empty progress", resp: &pbsubstreams.Response{Message: &pbsubstreams.Response_Progress{Progress: &pbsubstreams.ModulesProgress{}}}, expected: KindEmpty},
		{name: "snapshot", resp: snapshotResponse("store_owners", storeDelta("owner:0xaa", []byte("x"))), expected: KindSnapshot},
		{name: "snapshot complete", resp: &pbsubstreams.Response{Message: &pbsubstreams.Response_SnapshotComplete{SnapshotComplete: &pbsubstreams.InitialSnapshotComplete{}}}, expected: KindSnapshotComplete},
		{name: "data", resp: dataResponse(105, mapOutput("map_transfers", []byte{0x01})), expected: KindData},
		{name: "empty data", resp: &pbsubstreams.Response{Message: &pbsubstreams.Response_Data{Data: &pbsubstreams.BlockScopedData{}}}, expected: KindEmpty},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			frame := Classify(test.resp)
			assert.Equal(t, test.expected, frame.Kind)

			switch frame.Kind {
			case KindProgress:
				assert.NotNil(t, frame.Progress)
			case KindSnapshot:
				assert.NotNil(t, frame.Snapshot)
			case KindData:
				assert.NotNil(t, frame.Data)
			}
		})
	}
}

func TestFurthestProcessedBlock(t *testing.T) {
	progress := jsonResponse(t, `{"progress":{"modules":[
		{"name":"store_balances","processedRanges":{"processedRanges":[{"startBlock":"0","endBlock":"5000"}]}},
		{"name":"map_transfers","processedRanges":{"processedRanges":[{"startBlock":"1000","endBlock":"1150"},{"startBlock":"0","endBlock":"900"}]}}
	]}}`).GetProgress()

	endBlock, found := furthestProcessedBlock(progress, "map_transfers")
	assert.True(t, found)
	assert.Equal(t, uint64(1150), endBlock)

	_, found = furthestProcessedBlock(progress, "map_volumes")
	assert.False(t, found)
}
