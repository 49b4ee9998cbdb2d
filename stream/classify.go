package stream

import (
	"fmt"

	pbsubstreams "github.com/streamingfast/substreams/pb/sf/substreams/v1"
	"google.golang.org/protobuf/proto"
)

type Kind int

const (
	KindEmpty Kind = iota
	KindSession
	KindProgress
	KindSnapshot
	KindSnapshotComplete
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindSession:
		return "session"
	case KindProgress:
		return "progress"
	case KindSnapshot:
		return "snapshot"
	case KindSnapshotComplete:
		return "snapshot_complete"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Frame is a classified response. Only the payload matching Kind is set.
type Frame struct {
	Kind Kind

	Progress *pbsubstreams.ModulesProgress
	Snapshot *pbsubstreams.InitialSnapshotData
	Data     *pbsubstreams.BlockScopedData
}

// Classify decides which payload a response carries. Payloads holding only
// default values are classified as empty, exactly like absent ones.
func Classify(resp *pbsubstreams.Response) Frame {
	switch msg := resp.GetMessage().(type) {
	case *pbsubstreams.Response_Session:
		if isEmpty(msg.Session) {
			return Frame{Kind: KindEmpty}
		}
		return Frame{Kind: KindSession}
	case *pbsubstreams.Response_Progress:
		if isEmpty(msg.Progress) {
			return Frame{Kind: KindEmpty}
		}
		return Frame{Kind: KindProgress, Progress: msg.Progress}
	case *pbsubstreams.Response_SnapshotData:
		if isEmpty(msg.SnapshotData) {
			return Frame{Kind: KindEmpty}
		}
		return Frame{Kind: KindSnapshot, Snapshot: msg.SnapshotData}
	case *pbsubstreams.Response_SnapshotComplete:
		return Frame{Kind: KindSnapshotComplete}
	case *pbsubstreams.Response_Data:
		if isEmpty(msg.Data) {
			return Frame{Kind: KindEmpty}
		}
		return Frame{Kind: KindData, Data: msg.Data}
	default:
		return Frame{Kind: KindEmpty}
	}
}

func isEmpty(msg proto.Message) bool {
	return msg == nil || proto.Size(msg) == 0
}

// furthestProcessedBlock returns the highest end block reported for module.
func furthestProcessedBlock(progress *pbsubstreams.ModulesProgress, module string) (endBlock uint64, found bool) {
	for _, mod := range progress.GetModules() {
		if mod.GetName() != module {
			continue
		}
		for _, processed := range mod.GetProcessedRanges().GetProcessedRanges() {
			if !found || processed.GetEndBlock() > endBlock {
				endBlock = processed.GetEndBlock()
				found = true
			}
		}
	}
	return
}
