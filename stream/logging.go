package stream

import (
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

var zlog *zap.Logger

func init() {
	zlog, _ = logging.PackageLogger("stream", "github.com/streamingfast/substreams-poll/stream")
}
