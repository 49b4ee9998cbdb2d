package schema

import (
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

var zlog *zap.Logger

func init() {
	zlog, _ = logging.PackageLogger("schema", "github.com/streamingfast/substreams-poll/schema")
}
