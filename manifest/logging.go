package manifest

import (
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

var zlog *zap.Logger

func init() {
	zlog, _ = logging.PackageLogger("manifest", "github.com/streamingfast/substreams-poll/manifest")
}
