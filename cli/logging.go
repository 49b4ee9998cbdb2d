package cli

import (
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

var zlog *zap.Logger

func init() {
	zlog, _ = logging.ApplicationLogger("substreams-poll", "github.com/streamingfast/substreams-poll/cli",
		logging.WithSwitcherServerAutoStart(),
	)
}
