package plaszip

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log is the package-level logger. It discards output by default; callers
// (typically cmd/plaszip) wire it up to stderr and set a level once flags
// have been parsed.
var Log = logrus.New()

func init() {
	Log.SetOutput(io.Discard)
}

// phase names used as structured fields on every Log event emitted at a
// phase boundary, one event per peer per phase.
const (
	phasePartitioning = "partitioning"
	phaseSizing       = "sizing"
	phaseExchange     = "exchange"
	phaseFinalizing   = "finalizing"
	phaseTableWriting = "table-writing"
	phaseDone         = "done"
)

// logPhase emits one structured event per phase boundary per peer, in
// place of a level-gated diagnostic macro.
func logPhase(rank int, phase string, fields logrus.Fields) {
	f := logrus.Fields{"rank": rank, "phase": phase}
	for k, v := range fields {
		f[k] = v
	}
	Log.WithFields(f).Info("phase boundary")
}
