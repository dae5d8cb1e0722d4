package cmdlog

import (
	"time"

	"feedrank/internal/logging"
	"feedrank/internal/metrics"
)

// Run executes f as the CLI command cmd, counting runs and failures and
// logging the outcome with its duration.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	fields := map[string]any{"command": cmd, "duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err.Error()
		logging.Error("command_failed", fields)
		return err
	}
	logging.Debug("command_done", fields)
	return nil
}
