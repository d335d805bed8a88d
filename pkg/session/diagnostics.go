package session

import (
	"log/slog"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// DefaultLockWaitReport is how long an append may wait for its socket lock before the wait is
// reported.
const DefaultLockWaitReport = 30 * time.Second

func init() {
	ConfigureLockDiagnostics(DefaultLockWaitReport, nil)
}

// ConfigureLockDiagnostics sets how long a socket lock wait may last before it is reported.
// A report is logged and the waiter keeps waiting; it never terminates the process. A zero
// timeout turns the wait check off. A nil logger reports through slog.Default at report time.
// Call it once at startup, before any session lock is taken.
func ConfigureLockDiagnostics(timeout time.Duration, logger *slog.Logger) {
	deadlock.Opts.DeadlockTimeout = timeout
	deadlock.Opts.OnPotentialDeadlock = func() {
		l := logger
		if l == nil {
			l = slog.Default()
		}

		l.Error("session lock wait exceeded timeout", "module", "session_tracker", "timeout", timeout)
	}
}
