package pipeline

import "github.com/sells-group/congress-cli/internal/model"

// Process exit codes for the reconcile command.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitLockContention  = 2
	ExitGuardViolation  = 3
	ExitSourceMalformed = 4
	ExitDBTransient     = 5
)

// ExitCode maps a run error to its process exit code. Errors without a
// recognized kind exit 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch model.KindOf(err) {
	case model.KindLockContention:
		return ExitLockContention
	case model.KindGuardViolation:
		return ExitGuardViolation
	case model.KindSourceMalformed:
		return ExitSourceMalformed
	case model.KindDBTransient:
		return ExitDBTransient
	default:
		return ExitFailure
	}
}
