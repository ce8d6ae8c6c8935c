package engine

import "github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"

// Outcome is the result of an explicit synchronization as a host action reports it.
type Outcome int

const (
	// Succeeded means commit, pull and push all completed.
	Succeeded Outcome = iota
	// Failed means a step failed and the remaining steps were skipped.
	Failed
	// Cancelled means the caller cancelled the synchronization.
	Cancelled
)

// String returns the name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// OutcomeOf classifies the error returned by SyncNow.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, errors.ErrCancelled):
		return Cancelled
	default:
		return Failed
	}
}
