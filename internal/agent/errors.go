package agent

import "errors"

// Sentinel errors for driver-level (not tool-level) faults. Per §7, only
// provider-level fatal errors and explicit construction faults are raised
// as errors; everything else is surfaced as ordinary tool-result data.
var (
	// ErrNoProvider indicates the driver was constructed without a provider.
	ErrNoProvider = errors.New("agent: no provider configured")

	// ErrAskUserQuestionTimeout indicates an AskUserQuestion permission
	// check did not complete within its hard 60-second timeout.
	ErrAskUserQuestionTimeout = errors.New("agent: AskUserQuestion timed out after 60 seconds")
)
