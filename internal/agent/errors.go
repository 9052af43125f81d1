package agent

import "errors"

// Sentinel errors for turn-loop operations.
var (
	// ErrMaxRounds indicates the loop exceeded its bounded round count
	// without reaching a final, tool-free response.
	ErrMaxRounds = errors.New("max rounds exceeded")

	// ErrNoProvider indicates no LLM provider is configured.
	ErrNoProvider = errors.New("no provider configured")
)

// ContentFilterError is returned by a Provider when the model refuses mid
// stream. RephraseHint, if non-empty, is a polite message to show the user.
type ContentFilterError struct {
	RephraseHint string
}

func (e *ContentFilterError) Error() string {
	if e.RephraseHint != "" {
		return e.RephraseHint
	}
	return "the response was blocked by a content filter"
}

// AsContentFilterError reports whether err is (or wraps) a content-filter
// refusal, returning the unwrapped error for convenience.
func AsContentFilterError(err error) (*ContentFilterError, bool) {
	var cf *ContentFilterError
	if errors.As(err, &cf) {
		return cf, true
	}
	return nil, false
}
