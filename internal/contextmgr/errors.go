package contextmgr

import "errors"

// Compression errors. Prepare never returns them; they are logged and recorded
// when the summarization step falls back to truncation.
var (
	// ErrNoSummarizer indicates Prepare was called without a summarize function.
	ErrNoSummarizer = errors.New("contextmgr: summarizer not configured")

	// ErrEmptySummary indicates the model answered with an empty summary.
	ErrEmptySummary = errors.New("contextmgr: empty summary")
)
