package contextmgr

import "time"

// Recorder receives observations about context preparation.
// internal/metrics provides a Prometheus implementation.
type Recorder interface {
	// ObservePrepare is called once per Prepare with its outcome and the
	// window usage of the input history.
	ObservePrepare(model, outcome string, usagePercent int)

	// ObserveSummarize is called after every summarize invocation.
	ObserveSummarize(model string, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObservePrepare(string, string, int) {}
func (nopRecorder) ObserveSummarize(string, time.Duration, error) {}
