package provider

import "strings"

// StreamAccumulator folds streamed events into a complete response.
type StreamAccumulator struct {
	content strings.Builder
	usage   *Usage
	reason  string
	// OnDelta, if set, is called with every content fragment as it arrives.
	OnDelta func(string)
}

// Process consumes events until the channel closes or an error event arrives.
// The content received before an error is still available from Content.
func (a *StreamAccumulator) Process(events <-chan ChatEvent) (*ChatResponse, error) {
	for event := range events {
		switch event.Type {
		case EventTypeContent:
			a.content.WriteString(event.Delta)
			if a.OnDelta != nil {
				a.OnDelta(event.Delta)
			}
		case EventTypeDone:
			a.usage = event.Usage
			a.reason = event.FinishReason
		case EventTypeError:
			return nil, event.Error
		}
	}

	reason := a.reason
	if reason == "" {
		reason = FinishReasonStop
	}
	return &ChatResponse{
		Content:      a.content.String(),
		Usage:        a.usage,
		FinishReason: reason,
	}, nil
}

// Content returns the text accumulated so far.
func (a *StreamAccumulator) Content() string {
	return a.content.String()
}
