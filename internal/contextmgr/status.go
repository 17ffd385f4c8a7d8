package contextmgr

import "math"

// Status describes how full a model's context window is for a history.
type Status struct {
	Current            int  `json:"current"`
	Max                int  `json:"max"`
	Percentage         int  `json:"percentage"`
	NeedsSummarization bool `json:"needs_summarization"`
	IsNearLimit        bool `json:"is_near_limit"`
}

// StatusFor computes the Status of messages against an already resolved profile.
// It has no side effects and is cheap enough to call on every render.
func StatusFor(messages []Message, p Profile) Status {
	current := EstimateMessagesTokens(messages)
	pct := percentOf(current, p.ContextLimit)
	return Status{
		Current:            current,
		Max:                p.ContextLimit,
		Percentage:         pct,
		NeedsSummarization: pct > p.SummarizePercent,
		IsNearLimit:        pct > p.NearLimitPercent,
	}
}

// percentOf returns round(100 * n / limit).
func percentOf(n, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(limit)))
}
