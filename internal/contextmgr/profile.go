package contextmgr

import (
	"sort"
	"sync"
)

// Profile defaults.
const (
	// DefaultContextLimit is the window assumed for models absent from the table.
	DefaultContextLimit = 4096

	// DefaultSummarizePercent is both the compression target and the
	// NeedsSummarization threshold, as a percentage of the context limit.
	DefaultSummarizePercent = 70

	// DefaultNearLimitPercent is the IsNearLimit threshold.
	DefaultNearLimitPercent = 90

	// MinRecentMessages is the number of trailing messages always kept verbatim.
	MinRecentMessages = 6
)

// Profile holds the context window of a model and the thresholds applied to it.
// Zero fields inherit from the table's base profile.
type Profile struct {
	ContextLimit     int `json:"context_limit" mapstructure:"context_limit" yaml:"context_limit"`
	SummarizePercent int `json:"summarize_percent,omitempty" mapstructure:"summarize_percent" yaml:"summarize_percent,omitempty"`
	NearLimitPercent int `json:"near_limit_percent,omitempty" mapstructure:"near_limit_percent" yaml:"near_limit_percent,omitempty"`
	RecentMessages   int `json:"recent_messages,omitempty" mapstructure:"recent_messages" yaml:"recent_messages,omitempty"`
}

// DefaultProfile returns the profile used for unknown models.
func DefaultProfile() Profile {
	return Profile{
		ContextLimit:     DefaultContextLimit,
		SummarizePercent: DefaultSummarizePercent,
		NearLimitPercent: DefaultNearLimitPercent,
		RecentMessages:   MinRecentMessages,
	}
}

// inherit fills the non-positive fields of p from base.
func (p Profile) inherit(base Profile) Profile {
	if p.ContextLimit <= 0 {
		p.ContextLimit = base.ContextLimit
	}
	if p.SummarizePercent <= 0 {
		p.SummarizePercent = base.SummarizePercent
	}
	if p.NearLimitPercent <= 0 {
		p.NearLimitPercent = base.NearLimitPercent
	}
	if p.RecentMessages <= 0 {
		p.RecentMessages = base.RecentMessages
	}
	return p
}

// Target returns the token count above which history is compressed:
// floor(ContextLimit * SummarizePercent / 100).
func (p Profile) Target() int {
	return p.ContextLimit * p.SummarizePercent / 100
}

// builtinLimits are the context windows of the models chatwindow knows about
// out of the box. Config and the profiles file can add to or override them.
var builtinLimits = map[string]int{
	"llama3.2":     8192,
	"llama3.2:1b":  8192,
	"llama3.2:3b":  8192,
	"qwen2.5:0.5b": 4096,
	"qwen2.5:1.5b": 8192,
	"phi3.5":       4096,
	"gemma2:2b":    8192,
	"mistral":      8192,
	"tinyllama":    2048,
}

// Profiles maps model identifiers to profiles. Lookup and Replace are safe for
// concurrent use so the table can be reloaded while a chat is running.
type Profiles struct {
	mu     sync.RWMutex
	base   Profile
	models map[string]Profile
}

// NewProfiles creates a table. Zero fields of base take the package defaults.
func NewProfiles(base Profile, models map[string]Profile) *Profiles {
	t := &Profiles{base: base.inherit(DefaultProfile())}
	t.Replace(models)
	return t
}

// BuiltinProfiles returns a fresh map of the built-in model entries.
func BuiltinProfiles() map[string]Profile {
	models := make(map[string]Profile, len(builtinLimits))
	for id, limit := range builtinLimits {
		models[id] = Profile{ContextLimit: limit}
	}
	return models
}

// DefaultProfiles returns a table holding the built-in model limits.
func DefaultProfiles() *Profiles {
	return NewProfiles(DefaultProfile(), BuiltinProfiles())
}

// Base returns the profile applied to unknown models.
func (t *Profiles) Base() Profile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.base
}

// Lookup resolves the profile of modelID, falling back to the base profile.
func (t *Profiles) Lookup(modelID string) Profile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.models[modelID]; ok {
		return p
	}
	return t.base
}

// Has reports whether modelID has an explicit entry.
func (t *Profiles) Has(modelID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.models[modelID]
	return ok
}

// Replace swaps the per-model entries. Each entry inherits zero fields from
// the base profile at insertion time.
func (t *Profiles) Replace(models map[string]Profile) {
	resolved := make(map[string]Profile, len(models))
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range models {
		resolved[id] = p.inherit(t.base)
	}
	t.models = resolved
}

// Merge adds or overrides entries without dropping the existing ones.
func (t *Profiles) Merge(models map[string]Profile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range models {
		t.models[id] = p.inherit(t.base)
	}
}

// Models returns the identifiers with explicit entries, sorted.
func (t *Profiles) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.models))
	for id := range t.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
