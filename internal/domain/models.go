package domain

import "time"

// TotalPhase is the reserved bucket that aggregates every phase.
const TotalPhase = "total"

// CompletionRequest represents a unified LLM request.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// CompletionResponse represents a unified LLM response.
type CompletionResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Content    string    `json:"content"`
	Usage      Usage     `json:"usage"`
	Cost       float64   `json:"cost"`
	FinishTime time.Time `json:"finish_time"`
}

// Usage tracks token consumption of one or more LLM calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// PhaseBucket holds the running counters of one phase (or of the total).
type PhaseBucket struct {
	InputTokens  int     `json:"input_tokens"  yaml:"input_tokens"`
	OutputTokens int     `json:"output_tokens" yaml:"output_tokens"`
	Cost         float64 `json:"cost"          yaml:"cost"`
	Calls        int     `json:"calls"         yaml:"calls"`
}

func (b *PhaseBucket) add(usage Usage, cost float64) {
	b.InputTokens += usage.InputTokens
	b.OutputTokens += usage.OutputTokens
	b.Cost += cost
	b.Calls++
}

// LogEntry is the immutable record of a single recorded call.
type LogEntry struct {
	Phase        string    `json:"phase"         yaml:"phase"`
	Model        string    `json:"model"         yaml:"model"`
	Description  *string   `json:"description"   yaml:"description"`
	InputTokens  int       `json:"input_tokens"  yaml:"input_tokens"`
	OutputTokens int       `json:"output_tokens" yaml:"output_tokens"`
	Cost         float64   `json:"cost"          yaml:"cost"`
	Timestamp    time.Time `json:"timestamp"     yaml:"timestamp"`
}

// DescriptionOrEmpty returns the description, or "" when none was given.
func (e LogEntry) DescriptionOrEmpty() string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}

// clone returns a copy that shares no memory with e.
func (e LogEntry) clone() LogEntry {
	if e.Description != nil {
		description := *e.Description
		e.Description = &description
	}
	return e
}

func cloneEntries(entries []LogEntry) []LogEntry {
	out := make([]LogEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry.clone()
	}
	return out
}

// Snapshot is the persisted form of a ledger.
type Snapshot struct {
	RunID        string                 `json:"run_id"        yaml:"run_id"`
	Summary      map[string]PhaseBucket `json:"summary"       yaml:"summary"`
	DetailedLogs []LogEntry             `json:"detailed_logs" yaml:"detailed_logs"`
	GeneratedAt  time.Time              `json:"generated_at"  yaml:"generated_at"`
}
