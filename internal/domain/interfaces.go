package domain

import "context"

// Provider represents any LLM provider.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider identifier.
	Name() string

	// IsModelSupported checks if the provider supports the given model.
	IsModelSupported(ctx context.Context, model string) bool

	// SupportedModels returns the models the provider knows about.
	SupportedModels(ctx context.Context) []string
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider Provider) error

	// Get retrieves a provider by name.
	Get(ctx context.Context, providerName string) (Provider, error)

	// GetByModel retrieves a provider that supports the given model.
	GetByModel(ctx context.Context, model string) (Provider, error)

	// List returns all available providers.
	List(ctx context.Context) ([]string, error)
}

// UsageRecorder accepts usage of completed LLM calls.
type UsageRecorder interface {
	// Record books usage against a phase and model.
	Record(ctx context.Context, phase string, usage Usage, model, description string) error
}

// UsageObserver is notified after each successful record.
type UsageObserver interface {
	// ObserveUsage receives a copy of the appended log entry.
	ObserveUsage(ctx context.Context, entry LogEntry)
}

// SnapshotWriter writes a ledger snapshot to a target, replacing prior content.
type SnapshotWriter interface {
	// Write stores the snapshot at target.
	Write(ctx context.Context, target string, snapshot Snapshot) error
}
