package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokenledger/internal/domain"
)

// mockRegistry is a mock implementation of ProviderRegistry for testing.
type mockRegistry struct {
	providers map[string]domain.Provider
}

func newMockRegistry(providers ...domain.Provider) *mockRegistry {
	m := &mockRegistry{providers: make(map[string]domain.Provider)}
	for _, provider := range providers {
		m.providers[provider.Name()] = provider
	}
	return m
}

func (m *mockRegistry) Register(_ context.Context, provider domain.Provider) error {
	m.providers[provider.Name()] = provider
	return nil
}

func (m *mockRegistry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	provider, exists := m.providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}
	return provider, nil
}

func (m *mockRegistry) GetByModel(ctx context.Context, model string) (domain.Provider, error) {
	for _, provider := range m.providers {
		if provider.IsModelSupported(ctx, model) {
			return provider, nil
		}
	}
	return nil, fmt.Errorf("no provider found for model: %s", model)
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names, nil
}

// mockProvider is a mock implementation of Provider for testing.
type mockProvider struct {
	name         string
	completeFunc func(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
	models       []string
}

func (m *mockProvider) Complete(
	ctx context.Context,
	req *domain.CompletionRequest,
) (*domain.CompletionResponse, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return &domain.CompletionResponse{
		ID:         "test-id",
		Model:      req.Model,
		Provider:   m.name,
		Content:    "test response",
		Usage:      domain.Usage{InputTokens: 1_000_000, OutputTokens: 0},
		FinishTime: time.Now(),
	}, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) IsModelSupported(_ context.Context, model string) bool {
	if m.models == nil {
		return true
	}
	for _, supported := range m.models {
		if supported == model {
			return true
		}
	}
	return false
}

func (m *mockProvider) SupportedModels(_ context.Context) []string {
	return m.models
}

type recorderStub struct {
	err error
}

func (r *recorderStub) Record(context.Context, string, domain.Usage, string, string) error {
	return r.err
}

func newTestGateway(t *testing.T, recorder domain.UsageRecorder, providers ...domain.Provider) *domain.GatewayService {
	t.Helper()

	table, err := domain.NewPricingTable(testPricing())
	require.NoError(t, err)

	return domain.NewGatewayService(newMockRegistry(providers...), domain.NewStandardCostCalculator(table), recorder)
}

func helloRequest(model string) *domain.CompletionRequest {
	return &domain.CompletionRequest{
		Model:    model,
		Messages: []domain.Message{{Role: "user", Content: "Hello"}},
	}
}

func TestGatewayService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("should complete and record usage", func(t *testing.T) {
		ledger := newTestLedger(t)
		gateway := newTestGateway(t, ledger, &mockProvider{name: "test-provider"})

		req := helloRequest("gpt-4.1-mini")
		req.Metadata = map[string]string{domain.DescriptionMetadataKey: "greeting"}

		response, err := gateway.Complete(ctx, "test-provider", "planning", req)

		require.NoError(t, err)
		require.Equal(t, "test-id", response.ID)
		require.Equal(t, "test-provider", response.Provider)
		require.Equal(t, 0.4, response.Cost)

		bucket, ok := ledger.Bucket("planning")
		require.True(t, ok)
		require.Equal(t, domain.PhaseBucket{InputTokens: 1_000_000, Cost: 0.4, Calls: 1}, bucket)

		entries := ledger.Entries()
		require.Len(t, entries, 1)
		require.Equal(t, "greeting", entries[0].DescriptionOrEmpty())
		require.Equal(t, "gpt-4.1-mini", entries[0].Model)
	})

	t.Run("should price the model reported by the provider", func(t *testing.T) {
		ledger := newTestLedger(t)
		provider := &mockProvider{
			name: "test-provider",
			completeFunc: func(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
				return &domain.CompletionResponse{
					Model: "gpt-4.1-2025-04-14",
					Usage: domain.Usage{InputTokens: 1_000_000},
				}, nil
			},
		}
		gateway := newTestGateway(t, ledger, provider)

		response, err := gateway.Complete(ctx, "test-provider", "p", helloRequest("gpt-4.1"))

		require.NoError(t, err)
		require.InDelta(t, 2.0, response.Cost, 1e-12)
		require.Equal(t, "gpt-4.1-2025-04-14", ledger.Entries()[0].Model)
	})

	tests := []struct {
		name         string
		providerName string
		phase        string
		req          *domain.CompletionRequest
		provider     *mockProvider
		recorder     domain.UsageRecorder
		errContains  string
	}{
		{
			name:         "should return error when request is nil",
			providerName: "test-provider",
			phase:        "p",
			provider:     &mockProvider{name: "test-provider"},
			errContains:  "request cannot be nil",
		},
		{
			name:         "should return error when provider name is empty",
			providerName: "",
			phase:        "p",
			req:          helloRequest("gpt-4.1"),
			provider:     &mockProvider{name: "test-provider"},
			errContains:  "provider name cannot be empty",
		},
		{
			name:         "should return error when provider not found",
			providerName: "nonexistent",
			phase:        "p",
			req:          helloRequest("gpt-4.1"),
			provider:     &mockProvider{name: "test-provider"},
			errContains:  "provider not found",
		},
		{
			name:         "should return error when provider fails",
			providerName: "test-provider",
			phase:        "p",
			req:          helloRequest("gpt-4.1"),
			provider: &mockProvider{
				name: "test-provider",
				completeFunc: func(_ context.Context, _ *domain.CompletionRequest) (*domain.CompletionResponse, error) {
					return nil, errors.New("provider error")
				},
			},
			errContains: "completion failed",
		},
		{
			name:         "should return error when recording fails",
			providerName: "test-provider",
			phase:        "p",
			req:          helloRequest("gpt-4.1"),
			provider:     &mockProvider{name: "test-provider"},
			recorder:     &recorderStub{err: errors.New("ledger closed")},
			errContains:  "failed to record usage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tt.recorder
			if recorder == nil {
				recorder = &recorderStub{}
			}
			gateway := newTestGateway(t, recorder, tt.provider)

			response, err := gateway.Complete(ctx, tt.providerName, tt.phase, tt.req)

			require.Error(t, err)
			require.Nil(t, response)
			require.Contains(t, err.Error(), tt.errContains)
		})
	}

	t.Run("should not record when the phase is rejected", func(t *testing.T) {
		ledger := newTestLedger(t)
		gateway := newTestGateway(t, ledger, &mockProvider{name: "test-provider"})

		_, err := gateway.Complete(ctx, "test-provider", domain.TotalPhase, helloRequest("gpt-4.1"))

		require.ErrorIs(t, err, domain.ErrReservedPhase)
		require.Empty(t, ledger.Entries())
	})
}

func TestGatewayService_CompleteByModel(t *testing.T) {
	ctx := context.Background()

	t.Run("should route by model and record usage", func(t *testing.T) {
		ledger := newTestLedger(t)
		gateway := newTestGateway(t, ledger,
			&mockProvider{name: "openai", models: []string{"gpt-4.1-mini"}},
		)

		response, err := gateway.CompleteByModel(ctx, "research", helloRequest("gpt-4.1-mini"))

		require.NoError(t, err)
		require.Equal(t, "openai", response.Provider)
		require.Equal(t, 1, ledger.Total().Calls)
		require.Equal(t, []string{domain.TotalPhase, "research"}, ledger.Phases())
	})

	t.Run("should return error when request is nil", func(t *testing.T) {
		gateway := newTestGateway(t, &recorderStub{})

		response, err := gateway.CompleteByModel(ctx, "p", nil)

		require.Error(t, err)
		require.Nil(t, response)
		require.Contains(t, err.Error(), "request cannot be nil")
	})

	t.Run("should return error when model is empty", func(t *testing.T) {
		gateway := newTestGateway(t, &recorderStub{})

		response, err := gateway.CompleteByModel(ctx, "p", helloRequest(""))

		require.Error(t, err)
		require.Nil(t, response)
		require.Contains(t, err.Error(), "model cannot be empty")
	})

	t.Run("should return error when no provider supports the model", func(t *testing.T) {
		gateway := newTestGateway(t, &recorderStub{},
			&mockProvider{name: "openai", models: []string{"gpt-4.1"}},
		)

		response, err := gateway.CompleteByModel(ctx, "p", helloRequest("claude-x"))

		require.Error(t, err)
		require.Nil(t, response)
		require.Contains(t, err.Error(), "provider routing failed")
	})
}
