package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbz/tokenledger/internal/observability"
)

// DescriptionMetadataKey carries the ledger description of a request.
const DescriptionMetadataKey = "description"

// GatewayService executes requests against providers and books their
// usage in the ledger.
type GatewayService struct {
	registry       ProviderRegistry
	costCalculator CostCalculator
	recorder       UsageRecorder
}

// NewGatewayService creates a new gateway service (DI constructor).
func NewGatewayService(
	registry ProviderRegistry,
	costCalculator CostCalculator,
	recorder UsageRecorder,
) *GatewayService {
	return &GatewayService{
		registry:       registry,
		costCalculator: costCalculator,
		recorder:       recorder,
	}
}

// Complete handles a completion request against a named provider.
func (g *GatewayService) Complete(
	ctx context.Context,
	providerName string,
	phase string,
	req *CompletionRequest,
) (*CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	if providerName == "" {
		return nil, errors.New("provider name cannot be empty")
	}

	provider, err := g.registry.Get(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("provider not found: %w", err)
	}

	return g.execute(ctx, provider, phase, req)
}

// CompleteByModel handles a completion request with automatic provider routing.
func (g *GatewayService) CompleteByModel(
	ctx context.Context,
	phase string,
	req *CompletionRequest,
) (*CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}

	provider, err := g.registry.GetByModel(ctx, req.Model)
	if err != nil {
		return nil, fmt.Errorf("provider routing failed: %w", err)
	}

	return g.execute(ctx, provider, phase, req)
}

func (g *GatewayService) execute(
	ctx context.Context,
	provider Provider,
	phase string,
	req *CompletionRequest,
) (*CompletionResponse, error) {
	ctx = observability.WithProvider(ctx, provider.Name())
	ctx = observability.WithPhase(ctx, phase)
	logger := observability.FromContext(ctx)

	response, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	// Cost is estimated from the model the provider reports, which may be
	// a dated variant of the requested one.
	response.Cost = g.costCalculator.Calculate(ctx, response.Model, response.Usage)

	description := req.Metadata[DescriptionMetadataKey]
	if err := g.recorder.Record(ctx, phase, response.Usage, response.Model, description); err != nil {
		logger.Error("failed to record usage", observability.Error(err))
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	logger.Info("completion metered",
		observability.String("model", response.Model),
		observability.Int("input_tokens", response.Usage.InputTokens),
		observability.Int("output_tokens", response.Usage.OutputTokens),
		observability.Float64("cost", response.Cost),
	)

	return response, nil
}
