package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidbz/tokenledger/internal/config"
	"github.com/davidbz/tokenledger/internal/domain"
	"github.com/davidbz/tokenledger/internal/observability"
	"github.com/davidbz/tokenledger/internal/snapshot"
)

const (
	// PhaseHeader names the ledger phase a completion is booked against.
	PhaseHeader = "X-Phase"

	// ProviderHeader optionally pins a completion to a provider.
	ProviderHeader = "X-Provider"

	// DefaultPhase is used when a completion carries no phase header.
	DefaultPhase = "default"
)

// UsageLedger is the ledger surface exposed over HTTP.
type UsageLedger interface {
	domain.UsageRecorder
	Bucket(phase string) (domain.PhaseBucket, bool)
	Total() domain.PhaseBucket
	Snapshot() domain.Snapshot
	Summarize() string
	DetailedReport() string
	Persist(ctx context.Context, target string) error
}

// Handler handles HTTP requests.
type Handler struct {
	gateway    *domain.GatewayService
	ledger     UsageLedger
	outputPath string
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(gateway *domain.GatewayService, ledger UsageLedger, cfg *config.LedgerConfig) *Handler {
	return &Handler{
		gateway:    gateway,
		ledger:     ledger,
		outputPath: cfg.OutputPath,
	}
}

// UsageRequest is the body of a direct record call.
type UsageRequest struct {
	Phase        string `json:"phase"`
	Model        string `json:"model"`
	Description  string `json:"description,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// UsageResponse reports the buckets touched by a record call.
type UsageResponse struct {
	Phase  string             `json:"phase"`
	Bucket domain.PhaseBucket `json:"bucket"`
	Total  domain.PhaseBucket `json:"total"`
}

// HandleCompletion executes a metered completion.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.Model == "" {
		http.Error(w, "model is required", http.StatusBadRequest)
		return
	}

	phase := r.Header.Get(PhaseHeader)
	if phase == "" {
		phase = DefaultPhase
	}
	provider := r.Header.Get(ProviderHeader)

	ctx = observability.WithModel(ctx, req.Model)
	ctx = observability.WithPhase(ctx, phase)

	logger := observability.FromContext(ctx)
	logger.Info("completion request received", observability.String("provider", provider))

	var (
		response *domain.CompletionResponse
		err      error
	)
	if provider != "" {
		response, err = h.gateway.Complete(ctx, provider, phase, &req)
	} else {
		response, err = h.gateway.CompleteByModel(ctx, phase, &req)
	}
	if err != nil {
		logger.Error("completion failed", observability.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(ctx, w, http.StatusOK, response)
}

// HandleRecordUsage books usage reported by an external caller.
func (h *Handler) HandleRecordUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	usage := domain.Usage{InputTokens: req.InputTokens, OutputTokens: req.OutputTokens}
	if err := h.ledger.Record(ctx, req.Phase, usage, req.Model, req.Description); err != nil {
		observability.FromContext(ctx).Warn("usage rejected", observability.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	bucket, _ := h.ledger.Bucket(req.Phase)
	writeJSON(ctx, w, http.StatusCreated, UsageResponse{
		Phase:  req.Phase,
		Bucket: bucket,
		Total:  h.ledger.Total(),
	})
}

// HandleSummary renders the text report; ?detailed=true appends the per-call lines.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.ledger.Summarize()
	if r.URL.Query().Get("detailed") == "true" {
		report += "\n" + h.ledger.DetailedReport()
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, report)
}

// HandleSnapshot returns the persisted document for the current state.
// ?format=yaml switches the encoding.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	encoding, contentType := snapshot.EncodingJSON, "application/json"
	if r.URL.Query().Get("format") == "yaml" {
		encoding, contentType = snapshot.EncodingYAML, "application/yaml"
	}

	data, err := snapshot.Encode(encoding, h.ledger.Snapshot())
	if err != nil {
		observability.FromContext(ctx).Error("failed to encode snapshot", observability.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandlePersist writes the ledger to the configured output path.
func (h *Handler) HandlePersist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.ledger.Persist(ctx, h.outputPath); err != nil {
		observability.FromContext(ctx).Error("persist failed", observability.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]string{
		"status": "persisted",
		"target": h.outputPath,
	})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyPhase),
		errors.Is(err, domain.ErrReservedPhase),
		errors.Is(err, domain.ErrInvalidUsage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIOFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Status is already written, only log.
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}
