package domain

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Ledger keeps per-phase usage buckets, an eagerly maintained total and an
// append-only log of every recorded call.
type Ledger struct {
	mu      sync.RWMutex
	buckets map[string]*PhaseBucket
	order   []string
	entries []LogEntry

	runID      string
	calculator CostCalculator
	writer     SnapshotWriter
	observers  []UsageObserver
	now        func() time.Time
	strict     bool
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithSnapshotWriter sets the writer used by Persist.
func WithSnapshotWriter(writer SnapshotWriter) LedgerOption {
	return func(l *Ledger) {
		l.writer = writer
	}
}

// WithObserver registers an observer notified after each record.
func WithObserver(observer UsageObserver) LedgerOption {
	return func(l *Ledger) {
		if observer != nil {
			l.observers = append(l.observers, observer)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(runID string) LedgerOption {
	return func(l *Ledger) {
		l.runID = runID
	}
}

// WithPermissiveUsage disables token validation: negative counts flow
// through the arithmetic unchanged.
func WithPermissiveUsage() LedgerOption {
	return func(l *Ledger) {
		l.strict = false
	}
}

// NewLedger creates a ledger holding only the zeroed total bucket.
func NewLedger(calculator CostCalculator, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		buckets:    map[string]*PhaseBucket{TotalPhase: {}},
		order:      []string{TotalPhase},
		entries:    make([]LogEntry, 0),
		runID:      uuid.New().String(),
		calculator: calculator,
		now:        time.Now,
		strict:     true,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// RunID returns the identifier of this ledger's run.
func (l *Ledger) RunID() string {
	return l.runID
}

// Record books one call's usage against phase and the total.
func (l *Ledger) Record(
	ctx context.Context,
	phase string,
	usage Usage,
	model string,
	description string,
) error {
	if phase == "" {
		return ErrEmptyPhase
	}
	if phase == TotalPhase {
		return fmt.Errorf("%w: %s", ErrReservedPhase, phase)
	}
	if l.strict && (usage.InputTokens < 0 || usage.OutputTokens < 0) {
		return &InvalidUsageError{Phase: phase, Model: model, Usage: usage}
	}

	cost := l.calculator.Calculate(ctx, model, usage)

	entry := LogEntry{
		Phase:        phase,
		Model:        model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		Cost:         cost,
	}
	if description != "" {
		entry.Description = &description
	}

	l.mu.Lock()
	bucket, ok := l.buckets[phase]
	if !ok {
		bucket = &PhaseBucket{}
		l.buckets[phase] = bucket
		l.order = append(l.order, phase)
	}
	bucket.add(usage, cost)
	l.buckets[TotalPhase].add(usage, cost)

	entry.Timestamp = l.now()
	l.entries = append(l.entries, entry.clone())
	l.mu.Unlock()

	for _, observer := range l.observers {
		observer.ObserveUsage(ctx, entry.clone())
	}

	return nil
}

// Bucket returns a copy of the bucket for phase.
func (l *Ledger) Bucket(phase string) (PhaseBucket, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bucket, ok := l.buckets[phase]
	if !ok {
		return PhaseBucket{}, false
	}
	return *bucket, true
}

// Total returns a copy of the total bucket.
func (l *Ledger) Total() PhaseBucket {
	total, _ := l.Bucket(TotalPhase)
	return total
}

// Buckets returns a copy of every bucket, total included.
func (l *Ledger) Buckets() map[string]PhaseBucket {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.bucketsLocked()
}

func (l *Ledger) bucketsLocked() map[string]PhaseBucket {
	out := make(map[string]PhaseBucket, len(l.buckets))
	for phase, bucket := range l.buckets {
		out[phase] = *bucket
	}
	return out
}

// Phases returns bucket names in first-seen order, total first.
func (l *Ledger) Phases() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.order)
}

// Entries returns a copy of the detailed log in call order.
func (l *Ledger) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return cloneEntries(l.entries)
}

// Snapshot captures the current state for persistence.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Snapshot{
		RunID:        l.runID,
		Summary:      l.bucketsLocked(),
		DetailedLogs: cloneEntries(l.entries),
		GeneratedAt:  l.now(),
	}
}

// Summarize renders the human-readable usage report.
func (l *Ledger) Summarize() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p := message.NewPrinter(language.English)

	lines := []string{"\n===== TOKEN USAGE SUMMARY ====="}
	for _, phase := range l.order {
		bucket := l.buckets[phase]
		lines = append(lines,
			fmt.Sprintf("\n📊 %s:", strings.ToUpper(phase)),
			fmt.Sprintf("   Calls:           %d", bucket.Calls),
			p.Sprintf("   Input Tokens:    %d", bucket.InputTokens),
			p.Sprintf("   Output Tokens:   %d", bucket.OutputTokens),
			fmt.Sprintf("   Estimated Cost:  $%.4f", bucket.Cost),
		)
	}

	return strings.Join(lines, "\n")
}

// DetailedReport renders one line per recorded call.
func (l *Ledger) DetailedReport() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lines := []string{"\n===== DETAILED USAGE ====="}
	for _, entry := range l.entries {
		label := entry.DescriptionOrEmpty()
		if label == "" {
			label = entry.Phase
		}
		lines = append(lines, fmt.Sprintf("%s: %d in / %d out → $%.4f",
			label, entry.InputTokens, entry.OutputTokens, entry.Cost))
	}

	return strings.Join(lines, "\n")
}

// Persist writes a snapshot to target through the configured writer,
// replacing anything already there.
func (l *Ledger) Persist(ctx context.Context, target string) error {
	if l.writer == nil {
		return &IOFailureError{Path: target, Err: errors.New("no snapshot writer configured")}
	}

	snapshot := l.Snapshot()
	if err := l.writer.Write(ctx, target, snapshot); err != nil {
		return &IOFailureError{Path: target, Err: err}
	}

	return nil
}

// PhaseNames returns the recorded phase names sorted, total excluded.
func PhaseNames(buckets map[string]PhaseBucket) []string {
	names := slices.Sorted(maps.Keys(buckets))
	return slices.DeleteFunc(names, func(name string) bool {
		return name == TotalPhase
	})
}
