package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"printstack/internal/derive"
	"printstack/internal/storage"
	"printstack/pkg/domain"
)

// Prints owns the print history collection. Prints are historical records:
// created once, never transitioned, individually deletable.
type Prints struct {
	mu       sync.RWMutex
	items    []domain.Print
	readOnly bool

	// resolveModel answers model lookups at write time; wired by the
	// service. Nil means referential checks cannot pass.
	resolveModel func(id string) (domain.Model, bool)

	version atomic.Uint64
	writer  *writeThrough
	hub     changeHub
	log     Logger
	nowFn   func() time.Time
	newID   func() string
}

// NewPrints constructs the prints store over the safe store.
func NewPrints(safe *storage.SafeStore, logger Logger) *Prints {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Prints{
		writer: newWriteThrough(safe, storage.KeyPrints, logger),
		log:    logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// SetModelResolver wires the model lookup used for referential checks and
// write-time variance.
func (s *Prints) SetModelResolver(fn func(id string) (domain.Model, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveModel = fn
}

// lookupModel invokes the wired resolver without holding the prints lock.
func (s *Prints) lookupModel(id string) (domain.Model, bool) {
	s.mu.RLock()
	resolve := s.resolveModel
	s.mu.RUnlock()
	if resolve == nil {
		return domain.Model{}, false
	}
	return resolve(id)
}

// Load reads the collection once at startup.
func (s *Prints) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Print
	res, err := s.writer.safe.GetJSON(ctx, storage.KeyPrints, &items, storage.GetOptions{
		Default: json.RawMessage(`[]`),
	})
	if err != nil {
		return err
	}
	if res.IsFallback {
		s.log.Warn("prints loaded from fallback data")
	}
	if !s.writer.safe.Writable() {
		s.readOnly = true
	}
	s.items = items
	s.version.Add(1)
	return nil
}

// Add validates the candidate, resolves its model at the moment of write,
// computes the variance analysis, and appends the record. Referential
// failure (unknown model) is reported alongside validation messages.
func (s *Prints) Add(ctx context.Context, candidate domain.Print) (domain.Print, bool, []string) {
	if msgs := domain.ValidatePrint(candidate); len(msgs) > 0 {
		return domain.Print{}, false, msgs
	}
	// Resolve the model before taking the prints lock; the resolver
	// acquires the models lock and must never nest inside ours.
	model, ok := s.lookupModel(candidate.ModelID)
	if !ok {
		return domain.Print{}, false, []string{"model " + candidate.ModelID + " not found"}
	}
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return domain.Print{}, false, []string{"store is read-only: storage unavailable"}
	}

	now := s.nowFn()
	if candidate.ID == "" {
		candidate.ID = s.newID()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now
	analysis := derive.Variance(candidate, &model)
	candidate.Variance = &analysis

	s.items = append(s.items, clonePrint(candidate))
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return candidate, true, nil
}

// Update replaces an existing print in place, re-resolving the model and
// recomputing the stored variance.
func (s *Prints) Update(ctx context.Context, candidate domain.Print) (domain.Print, bool, []string) {
	if candidate.ID == "" {
		return domain.Print{}, false, []string{"identifier is required"}
	}
	if msgs := domain.ValidatePrint(candidate); len(msgs) > 0 {
		return domain.Print{}, false, msgs
	}
	model, ok := s.lookupModel(candidate.ModelID)
	if !ok {
		return domain.Print{}, false, []string{"model " + candidate.ModelID + " not found"}
	}
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return domain.Print{}, false, []string{"store is read-only: storage unavailable"}
	}
	idx := -1
	for i := range s.items {
		if s.items[i].ID == candidate.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return domain.Print{}, false, []string{"print " + candidate.ID + " not found"}
	}
	candidate.CreatedAt = s.items[idx].CreatedAt
	candidate.UpdatedAt = s.nowFn()
	analysis := derive.Variance(candidate, &model)
	candidate.Variance = &analysis
	s.items[idx] = clonePrint(candidate)
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return candidate, true, nil
}

// Delete removes one print record.
func (s *Prints) Delete(ctx context.Context, id string) (bool, []string) {
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return false, []string{"store is read-only: storage unavailable"}
	}
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return false, []string{"print " + id + " not found"}
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return true, nil
}

// Get retrieves one print by identifier.
func (s *Prints) Get(id string) (domain.Print, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].ID == id {
			return clonePrint(s.items[i]), true
		}
	}
	return domain.Print{}, false
}

// List returns the collection in insertion order.
func (s *Prints) List() []domain.Print {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Print, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, clonePrint(p))
	}
	return out
}

// ReferencesModel reports whether any print references the model. Used as
// the models store delete guard.
func (s *Prints) ReferencesModel(modelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.items {
		if p.ModelID == modelID {
			return true
		}
	}
	return false
}

func printFields(p domain.Print) map[string]any {
	fields := map[string]any{
		"model_id":   p.ModelID,
		"notes":      p.Notes,
		"printed_at": p.PrintedAt,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
	if p.Quality != nil {
		fields["quality"] = *p.Quality
	}
	if p.DurationMinutes != nil {
		fields["duration_minutes"] = *p.DurationMinutes
	}
	return fields
}

// Query filters and sorts the collection. Sorting by quality orders
// excellent before good before fair before poor.
func (s *Prints) Query(filter domain.Filter, sortBy *domain.Sort) []domain.Print {
	return filterAndSort(s.List(), printFields, filter, sortBy)
}

// Search matches text against notes and model identifier.
func (s *Prints) Search(text string) []domain.Print {
	if strings.TrimSpace(text) == "" {
		return s.List()
	}
	pred := domain.Substring(text)
	return s.Query(domain.Filter{
		Combinator: domain.CombineOr,
		Fields: map[string]domain.Predicate{
			"notes":    pred,
			"model_id": pred,
		},
	}, nil)
}

// PrintStats summarizes print history.
type PrintStats struct {
	Total       int            `json:"total"`
	ByQuality   map[string]int `json:"by_quality"`
	SuccessRate float64        `json:"success_rate"`
	TotalUsedG  float64        `json:"total_used_g"`
	// AvgVariancePercent averages the stored analyses that carry data.
	AvgVariancePercent float64 `json:"avg_variance_percent"`
}

// Statistics aggregates the collection. Success counts excellent and good
// prints against all rated prints.
func (s *Prints) Statistics() PrintStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := PrintStats{ByQuality: make(map[string]int)}
	rated := 0
	succeeded := 0
	analysed := 0
	varianceSum := 0.0
	for _, p := range s.items {
		stats.Total++
		if p.Quality != nil {
			stats.ByQuality[string(*p.Quality)]++
			rated++
			if *p.Quality == domain.QualityExcellent || *p.Quality == domain.QualityGood {
				succeeded++
			}
		}
		for _, u := range p.Usages {
			stats.TotalUsedG += u.ActualWeightG
		}
		if p.Variance != nil && !p.Variance.InsufficientData {
			varianceSum += p.Variance.VariancePercent
			analysed++
		}
	}
	if rated > 0 {
		stats.SuccessRate = float64(succeeded) / float64(rated) * 100
	}
	if analysed > 0 {
		stats.AvgVariancePercent = varianceSum / float64(analysed)
	}
	return stats
}

// Subscribe registers a collection-change callback and returns the
// unsubscribe function.
func (s *Prints) Subscribe(fn func()) func() { return s.hub.subscribe(fn) }

// Version returns the mutation counter used to key memoized derivations.
func (s *Prints) Version() uint64 { return s.version.Load() }

// ReadOnly reports whether the store degraded at load time.
func (s *Prints) ReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly
}

// Batch groups several mutations into one persistence write.
func (s *Prints) Batch(ctx context.Context, fn func()) {
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)
	fn()
}

// Writes exposes the persistence write counter for tests.
func (s *Prints) Writes() uint64 { return s.writer.Writes() }

func (s *Prints) snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Print, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, clonePrint(p))
	}
	return out
}
