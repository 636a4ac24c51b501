package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"printstack/internal/storage"
	"printstack/pkg/domain"
)

// Filaments owns the spool collection and its single persistence key.
type Filaments struct {
	mu       sync.RWMutex
	items    []domain.Filament
	readOnly bool

	version atomic.Uint64
	writer  *writeThrough
	hub     changeHub
	log     Logger
	nowFn   func() time.Time
	newID   func() string
}

// NewFilaments constructs the filaments store over the safe store.
func NewFilaments(safe *storage.SafeStore, logger Logger) *Filaments {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Filaments{
		writer: newWriteThrough(safe, storage.KeyFilaments, logger),
		log:    logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Load reads the collection once at startup. Absent or fallback data
// initializes an empty collection; an unwritable safe store degrades the
// store to read-only.
func (s *Filaments) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Filament
	res, err := s.writer.safe.GetJSON(ctx, storage.KeyFilaments, &items, storage.GetOptions{
		Default: json.RawMessage(`[]`),
	})
	if err != nil {
		return err
	}
	if res.IsFallback {
		s.log.Warn("filaments loaded from fallback data")
	}
	if !s.writer.safe.Writable() {
		s.readOnly = true
	}
	s.items = items
	s.version.Add(1)
	return nil
}

// Add validates the candidate, assigns identity and timestamps, and
// appends it. Returns the stored record with ok=true, or validation
// messages with ok=false.
func (s *Filaments) Add(ctx context.Context, candidate domain.Filament) (domain.Filament, bool, []string) {
	if msgs := domain.ValidateFilament(candidate); len(msgs) > 0 {
		return domain.Filament{}, false, msgs
	}
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return domain.Filament{}, false, []string{"store is read-only: storage unavailable"}
	}
	now := s.nowFn()
	if candidate.ID == "" {
		candidate.ID = s.newID()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now
	s.items = append(s.items, cloneFilament(candidate))
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return candidate, true, nil
}

// Update replaces an existing spool in place after validation.
func (s *Filaments) Update(ctx context.Context, candidate domain.Filament) (domain.Filament, bool, []string) {
	if candidate.ID == "" {
		return domain.Filament{}, false, []string{"identifier is required"}
	}
	if msgs := domain.ValidateFilament(candidate); len(msgs) > 0 {
		return domain.Filament{}, false, msgs
	}
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return domain.Filament{}, false, []string{"store is read-only: storage unavailable"}
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
		return domain.Filament{}, false, []string{"filament " + candidate.ID + " not found"}
	}
	candidate.CreatedAt = s.items[idx].CreatedAt
	candidate.UpdatedAt = s.nowFn()
	s.items[idx] = cloneFilament(candidate)
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return candidate, true, nil
}

// Delete removes a spool. Requirements and usages that reference it become
// unsatisfiable rather than invalid, so no referential guard applies.
func (s *Filaments) Delete(ctx context.Context, id string) (bool, []string) {
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
		return false, []string{"filament " + id + " not found"}
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return true, nil
}

// Get retrieves one spool by identifier.
func (s *Filaments) Get(id string) (domain.Filament, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].ID == id {
			return cloneFilament(s.items[i]), true
		}
	}
	return domain.Filament{}, false
}

// List returns the collection in insertion order.
func (s *Filaments) List() []domain.Filament {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Filament, 0, len(s.items))
	for _, f := range s.items {
		out = append(out, cloneFilament(f))
	}
	return out
}

// Index returns the collection keyed by identifier, for the derivation
// boundary.
func (s *Filaments) Index() map[string]domain.Filament {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Filament, len(s.items))
	for _, f := range s.items {
		out[f.ID] = cloneFilament(f)
	}
	return out
}

func filamentFields(f domain.Filament) map[string]any {
	return map[string]any{
		"name":               f.Name,
		"material":           f.Material,
		"color_name":         f.ColorName,
		"color_hex":          f.ColorHex,
		"location":           f.Location,
		"notes":              f.Notes,
		"in_stock":           f.InStock,
		"diameter_mm":        f.DiameterMM,
		"nominal_weight_g":   f.NominalWeightG,
		"remaining_weight_g": f.RemainingWeightG,
		"cost":               f.Cost,
		"created_at":         f.CreatedAt,
		"updated_at":         f.UpdatedAt,
	}
}

// Query filters and sorts the collection. Results are derived copies and
// never persisted.
func (s *Filaments) Query(filter domain.Filter, sortBy *domain.Sort) []domain.Filament {
	return filterAndSort(s.List(), filamentFields, filter, sortBy)
}

// Search matches text against the nominated text fields (name, material,
// color, location, notes).
func (s *Filaments) Search(text string) []domain.Filament {
	if strings.TrimSpace(text) == "" {
		return s.List()
	}
	pred := domain.Substring(text)
	return s.Query(domain.Filter{
		Combinator: domain.CombineOr,
		Fields: map[string]domain.Predicate{
			"name":       pred,
			"material":   pred,
			"color_name": pred,
			"location":   pred,
			"notes":      pred,
		},
	}, nil)
}

// FilamentStats summarizes the spool collection.
type FilamentStats struct {
	Total           int            `json:"total"`
	InStock         int            `json:"in_stock"`
	OutOfStock      int            `json:"out_of_stock"`
	TotalRemainingG float64        `json:"total_remaining_g"`
	TotalCost       float64        `json:"total_cost"`
	ByMaterial      map[string]int `json:"by_material"`
}

// Statistics aggregates the collection.
func (s *Filaments) Statistics() FilamentStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := FilamentStats{ByMaterial: make(map[string]int)}
	for _, f := range s.items {
		stats.Total++
		if f.InStock {
			stats.InStock++
		} else {
			stats.OutOfStock++
		}
		stats.TotalRemainingG += f.RemainingWeightG
		stats.TotalCost += f.Cost
		stats.ByMaterial[f.Material]++
	}
	return stats
}

// LowStock lists in-stock spools whose remaining weight is at or below the
// threshold. Advisory only.
func (s *Filaments) LowStock(thresholdG float64) []domain.Filament {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Filament
	for _, f := range s.items {
		if f.InStock && f.RemainingWeightG <= thresholdG {
			out = append(out, cloneFilament(f))
		}
	}
	return out
}

// Subscribe registers a collection-change callback and returns the
// unsubscribe function.
func (s *Filaments) Subscribe(fn func()) func() { return s.hub.subscribe(fn) }

// Version returns the mutation counter used to key memoized derivations.
func (s *Filaments) Version() uint64 { return s.version.Load() }

// ReadOnly reports whether the store degraded at load time.
func (s *Filaments) ReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly
}

// Batch groups several mutations into one persistence write.
func (s *Filaments) Batch(ctx context.Context, fn func()) {
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)
	fn()
}

// Writes exposes the persistence write counter for tests.
func (s *Filaments) Writes() uint64 { return s.writer.Writes() }

func (s *Filaments) snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Filament, 0, len(s.items))
	for _, f := range s.items {
		out = append(out, cloneFilament(f))
	}
	return out
}
