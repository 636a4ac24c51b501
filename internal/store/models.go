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

// Models owns the model collection plus the auxiliary category index. Each
// lives under its own persistence key.
type Models struct {
	mu         sync.RWMutex
	items      []domain.Model
	categories []domain.Category
	readOnly   bool

	// referencedBy answers whether any print references a model; wired by
	// the service after the prints store exists.
	referencedBy func(modelID string) bool

	version        atomic.Uint64
	writer         *writeThrough
	categoryWriter *writeThrough
	hub            changeHub
	log            Logger
	nowFn          func() time.Time
	newID          func() string
}

// NewModels constructs the models store over the safe store.
func NewModels(safe *storage.SafeStore, logger Logger) *Models {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Models{
		writer:         newWriteThrough(safe, storage.KeyModels, logger),
		categoryWriter: newWriteThrough(safe, storage.KeyCategories, logger),
		log:            logger,
		nowFn:          func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

// SetReferenceGuard wires the cross-store print-reference check used by
// Delete.
func (s *Models) SetReferenceGuard(fn func(modelID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referencedBy = fn
}

// Load reads both collections once at startup, seeding the default
// category list when no categories key exists yet.
func (s *Models) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Model
	res, err := s.writer.safe.GetJSON(ctx, storage.KeyModels, &items, storage.GetOptions{
		Default: json.RawMessage(`[]`),
	})
	if err != nil {
		return err
	}
	if res.IsFallback {
		s.log.Warn("models loaded from fallback data")
	}
	s.items = items

	var categories []domain.Category
	catRes, err := s.writer.safe.GetJSON(ctx, storage.KeyCategories, &categories, storage.GetOptions{
		Default: json.RawMessage(`[]`),
	})
	if err != nil {
		return err
	}
	if !catRes.Exists || len(categories) == 0 {
		now := s.nowFn()
		for _, name := range domain.DefaultCategories() {
			categories = append(categories, domain.Category{Name: name, CreatedAt: now})
		}
		if s.writer.safe.Writable() {
			s.categoryWriter.begin()
			s.categoryWriter.markDirty()
			s.categoryWriter.end(ctx, func() any { return categories })
		}
	}
	s.categories = categories

	if !s.writer.safe.Writable() {
		s.readOnly = true
	}
	s.version.Add(1)
	return nil
}

// Add validates the candidate model and appends it.
func (s *Models) Add(ctx context.Context, candidate domain.Model) (domain.Model, bool, []string) {
	if msgs := domain.ValidateModel(candidate); len(msgs) > 0 {
		return domain.Model{}, false, msgs
	}
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return domain.Model{}, false, []string{"store is read-only: storage unavailable"}
	}
	now := s.nowFn()
	if candidate.ID == "" {
		candidate.ID = s.newID()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now
	s.items = append(s.items, cloneModel(candidate))
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return candidate, true, nil
}

// Update replaces an existing model in place after validation.
func (s *Models) Update(ctx context.Context, candidate domain.Model) (domain.Model, bool, []string) {
	if candidate.ID == "" {
		return domain.Model{}, false, []string{"identifier is required"}
	}
	if msgs := domain.ValidateModel(candidate); len(msgs) > 0 {
		return domain.Model{}, false, msgs
	}
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return domain.Model{}, false, []string{"store is read-only: storage unavailable"}
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
		return domain.Model{}, false, []string{"model " + candidate.ID + " not found"}
	}
	candidate.CreatedAt = s.items[idx].CreatedAt
	candidate.UpdatedAt = s.nowFn()
	s.items[idx] = cloneModel(candidate)
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return candidate, true, nil
}

// Delete removes a model unless any print still references it.
func (s *Models) Delete(ctx context.Context, id string) (bool, []string) {
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)

	// The guard reads the prints store and must run before the models
	// lock is held, never inside it.
	s.mu.RLock()
	guard := s.referencedBy
	s.mu.RUnlock()
	if guard != nil && guard(id) {
		return false, []string{"model " + id + " is referenced by existing prints"}
	}

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
		return false, []string{"model " + id + " not found"}
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.version.Add(1)
	s.writer.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return true, nil
}

// Get retrieves one model by identifier.
func (s *Models) Get(id string) (domain.Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].ID == id {
			return cloneModel(s.items[i]), true
		}
	}
	return domain.Model{}, false
}

// List returns the collection in insertion order.
func (s *Models) List() []domain.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Model, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, cloneModel(m))
	}
	return out
}

func modelFields(m domain.Model) map[string]any {
	return map[string]any{
		"name":               m.Name,
		"category":           m.Category,
		"difficulty":         string(m.Difficulty),
		"notes":              m.Notes,
		"print_time_minutes": m.PrintTimeMinutes,
		"created_at":         m.CreatedAt,
		"updated_at":         m.UpdatedAt,
	}
}

// Query filters and sorts the collection.
func (s *Models) Query(filter domain.Filter, sortBy *domain.Sort) []domain.Model {
	return filterAndSort(s.List(), modelFields, filter, sortBy)
}

// Search matches text against name, category, and notes.
func (s *Models) Search(text string) []domain.Model {
	if strings.TrimSpace(text) == "" {
		return s.List()
	}
	pred := domain.Substring(text)
	return s.Query(domain.Filter{
		Combinator: domain.CombineOr,
		Fields: map[string]domain.Predicate{
			"name":     pred,
			"category": pred,
			"notes":    pred,
		},
	}, nil)
}

// Categories returns the category index in insertion order.
func (s *Models) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}

// AddCategory appends a category, rejecting duplicates case-insensitively.
func (s *Models) AddCategory(ctx context.Context, name string) (bool, []string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, []string{"category name is required"}
	}
	s.categoryWriter.begin()
	defer s.categoryWriter.end(ctx, s.categorySnapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return false, []string{"store is read-only: storage unavailable"}
	}
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			s.mu.Unlock()
			return false, []string{"category " + name + " already exists"}
		}
	}
	s.categories = append(s.categories, domain.Category{Name: name, CreatedAt: s.nowFn()})
	s.version.Add(1)
	s.categoryWriter.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return true, nil
}

// DeleteCategory removes a category unless a model still uses it.
func (s *Models) DeleteCategory(ctx context.Context, name string) (bool, []string) {
	s.categoryWriter.begin()
	defer s.categoryWriter.end(ctx, s.categorySnapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return false, []string{"store is read-only: storage unavailable"}
	}
	for _, m := range s.items {
		if strings.EqualFold(m.Category, name) {
			s.mu.Unlock()
			return false, []string{"category " + name + " is in use by existing models"}
		}
	}
	idx := -1
	for i, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return false, []string{"category " + name + " not found"}
	}
	s.categories = append(s.categories[:idx], s.categories[idx+1:]...)
	s.version.Add(1)
	s.categoryWriter.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return true, nil
}

// RenameCategory renames an index entry. Models keep their free-form
// category string; only the index changes.
func (s *Models) RenameCategory(ctx context.Context, from, to string) (bool, []string) {
	to = strings.TrimSpace(to)
	if to == "" {
		return false, []string{"category name is required"}
	}
	s.categoryWriter.begin()
	defer s.categoryWriter.end(ctx, s.categorySnapshot)

	s.mu.Lock()
	if s.readOnly {
		s.mu.Unlock()
		return false, []string{"store is read-only: storage unavailable"}
	}
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, to) && !strings.EqualFold(c.Name, from) {
			s.mu.Unlock()
			return false, []string{"category " + to + " already exists"}
		}
	}
	idx := -1
	for i, c := range s.categories {
		if strings.EqualFold(c.Name, from) {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return false, []string{"category " + from + " not found"}
	}
	s.categories[idx].Name = to
	s.version.Add(1)
	s.categoryWriter.markDirty()
	s.mu.Unlock()

	s.hub.notify()
	return true, nil
}

// ModelStats summarizes the model collection.
type ModelStats struct {
	Total        int            `json:"total"`
	ByCategory   map[string]int `json:"by_category"`
	ByDifficulty map[string]int `json:"by_difficulty"`
}

// Statistics aggregates the collection.
func (s *Models) Statistics() ModelStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := ModelStats{
		ByCategory:   make(map[string]int),
		ByDifficulty: make(map[string]int),
	}
	for _, m := range s.items {
		stats.Total++
		stats.ByCategory[m.Category]++
		stats.ByDifficulty[string(m.Difficulty)]++
	}
	return stats
}

// Subscribe registers a collection-change callback and returns the
// unsubscribe function.
func (s *Models) Subscribe(fn func()) func() { return s.hub.subscribe(fn) }

// Version returns the mutation counter used to key memoized derivations.
func (s *Models) Version() uint64 { return s.version.Load() }

// ReadOnly reports whether the store degraded at load time.
func (s *Models) ReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly
}

// Batch groups several model mutations into one persistence write.
func (s *Models) Batch(ctx context.Context, fn func()) {
	s.writer.begin()
	defer s.writer.end(ctx, s.snapshot)
	fn()
}

// Writes exposes the model-collection write counter for tests.
func (s *Models) Writes() uint64 { return s.writer.Writes() }

func (s *Models) snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Model, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, cloneModel(m))
	}
	return out
}

func (s *Models) categorySnapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}
