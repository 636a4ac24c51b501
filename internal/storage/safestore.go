// Package storage implements the safe key-value store: an environment
// namespaced persistence facade over a raw backend, with in-memory
// fallback, a short-lived read-through cache, value envelope versioning,
// and classified errors. It also hosts the legacy-key migration manager.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"printstack/internal/env"
	"printstack/internal/infra/kv/memory"
	"printstack/internal/kv"
)

// Logger is the minimal structured logger consumed by the storage layer.
// Args alternate keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

// Recovery backoff bounds. Attempts are capped and each delay doubles from
// the base.
const (
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
)

// Options configures a SafeStore. Zero values select the defaults noted on
// each field.
type Options struct {
	// Resolver supplies the environment namespace. Required.
	Resolver *env.Resolver
	// Native is the primary backend. May be nil when no native store is
	// available; the store then runs on fallback alone.
	Native kv.Backend
	// DisableFallback turns off the in-memory recovery store.
	DisableFallback bool
	// CacheTTL defaults to 5s, CacheCapacity to 100 entries.
	CacheTTL      time.Duration
	CacheCapacity int
	// MaxAttempts bounds fallback recovery retries (default 3).
	MaxAttempts int
	// BackoffBase is the first retry delay (default 1s, doubling).
	BackoffBase time.Duration
	Logger      Logger
	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// SafeStore is the durable, best-effort persistence surface the domain
// stores write through. All methods are safe for concurrent use.
type SafeStore struct {
	resolver    *env.Resolver
	native      kv.Backend
	fallback    *memory.Store
	useFallback bool
	cache       *ttlCache
	maxAttempts int
	backoffBase time.Duration
	log         Logger
	nowFn       func() time.Time
	sleepFn     func(ctx context.Context, d time.Duration) error
}

// New constructs a SafeStore from options.
func New(opts Options) *SafeStore {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	sleepFn := opts.Sleep
	if sleepFn == nil {
		sleepFn = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	var fallback *memory.Store
	if !opts.DisableFallback {
		fallback = memory.NewStore()
	}
	return &SafeStore{
		resolver:    opts.Resolver,
		native:      opts.Native,
		fallback:    fallback,
		useFallback: !opts.DisableFallback,
		cache:       newTTLCache(opts.CacheCapacity, opts.CacheTTL, nowFn),
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		log:         logger,
		nowFn:       nowFn,
		sleepFn:     sleepFn,
	}
}

// Resolver exposes the environment resolver backing this store.
func (s *SafeStore) Resolver() *env.Resolver { return s.resolver }

// Writable reports whether any backing store can accept writes. Domain
// stores degrade to read-only when it is false.
func (s *SafeStore) Writable() bool { return s.native != nil || s.useFallback }

// SetOptions tunes a single SetItem call.
type SetOptions struct {
	// SkipNamespace writes the key verbatim, without the environment prefix.
	SkipNamespace bool
}

// GetOptions tunes a single GetItem call.
type GetOptions struct {
	SkipNamespace bool
	// Required turns an absent key into a NotFound failure instead of a
	// default-valued success.
	Required bool
	// Default is returned (and may be cached) when the key is absent.
	Default json.RawMessage
	// BypassCache forces a backend read.
	BypassCache bool
}

// ClearOptions tunes a Clear call.
type ClearOptions struct {
	// BackupKeys are read before the clear and rewritten afterwards. A key
	// that cannot be backed up is logged and skipped, never aborting the
	// clear.
	BackupKeys []string
}

func (s *SafeStore) resolveKey(key string, skip bool) string {
	if skip || s.resolver == nil {
		return key
	}
	return s.resolver.NamespacedKey(key)
}

func (s *SafeStore) result(key string, start time.Time) OperationResult {
	now := s.nowFn()
	return OperationResult{Key: key, Elapsed: now.Sub(start), Timestamp: now}
}

// classify maps backend failures onto storage error kinds.
func classify(key string, err error) *Error {
	switch {
	case errors.Is(err, kv.ErrQuotaExceeded):
		return &Error{Kind: KindQuotaExceeded, Key: key, Err: err}
	case errors.Is(err, kv.ErrAccessDenied):
		return &Error{Kind: KindAccessDenied, Key: key, Err: err}
	case errors.Is(err, kv.ErrUnavailable):
		return &Error{Kind: KindStorageUnavailable, Key: key, Err: err}
	default:
		return &Error{Kind: KindStorageError, Key: key, Err: err}
	}
}

// SetItem serializes value inside a version envelope and writes it under
// the namespaced key. Native failures fail over to the in-memory store
// with bounded backoff when fallback is enabled.
func (s *SafeStore) SetItem(ctx context.Context, key string, value any, opts SetOptions) (OperationResult, error) {
	start := s.nowFn()
	resolved := s.resolveKey(key, opts.SkipNamespace)
	res := s.result(resolved, start)

	raw, err := wrapValue(value, start)
	if err != nil {
		return res, &Error{Kind: KindStorageError, Key: resolved, Err: err}
	}

	if s.native != nil {
		if err := s.native.Set(resolved, raw); err == nil {
			s.cache.invalidate(resolved)
			res = s.result(resolved, start)
			res.Success = true
			res.Exists = true
			res.Location = LocationNative
			return res, nil
		} else if recovered, rErr := s.recoverWrite(ctx, resolved, raw, err); recovered {
			res = s.result(resolved, start)
			res.Success = true
			res.Exists = true
			res.Location = LocationMemory
			res.IsRecovery = true
			return res, nil
		} else {
			res = s.result(resolved, start)
			return res, rErr
		}
	}

	if s.useFallback {
		if err := s.fallback.Set(resolved, raw); err != nil {
			return res, classify(resolved, err)
		}
		s.cache.invalidate(resolved)
		res = s.result(resolved, start)
		res.Success = true
		res.Exists = true
		res.Location = LocationMemory
		return res, nil
	}

	return res, &Error{Kind: KindStorageUnavailable, Key: resolved, Err: kv.ErrUnavailable}
}

// recoverWrite retries the write against the in-memory store with bounded
// exponential backoff. Returns (true, nil) on success; (false, classified
// native error) when recovery is disabled or exhausted.
func (s *SafeStore) recoverWrite(ctx context.Context, key, raw string, nativeErr error) (bool, error) {
	classified := classify(key, nativeErr)
	if !s.useFallback {
		return false, classified
	}
	s.log.Warn("native write failed, recovering to memory",
		"key", key, "kind", string(classified.Kind), "error", nativeErr)

	delay := s.backoffBase
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := s.fallback.Set(key, raw); err == nil {
			s.cache.invalidate(key)
			return true, nil
		} else {
			lastErr = err
		}
		if attempt == s.maxAttempts {
			break
		}
		if err := s.sleepFn(ctx, delay); err != nil {
			return false, classified
		}
		delay *= 2
	}
	s.log.Error("fallback recovery exhausted", "key", key, "error", lastErr)
	return false, classified
}

// GetItem reads the namespaced key, consulting the read-through cache
// first, then the native store, then the fallback. Misses return the
// caller's default unless Required is set. The envelope is stripped; for
// the well-known collection keys an unrecoverable failure degrades to the
// schema-default empty instance with IsFallback set.
func (s *SafeStore) GetItem(ctx context.Context, key string, opts GetOptions) (OperationResult, error) {
	_ = ctx
	start := s.nowFn()
	resolved := s.resolveKey(key, opts.SkipNamespace)
	res := s.result(resolved, start)

	if !opts.BypassCache {
		if entry, ok := s.cache.get(resolved); ok {
			if opts.Required && !entry.exists {
				return res, &Error{Kind: KindNotFound, Key: resolved}
			}
			res.Success = true
			res.Exists = entry.exists
			res.Raw = entry.data
			res.Location = LocationCache
			return res, nil
		}
	}

	raw, found, readErr := s.readThrough(resolved, &res)
	if readErr != nil {
		if fb := FallbackData(baseKeyOf(key)); fb != nil {
			s.log.Warn("read failed, serving schema default", "key", resolved, "error", readErr)
			res.Success = true
			res.Exists = false
			res.Raw = fb
			res.IsFallback = true
			res.Location = LocationNone
			return res, nil
		}
		return res, readErr
	}
	if !found {
		if opts.Required {
			return res, &Error{Kind: KindNotFound, Key: resolved}
		}
		res.Success = true
		res.Exists = false
		res.Raw = opts.Default
		res.Location = LocationNone
		s.cache.put(resolved, opts.Default, false, LocationNone)
		return res, nil
	}

	data, legacy, err := unwrapValue(raw)
	if err != nil {
		// Corrupt envelope: surface the raw string rather than failing.
		s.log.Warn("corrupt envelope, returning raw payload", "key", resolved, "error", err)
		quoted, qErr := json.Marshal(raw)
		if qErr != nil {
			return res, &Error{Kind: KindCorruptEnvelope, Key: resolved, Err: err}
		}
		data = quoted
	}
	if legacy {
		s.log.Debug("legacy payload without envelope", "key", resolved)
	}
	res.Success = true
	res.Exists = true
	res.Raw = data
	s.cache.put(resolved, data, true, res.Location)
	return res, nil
}

// readThrough consults native then fallback, recording the location on res.
func (s *SafeStore) readThrough(resolved string, res *OperationResult) (string, bool, error) {
	var nativeErr error
	if s.native != nil {
		value, ok, err := s.native.Get(resolved)
		if err == nil && ok {
			res.Location = LocationNative
			return value, true, nil
		}
		nativeErr = err
	}
	if s.useFallback {
		if value, ok, err := s.fallback.Get(resolved); err == nil && ok {
			res.Location = LocationMemory
			return value, true, nil
		}
	}
	if nativeErr != nil {
		return "", false, classify(resolved, nativeErr)
	}
	if s.native == nil && !s.useFallback {
		return "", false, &Error{Kind: KindStorageUnavailable, Key: resolved, Err: kv.ErrUnavailable}
	}
	return "", false, nil
}

// GetJSON reads the key and decodes its payload into dest. Absent keys
// leave dest untouched unless a default is supplied.
func (s *SafeStore) GetJSON(ctx context.Context, key string, dest any, opts GetOptions) (OperationResult, error) {
	res, err := s.GetItem(ctx, key, opts)
	if err != nil {
		return res, err
	}
	if len(res.Raw) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(res.Raw, dest); err != nil {
		return res, &Error{Kind: KindCorruptEnvelope, Key: res.Key, Err: err}
	}
	return res, nil
}

// RemoveItem removes the key from the native store and the fallback and
// invalidates its cache entry.
func (s *SafeStore) RemoveItem(ctx context.Context, key string, opts SetOptions) (OperationResult, error) {
	_ = ctx
	start := s.nowFn()
	resolved := s.resolveKey(key, opts.SkipNamespace)
	res := s.result(resolved, start)

	var firstErr error
	if s.native != nil {
		if err := s.native.Remove(resolved); err != nil {
			firstErr = classify(resolved, err)
		}
	}
	if s.useFallback {
		if err := s.fallback.Remove(resolved); err != nil && firstErr == nil {
			firstErr = classify(resolved, err)
		}
	}
	s.cache.invalidate(resolved)
	if firstErr != nil {
		return res, firstErr
	}
	res = s.result(resolved, start)
	res.Success = true
	res.Location = LocationNative
	if s.native == nil {
		res.Location = LocationMemory
	}
	return res, nil
}

// Clear wipes the native store, the fallback, and the cache. Keys named in
// BackupKeys are preserved across the clear; a key that fails to back up is
// logged and skipped.
func (s *SafeStore) Clear(ctx context.Context, opts ClearOptions) (OperationResult, error) {
	start := s.nowFn()
	res := s.result("", start)

	backups := make(map[string]string, len(opts.BackupKeys))
	for _, key := range opts.BackupKeys {
		resolved := s.resolveKey(key, false)
		raw, found, err := s.rawGet(resolved)
		if err != nil {
			s.log.Warn("backup read failed, key will not survive clear", "key", resolved, "error", err)
			continue
		}
		if found {
			backups[resolved] = raw
		}
	}

	if s.native != nil {
		if err := s.native.Clear(); err != nil {
			return res, classify("", err)
		}
	}
	if s.useFallback {
		if err := s.fallback.Clear(); err != nil {
			return res, classify("", err)
		}
	}
	s.cache.clear()

	for key, raw := range backups {
		if err := s.rawSet(key, raw); err != nil {
			s.log.Error("backup restore failed", "key", key, "error", err)
		}
	}
	_ = ctx
	res = s.result("", start)
	res.Success = true
	res.Location = LocationNative
	if s.native == nil {
		res.Location = LocationMemory
	}
	return res, nil
}

// rawGet reads a stored string without namespacing, caching, or envelope
// handling. Used by Clear backups and the migration manager.
func (s *SafeStore) rawGet(resolved string) (string, bool, error) {
	if s.native != nil {
		value, ok, err := s.native.Get(resolved)
		if err != nil {
			return "", false, classify(resolved, err)
		}
		if ok {
			return value, true, nil
		}
	}
	if s.useFallback {
		value, ok, err := s.fallback.Get(resolved)
		if err != nil {
			return "", false, classify(resolved, err)
		}
		if ok {
			return value, true, nil
		}
	}
	return "", false, nil
}

// rawSet writes a stored string verbatim, preferring the native store.
func (s *SafeStore) rawSet(resolved, raw string) error {
	if s.native != nil {
		if err := s.native.Set(resolved, raw); err == nil {
			s.cache.invalidate(resolved)
			return nil
		} else if !s.useFallback {
			return classify(resolved, err)
		}
	}
	if s.useFallback {
		if err := s.fallback.Set(resolved, raw); err != nil {
			return classify(resolved, err)
		}
		s.cache.invalidate(resolved)
		return nil
	}
	return &Error{Kind: KindStorageUnavailable, Key: resolved, Err: kv.ErrUnavailable}
}

// rawRemove removes a key verbatim from both stores.
func (s *SafeStore) rawRemove(resolved string) error {
	var firstErr error
	if s.native != nil {
		if err := s.native.Remove(resolved); err != nil {
			firstErr = classify(resolved, err)
		}
	}
	if s.useFallback {
		if err := s.fallback.Remove(resolved); err != nil && firstErr == nil {
			firstErr = classify(resolved, err)
		}
	}
	s.cache.invalidate(resolved)
	return firstErr
}

// StorageInfo reports availability and size diagnostics.
func (s *SafeStore) StorageInfo() StorageInfo {
	info := StorageInfo{
		NativeAvailable: s.native != nil,
		CacheEntries:    s.cache.len(),
		CacheTTL:        s.cache.ttl,
	}
	if s.native != nil {
		if keys, err := s.native.Keys(); err == nil {
			info.ItemCount = len(keys)
			for _, k := range keys {
				if value, ok, err := s.native.Get(k); err == nil && ok {
					info.TotalBytes += len(k) + len(value)
				}
			}
		} else {
			info.NativeAvailable = false
		}
	}
	if s.useFallback {
		info.FallbackItems = s.fallback.Len()
	}
	return info
}

// baseKeyOf strips any namespace or legacy prefix so fallback defaults can
// be looked up by base name.
func baseKeyOf(key string) string {
	for _, base := range []string{KeyFilaments, KeyModels, KeyCategories, KeyPrints, KeySettings, KeyStatistics} {
		if key == base || strings.HasSuffix(key, "_"+base) {
			return base
		}
	}
	return key
}
