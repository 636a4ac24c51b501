package storage

import "encoding/json"

// Base key names (before namespacing) whose reads degrade to schema-default
// empty instances instead of propagating unrecoverable failures. Domain
// stores treat the fallback value as an empty database.
const (
	KeyFilaments  = "filaments"
	KeyModels     = "models"
	KeyCategories = "categories"
	KeyPrints     = "prints"
	KeySettings   = "settings"
	KeyStatistics = "statistics"
)

var fallbackDefaults = map[string]string{
	KeyFilaments:  `[]`,
	KeyModels:     `[]`,
	KeyCategories: `[]`,
	KeyPrints:     `[]`,
	KeySettings:   `{}`,
	KeyStatistics: `{}`,
}

// CanUseFallbackData reports whether the base key has a schema-default
// empty instance.
func CanUseFallbackData(baseKey string) bool {
	_, ok := fallbackDefaults[baseKey]
	return ok
}

// FallbackData returns the schema-default empty instance for a well-known
// base key, or nil when none exists.
func FallbackData(baseKey string) json.RawMessage {
	raw, ok := fallbackDefaults[baseKey]
	if !ok {
		return nil
	}
	return json.RawMessage(raw)
}
