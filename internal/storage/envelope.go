package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// EnvelopeVersion is the version written into new envelopes. Readers accept
// any version less than or equal to this.
const EnvelopeVersion = 1

// Envelope is the on-disk encoding wrapped around every persisted value.
type Envelope struct {
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// wrapValue serializes value inside a current-version envelope.
func wrapValue(value any, now time.Time) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	env := Envelope{Version: EnvelopeVersion, Timestamp: now, Data: data}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(raw), nil
}

// unwrapValue strips the envelope from a stored string. Legacy payloads that
// were never enveloped come back as-is with legacy=true: bare JSON passes
// through unchanged and bare non-JSON strings are re-encoded as JSON strings
// so callers always receive valid JSON.
func unwrapValue(raw string) (data json.RawMessage, legacy bool, err error) {
	var env Envelope
	if jsonErr := json.Unmarshal([]byte(raw), &env); jsonErr == nil && env.Data != nil {
		if env.Version > EnvelopeVersion {
			return nil, false, fmt.Errorf("envelope version %d newer than supported %d", env.Version, EnvelopeVersion)
		}
		return env.Data, false, nil
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), true, nil
	}
	quoted, qErr := json.Marshal(raw)
	if qErr != nil {
		return nil, false, fmt.Errorf("requote legacy payload: %w", qErr)
	}
	return quoted, true, nil
}
