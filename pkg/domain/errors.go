package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports that a candidate record failed its entity
// validator. Messages are human-readable and suitable for form display.
type ValidationError struct {
	Entity   EntityType
	Messages []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Entity, strings.Join(e.Messages, "; "))
}

// ReferentialError reports a mutation that would violate a cross-entity
// invariant, such as deleting a model still referenced by prints.
type ReferentialError struct {
	Entity  EntityType
	ID      string
	Message string
}

func (e ReferentialError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Message)
}

// ErrNotFound is returned when reference resolution fails.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
