package domain

import "fmt"

// ValidationError reports malformed input to an intent. The item is untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NoOpError is returned when a revision would not change anything.
type NoOpError struct {
	ItemID string
}

func (e *NoOpError) Error() string {
	if e.ItemID == "" {
		return "revision has no changes"
	}
	return fmt.Sprintf("revision of item %s has no changes", e.ItemID)
}
