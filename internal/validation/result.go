// Package validation carries the warning/error accumulation type shared by
// the grouping, rule and ledger components.
package validation

import "encoding/json"

// Message is a single validation outcome with an optional correlation key
// (typically an invoice number or rule description) identifying the item
// that produced it.
type Message struct {
	Text string `json:"text"`
	Key  string `json:"key,omitempty"`
}

// Result accumulates errors and warnings for one validated unit of work.
// Warnings never affect validity. Value optionally carries back an opaque
// payload such as a generated movement id.
type Result struct {
	errors   []Message
	warnings []Message

	Value any `json:"value,omitempty"`
}

// NewResult returns an empty, valid result.
func NewResult() *Result {
	return &Result{}
}

// AddError appends an error, making the result invalid.
func (r *Result) AddError(text string) {
	r.errors = append(r.errors, Message{Text: text})
}

// AddErrorKeyed appends an error tagged with a correlation key.
func (r *Result) AddErrorKeyed(key, text string) {
	r.errors = append(r.errors, Message{Text: text, Key: key})
}

// AddWarning appends a warning. Warnings are surfaced to operators but do
// not invalidate the result.
func (r *Result) AddWarning(text string) {
	r.warnings = append(r.warnings, Message{Text: text})
}

// AddWarningKeyed appends a warning tagged with a correlation key.
func (r *Result) AddWarningKeyed(key, text string) {
	r.warnings = append(r.warnings, Message{Text: text, Key: key})
}

// Merge appends the other result's errors and warnings onto r. The Value
// payload is not merged.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.errors = append(r.errors, other.errors...)
	r.warnings = append(r.warnings, other.warnings...)
}

// MarshalJSON emits the wire shape used by the API and the CLI.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Valid    bool      `json:"valid"`
		Errors   []Message `json:"errors,omitempty"`
		Warnings []Message `json:"warnings,omitempty"`
		Value    any       `json:"value,omitempty"`
	}{
		Valid:    r.IsValid(),
		Errors:   r.errors,
		Warnings: r.warnings,
		Value:    r.Value,
	})
}

// IsValid reports whether the result carries no errors.
func (r *Result) IsValid() bool {
	return len(r.errors) == 0
}

// Errors returns the accumulated errors in insertion order.
func (r *Result) Errors() []Message {
	return r.errors
}

// Warnings returns the accumulated warnings in insertion order.
func (r *Result) Warnings() []Message {
	return r.warnings
}
