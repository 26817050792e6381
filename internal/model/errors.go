package model

import "fmt"

// ValidationError reports a raw deal payload the normalizer had to reject.
// The deal is skipped and logged; the run continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deal payload: %s: %s", e.Field, e.Reason)
}

// GenerationError reports a failed or unparsable explanation call. The deal
// keeps its score and tier and appears in the report without an explanation.
type GenerationError struct {
	DealID string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("explanation generation failed for deal %s: %v", e.DealID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AggregationError reports a broken join contract (duplicate or unmatched
// deal identifiers). The offending record is logged and excluded.
type AggregationError struct {
	DealID string
	Reason string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation contract violation for deal %s: %s", e.DealID, e.Reason)
}
