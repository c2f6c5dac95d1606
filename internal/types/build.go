package types

import "time"

// ValidationResult holds the outcome of validating an assembled answer
// file. Errors gate validity; warnings and suggestions never do.
type ValidationResult struct {
	// Valid is true iff Errors is empty
	Valid bool `json:"valid"`
	// Errors are hard structural problems, in check order
	Errors []string `json:"errors"`
	// Warnings are non-fatal findings, in check order
	Warnings []string `json:"warnings"`
	// Suggestions are optional improvements, in check order
	Suggestions []string `json:"suggestions"`
}

// NewValidationResult returns an empty, valid result with non-nil slices so
// JSON output renders [] rather than null.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:       true,
		Errors:      make([]string, 0),
		Warnings:    make([]string, 0),
		Suggestions: make([]string, 0),
	}
}

// AddError records a hard failure and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// AddWarning records a non-fatal finding.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddSuggestion records an optional improvement.
func (r *ValidationResult) AddSuggestion(msg string) {
	r.Suggestions = append(r.Suggestions, msg)
}

// BuildStats captures timing and size measurements for one build
// invocation. All fields are deterministic for identical inputs except the
// timestamps and duration.
type BuildStats struct {
	// StartTime is recorded before assembly begins
	StartTime time.Time `json:"start_time"`
	// EndTime is recorded immediately after validation completes, or at the
	// point of failure
	EndTime time.Time `json:"end_time"`
	// Duration is EndTime minus StartTime, never negative
	Duration time.Duration `json:"duration"`
	// PassesProcessed counts fragments that existed and were read
	// successfully; missing fragments do not count
	PassesProcessed int `json:"passes_processed"`
	// FileSize is the byte length of the written output
	FileSize int64 `json:"file_size"`
	// HeapAllocStart and HeapAllocEnd are heap snapshots taken around the
	// pipeline via runtime.ReadMemStats
	HeapAllocStart uint64 `json:"heap_alloc_start,omitempty"`
	HeapAllocEnd   uint64 `json:"heap_alloc_end,omitempty"`
}

// BuildResult is the structured outcome returned to callers and emitted by
// the build command's JSON output.
type BuildResult struct {
	// Success is false when assembly aborted before validation
	Success bool `json:"success"`
	// OutputPath is where the assembled document was written
	OutputPath string `json:"output_path,omitempty"`
	// Valid mirrors the validation outcome; meaningless unless Success
	Valid bool `json:"is_valid,omitempty"`
	// Warnings merges assembler diagnostics and validation warnings, in
	// that order
	Warnings []string `json:"warnings,omitempty"`
	// Error is the human-readable failure message when Success is false
	Error string `json:"error,omitempty"`
	// Validation is the full validation outcome when one was produced
	Validation *ValidationResult `json:"validation,omitempty"`
	// Stats holds whatever measurements were gathered before completion or
	// failure
	Stats *BuildStats `json:"build_stats,omitempty"`
}
