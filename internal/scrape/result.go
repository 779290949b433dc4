// Package scrape orchestrates discovery, fetching, extraction, and
// persistence of player profiles with adaptive concurrency.
package scrape

import (
	"fmt"
	"time"
)

// SuccessThreshold is the fraction of dispatched profiles that must reach
// persistence for a run to count as successful.
const SuccessThreshold = 0.8

// Result tracks counts and errors from a scraping run.
type Result struct {
	ProfilesFound int
	Skipped       int // already persisted, filtered by the resume set
	Dispatched    int
	Succeeded     int
	Failed        int
	Errors        []string
	Duration      time.Duration
}

// AddError records an error message.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddErrorf records a formatted error message.
func (r *Result) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// SuccessRate returns the fraction of dispatched profiles that were
// persisted. A run with no dispatched work trivially succeeds.
func (r *Result) SuccessRate() float64 {
	if r.Dispatched == 0 {
		return 1.0
	}
	return float64(r.Succeeded) / float64(r.Dispatched)
}

// Success reports whether the run met the success threshold.
func (r *Result) Success() bool {
	return r.SuccessRate() >= SuccessThreshold
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"found=%d skipped=%d dispatched=%d succeeded=%d failed=%d rate=%.1f%% errors=%d",
		r.ProfilesFound, r.Skipped, r.Dispatched, r.Succeeded, r.Failed,
		r.SuccessRate()*100, len(r.Errors),
	)
}
