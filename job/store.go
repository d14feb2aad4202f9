package job

import (
	"context"
	"fmt"
)

// Filter selects jobs by status and/or scope; the zero value matches every job.
type Filter struct {
	Status Status
	Scope  string
}

// FilterAll is the value accepted by ParseFilter to mean "no status filter".
const FilterAll = "all"

// ParseFilter converts a status name (or FilterAll) into a Filter.
func ParseFilter(s string) (Filter, error) {
	if s == FilterAll || s == "" {
		return Filter{}, nil
	}
	status, err := ParseStatus(s)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Status: status}, nil
}

// Matches applies the filter to a single job, for stores that filter in memory.
func (f Filter) Matches(j *Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Scope != "" && j.Scope != f.Scope {
		return false
	}
	return true
}

// Label describes the status part of the filter for messages, e.g. "all" or "failed".
func (f Filter) Label() string {
	if f.Status == "" {
		return FilterAll
	}
	return f.Status.String()
}

func (f Filter) String() string {
	return fmt.Sprintf("Filter{Status:%q, Scope:%q}", f.Status, f.Scope)
}

// Store persists jobs. Any error returned by a Store means the store itself is unusable, and callers should treat it
// as fatal; expected conditions (duplicates, no matching row) are reported through the boolean results instead.
type Store interface {
	// InsertIfAbsent creates a pending job for sourceURL, returning false if a job with that URL already exists.
	InsertIfAbsent(ctx context.Context, sourceURL string, scope string) (bool, error)
	// Get returns (nil, nil) if no job has that URL.
	Get(ctx context.Context, sourceURL string) (*Job, error)
	// List returns matching jobs in insertion order.
	List(ctx context.Context, filter Filter) ([]Job, error)
	// MarkCompleted transitions the pending job with that URL to StatusCompleted. Returns false (and changes nothing)
	// if there is no such pending job.
	MarkCompleted(ctx context.Context, sourceURL string, outputPath string, title string, customFilename string) (bool, error)
	// MarkFailed transitions the pending job with that URL to StatusFailed. Returns false (and changes nothing) if
	// there is no such pending job.
	MarkFailed(ctx context.Context, sourceURL string, detail string) (bool, error)
	// Count returns the number of matching jobs.
	Count(ctx context.Context, filter Filter) (int64, error)
	// Delete removes every matching job in a single operation, returning how many were removed.
	Delete(ctx context.Context, filter Filter) (int64, error)
	Close() error
}
