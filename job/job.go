// Package job defines the tracked unit of work: one discovered video, its status state machine, and the Store that
// persists it.
package job

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alanbriolat/channel-archiver/generic"
	"github.com/alanbriolat/channel-archiver/util"
)

// MaxErrorDetailLength bounds the stored failure detail, in characters.
const MaxErrorDetailLength = 500

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvariant         = errors.New("job invariant violated")
)

type ID string

func NewID() ID {
	return ID(generic.Unwrap(uuid.NewRandom()).String())
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var Statuses = []Status{StatusPending, StatusCompleted, StatusFailed}

func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further automatic transition can happen from this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Job is one row of the job store. Optional text fields use "" for absent.
type Job struct {
	Seq            int64      `gorm:"column:seq;primaryKey;autoIncrement" json:"seq"`
	ID             ID         `gorm:"column:id" json:"id"`
	SourceURL      string     `gorm:"column:source_url" json:"source_url"`
	ContentID      string     `gorm:"column:content_id" json:"content_id,omitempty"`
	Title          string     `gorm:"column:title" json:"title,omitempty"`
	Scope          string     `gorm:"column:scope" json:"scope,omitempty"`
	Status         Status     `gorm:"column:status" json:"status"`
	OutputPath     string     `gorm:"column:output_path" json:"output_path,omitempty"`
	CustomFilename string     `gorm:"column:custom_filename" json:"custom_filename,omitempty"`
	DiscoveredAt   time.Time  `gorm:"column:discovered_at" json:"discovered_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	FailedAt       *time.Time `gorm:"column:failed_at" json:"failed_at,omitempty"`
	ErrorDetail    string     `gorm:"column:error_detail" json:"error_detail,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// New creates a pending job for a discovered URL, deriving its content ID.
func New(sourceURL string, scope string, now time.Time) Job {
	return Job{
		ID:           NewID(),
		SourceURL:    sourceURL,
		ContentID:    util.ExtractContentID(sourceURL).UnwrapOr(""),
		Scope:        scope,
		Status:       StatusPending,
		DiscoveredAt: now,
	}
}

func (j Job) String() string {
	return fmt.Sprintf("Job{ID:\"%s\", URL:\"%s\", Status:\"%s\"}", j.ID, j.SourceURL, j.Status)
}

// Complete returns the job transitioned to StatusCompleted.
func (j Job) Complete(outputPath string, title string, customFilename string, now time.Time) (Job, error) {
	if j.Status != StatusPending {
		return j, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusCompleted)
	}
	if outputPath == "" {
		return j, fmt.Errorf("%w: completed job requires an output path", ErrInvariant)
	}
	j.Status = StatusCompleted
	j.OutputPath = outputPath
	j.Title = title
	j.CustomFilename = customFilename
	j.CompletedAt = &now
	j.ErrorDetail = ""
	return j, nil
}

// Fail returns the job transitioned to StatusFailed, with detail truncated to MaxErrorDetailLength.
func (j Job) Fail(detail string, now time.Time) (Job, error) {
	if j.Status != StatusPending {
		return j, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusFailed)
	}
	if detail == "" {
		detail = "unknown error"
	}
	j.Status = StatusFailed
	j.ErrorDetail = TruncateDetail(detail)
	j.FailedAt = &now
	j.OutputPath = ""
	return j, nil
}

// Validate checks the relationship between Status and the outcome fields.
func (j Job) Validate() error {
	hasOutput := j.OutputPath != ""
	hasError := j.ErrorDetail != ""
	switch j.Status {
	case StatusPending:
		if hasOutput || hasError || j.CompletedAt != nil || j.FailedAt != nil {
			return fmt.Errorf("%w: pending job has an outcome", ErrInvariant)
		}
	case StatusCompleted:
		if !hasOutput || hasError || j.CompletedAt == nil {
			return fmt.Errorf("%w: completed job needs output path and completion time only", ErrInvariant)
		}
	case StatusFailed:
		if hasOutput || !hasError || j.FailedAt == nil {
			return fmt.Errorf("%w: failed job needs error detail and failure time only", ErrInvariant)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, j.Status)
	}
	if utf8.RuneCountInString(j.ErrorDetail) > MaxErrorDetailLength {
		return fmt.Errorf("%w: error detail too long", ErrInvariant)
	}
	return nil
}

// TruncateDetail limits s to MaxErrorDetailLength characters.
func TruncateDetail(s string) string {
	return TruncateRunes(s, MaxErrorDetailLength)
}

// TruncateRunes limits s to n characters without splitting a multi-byte character.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
