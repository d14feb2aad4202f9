package job

import (
	"strings"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"
)

// LogTransition writes the field-level changes between two versions of a job at debug level.
func LogTransition(log *zap.SugaredLogger, before, after *Job) {
	changes, err := diff.Diff(before, after)
	if err != nil {
		log.Errorf("failed to diff old and new job state: %v", err)
		return
	}
	for _, change := range changes {
		log.Debugw("job changed",
			"job_id", after.ID,
			"field", strings.Join(change.Path, "."),
			"from", change.From,
			"to", change.To,
		)
	}
}
