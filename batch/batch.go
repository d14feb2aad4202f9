// Package batch runs every pending job in a scope, one after another.
package batch

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver"
	"github.com/alanbriolat/channel-archiver/download"
	"github.com/alanbriolat/channel-archiver/job"
)

// SingleVideoScope is the scope recorded for a video that was queued on its own rather than discovered from a
// collection.
const SingleVideoScope = "Single Video"

// A Confirmer asks a yes/no question.
type Confirmer func(question string) (bool, error)

// A Decider chooses how to name one job's file, starting from defaults. It is called with the same defaults for every
// job, so one job's choice never affects the next.
type Decider func(j job.Job, defaults channel_archiver.Naming) (channel_archiver.Naming, error)

type Executor interface {
	Execute(ctx context.Context, j job.Job, naming channel_archiver.Naming) (download.Result, error)
}

type Options struct {
	// Only run jobs discovered from this collection; empty means every pending job.
	Scope            string
	UseTitle         bool
	Interactive      bool
	SkipConfirmation bool
}

type Summary struct {
	Total     int
	Completed int
	Failed    int
	// The operator declined to start.
	Aborted bool
}

type Runner struct {
	store   job.Store
	exec    Executor
	console io.Writer
	confirm Confirmer
	decide  Decider
	log     *zap.SugaredLogger
}

func NewRunner(store job.Store, exec Executor, console io.Writer, confirm Confirmer, decide Decider) *Runner {
	return &Runner{
		store:   store,
		exec:    exec,
		console: console,
		confirm: confirm,
		decide:  decide,
		log:     zap.S().Named("batch"),
	}
}

// Run downloads each pending job in insertion order. A failed download is recorded and the batch moves on; only store
// failures, prompt failures and cancellation stop it early.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	jobs, err := r.store.List(ctx, job.Filter{Status: job.StatusPending, Scope: opts.Scope})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	summary := Summary{Total: len(jobs)}
	if len(jobs) == 0 {
		fmt.Fprintln(r.console, "[!] No pending videos to download")
		return summary, nil
	}
	fmt.Fprintf(r.console, "[*] Found %d pending videos\n", len(jobs))

	if !opts.SkipConfirmation {
		fmt.Fprintf(r.console, "[*] You are about to download %d videos.\n", len(jobs))
		ok, err := r.confirm("Do you want to proceed? [y/N]: ")
		if err != nil {
			return summary, err
		}
		if !ok {
			fmt.Fprintln(r.console, "[-] Download aborted.")
			summary.Aborted = true
			return summary, nil
		}
	}

	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		fmt.Fprintf(r.console, "\n[%d/%d] Processing: %s\n", i+1, len(jobs), j.SourceURL)

		naming := channel_archiver.Naming{UseTitle: opts.UseTitle}
		if opts.Interactive && r.decide != nil {
			if naming, err = r.decide(j, naming); err != nil {
				return summary, err
			}
		}

		result, err := r.exec.Execute(ctx, j, naming)
		if err != nil {
			return summary, err
		}
		if result.OK {
			summary.Completed++
		} else {
			summary.Failed++
		}
	}

	fmt.Fprintf(r.console, "[*] Finished: %d completed, %d failed\n", summary.Completed, summary.Failed)
	r.log.Infow("batch finished", "scope", opts.Scope, "total", summary.Total, "completed", summary.Completed, "failed", summary.Failed)
	return summary, nil
}

// Enqueue records each discovered URL as a pending job under scope, skipping URLs that are already known. Returns
// the number of new jobs.
func Enqueue(ctx context.Context, store job.Store, urls []string, scope string) (int, error) {
	added := 0
	for _, url := range urls {
		inserted, err := store.InsertIfAbsent(ctx, url, scope)
		if err != nil {
			return added, fmt.Errorf("failed to add %v: %w", url, err)
		}
		if inserted {
			added++
		}
	}
	return added, nil
}
