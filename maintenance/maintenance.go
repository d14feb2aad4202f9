// Package maintenance lists and bulk-deletes tracked jobs.
package maintenance

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/job"
)

const (
	maxTitleWidth = 50
	maxURLWidth   = 40
)

// A Confirmer asks a yes/no question.
type Confirmer func(question string) (bool, error)

type Operations struct {
	store   job.Store
	console io.Writer
	confirm Confirmer
	log     *zap.SugaredLogger
}

func New(store job.Store, console io.Writer, confirm Confirmer) *Operations {
	return &Operations{
		store:   store,
		console: console,
		confirm: confirm,
		log:     zap.S().Named("maintenance"),
	}
}

// List prints matching jobs as a table, in insertion order.
func (o *Operations) List(ctx context.Context, filter job.Filter) error {
	jobs, err := o.store.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		if filter.Status != "" {
			fmt.Fprintf(o.console, "[!] No videos found with status '%s'\n", filter.Status)
		} else {
			fmt.Fprintln(o.console, "[!] No videos found")
		}
		return nil
	}

	table := tablewriter.NewWriter(o.console)
	table.SetHeader([]string{"ID", "Status", "Title", "URL"})
	table.SetAutoWrapText(false)
	for _, j := range jobs {
		title := j.Title
		if title == "" {
			title = "N/A"
		}
		table.Append([]string{
			strconv.FormatInt(j.Seq, 10),
			j.Status.String(),
			Ellipsize(title, maxTitleWidth),
			Ellipsize(j.SourceURL, maxURLWidth),
		})
	}
	table.Render()
	return nil
}

// Delete removes every matching job after confirmation, returning how many were removed.
func (o *Operations) Delete(ctx context.Context, filter job.Filter, skipConfirmation bool) (int64, error) {
	count, err := o.store.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	if count == 0 {
		fmt.Fprintf(o.console, "[!] No videos found with status '%s'\n", filter.Label())
		return 0, nil
	}

	if !skipConfirmation {
		fmt.Fprintf(o.console, "[*] You are about to DELETE %d videos with status '%s'.\n", count, filter.Label())
		ok, err := o.confirm("Are you sure? This cannot be undone. [y/N]: ")
		if err != nil {
			return 0, err
		}
		if !ok {
			fmt.Fprintln(o.console, "[-] Deletion aborted.")
			return 0, nil
		}
	}

	deleted, err := o.store.Delete(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", err)
	}
	if deleted != count {
		o.log.Warnw("deleted count differs from confirmed count", "confirmed", count, "deleted", deleted)
	}
	fmt.Fprintf(o.console, "[+] Successfully deleted %d videos.\n", deleted)
	return deleted, nil
}

// Ellipsize shortens s to fit width characters, replacing the end with "..." when it doesn't.
func Ellipsize(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
