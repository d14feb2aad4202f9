// Package download executes a single job: look up its title, choose a filename, run the external downloader and
// record the outcome.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver"
	"github.com/alanbriolat/channel-archiver/job"
)

const TimeoutDetail = "Download timeout"

var boundary = strings.Repeat("=", 80)

// A TitleResolver looks up the human-readable title of a video. It applies its own timeout.
type TitleResolver interface {
	Title(ctx context.Context, url string) (string, error)
}

// A Fetcher downloads url to outputPath, passing each line of output to onLine as it arrives. An unsuccessful exit of
// the downloader is reported as an error with an ExitCode() int method.
type Fetcher interface {
	Fetch(ctx context.Context, url string, outputPath string, onLine func(string)) error
}

type Config struct {
	OutputDir         string
	Extension         string
	MaxFilenameLength int
	// Number of trailing output lines kept as the failure detail.
	TailLines int
	// Zero means no limit.
	Timeout time.Duration
}

func ConfigFrom(cfg channel_archiver.Config) Config {
	return Config{
		OutputDir:         cfg.OutputDir,
		Extension:         cfg.Extension,
		MaxFilenameLength: cfg.MaxFilenameLength,
		TailLines:         cfg.ErrorTailLines,
		Timeout:           cfg.DownloadTimeout,
	}
}

// Result describes the outcome of one Execute call.
type Result struct {
	OK         bool
	OutputPath string
	Title      string
	// Failure detail, as recorded in the store.
	Error string
}

type Orchestrator struct {
	store   job.Store
	titles  TitleResolver
	fetcher Fetcher
	sink    Sink
	console io.Writer
	config  Config
	log     *zap.SugaredLogger
}

func New(store job.Store, titles TitleResolver, fetcher Fetcher, sink Sink, console io.Writer, config Config) *Orchestrator {
	return &Orchestrator{
		store:   store,
		titles:  titles,
		fetcher: fetcher,
		sink:    sink,
		console: console,
		config:  config,
		log:     zap.S().Named("download"),
	}
}

// Execute downloads one job and records the outcome in the store. Download failures are recorded and reported in the
// Result; the returned error is only non-nil if the store could not be updated or ctx was cancelled, in which case
// the job is left as it was.
func (o *Orchestrator) Execute(ctx context.Context, j job.Job, naming channel_archiver.Naming) (Result, error) {
	fmt.Fprintln(o.console, "[*] Fetching video information...")
	title, err := o.titles.Title(ctx, j.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		title = channel_archiver.FallbackTitle(j.ContentID, j.SourceURL)
		o.log.Warnw("failed to get title, using fallback", "url", j.SourceURL, "title", title, "error", err)
	}

	name := channel_archiver.TargetName(naming, title, j.ContentID, j.SourceURL, o.config.MaxFilenameLength)
	outputPath := channel_archiver.TargetPath(o.config.OutputDir, name, o.config.Extension)

	fmt.Fprintf(o.console, "\n%s\n[*] Downloading: %s\n[*] Output: %s\n%s\n\n", boundary, title, outputPath, boundary)

	fetchErr := o.fetch(ctx, j.SourceURL, outputPath, title)
	if ctx.Err() != nil {
		o.log.Warnw("download interrupted, leaving job pending", "url", j.SourceURL)
		return Result{}, ctx.Err()
	}

	if fetchErr == nil {
		result := Result{OK: true, OutputPath: outputPath, Title: title}
		updated, err := o.store.MarkCompleted(ctx, j.SourceURL, outputPath, title, naming.CustomName)
		if err != nil {
			return result, fmt.Errorf("failed to record completion of %v: %w", j.SourceURL, err)
		}
		o.warnIfNotUpdated(updated, j)
		fmt.Fprintf(o.console, "\n%s\n[+] Successfully downloaded: %s\n%s\n\n", boundary, outputPath, boundary)
		return result, nil
	}

	result := Result{Title: title, Error: job.TruncateDetail(fetchErr.Error())}
	updated, err := o.store.MarkFailed(ctx, j.SourceURL, result.Error)
	if err != nil {
		return result, fmt.Errorf("failed to record failure of %v: %w", j.SourceURL, err)
	}
	o.warnIfNotUpdated(updated, j)
	fmt.Fprintf(o.console, "\n%s\n[-] Download failed\n[-] Error: %s\n%s\n\n", boundary, result.Error, boundary)
	return result, nil
}

// fetch runs the downloader, converting any failure into an error whose text is the failure detail to record.
func (o *Orchestrator) fetch(ctx context.Context, url string, outputPath string, title string) error {
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	tail := newTailBuffer(o.config.TailLines)
	o.sink.Begin(title)
	err := o.fetcher.Fetch(ctx, url, outputPath, func(line string) {
		o.sink.Line(line)
		tail.Push(line)
	})
	o.sink.End(err == nil)
	if err == nil {
		return nil
	}
	o.log.Debugw("download failed", "url", url, "error", err)

	var exitErr interface{ ExitCode() int }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New(TimeoutDetail)
	case errors.As(err, &exitErr):
		if lines := tail.Lines(); len(lines) > 0 {
			return errors.New(strings.Join(lines, "\n"))
		}
		return fmt.Errorf("downloader exited with status %d", exitErr.ExitCode())
	default:
		return err
	}
}

func (o *Orchestrator) warnIfNotUpdated(updated bool, j job.Job) {
	if !updated {
		o.log.Warnw("job was not pending, outcome not recorded", "url", j.SourceURL, "status", j.Status)
	}
}
