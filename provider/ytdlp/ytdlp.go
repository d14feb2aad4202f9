// Package ytdlp drives the external yt-dlp binary: title lookup, flat playlist enumeration and downloads.
package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/generic"
	"github.com/alanbriolat/channel-archiver/util"
)

const DefaultBinary = "yt-dlp"

// How long to wait for output pipes to close once the binary has been killed or has exited.
const waitDelay = 2 * time.Second

var ErrEmptyTitle = errors.New("empty title")

// Tool runs one invocation of the binary at a time; it holds no state between calls.
type Tool struct {
	Binary string
	// Value passed to -f when downloading.
	Format           string
	TitleTimeout     time.Duration
	EnumerateTimeout time.Duration
	log              *zap.SugaredLogger
}

func New(binary string, format string, titleTimeout time.Duration, enumerateTimeout time.Duration) *Tool {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Tool{
		Binary:           binary,
		Format:           format,
		TitleTimeout:     titleTimeout,
		EnumerateTimeout: enumerateTimeout,
		log:              zap.S().Named("ytdlp"),
	}
}

// Title asks the binary for the title of the video at url.
func (t *Tool) Title(ctx context.Context, url string) (string, error) {
	ctx, cancel := withOptionalTimeout(ctx, t.TitleTimeout)
	defer cancel()
	out, err := t.command(ctx, "--print", "title", url).Output()
	if err != nil {
		return "", t.wrapErr(ctx, "title lookup", err)
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		return "", ErrEmptyTitle
	}
	return title, nil
}

// Discover enumerates a playlist without resolving each entry, returning canonical watch URLs in playlist order.
// Any failure yields no URLs at all.
func (t *Tool) Discover(ctx context.Context, ref string) ([]string, error) {
	ctx, cancel := withOptionalTimeout(ctx, t.EnumerateTimeout)
	defer cancel()
	t.log.Debugw("enumerating playlist", "ref", ref)
	out, err := t.command(ctx, "--print", "id", "--flat-playlist", ref).Output()
	if err != nil {
		return nil, t.wrapErr(ctx, "playlist enumeration", err)
	}
	return ParseIDList(string(out)), nil
}

// ParseIDList turns newline-separated content IDs into deduplicated canonical URLs, skipping blank lines.
func ParseIDList(out string) []string {
	urls := generic.NewSet[string]()
	for _, line := range strings.Split(out, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			urls.Add(util.VideoURL(id))
		}
	}
	return urls.ToSlice()
}

// Fetch downloads url to outputPath, calling onLine for every line of combined stdout/stderr as it is produced.
// A non-zero exit is returned as an error wrapping *exec.ExitError.
func (t *Tool) Fetch(ctx context.Context, url string, outputPath string, onLine func(string)) error {
	args := []string{"-o", outputPath, "--progress", "--newline", url}
	if t.Format != "" {
		args = append([]string{"-f", t.Format}, args...)
	}
	cmd := t.command(ctx, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	t.log.Debugw("starting download", "args", cmd.Args)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %v: %w", t.Binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return t.wrapErr(ctx, "download", err)
	}
	if scanErr != nil {
		return fmt.Errorf("failed to read output: %w", scanErr)
	}
	return nil
}

// command prepares an invocation of the binary that is killed along with any processes it spawned when ctx is done.
func (t *Tool) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	return cmd
}

func (t *Tool) wrapErr(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%v interrupted: %w", what, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
			return fmt.Errorf("%v failed: %w: %v", what, err, stderr)
		}
	}
	return fmt.Errorf("%v failed: %w", what, err)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
