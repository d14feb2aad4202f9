package ytdlp

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes a shell script standing in for the real binary.
func fakeTool(t *testing.T, body string) *Tool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return New(path, "mp4", time.Second, time.Second)
}

func TestTool_Title(t *testing.T) {
	assert := assert_.New(t)
	tool := fakeTool(t, `[ "$1 $2" = "--print title" ] || exit 3
echo "  A Video Title  "`)

	title, err := tool.Title(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA")
	assert.NoError(err)
	assert.Equal("A Video Title", title)
}

func TestTool_Title_Failure(t *testing.T) {
	assert := assert_.New(t)

	tool := fakeTool(t, `echo "ERROR: unavailable" >&2; exit 1`)
	_, err := tool.Title(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA")
	var exitErr *exec.ExitError
	assert.ErrorAs(err, &exitErr)
	assert.ErrorContains(err, "unavailable")

	tool = fakeTool(t, `exit 0`)
	_, err = tool.Title(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA")
	assert.ErrorIs(err, ErrEmptyTitle)
}

func TestTool_Title_Timeout(t *testing.T) {
	tool := fakeTool(t, `exec sleep 5`)
	tool.TitleTimeout = 100 * time.Millisecond

	start := time.Now()
	_, err := tool.Title(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA")
	assert_.ErrorIs(t, err, context.DeadlineExceeded)
	assert_.Less(t, time.Since(start), 4*time.Second)
}

func TestTool_Title_TimeoutWithChildProcess(t *testing.T) {
	tool := fakeTool(t, `sleep 30 &
sleep 30`)
	tool.TitleTimeout = 300 * time.Millisecond

	start := time.Now()
	_, err := tool.Title(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA")
	assert_.ErrorIs(t, err, context.DeadlineExceeded)
	assert_.Less(t, time.Since(start), 5*time.Second)
}

func TestTool_Discover(t *testing.T) {
	assert := assert_.New(t)
	tool := fakeTool(t, `[ "$1 $2 $3" = "--print id --flat-playlist" ] || exit 3
printf 'AAAAAAAAAAA\n\nBBBBBBBBBBB\nAAAAAAAAAAA\n'`)

	urls, err := tool.Discover(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	assert.NoError(err)
	assert.Equal([]string{
		"https://www.youtube.com/watch?v=AAAAAAAAAAA",
		"https://www.youtube.com/watch?v=BBBBBBBBBBB",
	}, urls)
}

func TestTool_Discover_Failure(t *testing.T) {
	assert := assert_.New(t)

	tool := fakeTool(t, `echo AAAAAAAAAAA; exit 1`)
	urls, err := tool.Discover(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	assert.Error(err)
	assert.Empty(urls)

	tool = New(filepath.Join(t.TempDir(), "missing"), "mp4", time.Second, time.Second)
	urls, err = tool.Discover(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	assert.Error(err)
	assert.Empty(urls)
}

func TestTool_Discover_Timeout(t *testing.T) {
	tool := fakeTool(t, `exec sleep 5`)
	tool.EnumerateTimeout = 100 * time.Millisecond

	urls, err := tool.Discover(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	assert_.ErrorIs(t, err, context.DeadlineExceeded)
	assert_.Empty(t, urls)
}

func TestParseIDList(t *testing.T) {
	assert := assert_.New(t)
	assert.Empty(ParseIDList(""))
	assert.Equal([]string{"https://www.youtube.com/watch?v=AAAAAAAAAAA"}, ParseIDList("\n AAAAAAAAAAA \r\n\n"))
}

func TestTool_Fetch(t *testing.T) {
	assert := assert_.New(t)
	tool := fakeTool(t, `[ "$1 $2 $3" = "-f mp4 -o" ] || exit 3
[ "$5 $6" = "--progress --newline" ] || exit 4
echo "[download] Destination: $4"
echo "warning on stderr" >&2
echo "[download] 100.0% of 1.00MiB"`)

	var lines []string
	err := tool.Fetch(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", "out/file.mp4", func(line string) {
		lines = append(lines, line)
	})
	assert.NoError(err)
	assert.Equal([]string{
		"[download] Destination: out/file.mp4",
		"warning on stderr",
		"[download] 100.0% of 1.00MiB",
	}, lines)
}

func TestTool_Fetch_NonZeroExit(t *testing.T) {
	assert := assert_.New(t)
	tool := fakeTool(t, `i=1
while [ $i -le 15 ]; do echo "line $i"; i=$((i+1)); done
exit 1`)

	var lines []string
	err := tool.Fetch(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", "file.mp4", func(line string) {
		lines = append(lines, line)
	})
	assert.Len(lines, 15)
	var exitErr *exec.ExitError
	if assert.True(errors.As(err, &exitErr)) {
		assert.Equal(1, exitErr.ExitCode())
	}
}

func TestTool_Fetch_Cancelled(t *testing.T) {
	tool := fakeTool(t, `echo started; exec sleep 5`)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := tool.Fetch(ctx, "https://www.youtube.com/watch?v=AAAAAAAAAAA", "file.mp4", nil)
	assert_.ErrorIs(t, err, context.DeadlineExceeded)
}

// A background child inherits the output pipe, so the download must not wait for it to exit.
func TestTool_Fetch_TimeoutWithChildProcess(t *testing.T) {
	assert := assert_.New(t)
	tool := fakeTool(t, `echo start
sleep 30 &
sleep 30`)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var lines []string
	start := time.Now()
	err := tool.Fetch(ctx, "https://www.youtube.com/watch?v=AAAAAAAAAAA", "file.mp4", func(line string) {
		lines = append(lines, line)
	})
	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.Less(time.Since(start), 5*time.Second)
	assert.Equal([]string{"start"}, lines)
}

func TestTool_Fetch_MissingBinary(t *testing.T) {
	tool := New(filepath.Join(t.TempDir(), "missing"), "mp4", time.Second, time.Second)
	err := tool.Fetch(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", "file.mp4", nil)
	assert_.Error(t, err)
	var exitErr *exec.ExitError
	assert_.False(t, errors.As(err, &exitErr))
}
