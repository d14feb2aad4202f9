package maintenance

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/internal/boltdb"
	"github.com/alanbriolat/channel-archiver/job"
)

func videoURL(n int) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%011d", n)
}

// newStore returns a store holding jobs 1-2 completed, 3 failed, 4-5 pending.
func newStore(t *testing.T) job.Store {
	ctx := context.Background()
	store, err := boltdb.New(filepath.Join(t.TempDir(), "jobs.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	for n := 1; n <= 5; n++ {
		_, err := store.InsertIfAbsent(ctx, videoURL(n), "")
		require.NoError(t, err)
	}
	_, err = store.MarkCompleted(ctx, videoURL(1), "downloads/a.mp4", "Short title", "")
	require.NoError(t, err)
	_, err = store.MarkCompleted(ctx, videoURL(2), "downloads/b.mp4", strings.Repeat("Long title ", 10), "")
	require.NoError(t, err)
	_, err = store.MarkFailed(ctx, videoURL(3), "exit status 1")
	require.NoError(t, err)
	return store
}

func confirmWith(answer bool, asked *[]string) Confirmer {
	return func(question string) (bool, error) {
		*asked = append(*asked, question)
		return answer, nil
	}
}

func TestEllipsize(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("short", Ellipsize("short", 50))
	assert.Equal(strings.Repeat("a", 50), Ellipsize(strings.Repeat("a", 50), 50))
	assert.Equal(strings.Repeat("a", 47)+"...", Ellipsize(strings.Repeat("a", 51), 50))
	assert.Equal("https://www.youtube.com/watch?v=00000...", Ellipsize(videoURL(1), 40))
	assert.Equal(strings.Repeat("é", 37)+"...", Ellipsize(strings.Repeat("é", 41), 40))
}

func TestList(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer
	ops := New(newStore(t), &out, nil)

	require.NoError(t, ops.List(context.Background(), job.Filter{}))
	text := out.String()
	assert.Contains(text, "STATUS")
	assert.Contains(text, "Short title")
	assert.Contains(text, Ellipsize(strings.Repeat("Long title ", 10), 50))
	assert.NotContains(text, strings.Repeat("Long title ", 10))
	assert.Contains(text, "N/A")
	assert.Contains(text, "https://www.youtube.com/watch?v=00000...")
	assert.Equal(5, strings.Count(text, "https://"))
	// Insertion order
	assert.Less(strings.Index(text, "Short title"), strings.Index(text, "Long title"))
}

func TestList_Filtered(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer
	ops := New(newStore(t), &out, nil)

	require.NoError(t, ops.List(context.Background(), job.Filter{Status: job.StatusPending}))
	assert.Equal(2, strings.Count(out.String(), "https://"))
	assert.NotContains(out.String(), "completed")
}

func TestList_Empty(t *testing.T) {
	assert := assert_.New(t)
	store, err := boltdb.New(filepath.Join(t.TempDir(), "jobs.db"), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	var out bytes.Buffer
	ops := New(store, &out, nil)

	require.NoError(t, ops.List(context.Background(), job.Filter{}))
	assert.Equal("[!] No videos found\n", out.String())

	out.Reset()
	require.NoError(t, ops.List(context.Background(), job.Filter{Status: job.StatusFailed}))
	assert.Equal("[!] No videos found with status 'failed'\n", out.String())
}

func TestDelete(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	store := newStore(t)
	var out bytes.Buffer
	var asked []string
	ops := New(store, &out, confirmWith(true, &asked))

	deleted, err := ops.Delete(ctx, job.Filter{Status: job.StatusCompleted}, false)
	assert.NoError(err)
	assert.EqualValues(2, deleted)
	assert.Equal([]string{"Are you sure? This cannot be undone. [y/N]: "}, asked)
	assert.Contains(out.String(), "[*] You are about to DELETE 2 videos with status 'completed'.")
	assert.Contains(out.String(), "[+] Successfully deleted 2 videos.")

	remaining, err := store.Count(ctx, job.Filter{})
	assert.NoError(err)
	assert.EqualValues(3, remaining)
}

func TestDelete_Declined(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	store := newStore(t)
	var out bytes.Buffer
	var asked []string
	ops := New(store, &out, confirmWith(false, &asked))

	deleted, err := ops.Delete(ctx, job.Filter{}, false)
	assert.NoError(err)
	assert.EqualValues(0, deleted)
	assert.Contains(out.String(), "[*] You are about to DELETE 5 videos with status 'all'.")
	assert.Contains(out.String(), "[-] Deletion aborted.")

	remaining, err := store.Count(ctx, job.Filter{})
	assert.NoError(err)
	assert.EqualValues(5, remaining)
}

func TestDelete_SkipConfirmation(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	store := newStore(t)
	var asked []string
	ops := New(store, &bytes.Buffer{}, confirmWith(false, &asked))

	deleted, err := ops.Delete(ctx, job.Filter{}, true)
	assert.NoError(err)
	assert.EqualValues(5, deleted)
	assert.Empty(asked)
}

func TestDelete_NoneMatching(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	store := newStore(t)
	_, err := store.Delete(ctx, job.Filter{Status: job.StatusFailed})
	require.NoError(t, err)
	var out bytes.Buffer
	var asked []string
	ops := New(store, &out, confirmWith(true, &asked))

	deleted, err := ops.Delete(ctx, job.Filter{Status: job.StatusFailed}, false)
	assert.NoError(err)
	assert.EqualValues(0, deleted)
	assert.Empty(asked)
	assert.Equal("[!] No videos found with status 'failed'\n", out.String())
}
