// Package jobtest holds behaviour tests shared by every job.Store implementation.
package jobtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/channel-archiver/job"
)

// Factory opens a new, empty store for a single test.
type Factory func(t *testing.T) job.Store

// Run executes the shared store tests against stores created by factory.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		f    func(t *testing.T, store job.Store)
	}{
		{"InsertIfAbsent", testInsertIfAbsent},
		{"InsertIdempotent", testInsertIdempotent},
		{"ListOrderAndFilter", testListOrderAndFilter},
		{"Get", testGet},
		{"MarkCompleted", testMarkCompleted},
		{"MarkFailed", testMarkFailed},
		{"MarkMissingIsNoop", testMarkMissingIsNoop},
		{"TerminalIsFinal", testTerminalIsFinal},
		{"CountAndDelete", testCountAndDelete},
		{"DeleteAll", testDeleteAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer func() { assert_.NoError(t, store.Close()) }()
			tt.f(t, store)
		})
	}
}

func videoURL(n int) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%011d", n)
}

// AssertInvariants checks the status/outcome relationship for every stored job.
func AssertInvariants(t *testing.T, store job.Store) {
	jobs, err := store.List(context.Background(), job.Filter{})
	require.NoError(t, err)
	for _, j := range jobs {
		assert_.NoError(t, j.Validate(), j.String())
	}
}

func testInsertIfAbsent(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	inserted, err := store.InsertIfAbsent(ctx, videoURL(1), "chan")
	require.NoError(t, err)
	assert.True(inserted)

	inserted, err = store.InsertIfAbsent(ctx, videoURL(1), "other")
	require.NoError(t, err)
	assert.False(inserted, "duplicate URL should not be inserted")

	inserted, err = store.InsertIfAbsent(ctx, "https://example.com/no-id", "chan")
	require.NoError(t, err)
	assert.True(inserted, "jobs without a content ID are still stored")

	jobs, err := store.List(ctx, job.Filter{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(videoURL(1), jobs[0].SourceURL)
	assert.Equal("00000000001", jobs[0].ContentID)
	assert.Equal("chan", jobs[0].Scope, "scope of the first discovery is kept")
	assert.Equal(job.StatusPending, jobs[0].Status)
	assert.NotEmpty(jobs[0].ID)
	assert.False(jobs[0].DiscoveredAt.IsZero())
	assert.Equal("", jobs[1].ContentID)
	AssertInvariants(t, store)
}

func testInsertIdempotent(t *testing.T, store job.Store) {
	ctx := context.Background()
	discovered := []string{videoURL(1), videoURL(2), videoURL(3)}
	for round := 0; round < 2; round++ {
		for _, u := range discovered {
			_, err := store.InsertIfAbsent(ctx, u, "chan")
			require.NoError(t, err)
		}
	}
	count, err := store.Count(ctx, job.Filter{})
	require.NoError(t, err)
	assert_.Equal(t, int64(3), count)
}

func testListOrderAndFilter(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		scope := "PL-a"
		if i%2 == 0 {
			scope = "PL-b"
		}
		_, err := store.InsertIfAbsent(ctx, videoURL(i), scope)
		require.NoError(t, err)
	}
	_, err := store.MarkCompleted(ctx, videoURL(3), "out/3.mp4", "three", "")
	require.NoError(t, err)

	jobs, err := store.List(ctx, job.Filter{})
	require.NoError(t, err)
	urls := make([]string, 0, len(jobs))
	for _, j := range jobs {
		urls = append(urls, j.SourceURL)
	}
	assert.Equal([]string{videoURL(1), videoURL(2), videoURL(3), videoURL(4), videoURL(5), videoURL(6)}, urls)

	pending, err := store.List(ctx, job.Filter{Status: job.StatusPending})
	require.NoError(t, err)
	assert.Len(pending, 5)

	scoped, err := store.List(ctx, job.Filter{Status: job.StatusPending, Scope: "PL-a"})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(videoURL(1), scoped[0].SourceURL)
	assert.Equal(videoURL(5), scoped[1].SourceURL)

	none, err := store.List(ctx, job.Filter{Status: job.StatusFailed})
	require.NoError(t, err)
	assert.Empty(none)
}

func testGet(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	j, err := store.Get(ctx, videoURL(1))
	require.NoError(t, err)
	assert.Nil(j)

	_, err = store.InsertIfAbsent(ctx, videoURL(1), "single")
	require.NoError(t, err)
	j, err = store.Get(ctx, videoURL(1))
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(videoURL(1), j.SourceURL)
	assert.Equal("single", j.Scope)
}

func testMarkCompleted(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	_, err := store.InsertIfAbsent(ctx, videoURL(1), "")
	require.NoError(t, err)
	before, err := store.Get(ctx, videoURL(1))
	require.NoError(t, err)

	ok, err := store.MarkCompleted(ctx, videoURL(1), "downloads/One.mp4", "One", "custom")
	require.NoError(t, err)
	assert.True(ok)

	j, err := store.Get(ctx, videoURL(1))
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(job.StatusCompleted, j.Status)
	assert.Equal("downloads/One.mp4", j.OutputPath)
	assert.Equal("One", j.Title)
	assert.Equal("custom", j.CustomFilename)
	assert.NotNil(j.CompletedAt)
	assert.Equal("", j.ErrorDetail)
	assert.Equal(before.ID, j.ID, "identifier is immutable")
	assert.Equal(before.ContentID, j.ContentID, "content ID is never overwritten")
	assert.True(before.DiscoveredAt.Equal(j.DiscoveredAt), "discovery time is never mutated")
	AssertInvariants(t, store)
}

func testMarkFailed(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	_, err := store.InsertIfAbsent(ctx, videoURL(1), "")
	require.NoError(t, err)

	ok, err := store.MarkFailed(ctx, videoURL(1), strings.Repeat("x", 800))
	require.NoError(t, err)
	assert.True(ok)

	j, err := store.Get(ctx, videoURL(1))
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(job.StatusFailed, j.Status)
	assert.Equal(strings.Repeat("x", job.MaxErrorDetailLength), j.ErrorDetail)
	assert.Equal("", j.OutputPath)
	assert.Nil(j.CompletedAt)
	assert.NotNil(j.FailedAt)
	AssertInvariants(t, store)
}

func testMarkMissingIsNoop(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	ok, err := store.MarkCompleted(ctx, videoURL(9), "x.mp4", "x", "")
	require.NoError(t, err)
	assert.False(ok)
	ok, err = store.MarkFailed(ctx, videoURL(9), "boom")
	require.NoError(t, err)
	assert.False(ok)

	count, err := store.Count(ctx, job.Filter{})
	require.NoError(t, err)
	assert.Equal(int64(0), count, "marking a missing job must not create one")
}

func testTerminalIsFinal(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	_, err := store.InsertIfAbsent(ctx, videoURL(1), "")
	require.NoError(t, err)
	_, err = store.InsertIfAbsent(ctx, videoURL(2), "")
	require.NoError(t, err)
	ok, err := store.MarkCompleted(ctx, videoURL(1), "a.mp4", "a", "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.MarkFailed(ctx, videoURL(2), "boom")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.MarkFailed(ctx, videoURL(1), "late failure")
	require.NoError(t, err)
	assert.False(ok)
	ok, err = store.MarkCompleted(ctx, videoURL(2), "b.mp4", "b", "")
	require.NoError(t, err)
	assert.False(ok)

	j, err := store.Get(ctx, videoURL(1))
	require.NoError(t, err)
	assert.Equal(job.StatusCompleted, j.Status)
	j, err = store.Get(ctx, videoURL(2))
	require.NoError(t, err)
	assert.Equal(job.StatusFailed, j.Status)
	AssertInvariants(t, store)
}

func testCountAndDelete(t *testing.T, store job.Store) {
	assert := assert_.New(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := store.InsertIfAbsent(ctx, videoURL(i), "")
		require.NoError(t, err)
	}
	_, err := store.MarkFailed(ctx, videoURL(2), "boom")
	require.NoError(t, err)
	_, err = store.MarkFailed(ctx, videoURL(4), "boom")
	require.NoError(t, err)
	_, err = store.MarkCompleted(ctx, videoURL(5), "5.mp4", "five", "")
	require.NoError(t, err)

	failed := job.Filter{Status: job.StatusFailed}
	count, err := store.Count(ctx, failed)
	require.NoError(t, err)
	assert.Equal(int64(2), count)

	deleted, err := store.Delete(ctx, failed)
	require.NoError(t, err)
	assert.Equal(count, deleted)

	remaining, err := store.List(ctx, job.Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	assert.Equal(videoURL(1), remaining[0].SourceURL)
	assert.Equal(videoURL(3), remaining[1].SourceURL)
	assert.Equal(videoURL(5), remaining[2].SourceURL)
	assert.Equal(job.StatusCompleted, remaining[2].Status)

	deleted, err = store.Delete(ctx, failed)
	require.NoError(t, err)
	assert.Equal(int64(0), deleted)

	// A deleted URL can be discovered again as a fresh pending job
	inserted, err := store.InsertIfAbsent(ctx, videoURL(2), "")
	require.NoError(t, err)
	assert.True(inserted)
	AssertInvariants(t, store)
}

func testDeleteAll(t *testing.T, store job.Store) {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := store.InsertIfAbsent(ctx, videoURL(i), "")
		require.NoError(t, err)
	}
	_, err := store.MarkCompleted(ctx, videoURL(1), "1.mp4", "one", "")
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, job.Filter{})
	require.NoError(t, err)
	assert_.Equal(t, int64(3), deleted)

	count, err := store.Count(ctx, job.Filter{})
	require.NoError(t, err)
	assert_.Equal(t, int64(0), count)
}
