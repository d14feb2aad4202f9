package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/job"
	"github.com/alanbriolat/channel-archiver/job/jobtest"
)

func newTestDatabase(t *testing.T) *Database {
	d, err := NewDatabase(filepath.Join(t.TempDir(), "database.sqlite"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Migrate())
	return d
}

func TestDatabase(t *testing.T) {
	jobtest.Run(t, func(t *testing.T) job.Store {
		return newTestDatabase(t)
	})
}

func TestDatabase_MigrateTwice(t *testing.T) {
	d := newTestDatabase(t)
	defer d.Close()
	require.NoError(t, d.Migrate())
}

func TestDatabase_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.sqlite")
	d, err := NewDatabase(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Migrate())
	_, err = d.InsertIfAbsent(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", "chan")
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = NewDatabase(path, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Migrate())
	j, err := d.Get(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA")
	require.NoError(t, err)
	require.NotNil(t, j)
	require.Equal(t, job.StatusPending, j.Status)
}
