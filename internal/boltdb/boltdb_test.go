package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/job"
	"github.com/alanbriolat/channel-archiver/job/jobtest"
)

func TestDatabase(t *testing.T) {
	jobtest.Run(t, func(t *testing.T) job.Store {
		d, err := New(filepath.Join(t.TempDir(), "jobs.bolt"), zap.NewNop())
		require.NoError(t, err)
		return d
	})
}

func TestDatabase_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.bolt")
	db, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
		if err != nil {
			return err
		}
		return b.Put(MetadataKeys.Version, []byte("99"))
	}))
	require.NoError(t, db.Close())

	_, err = New(path, zap.NewNop())
	assert_.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDatabase_SequenceSurvivesDelete(t *testing.T) {
	assert := assert_.New(t)
	d, err := New(filepath.Join(t.TempDir(), "jobs.bolt"), zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	_, err = d.InsertIfAbsent(context.Background(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", "")
	require.NoError(t, err)
	_, err = d.Delete(context.Background(), job.Filter{})
	require.NoError(t, err)
	_, err = d.InsertIfAbsent(context.Background(), "https://www.youtube.com/watch?v=BBBBBBBBBBB", "")
	require.NoError(t, err)

	jobs, err := d.List(context.Background(), job.Filter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(int64(2), jobs[0].Seq, "sequence numbers are never reused")
}
