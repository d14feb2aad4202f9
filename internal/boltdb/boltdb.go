// Package boltdb is a job.Store kept in a single bbolt file, for hosts without cgo SQLite.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/alanbriolat/channel-archiver/job"
)

var Buckets = struct {
	Metadata []byte
	Jobs     []byte
	URLs     []byte
}{
	Metadata: []byte("__metadata__"),
	Jobs:     []byte("jobs"),
	URLs:     []byte("urls"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported database version")

// Database stores each job as JSON in the jobs bucket, keyed by its big-endian sequence number so that cursor order
// is insertion order. The urls bucket maps source URL to sequence key and enforces uniqueness.
type Database struct {
	db  *bbolt.DB
	log *zap.SugaredLogger
}

var _ job.Store = (*Database)(nil)

func New(path string, log *zap.Logger) (_ *Database, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err = tx.CreateBucketIfNotExists(Buckets.Jobs); err != nil {
			return err
		}
		if _, err = tx.CreateBucketIfNotExists(Buckets.URLs); err != nil {
			return err
		}

		// Get the current version of the database
		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
		}

		// Set the current version of the database
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Database{db: db, log: log.Sugar().Named("boltdb")}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) InsertIfAbsent(ctx context.Context, sourceURL string, scope string) (inserted bool, err error) {
	err = d.db.Update(func(tx *bbolt.Tx) error {
		urls := tx.Bucket(Buckets.URLs)
		if urls.Get([]byte(sourceURL)) != nil {
			return nil
		}
		jobs := tx.Bucket(Buckets.Jobs)
		seq, err := jobs.NextSequence()
		if err != nil {
			return err
		}
		j := job.New(sourceURL, scope, time.Now().UTC())
		j.Seq = int64(seq)
		if err := putJob(jobs, &j); err != nil {
			return err
		}
		if err := urls.Put([]byte(sourceURL), seqKey(j.Seq)); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func (d *Database) Get(ctx context.Context, sourceURL string) (j *job.Job, err error) {
	err = d.db.View(func(tx *bbolt.Tx) error {
		j, _, err = lookup(tx, sourceURL)
		return err
	})
	return j, err
}

func (d *Database) List(ctx context.Context, filter job.Filter) (jobs []job.Job, err error) {
	err = d.db.View(func(tx *bbolt.Tx) error {
		return forEach(tx, filter, func(_ []byte, j *job.Job) error {
			jobs = append(jobs, *j)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (d *Database) MarkCompleted(ctx context.Context, sourceURL string, outputPath string, title string, customFilename string) (bool, error) {
	return d.transition(sourceURL, func(j job.Job, now time.Time) (job.Job, error) {
		return j.Complete(outputPath, title, customFilename, now)
	})
}

func (d *Database) MarkFailed(ctx context.Context, sourceURL string, detail string) (bool, error) {
	return d.transition(sourceURL, func(j job.Job, now time.Time) (job.Job, error) {
		return j.Fail(detail, now)
	})
}

func (d *Database) Count(ctx context.Context, filter job.Filter) (count int64, err error) {
	err = d.db.View(func(tx *bbolt.Tx) error {
		return forEach(tx, filter, func(_ []byte, _ *job.Job) error {
			count++
			return nil
		})
	})
	return count, err
}

// Delete removes all matching jobs within one write transaction, so either all of them go or none do.
func (d *Database) Delete(ctx context.Context, filter job.Filter) (deleted int64, err error) {
	err = d.db.Update(func(tx *bbolt.Tx) error {
		deleted = 0
		var keys [][]byte
		var urls []string
		err := forEach(tx, filter, func(k []byte, j *job.Job) error {
			keys = append(keys, append([]byte(nil), k...))
			urls = append(urls, j.SourceURL)
			return nil
		})
		if err != nil {
			return err
		}
		jobsBucket := tx.Bucket(Buckets.Jobs)
		urlsBucket := tx.Bucket(Buckets.URLs)
		for i, k := range keys {
			if err := jobsBucket.Delete(k); err != nil {
				return err
			}
			if err := urlsBucket.Delete([]byte(urls[i])); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (d *Database) transition(sourceURL string, f func(job.Job, time.Time) (job.Job, error)) (updated bool, err error) {
	err = d.db.Update(func(tx *bbolt.Tx) error {
		before, _, err := lookup(tx, sourceURL)
		if err != nil {
			return err
		}
		if before == nil || before.Status != job.StatusPending {
			return nil
		}
		after, err := f(*before, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := putJob(tx.Bucket(Buckets.Jobs), &after); err != nil {
			return err
		}
		job.LogTransition(d.log, before, &after)
		updated = true
		return nil
	})
	return updated, err
}

func lookup(tx *bbolt.Tx, sourceURL string) (*job.Job, []byte, error) {
	key := tx.Bucket(Buckets.URLs).Get([]byte(sourceURL))
	if key == nil {
		return nil, nil, nil
	}
	data := tx.Bucket(Buckets.Jobs).Get(key)
	if data == nil {
		return nil, nil, fmt.Errorf("index refers to missing job %x", key)
	}
	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, nil, err
	}
	return &j, key, nil
}

func forEach(tx *bbolt.Tx, filter job.Filter, f func(k []byte, j *job.Job) error) error {
	return tx.Bucket(Buckets.Jobs).ForEach(func(k, v []byte) error {
		var j job.Job
		if err := json.Unmarshal(v, &j); err != nil {
			return err
		}
		if !filter.Matches(&j) {
			return nil
		}
		return f(k, &j)
	})
}

func putJob(bucket *bbolt.Bucket, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return bucket.Put(seqKey(j.Seq), data)
}

func seqKey(seq int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(seq))
	return key
}
