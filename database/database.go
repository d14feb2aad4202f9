package database

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"

	"github.com/alanbriolat/channel-archiver/job"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Database is the SQLite implementation of job.Store.
type Database struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

var _ job.Store = (*Database)(nil)

func NewDatabase(path string, log *zap.Logger) (*Database, error) {
	gormLog := zapgorm2.New(log.Named("gorm"))
	gormLog.LogLevel = gormlogger.Warn
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %v: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every operation commits on its own; there is never more than one writer.
	sqlDB.SetMaxOpenConns(1)
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to %v: %w", path, err)
	}
	return &Database{db: db, log: log.Sugar().Named("database")}, nil
}

func (d *Database) Migrate() error {
	d.log.Debug("running database migrations")
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch err {
	case nil:
		d.log.Info("database migration complete")
	case migrate.ErrNoChange:
		d.log.Debug("no database migration required")
	default:
		return err
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) InsertIfAbsent(ctx context.Context, sourceURL string, scope string) (bool, error) {
	j := job.New(sourceURL, scope, time.Now().UTC())
	res := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_url"}},
		DoNothing: true,
	}).Create(&j)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Get returns (nil, nil) if the error is only that no such row exists.
func (d *Database) Get(ctx context.Context, sourceURL string) (*job.Job, error) {
	var jobs []job.Job
	if err := d.db.WithContext(ctx).Where("source_url = ?", sourceURL).Limit(1).Find(&jobs).Error; err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

func (d *Database) List(ctx context.Context, filter job.Filter) ([]job.Job, error) {
	var jobs []job.Job
	if err := filtered(d.db.WithContext(ctx), filter).Order("seq").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (d *Database) MarkCompleted(ctx context.Context, sourceURL string, outputPath string, title string, customFilename string) (bool, error) {
	return d.transition(ctx, sourceURL, func(j job.Job, now time.Time) (job.Job, error) {
		return j.Complete(outputPath, title, customFilename, now)
	})
}

func (d *Database) MarkFailed(ctx context.Context, sourceURL string, detail string) (bool, error) {
	return d.transition(ctx, sourceURL, func(j job.Job, now time.Time) (job.Job, error) {
		return j.Fail(detail, now)
	})
}

func (d *Database) Count(ctx context.Context, filter job.Filter) (int64, error) {
	var count int64
	if err := filtered(d.db.WithContext(ctx).Model(&job.Job{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (d *Database) Delete(ctx context.Context, filter job.Filter) (int64, error) {
	tx := d.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	res := filtered(tx, filter).Delete(&job.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// transition applies f to the pending job for sourceURL inside a transaction. Returns false if there is no pending job
// with that URL.
func (d *Database) transition(ctx context.Context, sourceURL string, f func(job.Job, time.Time) (job.Job, error)) (bool, error) {
	updated := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found []job.Job
		if err := tx.Where("source_url = ? AND status = ?", sourceURL, job.StatusPending).Limit(1).Find(&found).Error; err != nil {
			return err
		}
		if len(found) == 0 {
			return nil
		}
		before := found[0]
		after, err := f(before, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.Save(&after).Error; err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		job.LogTransition(d.log, &before, &after)
		updated = true
		return nil
	})
	return updated, err
}

func filtered(tx *gorm.DB, filter job.Filter) *gorm.DB {
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	if filter.Scope != "" {
		tx = tx.Where("scope = ?", filter.Scope)
	}
	return tx
}
