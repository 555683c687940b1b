// Package history persists lifecycle jobs in a local SQLite database.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ops-agent/internal/domain/model"
	"ops-agent/internal/domain/repository"
)

// jobRecord is the row stored for each job.
type jobRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	Action     string `gorm:"size:16;not null;index"`
	Repo       string
	Ref        string
	Status     string `gorm:"size:16;not null"`
	Stage      string `gorm:"size:16"`
	Commit     string `gorm:"size:40"`
	ExitCode   *int
	Error      string
	LogPath    string
	StartedAt  time.Time `gorm:"not null;index"`
	FinishedAt *time.Time
}

func (jobRecord) TableName() string { return "jobs" }

// Store implements repository.HistoryRepository with GORM.
type Store struct {
	db *gorm.DB
}

var _ repository.HistoryRepository = (*Store)(nil)

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	// WAL lets status readers run while a job is writing.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts or updates job.
func (s *Store) Save(job *model.Job) error {
	rec := toRecord(job)
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) List(limit int) ([]*model.Job, error) {
	var recs []jobRecord
	q := s.db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs := make([]*model.Job, 0, len(recs))
	for i := range recs {
		jobs = append(jobs, fromRecord(&recs[i]))
	}
	return jobs, nil
}

func (s *Store) Get(id string) (*model.Job, error) {
	var rec jobRecord
	if err := s.db.Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, convertNotFound(err, id)
	}
	return fromRecord(&rec), nil
}

// Latest returns the most recently started job, or nil when there is none.
func (s *Store) Latest() (*model.Job, error) {
	var rec jobRecord
	err := s.db.Order("started_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest job: %w", err)
	}
	return fromRecord(&rec), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func convertNotFound(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
	}
	return fmt.Errorf("failed to load job %s: %w", id, err)
}

func toRecord(j *model.Job) jobRecord {
	return jobRecord{
		ID:         j.ID,
		Action:     string(j.Action),
		Repo:       j.Repo,
		Ref:        j.Ref,
		Status:     string(j.Status),
		Stage:      string(j.Stage),
		Commit:     j.Commit,
		ExitCode:   j.ExitCode,
		Error:      j.Error,
		LogPath:    j.LogPath,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

func fromRecord(r *jobRecord) *model.Job {
	return &model.Job{
		ID:         r.ID,
		Action:     model.Action(r.Action),
		Repo:       r.Repo,
		Ref:        r.Ref,
		Status:     model.JobStatus(r.Status),
		Stage:      model.Stage(r.Stage),
		Commit:     r.Commit,
		ExitCode:   r.ExitCode,
		Error:      r.Error,
		LogPath:    r.LogPath,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
