package repository

import "ops-agent/internal/domain/model"

// HistoryRepository persists finished and running jobs.
type HistoryRepository interface {
	Save(job *model.Job) error
	// List returns up to limit jobs, newest first.
	List(limit int) ([]*model.Job, error)
	// Get returns model.ErrJobNotFound for unknown ids.
	Get(id string) (*model.Job, error)
	Latest() (*model.Job, error)
	Close() error
}
