package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iago/line-relay/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobsRepository keeps the outcome of reply jobs for operators.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.JobRecord) error
	UpdateJob(ctx context.Context, job *domain.JobRecord) error
	GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error)
	ListJobs(ctx context.Context, filter domain.JobListFilter) ([]domain.JobRecord, int, error)
}

// MemoryJobsRepository stores job records in memory for local development.
type MemoryJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.JobRecord
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.JobRecord),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *MemoryJobsRepository) UpdateJob(_ context.Context, job *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (r *MemoryJobsRepository) ListJobs(
	_ context.Context,
	filter domain.JobListFilter,
) ([]domain.JobRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter = normalizeFilter(filter)

	items := make([]domain.JobRecord, 0)
	for _, job := range r.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		items = append(items, *job)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].EnqueuedAt.Equal(items[j].EnqueuedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].EnqueuedAt.After(items[j].EnqueuedAt)
	})

	total := len(items)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []domain.JobRecord{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return items[start:end], total, nil
}

func normalizeFilter(filter domain.JobListFilter) domain.JobListFilter {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	return filter
}
