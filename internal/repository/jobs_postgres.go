package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iago/line-relay/internal/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reply_jobs (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	reply_source  TEXT NOT NULL DEFAULT '',
	delivery_mode TEXT NOT NULL DEFAULT '',
	model_id      TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	enqueued_at   TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reply_jobs_user_enqueued_idx ON reply_jobs (user_id, enqueued_at DESC);
`

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(ctx context.Context, databaseURL string) (*PostgresJobsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresJobsRepository{pool: pool}, nil
}

// EnsureSchema creates the reply_jobs table when missing.
func (r *PostgresJobsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.JobRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reply_jobs (
			id,
			user_id,
			status,
			reply_source,
			delivery_mode,
			model_id,
			error_message,
			enqueued_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		job.ID,
		job.UserID,
		string(job.Status),
		string(job.ReplySource),
		string(job.DeliveryMode),
		job.ModelID,
		job.ErrorMessage,
		job.EnqueuedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) UpdateJob(ctx context.Context, job *domain.JobRecord) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE reply_jobs
		SET status = $2,
			reply_source = $3,
			delivery_mode = $4,
			model_id = $5,
			error_message = $6,
			updated_at = $7
		WHERE id = $1
	`,
		job.ID,
		string(job.Status),
		string(job.ReplySource),
		string(job.DeliveryMode),
		job.ModelID,
		job.ErrorMessage,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, status, reply_source, delivery_mode, model_id, error_message, enqueued_at, updated_at
		FROM reply_jobs
		WHERE id = $1
	`, jobID)

	job, err := scanJobRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

func (r *PostgresJobsRepository) ListJobs(
	ctx context.Context,
	filter domain.JobListFilter,
) ([]domain.JobRecord, int, error) {
	filter = normalizeFilter(filter)
	baseQuery, args := buildJobFilters(filter)

	var total int
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT id, user_id, status, reply_source, delivery_mode, model_id, error_message, enqueued_at, updated_at
		%s
		ORDER BY enqueued_at DESC, id ASC
		LIMIT $%d OFFSET $%d`,
		baseQuery,
		len(args)+1,
		len(args)+2,
	)
	listArgs := append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	items := make([]domain.JobRecord, 0)
	for rows.Next() {
		job, err := scanJobRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		items = append(items, *job)
	}

	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", rows.Err())
	}

	return items, total, nil
}

func scanJobRecord(row pgx.Row) (*domain.JobRecord, error) {
	var (
		job          domain.JobRecord
		status       string
		replySource  string
		deliveryMode string
	)
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&replySource,
		&deliveryMode,
		&job.ModelID,
		&job.ErrorMessage,
		&job.EnqueuedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.ReplySource = domain.ReplySource(replySource)
	job.DeliveryMode = domain.DeliveryMode(deliveryMode)
	return &job, nil
}

func buildJobFilters(filter domain.JobListFilter) (string, []any) {
	query := strings.Builder{}
	query.WriteString("FROM reply_jobs WHERE TRUE")

	args := make([]any, 0, 2)
	argIndex := 1

	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query.WriteString(fmt.Sprintf(" AND user_id = $%d", argIndex))
		args = append(args, userID)
		argIndex++
	}

	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		query.WriteString(fmt.Sprintf(" AND status = $%d", argIndex))
		args = append(args, status)
		argIndex++
	}

	return query.String(), args
}
