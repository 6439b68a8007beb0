package queue

import (
	"context"

	"github.com/iago/line-relay/internal/domain"
)

// Producer hands reply jobs to the worker side without waiting for them.
type Producer interface {
	Enqueue(ctx context.Context, job domain.Job) error
}
