package queue

import (
	"sync"

	"github.com/iago/line-relay/internal/domain"
)

const compactThreshold = 64

// FIFO is an unbounded in-memory job queue. There is no backpressure: a
// burst of inbound events grows the queue until the worker catches up.
type FIFO struct {
	mu   sync.Mutex
	jobs []domain.Job
	head int
}

func NewFIFO() *FIFO {
	return &FIFO{jobs: make([]domain.Job, 0, 16)}
}

func (q *FIFO) Push(job domain.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

// Pop removes and returns the oldest job.
func (q *FIFO) Pop() (domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.jobs) {
		return domain.Job{}, false
	}
	job := q.jobs[q.head]
	q.jobs[q.head] = domain.Job{}
	q.head++

	if q.head == len(q.jobs) {
		q.jobs = q.jobs[:0]
		q.head = 0
	} else if q.head >= compactThreshold && q.head*2 >= len(q.jobs) {
		remaining := copy(q.jobs, q.jobs[q.head:])
		clear(q.jobs[remaining:])
		q.jobs = q.jobs[:remaining]
		q.head = 0
	}
	return job, true
}

func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) - q.head
}
