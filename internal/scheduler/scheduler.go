// Package scheduler admits generation jobs and serializes them for a single
// consuming worker. Paid jobs are always served before free jobs; within a
// tier, service order is strictly first-in first-out.
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"storyforge/internal/domain"
	"storyforge/internal/infra"
)

// Scheduler is safe for many concurrent producers and one consumer. Both
// tier lists hold job IDs; the jobs map is the single source of truth for
// job records.
type Scheduler struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	closed   bool

	paid []string
	free []string
	jobs map[string]*domain.Job

	logger  infra.Logger
	metrics *infra.Metrics
}

func New(logger infra.Logger, metrics *infra.Metrics) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]*domain.Job),
		logger:  logger,
		metrics: metrics,
	}
	s.nonEmpty = sync.NewCond(&s.mu)
	return s
}

// Enqueue appends the job to its tier list and wakes one waiter. It never
// blocks and never fails; use TryEnqueue when a capacity limit applies.
func (s *Scheduler) Enqueue(req domain.StoryRequest, tier domain.Tier) string {
	id, _ := s.TryEnqueue(req, tier, 0)
	return id
}

// TryEnqueue is Enqueue with a capacity limit checked under the queue lock,
// so concurrent submitters can never push the queue past it. A capacity of
// zero or less means unbounded. When the queue is full no job is created and
// the second return is false.
func (s *Scheduler) TryEnqueue(req domain.StoryRequest, tier domain.Tier, capacity int) (string, bool) {
	job := &domain.Job{
		ID:        uuid.NewString(),
		Tier:      tier,
		Request:   req,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if capacity > 0 && len(s.paid)+len(s.free) >= capacity {
		s.mu.Unlock()
		return "", false
	}
	s.jobs[job.ID] = job
	if tier == domain.TierPaid {
		s.paid = append(s.paid, job.ID)
	} else {
		s.free = append(s.free, job.ID)
	}
	depth := len(s.paid) + len(s.free)
	s.mu.Unlock()
	s.nonEmpty.Signal()

	s.metrics.IncEnqueued(string(tier))
	s.metrics.SetQueueDepth(depth)
	s.logger.Info().
		Str("job_id", job.ID).
		Str("tier", string(tier)).
		Int("queue_depth", depth).
		Msg("scheduler: job enqueued")
	return job.ID, true
}

// Dequeue blocks until a job is available, marks it processing and returns a
// copy of it. The paid list is always drained before the free list. It
// returns domain.ErrSchedulerClosed once Close has been called and both
// lists are empty.
func (s *Scheduler) Dequeue() (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.paid) == 0 && len(s.free) == 0 {
		if s.closed {
			return domain.Job{}, domain.ErrSchedulerClosed
		}
		s.nonEmpty.Wait()
	}

	var id string
	if len(s.paid) > 0 {
		id, s.paid = s.paid[0], s.paid[1:]
	} else {
		id, s.free = s.free[0], s.free[1:]
	}

	job := s.jobs[id]
	job.Status = domain.JobStatusProcessing
	s.metrics.SetQueueDepth(len(s.paid) + len(s.free))
	return *job, nil
}

// Update replaces the stored record for the job. It is idempotent; updating
// an unknown job is a no-op so late results after an external eviction do
// not fault the worker.
func (s *Scheduler) Update(job domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return
	}
	stored := job
	s.jobs[job.ID] = &stored
}

// Get returns a copy of the job record.
func (s *Scheduler) Get(id string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// QueuePosition reports the 0-based position of a still-queued job, counting
// every paid job ahead of every free job. The second return is false when
// the job is unknown or already dequeued.
func (s *Scheduler) QueuePosition(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, queued := range s.paid {
		if queued == id {
			return i, true
		}
	}
	for i, queued := range s.free {
		if queued == id {
			return len(s.paid) + i, true
		}
	}
	return 0, false
}

// QueuedCount reports how many jobs are waiting across both tiers.
func (s *Scheduler) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paid) + len(s.free)
}

// Close wakes the blocked consumer so process shutdown can proceed. Jobs
// still queued remain readable through Get.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.nonEmpty.Broadcast()
}
