// Package worker drives the single consuming loop: dequeue, orchestrate,
// post the result back. No job failure is fatal to the loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"storyforge/internal/domain"
	"storyforge/internal/guard"
	"storyforge/internal/infra"
	"storyforge/internal/orchestrator"
	"storyforge/internal/scheduler"
)

// Worker consumes the scheduler and runs the orchestrator. A weighted
// semaphore bounds concurrently-processing jobs; the default weight of one
// keeps a single CPU host within its memory budget while still letting
// sub-tasks of the active job fan out.
type Worker struct {
	scheduler  *scheduler.Scheduler
	orch       *orchestrator.Orchestrator
	store      domain.PersistenceStore
	moderation domain.ModerationSink
	sem        *semaphore.Weighted
	logger     infra.Logger
	metrics    *infra.Metrics
}

func New(sched *scheduler.Scheduler, orch *orchestrator.Orchestrator, store domain.PersistenceStore, moderation domain.ModerationSink, concurrency int64, logger infra.Logger, metrics *infra.Metrics) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		scheduler:  sched,
		orch:       orch,
		store:      store,
		moderation: moderation,
		sem:        semaphore.NewWeighted(concurrency),
		logger:     logger,
		metrics:    metrics,
	}
}

// Run loops until the scheduler closes or the context ends. Each dequeued
// job is handled under the concurrency semaphore.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	var active sync.WaitGroup
	defer active.Wait()

	for {
		job, err := w.scheduler.Dequeue()
		if err != nil {
			if errors.Is(err, domain.ErrSchedulerClosed) {
				w.logger.Info().Msg("worker: scheduler closed")
				return nil
			}
			return err
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			// Shutdown raced the dequeue; mark the job failed rather than
			// leaving it stuck in processing.
			job.Status = domain.JobStatusFailed
			job.ErrorMessage = "worker shutting down"
			w.scheduler.Update(job)
			return err
		}
		active.Add(1)
		go func(job domain.Job) {
			defer active.Done()
			defer w.sem.Release(1)
			w.handleJob(ctx, job)
		}(job)
	}
}

func (w *Worker) handleJob(ctx context.Context, job domain.Job) {
	start := time.Now()
	w.logger.Info().
		Str("job_id", job.ID).
		Str("tier", string(job.Tier)).
		Msg("worker: picked job")

	defer func() {
		if r := recover(); r != nil {
			job.Status = domain.JobStatusFailed
			job.Result = nil
			job.ErrorMessage = fmt.Sprintf("internal error: %v", r)
			w.scheduler.Update(job)
			w.metrics.IncFailed()
			w.logger.Error().Str("job_id", job.ID).Interface("panic", r).Msg("worker: job crashed")
		}
	}()

	numScenes := job.Request.NumScenes
	if numScenes < 1 {
		numScenes = 1
	}
	progress := make(chan orchestrator.FrameEvent, numScenes)
	var drained sync.WaitGroup
	drained.Add(1)
	go func() {
		defer drained.Done()
		for event := range progress {
			w.logger.Info().
				Str("job_id", job.ID).
				Int("index", event.Index).
				Str("url", event.URL).
				Msg("worker: frame ready")
		}
	}()

	bundle, err := w.orch.Run(ctx, job, progress)
	drained.Wait()

	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Result = nil
		job.ErrorMessage = err.Error()
		w.metrics.IncFailed()
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: job failed")
		w.reportViolations(ctx, job.ID, err)
	} else {
		job.Status = domain.JobStatusCompleted
		job.Result = bundle
		job.ErrorMessage = ""
		w.metrics.IncCompleted()
		w.persistBundle(ctx, job, bundle)
		w.logger.Info().
			Str("job_id", job.ID).
			Int("frames", len(bundle.FrameURLs)).
			Bool("audio", bundle.AudioURL != "").
			Msg("worker: job completed")
	}

	w.scheduler.Update(job)
	w.metrics.ObserveJobSeconds(time.Since(start).Seconds())
}

// reportViolations routes guard rejections to the moderation sink. Sink
// failures are logged and swallowed; moderation is fire-and-forget.
func (w *Worker) reportViolations(ctx context.Context, jobID string, err error) {
	var verr *guard.ViolationError
	if !errors.As(err, &verr) || w.moderation == nil {
		return
	}
	records := make([]domain.ViolationRecord, len(verr.Violations))
	for i, v := range verr.Violations {
		records[i] = domain.ViolationRecord{Category: v.Category, Detail: v.Detail}
	}
	if reportErr := w.moderation.Report(ctx, jobID, verr.Stage, verr.Content, records); reportErr != nil {
		w.logger.Warn().Err(reportErr).Str("job_id", jobID).Msg("worker: moderation report failed")
	}
}

// persistBundle records the finished session and its assets. Persistence
// errors do not fail the job; the bundle already exists and remains
// readable through the status endpoint.
func (w *Worker) persistBundle(ctx context.Context, job domain.Job, bundle *domain.Bundle) {
	if w.store == nil {
		return
	}
	session := &domain.Session{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		Seed:      job.Request.Seed,
		Profile:   job.Request.Profile,
		StoryText: bundle.StoryText,
	}
	if err := w.store.CreateSession(ctx, session); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: persist session failed")
		return
	}

	assets := make([]domain.SessionAsset, 0, len(bundle.FrameURLs)+1)
	if bundle.AudioURL != "" {
		assets = append(assets, domain.SessionAsset{Kind: "audio", URL: bundle.AudioURL})
	}
	for i, url := range bundle.FrameURLs {
		assets = append(assets, domain.SessionAsset{Kind: "frame", Index: i, URL: url})
	}
	if err := w.store.CreateAssets(ctx, session.ID, assets); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: persist assets failed")
	}
}
