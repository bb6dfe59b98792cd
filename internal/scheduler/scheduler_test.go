package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"storyforge/internal/domain"
)

func newTestScheduler() *Scheduler {
	return New(zerolog.Nop(), nil)
}

func TestDequeueServesPaidBeforeFree(t *testing.T) {
	s := newTestScheduler()

	freeID := s.Enqueue(domain.StoryRequest{Seed: "free story"}, domain.TierFree)
	paidID := s.Enqueue(domain.StoryRequest{Seed: "paid story"}, domain.TierPaid)

	job, err := s.Dequeue()
	require.NoError(t, err)
	require.Equal(t, paidID, job.ID)
	require.Equal(t, domain.JobStatusProcessing, job.Status)

	job, err = s.Dequeue()
	require.NoError(t, err)
	require.Equal(t, freeID, job.ID)
}

func TestFIFOWithinTier(t *testing.T) {
	s := newTestScheduler()

	first := s.Enqueue(domain.StoryRequest{Seed: "a"}, domain.TierFree)
	second := s.Enqueue(domain.StoryRequest{Seed: "b"}, domain.TierFree)

	posFirst, ok := s.QueuePosition(first)
	require.True(t, ok)
	posSecond, ok := s.QueuePosition(second)
	require.True(t, ok)
	require.Equal(t, posFirst+1, posSecond)

	job, err := s.Dequeue()
	require.NoError(t, err)
	require.Equal(t, first, job.ID)
}

func TestQueuePositionCountsPaidAheadOfFree(t *testing.T) {
	s := newTestScheduler()

	freeID := s.Enqueue(domain.StoryRequest{Seed: "free"}, domain.TierFree)
	paidID := s.Enqueue(domain.StoryRequest{Seed: "paid"}, domain.TierPaid)

	pos, ok := s.QueuePosition(paidID)
	require.True(t, ok)
	require.Equal(t, 0, pos)

	pos, ok = s.QueuePosition(freeID)
	require.True(t, ok)
	require.Equal(t, 1, pos)
}

func TestQueuePositionGoneAfterDequeue(t *testing.T) {
	s := newTestScheduler()
	id := s.Enqueue(domain.StoryRequest{Seed: "x"}, domain.TierFree)

	_, err := s.Dequeue()
	require.NoError(t, err)

	_, ok := s.QueuePosition(id)
	require.False(t, ok)

	_, ok = s.QueuePosition("unknown")
	require.False(t, ok)
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	s := newTestScheduler()

	got := make(chan domain.Job, 1)
	go func() {
		job, err := s.Dequeue()
		if err == nil {
			got <- job
		}
	}()

	select {
	case <-got:
		t.Fatal("Dequeue returned before any job was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	id := s.Enqueue(domain.StoryRequest{Seed: "late"}, domain.TierFree)

	select {
	case job := <-got:
		require.Equal(t, id, job.ID)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake after enqueue")
	}
}

func TestUpdateReplacesRecord(t *testing.T) {
	s := newTestScheduler()
	id := s.Enqueue(domain.StoryRequest{Seed: "x"}, domain.TierPaid)

	job, err := s.Dequeue()
	require.NoError(t, err)

	job.Status = domain.JobStatusCompleted
	job.Result = &domain.Bundle{StoryText: "done", FrameURLs: []string{"u"}}
	s.Update(job)
	s.Update(job) // idempotent

	stored, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, domain.JobStatusCompleted, stored.Status)
	require.Equal(t, "done", stored.Result.StoryText)

	// Updating an unknown job must not fault or create a record.
	s.Update(domain.Job{ID: "unknown"})
	_, ok = s.Get("unknown")
	require.False(t, ok)
}

func TestTryEnqueueRespectsCapacity(t *testing.T) {
	s := newTestScheduler()

	first, ok := s.TryEnqueue(domain.StoryRequest{Seed: "a"}, domain.TierFree, 2)
	require.True(t, ok)
	_, ok = s.TryEnqueue(domain.StoryRequest{Seed: "b"}, domain.TierPaid, 2)
	require.True(t, ok)

	id, ok := s.TryEnqueue(domain.StoryRequest{Seed: "c"}, domain.TierPaid, 2)
	require.False(t, ok)
	require.Empty(t, id)
	require.Equal(t, 2, s.QueuedCount())
	_, found := s.Get(id)
	require.False(t, found, "rejected submission must not create a job")

	// Draining one slot makes room again.
	job, err := s.Dequeue()
	require.NoError(t, err)
	require.NotEqual(t, first, job.ID, "paid job drains first")
	_, ok = s.TryEnqueue(domain.StoryRequest{Seed: "d"}, domain.TierFree, 2)
	require.True(t, ok)
}

func TestTryEnqueueCapacityUnderContention(t *testing.T) {
	s := newTestScheduler()
	const capacity = 4

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.TryEnqueue(domain.StoryRequest{Seed: "x"}, domain.TierFree, capacity); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(capacity), admitted.Load())
	require.Equal(t, capacity, s.QueuedCount())
}

func TestQueuedCount(t *testing.T) {
	s := newTestScheduler()
	require.Equal(t, 0, s.QueuedCount())

	s.Enqueue(domain.StoryRequest{Seed: "a"}, domain.TierFree)
	s.Enqueue(domain.StoryRequest{Seed: "b"}, domain.TierPaid)
	require.Equal(t, 2, s.QueuedCount())

	_, err := s.Dequeue()
	require.NoError(t, err)
	require.Equal(t, 1, s.QueuedCount())
}

func TestCloseUnblocksDequeue(t *testing.T) {
	s := newTestScheduler()

	done := make(chan error, 1)
	go func() {
		_, err := s.Dequeue()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, domain.ErrSchedulerClosed)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}
}

func TestConcurrentProducers(t *testing.T) {
	s := newTestScheduler()

	const perTier = 20
	var wg sync.WaitGroup
	for i := 0; i < perTier; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Enqueue(domain.StoryRequest{Seed: "paid"}, domain.TierPaid)
		}()
		go func() {
			defer wg.Done()
			s.Enqueue(domain.StoryRequest{Seed: "free"}, domain.TierFree)
		}()
	}
	wg.Wait()
	require.Equal(t, 2*perTier, s.QueuedCount())

	// Every paid job queued at dequeue time comes out before any free job.
	for i := 0; i < perTier; i++ {
		job, err := s.Dequeue()
		require.NoError(t, err)
		require.Equal(t, domain.TierPaid, job.Tier, "dequeue %d", i)
	}
	for i := 0; i < perTier; i++ {
		job, err := s.Dequeue()
		require.NoError(t, err)
		require.Equal(t, domain.TierFree, job.Tier)
	}
}
