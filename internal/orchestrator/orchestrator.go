// Package orchestrator turns one admitted job into a complete asset bundle:
// sanitized prompt, story text, narrated audio and one illustration frame
// per scene. Story text is mandatory; narration degrades to nothing and
// frames degrade to deterministic placeholders, so the requested frame count
// is always honored.
package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"storyforge/internal/domain"
	"storyforge/internal/guard"
	"storyforge/internal/infra"
	"storyforge/internal/providers"
	"storyforge/internal/storage"
)

// FrameEvent reports one completed frame. Events arrive in completion
// order, exactly one per scene index.
type FrameEvent struct {
	Index int
	URL   string
}

// Config carries the orchestration knobs resolved once at startup.
type Config struct {
	InferenceMode string
	RetryAttempts int
	Timeouts      TimeoutTable
	DefaultVoice  string
}

// Orchestrator coordinates guard, selector and providers for one job at a
// time. It owns no job state; everything lives on the stack of Run.
type Orchestrator struct {
	guard    *guard.Guard
	selector *providers.Selector
	pool     *providers.Pool
	store    *storage.FileStore
	cfg      Config
	logger   infra.Logger
	metrics  *infra.Metrics
}

func New(g *guard.Guard, selector *providers.Selector, pool *providers.Pool, store *storage.FileStore, cfg Config, logger infra.Logger, metrics *infra.Metrics) *Orchestrator {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "warm_narrator"
	}
	return &Orchestrator{
		guard:    g,
		selector: selector,
		pool:     pool,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run produces the bundle for one job. When progress is non-nil it receives
// exactly NumScenes frame events and is closed before Run returns; the
// channel should be buffered with at least NumScenes slots or drained
// concurrently. Run never panics the worker: every failure comes back as an
// error.
func (o *Orchestrator) Run(ctx context.Context, job domain.Job, progress chan<- FrameEvent) (*domain.Bundle, error) {
	if progress != nil {
		defer close(progress)
	}

	req := job.Request
	numScenes := req.NumScenes
	if numScenes < 1 {
		numScenes = 1
	}

	seed, err := o.guard.Sanitize(req.Seed, "story")
	if err != nil {
		return nil, fmt.Errorf("sanitize seed: %w", err)
	}

	policy := o.selector.FallbackChainFor(o.cfg.InferenceMode)

	story, err := o.generateStory(ctx, policy, seed, req)
	if err != nil {
		return nil, err
	}

	childMode, level := childModeFor(req)
	if violations := o.guard.CheckStory(story, req.Profile, childMode, level); len(violations) > 0 {
		o.logger.Warn().
			Str("job_id", job.ID).
			Int("violations", len(violations)).
			Msg("orchestrator: story rejected by content check")
		return nil, fmt.Errorf("story check: %w", &guard.ViolationError{
			Stage:      guard.StageStory,
			Violations: violations,
			Content:    story,
		})
	}

	// Story passed the gate; narration and all frames fan out together.
	bundle := &domain.Bundle{
		StoryText: story,
		FrameURLs: make([]string, numScenes),
	}
	delivered := make([]bool, numScenes)

	group := new(errgroup.Group)
	group.Go(func() error {
		defer o.recoverTask(job.ID, "narration")
		bundle.AudioURL = o.generateNarration(ctx, policy, job.ID, story, req)
		return nil
	})
	for i := 0; i < numScenes; i++ {
		index := i
		group.Go(func() error {
			defer o.recoverTask(job.ID, fmt.Sprintf("frame[%d]", index))
			url := o.generateFrame(ctx, policy, job.ID, story, index)
			bundle.FrameURLs[index] = url
			delivered[index] = true
			if progress != nil {
				progress <- FrameEvent{Index: index, URL: url}
			}
			return nil
		})
	}
	_ = group.Wait()

	// Absolute frame-count rule: whatever happened above, the bundle leaves
	// with exactly numScenes URLs and every index announced once.
	for i := 0; i < numScenes; i++ {
		if bundle.FrameURLs[i] == "" {
			bundle.FrameURLs[i] = o.placeholderFrame(ctx, job.ID, i)
		}
		if !delivered[i] && progress != nil {
			progress <- FrameEvent{Index: i, URL: bundle.FrameURLs[i]}
		}
	}

	return bundle, nil
}

// generateStory runs the mandatory story task across the fallback chain.
// Exhausting the chain fails the job; there is no placeholder for text.
func (o *Orchestrator) generateStory(ctx context.Context, policy providers.FallbackPolicy, seed string, req domain.StoryRequest) (string, error) {
	prompt := buildStoryPrompt(seed, req)
	var story string
	err := o.runTask(ctx, policy, "story", func(taskCtx context.Context, p providers.Provider) error {
		text, err := p.GenerateStory(taskCtx, providers.StoryRequest{
			Prompt:    prompt,
			Locale:    req.Locale,
			RequestID: storage.DeterministicSeed(seed, "story"),
		})
		if err != nil {
			return err
		}
		story = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("story generation: %w", err)
	}
	return story, nil
}

// generateNarration runs the optional narration task. Chain exhaustion
// yields an empty URL rather than an error.
func (o *Orchestrator) generateNarration(ctx context.Context, policy providers.FallbackPolicy, jobID, story string, req domain.StoryRequest) string {
	voice := req.Voice
	if voice == "" {
		voice = o.cfg.DefaultVoice
	}
	var audioURL string
	err := o.runTask(ctx, policy, "narration", func(taskCtx context.Context, p providers.Provider) error {
		url, err := p.Synthesize(taskCtx, providers.NarrationRequest{
			Text:      story,
			Voice:     voice,
			RequestID: jobID,
		})
		if err != nil {
			return err
		}
		audioURL = url
		return nil
	})
	if err != nil {
		o.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Msg("orchestrator: narration unavailable, bundle ships without audio")
		return ""
	}
	return audioURL
}

// generateFrame runs one frame task. Chain exhaustion yields a
// deterministic placeholder; the returned URL is never empty.
func (o *Orchestrator) generateFrame(ctx context.Context, policy providers.FallbackPolicy, jobID, story string, index int) string {
	var frameURL string
	err := o.runTask(ctx, policy, fmt.Sprintf("frame[%d]", index), func(taskCtx context.Context, p providers.Provider) error {
		urls, err := p.CreateFrames(taskCtx, providers.FramesRequest{
			StoryText:  story,
			NumScenes:  1,
			SceneIndex: index,
			RequestID:  jobID,
		})
		if err != nil {
			return err
		}
		if len(urls) == 0 || urls[0] == "" {
			return fmt.Errorf("provider returned no frame url")
		}
		frameURL = urls[0]
		return nil
	})
	if err != nil {
		o.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Int("index", index).
			Msg("orchestrator: frame degraded to placeholder")
		return o.placeholderFrame(ctx, jobID, index)
	}
	return frameURL
}

// placeholderFrame renders the deterministic fallback frame for an index.
// If even the local write fails the URL still resolves deterministically,
// so the frame-count invariant holds no matter what.
func (o *Orchestrator) placeholderFrame(ctx context.Context, jobID string, index int) string {
	seed := storage.DeterministicSeed(jobID, "placeholder", index)
	key := fmt.Sprintf("placeholders/%s/%02d-%s.png", jobID, index, seed)
	if data := storage.RenderFramePNG(1024, 1024, seed); data != nil {
		if saved, err := o.store.Write(ctx, key, data); err == nil {
			key = saved
		} else {
			o.logger.Warn().Err(err).Str("job_id", jobID).Int("index", index).Msg("orchestrator: placeholder write failed")
		}
	}
	return o.store.URL(key)
}

// recoverTask keeps a crashed sub-task from taking down the fan-out; the
// post-join pass fills in whatever the task failed to deliver.
func (o *Orchestrator) recoverTask(jobID, task string) {
	if r := recover(); r != nil {
		o.logger.Error().
			Str("job_id", jobID).
			Str("task", task).
			Interface("panic", r).
			Msg("orchestrator: sub-task crashed")
	}
}

func childModeFor(req domain.StoryRequest) (bool, guard.FilterLevel) {
	if req.ChildMode == "" {
		return false, guard.FilterStandard
	}
	return true, guard.NormalizeFilterLevel(req.ChildMode)
}
