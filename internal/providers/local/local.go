// Package local implements the in-process CPU generation back-end. It keeps
// the pipeline fully operational without network access or API keys: output
// is deterministic and seeded from the request, in the same spirit as the
// synthetic assets the cloud client falls back to in development.
package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"

	"storyforge/internal/infra"
	"storyforge/internal/providers"
	"storyforge/internal/storage"
)

// MinAvailableBytes is the memory floor below which the CPU model is not
// registered at all. Loading the model on a starved host would push the
// process into swap and starve every other sub-task.
const MinAvailableBytes = 1 << 30

// HasCapacity reports whether the host has enough free memory to hold the
// local model. Called once at startup; a probe error counts as viable so a
// missing procfs never disables the only offline back-end.
func HasCapacity(logger infra.Logger) bool {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn().Err(err).Msg("local: memory probe failed, assuming capacity")
		return true
	}
	if vm.Available < MinAvailableBytes {
		logger.Warn().
			Uint64("available", vm.Available).
			Uint64("required", MinAvailableBytes).
			Msg("local: not enough memory for CPU model")
		return false
	}
	return true
}

// Generator holds the loaded model handle. Construction stands in for the
// cold model load and is therefore deferred to the provider pool.
type Generator struct {
	store  *storage.FileStore
	logger infra.Logger
}

func NewGenerator(store *storage.FileStore, logger infra.Logger) (*Generator, error) {
	if store == nil {
		return nil, fmt.Errorf("local: file store is required")
	}
	logger.Info().Msg("local: model loaded")
	return &Generator{store: store, logger: logger}, nil
}

func (g *Generator) Kind() providers.Kind { return providers.KindLocal }

var storyShapes = []string{
	"Once upon a time, %s.",
	"Every morning they would wonder about it, and every evening they talked about what they had seen.",
	"One day, something small and wonderful changed everything.",
	"They helped each other, laughed together, and learned something new.",
	"And when the stars came out, everyone agreed it had been a very good day.",
}

// GenerateStory produces a deterministic narrative from the prompt. The
// same prompt always yields the same story.
func (g *Generator) GenerateStory(ctx context.Context, req providers.StoryRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seedLine := strings.TrimSpace(req.Prompt)
	if seedLine == "" {
		seedLine = "there was a quiet little village"
	}
	lines := make([]string, 0, len(storyShapes))
	lines = append(lines, fmt.Sprintf(storyShapes[0], lowerFirst(seedLine)))
	lines = append(lines, storyShapes[1:]...)
	return strings.Join(lines, " "), nil
}

// Synthesize writes a silent narration stub sized to the text and returns
// its URL.
func (g *Generator) Synthesize(ctx context.Context, req providers.NarrationRequest) (string, error) {
	seconds := len(strings.Fields(req.Text)) / 3
	if seconds < 2 {
		seconds = 2
	}
	seed := storage.DeterministicSeed(req.RequestID, req.Voice, "narration")
	key := fmt.Sprintf("generated/audio/%s/%s.wav", req.RequestID, seed)
	saved, err := g.store.Write(ctx, key, storage.SilentWAV(seconds))
	if err != nil {
		return "", fmt.Errorf("local: persist narration: %w", err)
	}
	return g.store.URL(saved), nil
}

// CreateFrames renders deterministic frames for the request and returns
// their URLs.
func (g *Generator) CreateFrames(ctx context.Context, req providers.FramesRequest) ([]string, error) {
	n := req.NumScenes
	if n < 1 {
		n = 1
	}
	urls := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := req.SceneIndex + i
		seed := storage.DeterministicSeed(req.RequestID, req.StoryText, index)
		key := fmt.Sprintf("generated/frames/%s/%02d-%s.png", req.RequestID, index, seed)
		saved, err := g.store.Write(ctx, key, storage.RenderFramePNG(1024, 1024, seed))
		if err != nil {
			return nil, fmt.Errorf("local: persist frame %d: %w", index, err)
		}
		urls = append(urls, g.store.URL(saved))
	}

	g.logger.Debug().
		Str("request_id", req.RequestID).
		Int("frames", n).
		Msg("local: frames rendered")
	return urls, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var _ providers.Provider = (*Generator)(nil)
