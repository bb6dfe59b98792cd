// Package cloud implements the remote generation back-end over the Gemini
// REST surface. It is the primary provider in the default fallback chain.
package cloud

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyforge/internal/infra"
	"storyforge/internal/providers"
	"storyforge/internal/storage"
)

// Options controls how the cloud client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Store      *storage.FileStore
}

// Generator talks to the remote generation API. Failures surface as errors;
// fallback decisions belong to the orchestrator, never to the client.
type Generator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	store      *storage.FileStore
}

// NewGenerator constructs a cloud client. An API key is mandatory: without
// one the kind should simply not be registered.
func NewGenerator(opts Options) (*Generator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("cloud: api key is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("cloud: file store is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}

	return &Generator{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
		store:      opts.Store,
	}, nil
}

func (g *Generator) Kind() providers.Kind { return providers.KindCloud }

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	CandidateCount   int    `json:"candidateCount,omitempty"`
	ResponseModality string `json:"responseModality,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// GenerateStory asks the remote model for narrative text.
func (g *Generator) GenerateStory(ctx context.Context, req providers.StoryRequest) (string, error) {
	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	var response generateContentResponse
	if err := g.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(g.model)), payload, &response); err != nil {
		return "", err
	}
	text := firstText(response)
	if text == "" {
		return "", fmt.Errorf("cloud: empty story response")
	}
	return text, nil
}

// Synthesize narrates the text and persists the returned audio bytes,
// yielding a public URL.
func (g *Generator) Synthesize(ctx context.Context, req providers.NarrationRequest) (string, error) {
	payload := map[string]any{
		"input": map[string]string{"text": req.Text},
		"voice": map[string]string{"name": req.Voice},
		"audioConfig": map[string]string{
			"audioEncoding": "MP3",
		},
	}
	var response struct {
		AudioContent string `json:"audioContent"`
	}
	if err := g.invoke(ctx, fmt.Sprintf("/models/%s:synthesizeSpeech", url.PathEscape(g.model)), payload, &response); err != nil {
		return "", err
	}
	audio, err := base64.StdEncoding.DecodeString(response.AudioContent)
	if err != nil || len(audio) == 0 {
		return "", fmt.Errorf("cloud: invalid audio payload")
	}
	key := fmt.Sprintf("generated/audio/%s/narration.mp3", req.RequestID)
	saved, err := g.store.Write(ctx, key, audio)
	if err != nil {
		return "", fmt.Errorf("cloud: persist narration: %w", err)
	}
	return g.store.URL(saved), nil
}

// CreateFrames requests illustration frames and persists each returned
// image, yielding public URLs.
func (g *Generator) CreateFrames(ctx context.Context, req providers.FramesRequest) ([]string, error) {
	n := req.NumScenes
	if n < 1 {
		n = 1
	}
	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{
			Text: framePrompt(req),
		}}}},
		GenerationConfig: &generationConfig{
			CandidateCount:   n,
			ResponseModality: "IMAGE",
		},
	}
	var response generateContentResponse
	if err := g.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(g.model)), payload, &response); err != nil {
		return nil, err
	}

	var urls []string
	for _, candidate := range response.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			index := req.SceneIndex + len(urls)
			key := fmt.Sprintf("generated/frames/%s/%02d.png", req.RequestID, index)
			saved, err := g.store.Write(ctx, key, data)
			if err != nil {
				return nil, fmt.Errorf("cloud: persist frame %d: %w", index, err)
			}
			urls = append(urls, g.store.URL(saved))
			if len(urls) == n {
				return urls, nil
			}
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("cloud: response contained no image data")
	}
	return urls, nil
}

func framePrompt(req providers.FramesRequest) string {
	return fmt.Sprintf(
		"Illustrate scene %d of the following children's story as a single warm, friendly picture. Story: %s",
		req.SceneIndex+1, req.StoryText,
	)
}

func (g *Generator) invoke(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cloud: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s%s?key=%s", g.baseURL, path, url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cloud: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cloud: call api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("cloud: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("cloud: api status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("cloud: api status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cloud: decode response: %w", err)
	}
	return nil
}

func firstText(response generateContentResponse) string {
	for _, candidate := range response.Candidates {
		for _, p := range candidate.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

var _ providers.Provider = (*Generator)(nil)
