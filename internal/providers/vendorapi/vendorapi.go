// Package vendorapi implements the third-party vendor back-end over the
// DashScope-style multimodal API. It sits between cloud and local in the
// default fallback chain.
package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyforge/internal/infra"
	"storyforge/internal/providers"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("vendorapi: api key is required")

// Options configures the vendor client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Generator performs HTTP calls against the vendor generation API. The
// vendor hosts generated media itself, so responses carry URLs directly.
type Generator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewGenerator(opts Options) (*Generator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Generator{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}, nil
}

func (g *Generator) Kind() providers.Kind { return providers.KindVendor }

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Prompt string `json:"prompt"`
	Text   string `json:"text,omitempty"`
	Voice  string `json:"voice,omitempty"`
}

type generationParams struct {
	N    int    `json:"n,omitempty"`
	Seed string `json:"seed,omitempty"`
}

type generationResponse struct {
	Output struct {
		Text     string `json:"text"`
		AudioURL string `json:"audio_url"`
		Results  []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// GenerateStory asks the vendor text model for narrative text.
func (g *Generator) GenerateStory(ctx context.Context, req providers.StoryRequest) (string, error) {
	payload := generationRequest{
		Model: "qwen-plus",
		Input: generationInput{Prompt: req.Prompt},
	}
	response, err := g.invoke(ctx, "/services/aigc/text-generation/generation", payload)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(response.Output.Text)
	if text == "" {
		return "", fmt.Errorf("vendorapi: empty story response")
	}
	return text, nil
}

// Synthesize asks the vendor speech model for narrated audio. The vendor
// returns a hosted URL.
func (g *Generator) Synthesize(ctx context.Context, req providers.NarrationRequest) (string, error) {
	payload := generationRequest{
		Model: "cosyvoice-v1",
		Input: generationInput{Text: req.Text, Voice: req.Voice},
	}
	response, err := g.invoke(ctx, "/services/aigc/tts/generation", payload)
	if err != nil {
		return "", err
	}
	if response.Output.AudioURL == "" {
		return "", fmt.Errorf("vendorapi: empty audio response")
	}
	return response.Output.AudioURL, nil
}

// CreateFrames asks the vendor image model for illustration frames hosted
// by the vendor.
func (g *Generator) CreateFrames(ctx context.Context, req providers.FramesRequest) ([]string, error) {
	n := req.NumScenes
	if n < 1 {
		n = 1
	}
	payload := generationRequest{
		Model: "wanx2.1-t2i-turbo",
		Input: generationInput{
			Prompt: fmt.Sprintf("Scene %d illustration, children's storybook style: %s", req.SceneIndex+1, req.StoryText),
		},
		Parameters: generationParams{N: n},
	}
	response, err := g.invoke(ctx, "/services/aigc/text2image/image-synthesis", payload)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, n)
	for _, result := range response.Output.Results {
		if result.URL == "" {
			continue
		}
		urls = append(urls, result.URL)
		if len(urls) == n {
			break
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("vendorapi: response contained no image urls")
	}
	return urls, nil
}

func (g *Generator) invoke(ctx context.Context, path string, payload generationRequest) (*generationResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("vendorapi: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vendorapi: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vendorapi: call api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("vendorapi: read response: %w", err)
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("vendorapi: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Message != "" {
			return nil, fmt.Errorf("vendorapi: api status %d: %s: %s", resp.StatusCode, decoded.Code, decoded.Message)
		}
		return nil, fmt.Errorf("vendorapi: api status %d", resp.StatusCode)
	}
	g.logger.Debug().
		Str("request_id", decoded.RequestID).
		Str("path", path).
		Msg("vendorapi: call ok")
	return &decoded, nil
}

var _ providers.Provider = (*Generator)(nil)
