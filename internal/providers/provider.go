// Package providers defines the generation back-end contract, the static
// capability table mapping provider kinds to implementations, and the
// fallback-chain selection used when a back-end fails.
package providers

import "context"

// Kind identifies an interchangeable generation back-end. The set is fixed
// at startup; selection logic compares kinds by identity, never by
// implementation type.
type Kind string

const (
	KindCloud        Kind = "cloud"
	KindLocal        Kind = "local"
	KindNativeMobile Kind = "native_mobile"
	KindVendor       Kind = "vendor"

	// KindNone marks the absence of a previously failed provider.
	KindNone Kind = ""
)

// StoryRequest carries the sanitized, model-facing story prompt.
type StoryRequest struct {
	Prompt    string
	Locale    string
	RequestID string
}

// NarrationRequest asks for narrated audio of an approved story.
type NarrationRequest struct {
	Text      string
	Voice     string
	RequestID string
}

// FramesRequest asks for NumScenes illustration frames for a story.
// SceneIndex is the index of the first requested frame; the orchestrator
// issues one-frame requests so each scene can be retried independently.
type FramesRequest struct {
	StoryText  string
	NumScenes  int
	SceneIndex int
	RequestID  string
}

// Provider is the contract every generation back-end implements. Every call
// must honor the caller-supplied context deadline.
type Provider interface {
	Kind() Kind
	GenerateStory(ctx context.Context, req StoryRequest) (string, error)
	Synthesize(ctx context.Context, req NarrationRequest) (string, error)
	CreateFrames(ctx context.Context, req FramesRequest) ([]string, error)
}
