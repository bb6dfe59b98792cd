package domain

import "context"

// Session is the persisted record of one delivered bundle.
type Session struct {
	ID        string
	JobID     string
	Seed      string
	Profile   string
	StoryText string
}

// SessionAsset is one persisted media asset belonging to a session.
type SessionAsset struct {
	Kind  string // "audio" or "frame"
	Index int
	URL   string
}

// PersistenceStore records finished bundles. The core invokes it only after
// the orchestrator has returned; generation itself never touches storage.
type PersistenceStore interface {
	CreateSession(ctx context.Context, session *Session) error
	CreateAssets(ctx context.Context, sessionID string, assets []SessionAsset) error
}

// ModerationSink receives guard violations together with the offending
// content for human review. Calls are fire-and-forget from the core's
// perspective; failures are logged, never propagated.
type ModerationSink interface {
	Report(ctx context.Context, jobID, stage, content string, violations []ViolationRecord) error
}

// ViolationRecord mirrors guard.Violation without importing the guard
// package, keeping domain free of inward dependencies.
type ViolationRecord struct {
	Category string
	Detail   string
}

// AuthProvider resolves a caller identity into the tier its jobs are
// admitted under. The real identity system lives outside the core.
type AuthProvider interface {
	ResolveTier(ctx context.Context, token string) (Tier, error)
}
