package domain

import "time"

// Tier is the priority class a job is admitted under. Paid jobs are always
// served before free jobs; within a tier jobs are served in arrival order.
type Tier string

const (
	TierPaid Tier = "paid"
	TierFree Tier = "free"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// StoryRequest is the payload a caller submits to have a bundle generated.
type StoryRequest struct {
	Seed      string `json:"seed"`
	Profile   string `json:"profile,omitempty"`
	ChildMode string `json:"child_mode,omitempty"`
	NumScenes int    `json:"num_scenes"`
	Voice     string `json:"voice,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// Bundle is the complete generation result for one job. FrameURLs always has
// exactly the requested number of entries; AudioURL may be empty when
// narration could not be produced.
type Bundle struct {
	StoryText string   `json:"story_text"`
	AudioURL  string   `json:"audio_url,omitempty"`
	FrameURLs []string `json:"frame_urls"`
}

// Job encapsulates the lifecycle of one generation request. The tier never
// changes after creation; status is mutated only by the worker. A finished
// job carries either Result or ErrorMessage, never both.
type Job struct {
	ID           string
	Tier         Tier
	Request      StoryRequest
	Status       JobStatus
	Result       *Bundle
	ErrorMessage string
	CreatedAt    time.Time
}
