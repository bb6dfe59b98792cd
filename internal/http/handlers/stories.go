package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storyforge/internal/domain"
)

type submitRequest struct {
	Seed      string `json:"seed"`
	Profile   string `json:"profile"`
	ChildMode string `json:"child_mode"`
	NumScenes int    `json:"num_scenes"`
	Voice     string `json:"voice"`
	Locale    string `json:"locale"`
}

type submitResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
}

type statusResponse struct {
	JobID         string         `json:"job_id"`
	Status        string         `json:"status"`
	QueuePosition *int           `json:"queue_position,omitempty"`
	Result        *domain.Bundle `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// SubmitStory admits one generation request. The capacity limit is enforced
// inside TryEnqueue, so a full queue rejects without creating a job even
// when submissions race.
func (a *App) SubmitStory(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Seed = strings.TrimSpace(req.Seed)
	if req.Seed == "" {
		a.jsonError(w, http.StatusBadRequest, "seed is required")
		return
	}
	if req.NumScenes < 1 {
		req.NumScenes = a.Cfg.DefaultScenes
	}
	if req.NumScenes > a.Cfg.MaxScenes {
		a.jsonError(w, http.StatusBadRequest, "num_scenes above limit")
		return
	}

	tier, err := a.Auth.ResolveTier(r.Context(), bearerToken(r))
	if err != nil {
		a.jsonError(w, http.StatusUnauthorized, "could not resolve caller tier")
		return
	}

	jobID, ok := a.Scheduler.TryEnqueue(domain.StoryRequest{
		Seed:      req.Seed,
		Profile:   strings.TrimSpace(req.Profile),
		ChildMode: strings.TrimSpace(req.ChildMode),
		NumScenes: req.NumScenes,
		Voice:     strings.TrimSpace(req.Voice),
		Locale:    strings.TrimSpace(req.Locale),
	}, tier, a.Cfg.QueueCapacity)
	if !ok {
		a.jsonError(w, http.StatusServiceUnavailable, domain.ErrQueueFull.Error())
		return
	}

	position, _ := a.Scheduler.QueuePosition(jobID)
	a.json(w, http.StatusAccepted, submitResponse{
		JobID:         jobID,
		Status:        string(domain.JobStatusQueued),
		QueuePosition: position,
	})
}

// StoryStatus reports the job's lifecycle state, its queue position while
// still queued, and the bundle or error once finished.
func (a *App) StoryStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := a.Scheduler.Get(id)
	if !ok {
		a.jsonError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := statusResponse{JobID: job.ID, Status: string(job.Status)}
	if position, queued := a.Scheduler.QueuePosition(id); queued {
		resp.QueuePosition = &position
	}
	if job.Status == domain.JobStatusCompleted {
		resp.Result = job.Result
	}
	if job.Status == domain.JobStatusFailed {
		resp.Error = job.ErrorMessage
	}
	a.json(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
