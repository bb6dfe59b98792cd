package handlers

import (
	"encoding/json"
	"net/http"

	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/scheduler"
)

// App wires the handlers to the scheduler and collaborators.
type App struct {
	Scheduler *scheduler.Scheduler
	Auth      domain.AuthProvider
	Cfg       *infra.Config
	Logger    infra.Logger
}

func NewApp(sched *scheduler.Scheduler, auth domain.AuthProvider, cfg *infra.Config, logger infra.Logger) *App {
	return &App{Scheduler: sched, Auth: auth, Cfg: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}
