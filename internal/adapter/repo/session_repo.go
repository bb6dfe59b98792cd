// Package repo holds the PostgreSQL-backed collaborator adapters. The core
// never calls them during generation; the worker invokes them once a bundle
// or a rejection is final.
package repo

import (
	"context"

	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/sqlinline"
)

// SessionRepositoryPG implements domain.PersistenceStore using PostgreSQL.
type SessionRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewSessionRepository(sql infra.SQLExecutor) *SessionRepositoryPG {
	return &SessionRepositoryPG{sql: sql}
}

func (r *SessionRepositoryPG) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertSession,
		session.ID, session.JobID, session.Seed, session.Profile, session.StoryText)
	return err
}

func (r *SessionRepositoryPG) CreateAssets(ctx context.Context, sessionID string, assets []domain.SessionAsset) error {
	for _, asset := range assets {
		if _, err := r.sql.Exec(ctx, sqlinline.QInsertSessionAsset,
			sessionID, asset.Kind, asset.Index, asset.URL); err != nil {
			return err
		}
	}
	return nil
}

var _ domain.PersistenceStore = (*SessionRepositoryPG)(nil)
