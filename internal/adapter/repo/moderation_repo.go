package repo

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/sqlinline"
)

// ModerationRepositoryPG implements domain.ModerationSink using PostgreSQL.
// Reports queue up for human review; the worker treats a failed insert as
// log-and-continue.
type ModerationRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewModerationRepository(sql infra.SQLExecutor) *ModerationRepositoryPG {
	return &ModerationRepositoryPG{sql: sql}
}

func (r *ModerationRepositoryPG) Report(ctx context.Context, jobID, stage, content string, violations []domain.ViolationRecord) error {
	payload, err := json.Marshal(violations)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertModerationReport,
		uuid.NewString(), jobID, stage, content, payload)
	return err
}

var _ domain.ModerationSink = (*ModerationRepositoryPG)(nil)
