package sqlinline

const QInsertModerationReport = `--sql b5e7d2c9-1a3f-4b6d-8e2c-4f7a9b1d6e38
insert into moderation_reports(id, job_id, stage, content, violations, created_at)
values ($1::uuid, $2::uuid, $3, $4, $5::jsonb, now());
`
