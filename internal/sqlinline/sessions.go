package sqlinline

const QInsertSession = `--sql 8c2e41d7-5b1a-4f6e-9c3d-7a8b2e4f1c05
insert into sessions(id, job_id, seed, profile, story_text, created_at)
values ($1::uuid, $2::uuid, $3, $4, $5, now());
`

const QInsertSessionAsset = `--sql 3f9b1a26-7d4c-4e8a-b1f2-9c6d5e3a7b14
insert into session_assets(session_id, kind, scene_index, url, created_at)
values ($1::uuid, $2, $3::int, $4, now());
`
