package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				first_name TEXT NOT NULL,
				last_name TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				personal_email TEXT NOT NULL,
				batch_number INTEGER NOT NULL DEFAULT 0,
				department TEXT,
				status TEXT NOT NULL DEFAULT 'onboarding',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS groups (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS workflow_runs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				triggering_event_id TEXT NOT NULL DEFAULT '',
				idempotency_key TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				steps JSONB NOT NULL DEFAULT '[]',
				suspended_on JSONB,
				result JSONB,
				error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_workflow_runs_dedup
				ON workflow_runs (workflow_id, idempotency_key)
				WHERE status IN ('running', 'waiting') AND idempotency_key <> '';

			CREATE INDEX IF NOT EXISTS idx_workflow_runs_workflow
				ON workflow_runs (workflow_id, created_at DESC);
		`,
	}
}
