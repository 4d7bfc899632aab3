package history

const schema = `
CREATE TABLE IF NOT EXISTS compiles (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    artifact_present BOOLEAN NOT NULL DEFAULT FALSE,
    source_bytes INTEGER NOT NULL,
    output TEXT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_compiles_started_at ON compiles(started_at);
CREATE INDEX IF NOT EXISTS idx_compiles_status ON compiles(status);
`
