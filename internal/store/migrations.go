package store

const schema = `
-- Provider narratives keyed by request (kind + input)
CREATE TABLE IF NOT EXISTS narratives (
    kind        TEXT    NOT NULL,
    input       TEXT    NOT NULL,
    narrative   TEXT    NOT NULL,
    ts          INTEGER NOT NULL,
    PRIMARY KEY (kind, input)
) WITHOUT ROWID;

-- One row per generated report
CREATE TABLE IF NOT EXISTS reports (
    id              TEXT PRIMARY KEY,
    ts              INTEGER NOT NULL,
    project         TEXT    NOT NULL,
    source_path     TEXT    NOT NULL,
    output_path     TEXT    NOT NULL,
    server_count    INTEGER NOT NULL,
    total_cpu       INTEGER NOT NULL,
    total_memory_gb REAL    NOT NULL,
    slides          INTEGER NOT NULL,
    insights        INTEGER NOT NULL
);

-- Secondary indexes
CREATE INDEX IF NOT EXISTS idx_narratives_ts ON narratives(ts);
CREATE INDEX IF NOT EXISTS idx_reports_ts ON reports(ts);
`
