package store

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS batches (
    id          TEXT PRIMARY KEY,
    root        TEXT NOT NULL,
    mode        TEXT NOT NULL,
    columns     TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    runs        INTEGER NOT NULL,
    failed      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_results (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id    TEXT NOT NULL REFERENCES batches(id),
    path        TEXT NOT NULL,
    status      TEXT NOT NULL,
    error       TEXT,
    duration_ms INTEGER NOT NULL,
    metrics     TEXT
);

CREATE INDEX IF NOT EXISTS idx_run_results_batch ON run_results(batch_id);`

const insertBatchSQL = `
INSERT INTO batches (id, root, mode, columns, started_at, finished_at, runs, failed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const insertResultSQL = `
INSERT INTO run_results (batch_id, path, status, error, duration_ms, metrics)
VALUES (?, ?, ?, ?, ?, ?)`

const selectBatchesSQL = `
SELECT id, root, mode, columns, started_at, finished_at, runs, failed
FROM batches
ORDER BY started_at`

const selectResultsSQL = `
SELECT path, status, error, duration_ms, metrics
FROM run_results
WHERE batch_id = ?
ORDER BY id`
