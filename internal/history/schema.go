package history

// Schema DDL. Statements are idempotent so an existing ledger is reused.
const (
	createBuilds = `CREATE TABLE IF NOT EXISTS builds (
    run_id TEXT PRIMARY KEY,
    board TEXT NOT NULL,
    chip TEXT NOT NULL,
    state TEXT NOT NULL,
    layers TEXT NOT NULL,
    format TEXT,
    digest TEXT,
    error TEXT,
    failures INTEGER NOT NULL,
    warnings INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);`

	createDiagnostics = `CREATE TABLE IF NOT EXISTS diagnostics (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    severity TEXT NOT NULL,
    kind TEXT NOT NULL,
    symbol TEXT,
    layers TEXT NOT NULL,
    message TEXT NOT NULL,
    source TEXT,
    line INTEGER,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES builds(run_id) ON DELETE CASCADE
);`

	createBuildsBoardIndex = `CREATE INDEX IF NOT EXISTS idx_builds_board ON builds(board, started_at);`
)

var schemaStatements = []string{createBuilds, createDiagnostics, createBuildsBoardIndex}

const (
	severityError   = "error"
	severityWarning = "warning"
)
