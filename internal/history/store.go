// Package history keeps a ledger of build runs in SQLite: which board and
// chip were built, the final pipeline state, the artifact digest and every
// diagnostic. It implements pipeline.Recorder.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/boardcfg/internal/pipeline"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// DBFile is the ledger file name inside the data directory.
const DBFile = "history.db"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store is closed")

var _ pipeline.Recorder = (*Store)(nil)

// Run is one recorded build.
type Run struct {
	ID          string             `json:"id"`
	Board       string             `json:"board"`
	Chip        string             `json:"chip"`
	State       string             `json:"state"`
	Layers      []string           `json:"layers"`
	Format      string             `json:"format,omitempty"`
	Digest      string             `json:"digest,omitempty"`
	Error       string             `json:"error,omitempty"`
	Failures    int                `json:"failures"`
	Warnings    int                `json:"warnings"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
	Warned      []types.Diagnostic `json:"warned,omitempty"`
}

// Store is the SQLite-backed build ledger. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens or creates the ledger in dataDir.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection keeps per-connection pragmas in effect and serialises
	// writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the ledger file path.
func (s *Store) Path() string { return s.path }

// Close releases the database. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record stores a finished pipeline run. An empty outcome ID is replaced
// by a fresh UUID v7.
func (s *Store) Record(o pipeline.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	id := o.ID
	if id == "" {
		newID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating UUID v7: %w", err)
		}
		id = newID.String()
	}

	layers, err := json.Marshal(nonNil(o.Layers))
	if err != nil {
		return fmt.Errorf("encoding layers: %w", err)
	}
	var errText string
	if o.Err != nil {
		errText = o.Err.Error()
	}
	var diags, warns []types.Diagnostic
	if o.Report != nil {
		diags, warns = o.Report.Diagnostics, o.Report.Warnings
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning record transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO builds (run_id, board, chip, state, layers, format, digest, error, failures, warnings, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, o.Board, o.Chip, o.State.String(), string(layers), o.Format, o.Digest, errText,
		len(diags), len(warns), formatTime(o.Started), formatTime(o.Finished),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", id, err)
	}

	seq := 0
	insert := func(severity string, d types.Diagnostic) error {
		dLayers, err := json.Marshal(nonNil(d.Layers))
		if err != nil {
			return err
		}
		seq++
		_, err = tx.Exec(
			`INSERT INTO diagnostics (run_id, seq, severity, kind, symbol, layers, message, source, line)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, seq, severity, string(d.Kind), d.Symbol, string(dLayers), d.Message, d.Source, d.Line,
		)
		return err
	}
	for _, d := range diags {
		if err := insert(severityError, d); err != nil {
			return fmt.Errorf("inserting diagnostic for run %s: %w", id, err)
		}
	}
	for _, d := range warns {
		if err := insert(severityWarning, d); err != nil {
			return fmt.Errorf("inserting warning for run %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", id, err)
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	Board string // exact board name; empty matches all
	Limit int    // zero or negative means no limit
}

// List returns recorded runs, most recent first, without their diagnostics.
func (s *Store) List(f Filter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT run_id, board, chip, state, layers, format, digest, error, failures, warnings, started_at, finished_at FROM builds`
	var args []any
	if f.Board != "" {
		query += " WHERE board = ?"
		args = append(args, f.Board)
	}
	query += " ORDER BY started_at DESC, run_id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := hydrateRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its diagnostics. A unique prefix of the run ID
// is accepted. It returns types.ErrRunNotFound when nothing matches.
func (s *Store) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return Run{}, ErrClosed
	}
	if id == "" {
		return Run{}, types.ErrRunNotFound
	}

	rows, err := s.db.Query(
		`SELECT run_id, board, chip, state, layers, format, digest, error, failures, warnings, started_at, finished_at
		 FROM builds WHERE run_id = ? OR run_id LIKE ? ESCAPE '\' ORDER BY run_id LIMIT 2`,
		id, escapeLike(id)+"%",
	)
	if err != nil {
		return Run{}, fmt.Errorf("querying run %s: %w", id, err)
	}
	var matches []Run
	for rows.Next() {
		r, err := hydrateRun(rows)
		if err != nil {
			rows.Close()
			return Run{}, err
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterating runs: %w", err)
	}

	var run Run
	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%w: %s", types.ErrRunNotFound, id)
	case len(matches) == 1 || matches[0].ID == id:
		run = matches[0]
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	if err := s.hydrateDiagnostics(&run); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) hydrateDiagnostics(run *Run) error {
	rows, err := s.db.Query(
		`SELECT severity, kind, symbol, layers, message, source, line FROM diagnostics WHERE run_id = ? ORDER BY seq`,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("querying diagnostics for run %s: %w", run.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity, kind, layers, message string
		var symbol, source sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&severity, &kind, &symbol, &layers, &message, &source, &line); err != nil {
			return fmt.Errorf("scanning diagnostic: %w", err)
		}
		d := types.Diagnostic{
			Kind:    types.ErrorKind(kind),
			Symbol:  symbol.String,
			Message: message,
			Source:  source.String,
			Line:    int(line.Int64),
		}
		if err := json.Unmarshal([]byte(layers), &d.Layers); err != nil {
			return fmt.Errorf("decoding diagnostic layers: %w", err)
		}
		if len(d.Layers) == 0 {
			d.Layers = nil
		}
		if severity == severityWarning {
			run.Warned = append(run.Warned, d)
		} else {
			run.Diagnostics = append(run.Diagnostics, d)
		}
	}
	return rows.Err()
}

// Export writes every run with its diagnostics to w as JSON lines, oldest
// first.
func (s *Store) Export(w io.Writer) error {
	runs, err := s.List(Filter{})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for i := len(runs) - 1; i >= 0; i-- {
		run, err := s.Get(runs[i].ID)
		if err != nil {
			return err
		}
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("writing run %s: %w", run.ID, err)
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func hydrateRun(row scanner) (Run, error) {
	var r Run
	var layers, started, finished string
	var format, digest, errText sql.NullString
	if err := row.Scan(&r.ID, &r.Board, &r.Chip, &r.State, &layers, &format, &digest, &errText,
		&r.Failures, &r.Warnings, &started, &finished); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	if err := json.Unmarshal([]byte(layers), &r.Layers); err != nil {
		return Run{}, fmt.Errorf("decoding layers of run %s: %w", r.ID, err)
	}
	r.Format, r.Digest, r.Error = format.String, digest.String, errText.String

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("parsing started_at of run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("parsing finished_at of run %s: %w", r.ID, err)
	}
	return r, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`%`, `\%`, `_`, `\_`, `\`, `\\`)
	return r.Replace(s)
}
