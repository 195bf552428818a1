package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/siteaudit/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "siteaudit.db"

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("audit run not found")

// AuditDB stores audit runs, their findings and their reports.
type AuditDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures AuditDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// When CreateIfNotExists is false a missing database is an error.
func Open(dbDir string, opts Options) (*AuditDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run 'siteaudit audit' first)", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	dsn += "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; SQLite allows only one at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &AuditDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return adb, nil
}

// Path returns the database file path.
func (adb *AuditDB) Path() string {
	return adb.dbPath
}

// Close closes the database connection.
func (adb *AuditDB) Close() error {
	return adb.db.Close()
}

func (adb *AuditDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		organization TEXT NOT NULL,
		base_url TEXT NOT NULL,
		mission TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages INTEGER DEFAULT 0,
		images INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		totals TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_org ON audit_runs(organization);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON audit_runs(started_at);

	-- One row per (page, stakeholder) finding
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		stakeholder TEXT NOT NULL,
		benefits TEXT NOT NULL,
		drawbacks TEXT NOT NULL,
		UNIQUE(run_id, url, stakeholder)
	);

	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);

	-- Report documents in chunk order
	CREATE TABLE IF NOT EXISTS stakeholder_reports (
		run_id TEXT NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
		stakeholder TEXT NOT NULL,
		position INTEGER NOT NULL,
		document TEXT NOT NULL,
		PRIMARY KEY(run_id, stakeholder, position)
	);
	`
	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// StakeholderTotals are the counts stored with each run.
type StakeholderTotals struct {
	Pages     int `json:"pages"`
	Benefits  int `json:"benefits"`
	Drawbacks int `json:"drawbacks"`
}

// RunMetadata describes a stored run without its findings.
type RunMetadata struct {
	ID           string
	Organization string
	BaseURL      string
	Mission      string
	StartedAt    time.Time
	FinishedAt   time.Time
	Pages        int
	Images       int
	Status       string
	Error        string

	// Totals maps stakeholder name to its counts.
	Totals map[string]StakeholderTotals
}

// Run status values.
const (
	StatusComplete  = "complete"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

func runStatus(run *model.AuditRun) string {
	switch {
	case run.Cancelled:
		return StatusCancelled
	case run.Failed():
		return StatusFailed
	default:
		return StatusComplete
	}
}

// SaveRun stores run with its findings and reports in one transaction.
// Saving a run ID again replaces the earlier copy.
func (adb *AuditDB) SaveRun(ctx context.Context, run *model.AuditRun) error {
	totals := make(map[string]StakeholderTotals, len(run.Stakeholders))
	for _, st := range run.Stakeholders {
		pages, benefits, drawbacks := run.Findings.Totals(st.Name)
		totals[st.Name] = StakeholderTotals{Pages: pages, Benefits: benefits, Drawbacks: drawbacks}
	}
	totalsJSON, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("failed to serialize totals: %w", err)
	}

	errMsg := run.ErrorMessage
	if errMsg == "" && run.Error != nil {
		errMsg = run.Error.Error()
	}
	pages := 0
	if run.ContentMap != nil {
		pages = run.ContentMap.Len()
	}
	var finishedAt any
	if !run.FinishedAt.IsZero() {
		finishedAt = formatTimestamp(run.FinishedAt)
	}

	tx, err := adb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after Commit

	for _, stmt := range []string{
		`DELETE FROM findings WHERE run_id = ?`,
		`DELETE FROM stakeholder_reports WHERE run_id = ?`,
		`DELETE FROM audit_runs WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, run.ID); err != nil {
			return fmt.Errorf("failed to replace audit run: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO audit_runs (id, organization, base_url, mission, started_at, finished_at, pages, images, status, error, totals)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Organization,
		run.BaseURL,
		run.Mission,
		formatTimestamp(run.StartedAt),
		finishedAt,
		pages,
		len(run.ImageURLs),
		runStatus(run),
		errMsg,
		string(totalsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit run: %w", err)
	}

	for _, url := range run.Findings.URLs() {
		for stakeholder, finding := range run.Findings[url] {
			benefits, drawbacks, err := encodeFinding(finding)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
			INSERT INTO findings (run_id, url, stakeholder, benefits, drawbacks)
			VALUES (?, ?, ?, ?, ?)
			`, run.ID, url, stakeholder, benefits, drawbacks)
			if err != nil {
				return fmt.Errorf("failed to insert finding: %w", err)
			}
		}
	}

	for stakeholder, docs := range run.Reports {
		for i, doc := range docs {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO stakeholder_reports (run_id, stakeholder, position, document)
			VALUES (?, ?, ?, ?)
			`, run.ID, stakeholder, i, doc)
			if err != nil {
				return fmt.Errorf("failed to insert report: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit run: %w", err)
	}
	return nil
}

func encodeFinding(f model.Finding) (string, string, error) {
	benefits := f.Benefits
	if benefits == nil {
		benefits = []string{}
	}
	drawbacks := f.Drawbacks
	if drawbacks == nil {
		drawbacks = []string{}
	}
	b, err := json.Marshal(benefits)
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize benefits: %w", err)
	}
	d, err := json.Marshal(drawbacks)
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize drawbacks: %w", err)
	}
	return string(b), string(d), nil
}

const runColumns = `id, organization, base_url, mission, started_at, finished_at, pages, images, status, error, totals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunMetadata, error) {
	var (
		meta                  RunMetadata
		mission, errMsg       sql.NullString
		startedAt, finishedAt sql.NullString
		totalsJSON            sql.NullString
	)
	err := row.Scan(
		&meta.ID,
		&meta.Organization,
		&meta.BaseURL,
		&mission,
		&startedAt,
		&finishedAt,
		&meta.Pages,
		&meta.Images,
		&meta.Status,
		&errMsg,
		&totalsJSON,
	)
	if err != nil {
		return meta, err
	}

	meta.Mission = mission.String
	meta.Error = errMsg.String
	meta.StartedAt = parseTimestamp(startedAt.String)
	if finishedAt.Valid {
		meta.FinishedAt = parseTimestamp(finishedAt.String)
	}
	meta.Totals = make(map[string]StakeholderTotals)
	if totalsJSON.Valid && totalsJSON.String != "" {
		if err := json.Unmarshal([]byte(totalsJSON.String), &meta.Totals); err != nil {
			meta.Totals = make(map[string]StakeholderTotals)
		}
	}
	return meta, nil
}

// GetRun returns the metadata of one run. A missing run yields ErrRunNotFound.
func (adb *AuditDB) GetRun(ctx context.Context, id string) (RunMetadata, error) {
	row := adb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM audit_runs WHERE id = ?`, id)
	meta, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunMetadata{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunMetadata{}, fmt.Errorf("failed to get audit run: %w", err)
	}
	return meta, nil
}

// LatestRun returns the most recent run of organization.
func (adb *AuditDB) LatestRun(ctx context.Context, organization string) (RunMetadata, error) {
	row := adb.db.QueryRowContext(ctx, `
	SELECT `+runColumns+` FROM audit_runs
	WHERE organization = ?
	ORDER BY started_at DESC
	LIMIT 1
	`, organization)
	meta, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunMetadata{}, fmt.Errorf("%w: no runs for %s", ErrRunNotFound, organization)
	}
	if err != nil {
		return RunMetadata{}, fmt.Errorf("failed to get latest audit run: %w", err)
	}
	return meta, nil
}

// History returns the runs of organization, newest first.
func (adb *AuditDB) History(ctx context.Context, organization string) ([]RunMetadata, error) {
	rows, err := adb.db.QueryContext(ctx, `
	SELECT `+runColumns+` FROM audit_runs
	WHERE organization = ?
	ORDER BY started_at DESC
	`, organization)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// ListOrganizations returns every organization with at least one run, sorted.
func (adb *AuditDB) ListOrganizations(ctx context.Context) ([]string, error) {
	rows, err := adb.db.QueryContext(ctx, `SELECT DISTINCT organization FROM audit_runs ORDER BY organization`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// Findings returns the findings stored for a run.
func (adb *AuditDB) Findings(ctx context.Context, runID string) (model.Findings, error) {
	rows, err := adb.db.QueryContext(ctx, `
	SELECT url, stakeholder, benefits, drawbacks FROM findings
	WHERE run_id = ?
	ORDER BY url, stakeholder
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	findings := model.Findings{}
	for rows.Next() {
		var url, stakeholder, benefits, drawbacks string
		if err := rows.Scan(&url, &stakeholder, &benefits, &drawbacks); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}

		var f model.Finding
		if err := json.Unmarshal([]byte(benefits), &f.Benefits); err != nil {
			return nil, fmt.Errorf("failed to parse benefits: %w", err)
		}
		if err := json.Unmarshal([]byte(drawbacks), &f.Drawbacks); err != nil {
			return nil, fmt.Errorf("failed to parse drawbacks: %w", err)
		}
		findings.Set(url, stakeholder, f)
	}
	return findings, rows.Err()
}

// Reports returns the report documents stored for a run, in chunk order.
func (adb *AuditDB) Reports(ctx context.Context, runID string) (model.Reports, error) {
	rows, err := adb.db.QueryContext(ctx, `
	SELECT stakeholder, document FROM stakeholder_reports
	WHERE run_id = ?
	ORDER BY stakeholder, position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := model.Reports{}
	for rows.Next() {
		var stakeholder, doc string
		if err := rows.Scan(&stakeholder, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports[stakeholder] = append(reports[stakeholder], doc)
	}
	return reports, rows.Err()
}

// DeleteRun removes a run with its findings and reports.
func (adb *AuditDB) DeleteRun(ctx context.Context, id string) error {
	res, err := adb.db.ExecContext(ctx, `DELETE FROM audit_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete audit run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete audit run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// timestampLayout has fixed-width fractional seconds so that lexical order
// of stored values matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time when none match.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
