// Package casestore provides the SQLite-backed record store for prior case
// records. It is the authoritative home of structured case data: the vector
// index only ever holds a derived copy. Identifiers are assigned here (or
// supplied by the caller for deterministic seeding) and are immutable once
// written.
package casestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned by Get when no case exists for the requested id.
var ErrNotFound = errors.New("casestore: case not found")

// ErrInvalid wraps every validation failure so callers can map it to a
// client error without string matching.
var ErrInvalid = errors.New("casestore: invalid case")

// Case is a single prior case record.
type Case struct {
	// ID is the unique case identifier. Zero on Create means "assign one".
	ID int64 `json:"case_id"`
	// Title is the short case title.
	Title string `json:"title"`
	// Age is the patient age in years.
	Age int `json:"age"`
	// Sex is the enumerated sex code.
	Sex string `json:"sex"`
	// BMI is the body-mass-index.
	BMI float64 `json:"bmi"`
	// Smoker indicates smoking status.
	Smoker bool `json:"smoker"`
	// DefectLengthCM is the defect length in centimeters.
	DefectLengthCM float64 `json:"defect_length_cm"`
	// DonorSite is the flap donor site. Matching is case-insensitive.
	DonorSite string `json:"donor_site"`
	// TechniqueSummary is the free-text technique description.
	TechniqueSummary string `json:"technique_summary"`
	// Complications is optional free text; empty means absent.
	Complications string `json:"complications,omitempty"`
	// Notes is optional free text; empty means absent.
	Notes string `json:"notes,omitempty"`
	// OutcomeRating is the outcome grade, 1–5 inclusive.
	OutcomeRating int `json:"outcome_rating"`
	// ImagingMeta is optional imaging metadata; empty means absent.
	ImagingMeta string `json:"imaging_meta,omitempty"`
	// Synthetic marks generated (non-clinical) records.
	Synthetic bool `json:"synthetic"`
	// CreatedAt is assigned at write time.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the record invariants that must hold before a write.
func (c *Case) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if c.OutcomeRating < 1 || c.OutcomeRating > 5 {
		return fmt.Errorf("%w: outcome_rating must be between 1 and 5, got %d", ErrInvalid, c.OutcomeRating)
	}
	return nil
}

// Store persists case records in a local SQLite database.
// It is safe for concurrent use; writes are serialized on a single connection.
type Store struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("casestore: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS cases (
    case_id           INTEGER PRIMARY KEY AUTOINCREMENT,
    title             TEXT    NOT NULL,
    age               INTEGER NOT NULL,
    sex               TEXT    NOT NULL,
    bmi               REAL    NOT NULL,
    smoker            INTEGER NOT NULL,
    defect_length_cm  REAL    NOT NULL,
    donor_site        TEXT    NOT NULL,
    technique_summary TEXT    NOT NULL,
    complications     TEXT,
    notes             TEXT,
    outcome_rating    INTEGER NOT NULL CHECK(outcome_rating BETWEEN 1 AND 5),
    imaging_meta      TEXT,
    synthetic         INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL  -- Unix timestamp (nanoseconds)
);
CREATE INDEX IF NOT EXISTS idx_cases_created
    ON cases (created_at DESC);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("casestore: migrate: %w", err)
	}
	return nil
}

// Create writes a case record atomically and returns its identifier.
// A zero c.ID lets SQLite assign the next identifier; a non-zero c.ID is used
// as-is and overwrites any existing record with that id (every column takes
// the new record's value, so re-ingestion leaves no residue).
func (s *Store) Create(ctx context.Context, c Case) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	now := time.Now().UnixNano()

	if c.ID > 0 {
		const q = `
INSERT INTO cases (
    case_id, title, age, sex, bmi, smoker, defect_length_cm, donor_site,
    technique_summary, complications, notes, outcome_rating, imaging_meta,
    synthetic, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(case_id) DO UPDATE SET
    title = excluded.title, age = excluded.age, sex = excluded.sex,
    bmi = excluded.bmi, smoker = excluded.smoker,
    defect_length_cm = excluded.defect_length_cm,
    donor_site = excluded.donor_site,
    technique_summary = excluded.technique_summary,
    complications = excluded.complications, notes = excluded.notes,
    outcome_rating = excluded.outcome_rating,
    imaging_meta = excluded.imaging_meta, synthetic = excluded.synthetic,
    created_at = excluded.created_at`
		_, err := s.db.ExecContext(ctx, q,
			c.ID, c.Title, c.Age, c.Sex, c.BMI, boolInt(c.Smoker),
			c.DefectLengthCM, c.DonorSite, c.TechniqueSummary,
			nullStr(c.Complications), nullStr(c.Notes), c.OutcomeRating,
			nullStr(c.ImagingMeta), boolInt(c.Synthetic), now,
		)
		if err != nil {
			return 0, fmt.Errorf("casestore: create %d: %w", c.ID, err)
		}
		return c.ID, nil
	}

	const q = `
INSERT INTO cases (
    title, age, sex, bmi, smoker, defect_length_cm, donor_site,
    technique_summary, complications, notes, outcome_rating, imaging_meta,
    synthetic, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		c.Title, c.Age, c.Sex, c.BMI, boolInt(c.Smoker),
		c.DefectLengthCM, c.DonorSite, c.TechniqueSummary,
		nullStr(c.Complications), nullStr(c.Notes), c.OutcomeRating,
		nullStr(c.ImagingMeta), boolInt(c.Synthetic), now,
	)
	if err != nil {
		return 0, fmt.Errorf("casestore: create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("casestore: create: last insert id: %w", err)
	}
	return id, nil
}

// caseColumns is the SELECT column list matching scanCase.
const caseColumns = `case_id, title, age, sex, bmi, smoker, defect_length_cm,
donor_site, technique_summary, complications, notes, outcome_rating,
imaging_meta, synthetic, created_at`

// Get fetches a case by id. Returns ErrNotFound when no record exists.
func (s *Store) Get(ctx context.Context, id int64) (Case, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE case_id = ?`, id)

	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Case{}, ErrNotFound
	}
	if err != nil {
		return Case{}, fmt.Errorf("casestore: get %d: %w", id, err)
	}
	return c, nil
}

// List returns cases ordered most-recent-first. limit bounds the page size;
// offset skips past earlier pages.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases
         ORDER BY created_at DESC, case_id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("casestore: list: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("casestore: list scan: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("casestore: list rows: %w", err)
	}
	return cases, nil
}

// IDs returns every case identifier in ascending order. Used by the
// reconciliation pass to find records missing a vector-index counterpart.
func (s *Store) IDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT case_id FROM cases ORDER BY case_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("casestore: ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("casestore: ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("casestore: ids rows: %w", err)
	}
	return ids, nil
}

// Ping verifies the database is reachable. Satisfies the server's readiness
// probe interface.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("casestore: ping: %w", err)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *Store) Name() string { return "sqlite" }

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("casestore: close: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanCase.
type scanner interface {
	Scan(dest ...any) error
}

// scanCase reads one row in caseColumns order.
func scanCase(sc scanner) (Case, error) {
	var (
		c                             Case
		smoker, synthetic             int
		complications, notes, imaging sql.NullString
		createdNanos                  int64
	)
	err := sc.Scan(
		&c.ID, &c.Title, &c.Age, &c.Sex, &c.BMI, &smoker, &c.DefectLengthCM,
		&c.DonorSite, &c.TechniqueSummary, &complications, &notes,
		&c.OutcomeRating, &imaging, &synthetic, &createdNanos,
	)
	if err != nil {
		return Case{}, err
	}
	c.Smoker = smoker != 0
	c.Synthetic = synthetic != 0
	c.Complications = complications.String
	c.Notes = notes.String
	c.ImagingMeta = imaging.String
	c.CreatedAt = time.Unix(0, createdNanos)
	return c, nil
}

// boolInt converts a bool to the 0/1 form stored in SQLite.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullStr maps empty strings to NULL so optional text stays distinguishable.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
