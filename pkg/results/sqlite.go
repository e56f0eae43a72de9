package results

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bacteriahts/internal/models"
)

// Run describes one extraction batch stored in the database
type Run struct {
	ID        int64
	Channel   string
	Params    string
	CreatedAt time.Time
}

// Store keeps feature tables of every batch in a SQLite database
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Batches are sequential; a single connection is enough
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		params TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feature_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		slice TEXT NOT NULL,
		count INTEGER NOT NULL,
		total_area REAL NOT NULL,
		average_size REAL NOT NULL,
		percent_area REAL NOT NULL,
		mean REAL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_feature_rows_run_id ON feature_rows(run_id);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// BeginRun records a new batch and returns its id. params holds the option
// strings the batch ran with.
func (s *Store) BeginRun(channel models.Channel, params string) (int64, error) {
	result, err := s.conn.Exec(`
		INSERT INTO runs (channel, params, created_at) VALUES (?, ?, ?)
	`, channel.String(), params, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return result.LastInsertId()
}

// Append adds rows to a run in a single transaction, after any rows the run
// already holds
func (s *Store) Append(runID int64, rows []models.FeatureRow) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM feature_rows WHERE run_id = ?`, runID).Scan(&next); err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO feature_rows (run_id, position, slice, count, total_area, average_size, percent_area, mean)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		var mean sql.NullFloat64
		if row.Mean != nil {
			mean = sql.NullFloat64{Float64: *row.Mean, Valid: true}
		}
		if _, err := stmt.Exec(runID, next+i, row.Slice, row.Count, row.TotalArea, row.AverageSize, row.PercentArea, mean); err != nil {
			return fmt.Errorf("failed to insert row %s: %w", row.Slice, err)
		}
	}

	return tx.Commit()
}

// Rows returns the rows of a run in insertion order
func (s *Store) Rows(runID int64) ([]models.FeatureRow, error) {
	rows, err := s.conn.Query(`
		SELECT slice, count, total_area, average_size, percent_area, mean
		FROM feature_rows WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []models.FeatureRow
	for rows.Next() {
		var (
			row  models.FeatureRow
			mean sql.NullFloat64
		)
		if err := rows.Scan(&row.Slice, &row.Count, &row.TotalArea, &row.AverageSize, &row.PercentArea, &mean); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if mean.Valid {
			v := mean.Float64
			row.Mean = &v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Runs lists the stored batches, oldest first
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.conn.Query(`SELECT id, channel, params, created_at FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Channel, &r.Params, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveRun stores rows as a new run in the database at path and returns the
// run id
func SaveRun(path string, channel models.Channel, params string, rows []models.FeatureRow) (int64, error) {
	store, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	runID, err := store.BeginRun(channel, params)
	if err != nil {
		return 0, err
	}
	if err := store.Append(runID, rows); err != nil {
		return 0, err
	}
	return runID, store.Close()
}
