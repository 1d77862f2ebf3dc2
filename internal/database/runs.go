package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Run represents one batch tracking run
type Run struct {
	ID           int        `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FromDate     string     `json:"from_date,omitempty"`
	ToDate       string     `json:"to_date,omitempty"`
	Total        int        `json:"total"`
	SuccessCount int        `json:"success_count"`
	ErrorCount   int        `json:"error_count"`
	Status       string     `json:"status"`
}

// RunResult is one shipment's outcome within a run
type RunResult struct {
	ID             int        `json:"id"`
	RunID          int        `json:"run_id"`
	Position       int        `json:"position"`
	OrderID        string     `json:"order_id"`
	CustomerName   string     `json:"customer_name,omitempty"`
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	TrackingStatus string     `json:"tracking_status,omitempty"`
	Success        bool       `json:"success"`
	Error          string     `json:"error,omitempty"`
	Source         string     `json:"source,omitempty"`
	Attempts       int        `json:"attempts"`
	CheckedAt      *time.Time `json:"checked_at,omitempty"`
}

// RunStore handles database operations for runs
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new run store
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Create inserts a new run in the running state and sets its ID
func (s *RunStore) Create(run *Run) error {
	query := `INSERT INTO runs (from_date, to_date, total, status)
			  VALUES (?, ?, ?, 'running')`

	result, err := s.db.Exec(query, run.FromDate, run.ToDate, run.Total)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run ID: %w", err)
	}

	run.ID = int(id)
	run.Status = "running"
	return nil
}

// Complete marks a run as finished and records its counters
func (s *RunStore) Complete(runID int, status string, total, successCount, errorCount int) error {
	query := `UPDATE runs
			  SET completed_at = CURRENT_TIMESTAMP, status = ?, total = ?,
				  success_count = ?, error_count = ?
			  WHERE id = ?`

	result, err := s.db.Exec(query, status, total, successCount, errorCount, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found")
	}

	return nil
}

// GetByID retrieves a run by its ID
func (s *RunStore) GetByID(id int) (*Run, error) {
	query := `SELECT id, started_at, completed_at, from_date, to_date,
					 total, success_count, error_count, status
			  FROM runs WHERE id = ?`

	var run Run
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.StartedAt, &run.CompletedAt, &run.FromDate, &run.ToDate,
		&run.Total, &run.SuccessCount, &run.ErrorCount, &run.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// List returns the most recent runs, newest first
func (s *RunStore) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, started_at, completed_at, from_date, to_date,
					 total, success_count, error_count, status
			  FROM runs ORDER BY started_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(
			&run.ID, &run.StartedAt, &run.CompletedAt, &run.FromDate, &run.ToDate,
			&run.Total, &run.SuccessCount, &run.ErrorCount, &run.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ResultStore handles database operations for run results
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a new result store
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

// SaveBatch inserts all results of a run in one transaction
func (s *ResultStore) SaveBatch(runID int, results []RunResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO run_results
		(run_id, position, order_id, customer_name, carrier, tracking_number,
		 tracking_status, success, error, source, attempts, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range results {
		_, err := stmt.Exec(runID, i, r.OrderID, r.CustomerName, r.Carrier,
			r.TrackingNumber, r.TrackingStatus, r.Success, r.Error, r.Source,
			r.Attempts, r.CheckedAt)
		if err != nil {
			return fmt.Errorf("failed to insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	return nil
}

// GetByRunID returns a run's results in input order
func (s *ResultStore) GetByRunID(runID int) ([]RunResult, error) {
	query := `SELECT id, run_id, position, order_id, customer_name, carrier,
					 tracking_number, tracking_status, success, error, source,
					 attempts, checked_at
			  FROM run_results WHERE run_id = ? ORDER BY position`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []RunResult
	for rows.Next() {
		var r RunResult
		err := rows.Scan(&r.ID, &r.RunID, &r.Position, &r.OrderID, &r.CustomerName,
			&r.Carrier, &r.TrackingNumber, &r.TrackingStatus, &r.Success, &r.Error,
			&r.Source, &r.Attempts, &r.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}
