// Package database persists scan runs and findings to Postgres. The store
// is optional: without a DSN the scanner runs entirely in memory.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/NAMEAMITSONI/authopsy/internal/config"
	"github.com/NAMEAMITSONI/authopsy/internal/logger"
	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
	"github.com/NAMEAMITSONI/authopsy/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	target TEXT NOT NULL,
	mode TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	endpoints INTEGER NOT NULL,
	requests INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	report JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	rule TEXT NOT NULL,
	severity TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	description TEXT NOT NULL,
	evidence TEXT,
	remediation TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_scan_id ON findings(scan_id);
CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
`

// Store writes scan results to Postgres.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewStore connects, configures the pool and ensures the schema exists.
func NewStore(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}

	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	if log != nil {
		log.Infow("Database store ready",
			"dsn_masked", maskDSN(cfg.DSN),
			"max_connections", cfg.MaxConnections)
	}

	return &Store{db: db, log: log}, nil
}

// maskDSN hides credentials before the DSN reaches a log line.
func maskDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme+3 < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}

// SaveReport persists a differential scan run and its findings in one
// transaction.
func (s *Store) SaveReport(ctx context.Context, r *authz.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return s.save(ctx, r.ScanID, r.Target, "scan", r.ScanTime, r.Summary, raw, r.Findings())
}

// SaveFuzzReport persists a fuzz run and its findings.
func (s *Store) SaveFuzzReport(ctx context.Context, r *authz.FuzzReport) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	var findings []types.Finding
	for _, res := range r.Results {
		findings = append(findings, res.Findings...)
	}
	return s.save(ctx, r.ScanID, r.Target, "fuzz", r.ScanTime, r.Summary, raw, findings)
}

func (s *Store) save(ctx context.Context, scanID, target, mode string, startedAt time.Time, sum types.Summary, raw []byte, findings []types.Finding) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scans (id, target, mode, started_at, endpoints, requests, duration_ms, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		scanID, target, mode, startedAt,
		sum.TotalEndpoints, sum.TotalRequests, sum.DurationMS, raw)
	if err != nil {
		return fmt.Errorf("inserting scan %s: %w", scanID, err)
	}

	for _, f := range findings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO findings (id, scan_id, rule, severity, endpoint, description, evidence, remediation, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			f.ID, scanID, f.Rule, string(f.Severity), f.Endpoint,
			f.Description, f.Evidence, f.Remediation, f.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting finding %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scan %s: %w", scanID, err)
	}

	if s.log != nil {
		s.log.Infow("Scan persisted", "scan_id", scanID, "findings", len(findings))
	}
	return nil
}

// GetFindings returns a scan's findings ordered by severity.
func (s *Store) GetFindings(ctx context.Context, scanID string) ([]types.Finding, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, scan_id, rule, severity, endpoint, description,
		       COALESCE(evidence, ''), COALESCE(remediation, ''), created_at
		FROM findings WHERE scan_id = $1`, scanID)
	if err != nil {
		return nil, fmt.Errorf("querying findings for %s: %w", scanID, err)
	}
	defer rows.Close()

	var findings []types.Finding
	for rows.Next() {
		var f types.Finding
		var sev string
		if err := rows.Scan(&f.ID, &f.ScanID, &f.Rule, &sev, &f.Endpoint,
			&f.Description, &f.Evidence, &f.Remediation, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning finding row: %w", err)
		}
		f.Severity = types.Severity(sev)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	types.SortFindings(findings)
	return findings, nil
}

// LoadReport reads back a persisted differential scan report.
func (s *Store) LoadReport(ctx context.Context, scanID string) (*authz.Report, error) {
	var raw []byte
	err := s.db.GetContext(ctx, &raw, `SELECT report FROM scans WHERE id = $1 AND mode = 'scan'`, scanID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan %s not found", scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading scan %s: %w", scanID, err)
	}
	var r authz.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decoding stored report %s: %w", scanID, err)
	}
	return &r, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
