package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/logveil/logveil/internal/logger"
	"github.com/logveil/logveil/internal/redact"
)

const traceSchema = `
CREATE TABLE IF NOT EXISTS redaction_traces (
	id            BIGSERIAL PRIMARY KEY,
	run_id        TEXT NOT NULL,
	source        TEXT NOT NULL,
	line          INTEGER NOT NULL,
	path          TEXT NOT NULL DEFAULT '',
	seq           INTEGER NOT NULL,
	original      TEXT NOT NULL,
	replacement   TEXT NOT NULL,
	rule          TEXT NOT NULL,
	reason        TEXT NOT NULL,
	entropy_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_redaction_traces_run ON redaction_traces (run_id, source, line, seq);
`

const insertTrace = `
INSERT INTO redaction_traces
	(run_id, source, line, path, seq, original, replacement, rule, reason, entropy_score)
VALUES
	(:run_id, :source, :line, :path, :seq, :original, :replacement, :rule, :reason, :entropy_score)
`

type traceRow struct {
	RunID        string  `db:"run_id"`
	Source       string  `db:"source"`
	Line         int     `db:"line"`
	Path         string  `db:"path"`
	Seq          int     `db:"seq"`
	Original     string  `db:"original"`
	Replacement  string  `db:"replacement"`
	Rule         string  `db:"rule"`
	Reason       string  `db:"reason"`
	EntropyScore float64 `db:"entropy_score"`
}

// PostgresSink persists the audit log to a central Postgres table. It is an
// optional export target for deployments that aggregate audit trails across
// hosts; the core engine itself never touches it.
type PostgresSink struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewPostgresSink connects to Postgres and ensures the audit schema exists.
func NewPostgresSink(ctx context.Context, dsn string, log *logger.Logger) (*PostgresSink, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}

	if _, err := db.ExecContext(ctx, traceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure audit schema: %w", err)
	}

	log.Info("Audit sink connected", zap.String("driver", "postgres"))
	return &PostgresSink{db: db, logger: log}, nil
}

// WriteRun inserts the ordered audit log of one run in a single transaction,
// so a partially written run is never visible to readers.
func (s *PostgresSink) WriteRun(ctx context.Context, runID string, entries []redact.Trace) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}

	for i := range entries {
		row := traceRow{
			RunID:        runID,
			Source:       entries[i].Source,
			Line:         entries[i].Line,
			Path:         entries[i].Path,
			Seq:          entries[i].Seq,
			Original:     entries[i].Original,
			Replacement:  entries[i].Replacement,
			Rule:         entries[i].Rule,
			Reason:       string(entries[i].Reason),
			EntropyScore: entries[i].EntropyScore,
		}
		if _, err := tx.NamedExecContext(ctx, insertTrace, row); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert trace record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}

	s.logger.Info("Audit run persisted",
		zap.String("run_id", runID),
		zap.Int("traces", len(entries)),
	)
	return nil
}

// Close releases the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
