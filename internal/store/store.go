// Package store handles SQLite persistence of session history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/reacto/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session history.
type Store struct {
	db     *sql.DB
	depth  int
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report degraded reads.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDepth overrides how many sessions are retained.
func WithDepth(depth int) Option {
	return func(s *Store) {
		if depth > 0 {
			s.depth = depth
		}
	}
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, depth: model.HistoryDepth, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			summary TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trials (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			category TEXT NOT NULL,
			onset_ns INTEGER NOT NULL,
			responded_ns INTEGER,
			reaction_ms REAL,
			correct INTEGER NOT NULL,
			premature INTEGER NOT NULL,
			wrong_key TEXT NOT NULL,
			missed INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession stores a finalized session with its trial log, then trims the
// history to the most recent sessions.
func (s *Store) SaveSession(ctx context.Context, session model.Session) (err error) {
	summary, err := json.Marshal(session.Summarize())
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, duration_ms, summary) VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.StartedAt.UnixNano(),
		session.EndedAt.UnixNano(),
		session.EndedAt.Sub(session.StartedAt).Milliseconds(),
		string(summary),
	)
	if err != nil {
		return err
	}

	if len(session.Trials) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO trials (session_id, seq, category, onset_ns, responded_ns, reaction_ms, correct, premature, wrong_key, missed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, t := range session.Trials {
			var responded sql.NullInt64
			if t.RespondedAt != nil {
				responded = sql.NullInt64{Int64: int64(*t.RespondedAt), Valid: true}
			}
			var reaction sql.NullFloat64
			if t.ReactionTimeMs != nil {
				reaction = sql.NullFloat64{Float64: *t.ReactionTimeMs, Valid: true}
			}
			if _, err = stmt.ExecContext(ctx, session.ID, t.Seq, t.Category.String(), int64(t.OnsetAt),
				responded, reaction, t.Correct, t.Premature, t.WrongKey, t.Missed); err != nil {
				return err
			}
		}
	}

	if err = s.prune(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) prune(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY ended_at DESC, rowid DESC LIMIT ?
		)`, s.depth); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM trials WHERE session_id NOT IN (SELECT id FROM sessions)`)
	return err
}

// LoadHistory returns stored summaries, most recent first.
func (s *Store) LoadHistory(ctx context.Context) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, summary FROM sessions ORDER BY ended_at DESC, rowid DESC LIMIT ?`, s.depth)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var summaries []model.Summary
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var summary model.Summary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// History returns stored summaries, most recent first. Unreadable or corrupt
// history degrades to an empty list.
func (s *Store) History(ctx context.Context) []model.Summary {
	summaries, err := s.LoadHistory(ctx)
	if err != nil {
		s.logger.Warn("history unreadable, treating as empty", zap.Error(err))
		return nil
	}
	return summaries
}

// Trials returns the stored trial log of a session in sequence order.
func (s *Store) Trials(ctx context.Context, sessionID string) ([]model.Trial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, category, onset_ns, responded_ns, reaction_ms, correct, premature, wrong_key, missed
		 FROM trials WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var trials []model.Trial
	for rows.Next() {
		var (
			t         model.Trial
			category  string
			onset     int64
			responded sql.NullInt64
			reaction  sql.NullFloat64
		)
		if err := rows.Scan(&t.Seq, &category, &onset, &responded, &reaction, &t.Correct, &t.Premature, &t.WrongKey, &t.Missed); err != nil {
			return nil, err
		}
		if err := t.Category.UnmarshalText([]byte(category)); err != nil {
			return nil, err
		}
		t.OnsetAt = time.Duration(onset)
		if responded.Valid {
			at := time.Duration(responded.Int64)
			t.RespondedAt = &at
		}
		if reaction.Valid {
			rt := reaction.Float64
			t.ReactionTimeMs = &rt
		}
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trials, nil
}

// Clear removes every stored session.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM trials`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}
