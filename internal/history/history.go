// Package history persists completed interview outcomes so users can review
// past sessions and track progress across topics. The store is optional:
// without a configured database the application simply skips persistence.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intervox-ai/intervox/internal/interview"
)

// Schema is the SQL DDL for the interview_outcomes table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS interview_outcomes (
    id           BIGSERIAL PRIMARY KEY,
    session_id   TEXT NOT NULL,
    topic        TEXT NOT NULL,
    level        TEXT NOT NULL,
    rating       INT NOT NULL DEFAULT 0,
    provider     TEXT NOT NULL DEFAULT '',
    questions    JSONB NOT NULL DEFAULT '[]',
    completed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_interview_outcomes_topic ON interview_outcomes(topic);
CREATE INDEX IF NOT EXISTS idx_interview_outcomes_completed ON interview_outcomes(completed_at DESC);
`

// Outcome is one completed interview, recorded when feedback is delivered.
type Outcome struct {
	ID          int64
	SessionID   string
	Topic       string
	Level       interview.Level
	Rating      int
	Provider    string
	Questions   []interview.QA
	CompletedAt time.Time
}

// Store persists interview outcomes.
type Store interface {
	// SaveOutcome records a completed interview. On success the outcome's
	// ID and CompletedAt fields are populated from the database.
	SaveOutcome(ctx context.Context, o *Outcome) error

	// RecentOutcomes returns up to limit outcomes, newest first.
	RecentOutcomes(ctx context.Context, limit int) ([]Outcome, error)
}

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Per-question
// answers are serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over an existing connection or
// pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a connection pool to the database at dsn, verifies it with a
// ping and runs the schema migration. The returned pool must be closed by the
// caller.
func Connect(ctx context.Context, dsn string) (*PostgresStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("history: ping: %w", err)
	}
	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

// Migrate executes the [Schema] DDL, creating the interview_outcomes table
// and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// SaveOutcome inserts a completed interview.
func (s *PostgresStore) SaveOutcome(ctx context.Context, o *Outcome) error {
	if o.SessionID == "" {
		return errors.New("history: outcome session id must not be empty")
	}

	questionsJSON, err := json.Marshal(emptyQA(o.Questions))
	if err != nil {
		return fmt.Errorf("history: marshal questions: %w", err)
	}

	const query = `
		INSERT INTO interview_outcomes (session_id, topic, level, rating, provider, questions)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, completed_at`

	err = s.db.QueryRow(ctx, query,
		o.SessionID, o.Topic, string(o.Level), o.Rating, o.Provider, questionsJSON,
	).Scan(&o.ID, &o.CompletedAt)
	if err != nil {
		return fmt.Errorf("history: save outcome: %w", err)
	}
	return nil
}

// RecentOutcomes returns up to limit outcomes, newest first.
func (s *PostgresStore) RecentOutcomes(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
		SELECT id, session_id, topic, level, rating, provider, questions, completed_at
		FROM interview_outcomes
		ORDER BY completed_at DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var (
			o             Outcome
			level         string
			questionsJSON []byte
		)
		if err := rows.Scan(
			&o.ID, &o.SessionID, &o.Topic, &level, &o.Rating, &o.Provider,
			&questionsJSON, &o.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("history: recent outcomes scan: %w", err)
		}
		o.Level = interview.Level(level)
		if err := json.Unmarshal(questionsJSON, &o.Questions); err != nil {
			return nil, fmt.Errorf("history: unmarshal questions: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent outcomes: %w", err)
	}
	return outcomes, nil
}

// emptyQA returns qa if non-nil, otherwise an empty non-nil slice so JSON
// marshalling produces "[]" instead of "null".
func emptyQA(qa []interview.QA) []interview.QA {
	if qa == nil {
		return []interview.QA{}
	}
	return qa
}

// OutcomeFromSession builds an [Outcome] from a finished session snapshot.
// Returns an error if the session has no feedback yet.
func OutcomeFromSession(s *interview.Session) (*Outcome, error) {
	if s == nil || s.Feedback == nil {
		return nil, errors.New("history: session has no feedback")
	}
	return &Outcome{
		SessionID: s.ID,
		Topic:     s.Topic,
		Level:     s.Level,
		Rating:    s.Feedback.OverallRating,
		Provider:  s.ActiveProvider,
		Questions: s.Transcript(),
	}, nil
}
