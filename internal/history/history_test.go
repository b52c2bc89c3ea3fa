package history

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/intervox-ai/intervox/internal/interview"
)

// ─── test helpers — mock DB types ───

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, v := range row {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *int:
			*d = v.(int)
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("scan: unsupported destination type")
		}
	}
	return nil
}

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (db *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.queryRowFunc(ctx, sql, args...)
}

func (db *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.queryFunc(ctx, sql, args...)
}

func (db *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.execFunc(ctx, sql, args...)
}

// ─── tests ───

func TestMigrateExecutesSchema(t *testing.T) {
	var gotSQL string
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			gotSQL = sql
			return pgconn.CommandTag{}, nil
		},
	}
	if err := NewPostgresStore(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !strings.Contains(gotSQL, "CREATE TABLE IF NOT EXISTS interview_outcomes") {
		t.Fatalf("Migrate() executed unexpected SQL: %q", gotSQL)
	}
}

func TestSaveOutcomePopulatesIDAndTimestamp(t *testing.T) {
	now := time.Now()
	var gotArgs []any
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			gotArgs = args
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*int64) = 42
				*dest[1].(*time.Time) = now
				return nil
			}}
		},
	}

	o := &Outcome{
		SessionID: "sess-1",
		Topic:     "go",
		Level:     interview.LevelExpert,
		Rating:    8,
		Provider:  "primary",
		Questions: []interview.QA{
			{Question: interview.Question{Index: 0, Text: "What is a goroutine?", Topic: "go"}, Answer: "A lightweight thread."},
		},
	}
	if err := NewPostgresStore(db).SaveOutcome(context.Background(), o); err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}
	if o.ID != 42 {
		t.Errorf("ID = %d, want 42", o.ID)
	}
	if !o.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", o.CompletedAt, now)
	}
	if len(gotArgs) != 6 {
		t.Fatalf("insert got %d args, want 6", len(gotArgs))
	}
	if gotArgs[2] != "expert" {
		t.Errorf("level arg = %v, want expert", gotArgs[2])
	}
	var qa []interview.QA
	if err := json.Unmarshal(gotArgs[5].([]byte), &qa); err != nil {
		t.Fatalf("questions arg is not valid JSON: %v", err)
	}
	if len(qa) != 1 || qa[0].Answer != "A lightweight thread." {
		t.Errorf("questions arg round-trip = %+v", qa)
	}
}

func TestSaveOutcomeRejectsEmptySessionID(t *testing.T) {
	db := &mockDB{}
	err := NewPostgresStore(db).SaveOutcome(context.Background(), &Outcome{})
	if err == nil {
		t.Fatal("SaveOutcome() error = nil for empty session id")
	}
}

func TestSaveOutcomeMarshalsNilQuestionsAsEmptyArray(t *testing.T) {
	var questionsArg []byte
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			questionsArg = args[5].([]byte)
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*int64) = 1
				*dest[1].(*time.Time) = time.Now()
				return nil
			}}
		},
	}
	if err := NewPostgresStore(db).SaveOutcome(context.Background(), &Outcome{SessionID: "s"}); err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}
	if string(questionsArg) != "[]" {
		t.Fatalf("questions JSON = %q, want []", questionsArg)
	}
}

func TestRecentOutcomesDecodesRows(t *testing.T) {
	now := time.Now()
	questions, _ := json.Marshal([]interview.QA{
		{Question: interview.Question{Index: 0, Text: "Q1", Topic: "sql"}, Answer: interview.SkippedAnswer},
	})

	var gotLimit any
	db := &mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotLimit = args[0]
			return &mockRows{data: [][]any{
				{int64(2), "sess-2", "sql", "beginner", 6, "secondary", questions, now},
				{int64(1), "sess-1", "go", "expert", 9, "primary", []byte("[]"), now.Add(-time.Hour)},
			}}, nil
		},
	}

	got, err := NewPostgresStore(db).RecentOutcomes(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentOutcomes() error = %v", err)
	}
	if gotLimit != 5 {
		t.Errorf("limit arg = %v, want 5", gotLimit)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Topic != "sql" || got[0].Level != interview.LevelBeginner {
		t.Errorf("first outcome = %+v", got[0])
	}
	if len(got[0].Questions) != 1 || got[0].Questions[0].Answer != interview.SkippedAnswer {
		t.Errorf("questions not decoded: %+v", got[0].Questions)
	}
	if got[1].Rating != 9 {
		t.Errorf("second rating = %d, want 9", got[1].Rating)
	}
}

func TestRecentOutcomesDefaultsLimit(t *testing.T) {
	var gotLimit any
	db := &mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotLimit = args[0]
			return &mockRows{}, nil
		},
	}
	if _, err := NewPostgresStore(db).RecentOutcomes(context.Background(), 0); err != nil {
		t.Fatalf("RecentOutcomes() error = %v", err)
	}
	if gotLimit != 10 {
		t.Fatalf("limit arg = %v, want default 10", gotLimit)
	}
}

func TestOutcomeFromSession(t *testing.T) {
	s := &interview.Session{
		ID:    "sess-9",
		Topic: "react",
		Level: interview.LevelIntermediate,
		Questions: []interview.Question{
			{Index: 0, Text: "Q1", Topic: "react"},
			{Index: 1, Text: "Q2", Topic: "react"},
		},
		Responses:      map[int]string{0: "hooks"},
		Feedback:       &interview.Feedback{OverallRating: 7, Strengths: []string{"s"}, Weaknesses: []string{"w"}, SuggestedTopics: []string{"t"}},
		ActiveProvider: "primary",
	}

	o, err := OutcomeFromSession(s)
	if err != nil {
		t.Fatalf("OutcomeFromSession() error = %v", err)
	}
	if o.Rating != 7 || o.Topic != "react" || o.Provider != "primary" {
		t.Errorf("outcome = %+v", o)
	}
	if len(o.Questions) != 2 || o.Questions[1].Answer != interview.SkippedAnswer {
		t.Errorf("transcript = %+v", o.Questions)
	}

	if _, err := OutcomeFromSession(&interview.Session{}); err == nil {
		t.Fatal("OutcomeFromSession() error = nil without feedback")
	}
}
