package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// mockExecutor はクエリと引数を記録するExecutor。
type mockExecutor struct {
	query  string
	args   []interface{}
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.query = query
	m.args = args
	return m.result, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestNewHistoryCleanupJob_DefaultRetention(t *testing.T) {
	var buf bytes.Buffer
	if job := NewHistoryCleanupJob(&mockExecutor{}, newTestLogger(&buf), 0); job.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", job.RetentionDays)
	}
	if job := NewHistoryCleanupJob(&mockExecutor{}, newTestLogger(&buf), 30); job.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", job.RetentionDays)
	}
}

func TestHistoryCleanupJob_Run_DeletesOldHistory(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewHistoryCleanupJob(mock, newTestLogger(&buf), 30)

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}
	if !strings.Contains(mock.query, "DELETE FROM search_history") || !strings.Contains(mock.query, "searched_at") {
		t.Errorf("query = %s", mock.query)
	}
	if len(mock.args) != 1 || mock.args[0] != "30 days" {
		t.Errorf("args = %v, want [30 days]", mock.args)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log is not JSON: %v", err)
	}
	if entry["deleted_count"] != float64(5) || entry["retention_days"] != float64(30) {
		t.Errorf("log entry = %v", entry)
	}
}

func TestHistoryCleanupJob_Run_ZeroRowsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	job := NewHistoryCleanupJob(&mockExecutor{result: &fakeResult{}}, newTestLogger(&buf), 0)

	deleted, err := job.Run(context.Background())
	if err != nil || deleted != 0 {
		t.Errorf("Run() = %d, %v; want 0, nil", deleted, err)
	}
}

func TestHistoryCleanupJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection refused")
	job := NewHistoryCleanupJob(&mockExecutor{err: dbErr}, newTestLogger(&buf), 0)

	_, err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("err = %v, want wrapped %v", err, dbErr)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("failure should be logged at ERROR level: %s", buf.String())
	}
}
