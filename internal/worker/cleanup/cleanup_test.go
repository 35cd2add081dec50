package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

// Executor インターフェースに対するモック実装
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []any
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestNewJob_DefaultRetention(t *testing.T) {
	job := NewJob(&mockExecutor{}, nil, 0)
	if job.RetentionDays != DefaultRetentionDays {
		t.Errorf("RetentionDays = %d, want %d", job.RetentionDays, DefaultRetentionDays)
	}

	job = NewJob(&mockExecutor{}, nil, 7)
	if job.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", job.RetentionDays)
	}
}

func TestJob_Run_DeletesOlderThanCutoff(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewJob(mock, newTestLogger(&buf), 30)
	job.now = func() time.Time { return time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC) }

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}
	if !strings.Contains(mock.query, "DELETE FROM webhook_deliveries") || !strings.Contains(mock.query, "received_at <") {
		t.Errorf("query = %q", mock.query)
	}
	if len(mock.args) != 1 {
		t.Fatalf("args = %v, want one cutoff", mock.args)
	}
	want := time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)
	if got, ok := mock.args[0].(time.Time); !ok || !got.Equal(want) {
		t.Errorf("cutoff = %v, want %v", mock.args[0], want)
	}

	entry := lastLogEntry(t, &buf)
	if entry["deleted_count"] != float64(5) {
		t.Errorf("deleted_count = %v, want 5", entry["deleted_count"])
	}
	if entry["retention_days"] != float64(30) {
		t.Errorf("retention_days = %v, want 30", entry["retention_days"])
	}
}

func TestJob_Run_ZeroRowsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	job := NewJob(&mockExecutor{result: &fakeResult{}}, newTestLogger(&buf), 30)

	deleted, err := job.Run(context.Background())
	if err != nil || deleted != 0 {
		t.Errorf("Run = (%d, %v), want (0, nil)", deleted, err)
	}
	if entry := lastLogEntry(t, &buf); entry["deleted_count"] != float64(0) {
		t.Errorf("deleted_count = %v, want 0", entry["deleted_count"])
	}
}

func TestJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewJob(&mockExecutor{err: errors.New("connection refused")}, newTestLogger(&buf), 30)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error on DB failure")
	}
	entry := lastLogEntry(t, &buf)
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if !strings.Contains(entry["error"].(string), "connection refused") {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestJob_Run_RowsAffectedFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewJob(&mockExecutor{result: &fakeResult{err: errors.New("unsupported")}}, newTestLogger(&buf), 30)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when RowsAffected fails")
	}
}

func TestJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 1}}
	job := NewJob(mock, slog.New(slog.NewJSONHandler(&safeBuffer{buf: &buf}, nil)), 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for mock.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2", mock.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

// safeBuffer はゴルーチンから書き込まれるログ用のバッファ。
type safeBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}
