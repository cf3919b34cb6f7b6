package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/famorg/internal/metrics"
)

// mockDeleter はExpiredSessionDeleterのモック実装。
type mockDeleter struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	err     error
}

func (m *mockDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.deleted, m.err
}

func (m *mockDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// recordingCollector はRecordSessionsCleanedの呼び出しを記録する。
type recordingCollector struct {
	metrics.Nop
	mu      sync.Mutex
	cleaned []int64
}

func (c *recordingCollector) RecordSessionsCleaned(count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleaned = append(c.cleaned, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogEntry はJSONログからkeyを含む最初のエントリを返す。
func findLogEntry(buf *bytes.Buffer, key string) map[string]any {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry[key]; ok {
			return entry
		}
	}
	return nil
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{deleted: 42}
	mc := &recordingCollector{}
	job := NewCleanupJob(deleter, newTestLogger(&buf), mc)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if deleter.callCount() != 1 {
		t.Errorf("DeleteExpired 呼び出し回数 = %d, want 1", deleter.callCount())
	}
	if len(mc.cleaned) != 1 || mc.cleaned[0] != 42 {
		t.Errorf("RecordSessionsCleaned = %v, want [42]", mc.cleaned)
	}

	entry := findLogEntry(&buf, "deleted_count")
	if entry == nil || entry["deleted_count"] != float64(42) {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_NothingToDelete(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockDeleter{}, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("削除対象なしでエラーを返した: %v", err)
	}
}

func TestCleanupJob_Run_ReturnsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection refused")
	mc := &recordingCollector{}
	job := NewCleanupJob(&mockDeleter{err: dbErr}, newTestLogger(&buf), mc)

	err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("Run() error = %v, want wrapping %v", err, dbErr)
	}
	if len(mc.cleaned) != 0 {
		t.Errorf("失敗時にメトリクスが記録された: %v", mc.cleaned)
	}

	entry := findLogEntry(&buf, "error")
	if entry == nil || entry["level"] != "ERROR" {
		t.Errorf("エラーログが出力されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{}
	job := NewCleanupJob(deleter, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for deleter.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("DeleteExpired 呼び出し回数 = %d, want >= 2", deleter.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
}
