package upload

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const trainingLog = `2024-03-01: Lower
Squat: 140kg x5 x3
Notes without a colon

2024-03-03: Upper
Bench Press: 100x5, 105x3 @9
`

// fakeIngest counts requests per path and echoes a result.
type fakeIngest struct {
	logs     atomic.Int32
	gravitus atomic.Int32
	key      string
}

func (f *fakeIngest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-API-Key") != f.key {
		http.Error(w, `{"error":"invalid API key"}`, http.StatusUnauthorized)
		return
	}
	res := ingest.Result{WorkoutsReceived: 1, SetsReceived: 1}
	switch r.URL.Path {
	case "/api/v1/ingest/log":
		f.logs.Add(1)
		res.Source = models.SourceManual
	case "/api/v1/ingest/gravitus":
		f.gravitus.Add(1)
		var ws []models.Workout
		if err := json.NewDecoder(r.Body).Decode(&ws); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res.Source = models.SourceGravitus
		res.WorkoutsReceived = len(ws)
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestClassify verifies extension routing.
func TestClassify(t *testing.T) {
	tests := map[string]Kind{
		"log.txt":           KindLog,
		"2024.MD":           KindLog,
		"parsed_data.json":  KindWorkouts,
		"photo.png":         KindUnknown,
		"workouts/noextlog": KindUnknown,
	}
	for path, want := range tests {
		if got := Classify(path); got != want {
			t.Errorf("Classify(%q) = %d, want %d", path, got, want)
		}
	}
}

// TestRunPushesAndSkipsUnchanged verifies files go to the right endpoint and
// a second run skips files whose content has not changed.
func TestRunPushesAndSkipsUnchanged(t *testing.T) {
	fake := &fakeIngest{key: "secret"}
	ts := httptest.NewServer(fake)
	defer ts.Close()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "log.txt"), trainingLog)
	writeFile(t, filepath.Join(dir, "alice", "parsed_data.json"),
		`[{"title":"Legs","date":"2024-03-04","work":{"Squat":["300x5"]}}]`)
	writeFile(t, filepath.Join(dir, "alice", "workout_url.json"), `[]`)
	writeFile(t, filepath.Join(dir, "alice", "workouts", "1_raw.txt"), "<html></html>")

	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	client := NewClient(ts.URL+"/", "secret")
	stats, err := New(client, state, false, testLogger()).Run(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesTotal != 2 || stats.FilesPushed != 2 {
		t.Errorf("first run = %+v, want 2 files pushed", stats)
	}
	if fake.logs.Load() != 1 || fake.gravitus.Load() != 1 {
		t.Errorf("requests log=%d gravitus=%d, want 1 each", fake.logs.Load(), fake.gravitus.Load())
	}

	stats, err = New(client, state, false, testLogger()).Run(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesSkipped != 2 || stats.FilesPushed != 0 {
		t.Errorf("second run = %+v, want 2 skipped", stats)
	}

	writeFile(t, filepath.Join(dir, "log.txt"), trainingLog+"\n2024-03-05: Pull\nDeadlift: 180x3\n")
	stats, err = New(client, state, false, testLogger()).Run(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesPushed != 1 || fake.logs.Load() != 2 {
		t.Errorf("after edit = %+v (log requests %d), want edited log pushed again", stats, fake.logs.Load())
	}
}

// TestRunDryRun verifies dry runs parse locally without a client.
func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "log.txt"), trainingLog)

	stats, err := New(nil, nil, true, testLogger()).Run(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.WorkoutsSent != 2 {
		t.Errorf("WorkoutsSent = %d, want 2", stats.WorkoutsSent)
	}
	// 140kg x5 x3 expands to three sets plus two bench sets.
	if stats.SetsSent != 5 {
		t.Errorf("SetsSent = %d, want 5", stats.SetsSent)
	}
}

// TestRunCountsRejectedFiles verifies a rejected file is counted and the walk
// continues.
func TestRunCountsRejectedFiles(t *testing.T) {
	fake := &fakeIngest{key: "secret"}
	ts := httptest.NewServer(fake)
	defer ts.Close()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "log.txt"), trainingLog)

	stats, err := New(NewClient(ts.URL, "wrong"), nil, false, testLogger()).Run(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesErrored != 1 {
		t.Errorf("FilesErrored = %d, want 1", stats.FilesErrored)
	}
	if fake.logs.Load() != 0 {
		t.Errorf("log requests = %d, want 0", fake.logs.Load())
	}
}

// TestClientRetriesServerErrors verifies 5xx responses are retried and 4xx
// responses are not.
func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ingest.Result{WorkoutsReceived: 4})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	c.backoff = time.Millisecond
	res, err := c.SendLog(context.Background(), []byte(trainingLog))
	if err != nil {
		t.Fatal(err)
	}
	if res.WorkoutsReceived != 4 || calls.Load() != 3 {
		t.Errorf("result %d after %d calls, want 4 after 3", res.WorkoutsReceived, calls.Load())
	}

	calls.Store(0)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad headline", http.StatusBadRequest)
	}))
	defer bad.Close()

	c = NewClient(bad.URL, "")
	c.backoff = time.Millisecond
	if _, err := c.SendLog(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error for 400")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}
