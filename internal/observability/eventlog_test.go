package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// --- Helper ---

func openLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "logs", "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func writeAll(t *testing.T, log EventLog, events ...Event) {
	t.Helper()
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log := openLog(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	writeAll(t, log,
		Event{Time: now, Level: LevelInfo, Type: "build.started", Message: "build started", Data: map[string]any{"seed": 7}},
		Event{Time: now.Add(time.Second), Level: LevelWarn, Type: "build.category_empty", Message: "empty"},
	)

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("got %d events, want 2", len(result))
	}
	if result[0].Type != "build.started" {
		t.Errorf("Type = %q, want %q", result[0].Type, "build.started")
	}
	if got := result[0].Data["seed"]; got != float64(7) {
		t.Errorf("Data[seed] = %v, want 7", got)
	}
	if result[1].Level != LevelWarn {
		t.Errorf("Level = %q, want %q", result[1].Level, LevelWarn)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log := openLog(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	writeAll(t, log,
		Event{Time: base, Level: LevelInfo, Type: "build.started", Message: "first"},
		Event{Time: base.Add(time.Hour), Level: LevelError, Type: "build.failed", Message: "second"},
		Event{Time: base.Add(2 * time.Hour), Level: LevelInfo, Type: "build.started", Message: "third"},
		Event{Time: base.Add(3 * time.Hour), Level: LevelInfo, Type: "build.completed", Message: "fourth"},
	)

	byType, err := log.Read(EventFilter{Type: "build.started"})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("type filter returned %d events, want 2", len(byType))
	}

	byLevel, _ := log.Read(EventFilter{Level: LevelError})
	if len(byLevel) != 1 || byLevel[0].Message != "second" {
		t.Errorf("level filter = %+v, want only 'second'", byLevel)
	}

	since := base.Add(30 * time.Minute)
	until := base.Add(2*time.Hour + 30*time.Minute)
	ranged, _ := log.Read(EventFilter{Since: &since, Until: &until})
	if len(ranged) != 2 || ranged[0].Message != "second" || ranged[1].Message != "third" {
		t.Errorf("time filter = %+v, want second and third", ranged)
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"time":"2026-03-01T10:00:00Z","level":"INFO","type":"build.started","msg":"ok"}` + "\n" +
		`{"time":` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log := openLog(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = log.Write(Event{Time: time.Now().UTC(), Level: LevelInfo, Type: "build.stage", Message: "x"})
		}()
	}
	wg.Wait()

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != 20 {
		t.Errorf("got %d events, want 20", len(events))
	}
}

func TestRecorder_LevelsAndMessages(t *testing.T) {
	log := openLog(t)
	rec := NewRecorder(log)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	calls := []struct {
		typ   string
		data  map[string]any
		level string
		msg   string
	}{
		{"build.started", map[string]any{"categories": 3}, LevelInfo, "build started with 3 categories"},
		{"build.stage", map[string]any{"from": "idle", "to": "collecting"}, LevelInfo, "idle -> collecting"},
		{"build.category_empty", map[string]any{"category": "medical"}, LevelWarn, "category medical produced no records"},
		{"build.failed", map[string]any{"stage": "emitting"}, LevelError, "build failed while emitting"},
		{"custom.thing", nil, LevelInfo, "custom.thing"},
	}
	for _, c := range calls {
		if err := rec.LogEvent(c.typ, c.data); err != nil {
			t.Fatalf("LogEvent(%s): %v", c.typ, err)
		}
	}

	events, _ := log.Read(EventFilter{})
	if len(events) != len(calls) {
		t.Fatalf("got %d events, want %d", len(events), len(calls))
	}
	for i, c := range calls {
		if events[i].Level != c.level {
			t.Errorf("%s: Level = %q, want %q", c.typ, events[i].Level, c.level)
		}
		if events[i].Message != c.msg {
			t.Errorf("%s: Message = %q, want %q", c.typ, events[i].Message, c.msg)
		}
		if !events[i].Time.Equal(fixed) {
			t.Errorf("%s: Time = %v, want %v", c.typ, events[i].Time, fixed)
		}
	}
}
