package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogger_WritesJSONEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "")

	l.LogStage("s1", "idea", "completed")
	l.LogError("s1", "elements", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var evt Event
	if err := json.Unmarshal([]byte(lines[1]), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != EventTypeError || evt.Stage != "elements" || evt.SessionID != "s1" {
		t.Errorf("Unexpected event: %+v", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestLogger_LLMTranscriptFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&bytes.Buffer{}, dir)

	l.LogLLM("s1", "idea", "sys", "prompt", "response", 1500*time.Millisecond)
	l.LogCost("s1", "idea", 10, 20, "gpt")

	data, err := os.ReadFile(filepath.Join(dir, "llm.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 1 {
		t.Errorf("Expected only the llm event in the transcript, got %d lines", n)
	}
	if !strings.Contains(string(data), `"elapsed_ms":1500`) {
		t.Errorf("Transcript missing elapsed time: %s", data)
	}
}

func TestLogger_Rotates(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&bytes.Buffer{}, dir)
	l.maxSize = 10

	l.LogLLM("s1", "idea", "sys", "prompt", "first", 0)
	l.LogLLM("s1", "idea", "sys", "prompt", "second", 0)

	if _, err := os.Stat(filepath.Join(dir, "llm.jsonl.old")); err != nil {
		t.Errorf("Expected rotated file: %v", err)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	l.LogReset("s1")
}

func TestBeginTask(t *testing.T) {
	before := CurrentStatus().Finished
	done1 := BeginTask("idea")
	done2 := BeginTask("elements")

	if st := CurrentStatus(); st.Role != RoleBusy || st.InFlight != 2 {
		t.Errorf("Expected two busy tasks, got %+v", st)
	}

	done1()
	done1()
	if st := CurrentStatus(); st.Role != RoleBusy || st.InFlight != 1 {
		t.Errorf("Expected busy while one task remains, got %+v", st)
	}

	done2()
	st := CurrentStatus()
	if st.Role != RoleIdle || st.ActiveTask != "" {
		t.Errorf("Expected idle, got %s %q", st.Role, st.ActiveTask)
	}
	if st.Finished-before != 2 {
		t.Errorf("Expected 2 finished tasks, got %d", st.Finished-before)
	}
}
