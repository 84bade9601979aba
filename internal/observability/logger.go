package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeStage    EventType = "stage"
	EventTypeLLM      EventType = "llm"
	EventTypeCost     EventType = "cost"
	EventTypeAdvisory EventType = "advisory"
	EventTypeError    EventType = "error"
	EventTypeReset    EventType = "reset"
	EventTypeGateway  EventType = "gateway"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. Every event goes to out; llm events
// are also appended to a JSONL file that is rotated once it grows past
// maxSize.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

// NewLogger writes events to out (stdout when nil) and LLM transcripts
// under dir (no transcript file when dir is empty).
func NewLogger(out io.Writer, dir string) *Logger {
	if out == nil {
		out = os.Stdout
	}
	l := &Logger{
		out:     out,
		maxSize: 10 * 1024 * 1024, // 10MB
	}
	if dir != "" {
		l.llmLogPath = filepath.Join(dir, "llm.jsonl")
	}
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": \"failed to marshal event: %v\"}", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Keep a single .old generation.
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

func (l *Logger) LogStage(sessionID, stage, status string) {
	l.Log(Event{
		Type:      EventTypeStage,
		SessionID: sessionID,
		Stage:     stage,
		Data:      map[string]string{"status": status},
	})
}

func (l *Logger) LogAdvisory(sessionID, stage, message string) {
	l.Log(Event{
		Type:      EventTypeAdvisory,
		SessionID: sessionID,
		Stage:     stage,
		Data:      map[string]string{"message": message},
	})
}

func (l *Logger) LogError(sessionID, stage string, err error) {
	l.Log(Event{
		Type:      EventTypeError,
		SessionID: sessionID,
		Stage:     stage,
		Data:      map[string]string{"error": err.Error()},
	})
}

func (l *Logger) LogReset(sessionID string) {
	l.Log(Event{
		Type:      EventTypeReset,
		SessionID: sessionID,
		Data:      map[string]string{"status": "cleared"},
	})
}

func (l *Logger) LogCost(sessionID, stage string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:      EventTypeCost,
		SessionID: sessionID,
		Stage:     stage,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogLLM(sessionID, stage string, system, prompt, response string, elapsed time.Duration) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		Stage:     stage,
		Data: map[string]any{
			"system":     system,
			"prompt":     prompt,
			"response":   response,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

func (l *Logger) LogGateway(name, chatID, command string) {
	l.Log(Event{
		Type:      EventTypeGateway,
		SessionID: chatID,
		Data: map[string]string{
			"gateway": name,
			"command": command,
		},
	})
}
