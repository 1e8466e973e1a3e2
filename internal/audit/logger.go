package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Outcomes recorded for a function call.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeDeny  = "deny"
)

// Logger writes structured JSON audit events, one per line.
type Logger struct {
	mu      sync.Mutex
	writer  io.Writer
	session string
	redact  []string
}

// New creates a Logger that writes to w. Every record carries session;
// argument values under the redact keys are masked.
func New(w io.Writer, session string, redact []string) *Logger {
	return &Logger{writer: w, session: session, redact: redact}
}

// CallEvent represents a function call audit record.
type CallEvent struct {
	RequestID  string
	Function   string
	Arguments  any
	Decision   string
	Rule       int
	Reason     string
	Outcome    string
	Error      string
	DurationMs int64
}

// LogCall records a function call event.
func (l *Logger) LogCall(e CallEvent) {
	record := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"event":      "function_call",
		"session":    l.session,
		"request_id": e.RequestID,
		"function":   e.Function,
		"arguments":  Redact(e.Arguments, l.redact),
		"outcome":    e.Outcome,
	}
	if e.Decision != "" {
		record["decision"] = e.Decision
		record["matched_rule"] = e.Rule
	}
	if e.Reason != "" {
		record["reason"] = e.Reason
	}
	if e.Error != "" {
		record["error"] = e.Error
	}
	if e.DurationMs > 0 {
		record["duration_ms"] = e.DurationMs
	}
	l.write(record)
}

// LogStartup records a server startup event.
func (l *Logger) LogStartup(backend, configPath string) {
	l.write(map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"event":       "startup",
		"session":     l.session,
		"backend":     backend,
		"config_file": configPath,
	})
}

// LogShutdown records a server shutdown event.
func (l *Logger) LogShutdown(calls int) {
	l.write(map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"event":     "shutdown",
		"session":   l.session,
		"calls":     calls,
	})
}

func (l *Logger) write(record map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	data = append(data, '\n')
	l.writer.Write(data)
}

// Redact replaces the values of keys in an argument object with a
// redaction marker. Returns a new map; does not modify the original.
// Non-object arguments are returned unchanged.
func Redact(args any, keys []string) any {
	obj, ok := args.(map[string]any)
	if !ok || len(keys) == 0 {
		return args
	}
	redacted := make(map[string]any, len(obj))
	for k, v := range obj {
		redacted[k] = v
	}
	for _, k := range keys {
		if _, exists := redacted[k]; exists {
			redacted[k] = "[REDACTED]"
		}
	}
	return redacted
}
