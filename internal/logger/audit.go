package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Audit event names.
const (
	EventRoutingDecision = "routing_decision"
	EventInteraction     = "interaction"
	EventHandoff         = "agent_handoff"
	EventRetrieval       = "retrieval_attempt"
	EventIngestion       = "ingestion_job"
)

var (
	auditOutput io.Writer
	now         = time.Now
)

// auditRecord is one line of the audit log.
type auditRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// SetAuditOutput sets the audit sink. Nil disables auditing.
func SetAuditOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	auditOutput = w
}

// OpenAuditFile appends audit events to path, creating it if needed.
// The returned closer detaches and closes the file.
func OpenAuditFile(path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	SetAuditOutput(f)
	return closerFunc(func() error {
		SetAuditOutput(nil)
		return f.Close()
	}), nil
}

// Audit writes one JSON line to the audit sink and mirrors it to the
// verbose log.
func Audit(event string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()

	if verbose {
		fmt.Fprintf(output, "[AUDIT] %s %v\n", event, fields)
	}
	if auditOutput == nil {
		return
	}

	line, err := json.Marshal(auditRecord{Timestamp: now().UTC(), Event: event, Fields: fields})
	if err != nil {
		fmt.Fprintf(output, "[WARN] audit %s: %v\n", event, err)
		return
	}
	_, _ = auditOutput.Write(append(line, '\n'))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
