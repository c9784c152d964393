package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/booker/pkg/types"
)

// EventLog writes session events as JSON lines and mirrors a one-line
// summary of each into the run log.
type EventLog struct {
	mu     sync.Mutex
	enc    *json.Encoder
	file   *os.File
	path   string
	logger *Logger
	err    error
}

// NewEventLog writes events to w.
func NewEventLog(w io.Writer) *EventLog {
	return &EventLog{
		enc:    json.NewEncoder(w),
		logger: NewLogger("events"),
	}
}

// OpenEventLog creates <dir>/events-<session-id>.jsonl.
func OpenEventLog(dir string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("events-%s.jsonl", getSessionID()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	e := NewEventLog(f)
	e.file = f
	e.path = path
	return e, nil
}

// Emit records one event. Encoding errors are kept for Err and never
// interrupt the caller.
func (e *EventLog) Emit(event *types.SessionEvent) {
	if event == nil {
		return
	}

	e.mu.Lock()
	if err := e.enc.Encode(event); err != nil && e.err == nil {
		e.err = err
	}
	e.mu.Unlock()

	switch event.Type {
	case types.EventTypeSessionResult:
		if event.Result != nil && event.Result.Kind == types.ResultFailed {
			e.logger.Errorf("run=%s user=%s result=%s", event.RunID, event.User, event.Result)
			return
		}
		e.logger.Infof("run=%s user=%s result=%s elapsed=%s", event.RunID, event.User, event.Result, event.Duration)
	case types.EventTypeError:
		e.logger.Warnf("run=%s user=%s step=%s error=%s", event.RunID, event.User, event.Step, event.Error)
	case types.EventTypeStepRetry, types.EventTypeStepReload:
		e.logger.Debugf("run=%s user=%s step=%s %s attempt=%d", event.RunID, event.User, event.Step, event.Outcome, event.Attempt)
	default:
		e.logger.Infof("run=%s user=%s %s step=%s outcome=%s", event.RunID, event.User, event.Type, event.Step, event.Outcome)
	}
}

// Err returns the first write error, if any.
func (e *EventLog) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Path returns the JSON-lines file path, or "" for writer-backed logs.
func (e *EventLog) Path() string {
	return e.path
}

// Close closes the underlying file when the log owns one.
func (e *EventLog) Close() error {
	if e.file == nil {
		return nil
	}
	return e.file.Close()
}
