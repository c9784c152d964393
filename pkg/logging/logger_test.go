package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/types"
)

// setupTestDir points the run log at a temporary directory and resets global state.
func setupTestDir(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	require.NoError(t, Configure(tempDir, LevelDebug))

	origSessionID := sessionID
	sessionID = ""
	sessionIDOnce = sync.Once{}

	t.Cleanup(func() {
		_ = Configure("", LevelInfo)
		sessionID = origSessionID
	})
	return tempDir
}

func TestLogger_WritesToSessionFile(t *testing.T) {
	dir := setupTestDir(t)

	logger := NewLogger("test-component")
	logger.Infof("hello %s", "world")

	path := LogPath()
	require.NotEmpty(t, path)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, GetSessionID()+"-booker.log"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test-component] [INFO] hello world")
}

func TestLogger_ComponentsShareFile(t *testing.T) {
	setupTestDir(t)

	NewLogger("a").Infof("first")
	NewLogger("b").Warnf("second")

	data, err := os.ReadFile(LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[a] [INFO] first")
	assert.Contains(t, string(data), "[b] [WARN] second")
}

func TestLogger_LevelFiltering(t *testing.T) {
	setupTestDir(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)

	logger := NewLogger("filter")
	logger.Debugf("debug")
	logger.Infof("info")
	logger.Warnf("warn")
	logger.Errorf("error")

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG]")
	assert.NotContains(t, out, "[INFO]")
	assert.Contains(t, out, "[WARN] warn")
	assert.Contains(t, out, "[ERROR] error")
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	setupTestDir(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	logger := NewLogger("concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Infof("line %d", n)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventLog_WritesJSONLines(t *testing.T) {
	setupTestDir(t)
	SetOutput(&bytes.Buffer{})

	dir := t.TempDir()
	sink, err := OpenEventLog(dir)
	require.NoError(t, err)

	sink.Emit(types.NewUserStartedEvent("run-1", "alice"))
	sink.Emit(types.NewStepTransitionEvent("run-1", "alice", types.StepLogin, types.OutcomeNext, 1, time.Second))
	sink.Emit(types.NewSessionResultEvent("run-1", "alice", types.Failed(errors.New("boom")), time.Minute))
	sink.Emit(nil)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Err())

	f, err := os.Open(sink.Path())
	require.NoError(t, err)
	defer f.Close()

	var events []types.SessionEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev types.SessionEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, types.EventTypeUserStarted, events[0].Type)
	assert.Equal(t, types.StepLogin, events[1].Step)
	assert.Equal(t, types.EventTypeSessionResult, events[2].Type)
	assert.Equal(t, "boom", events[2].Error)
	require.NotNil(t, events[2].Result)
	assert.Equal(t, types.ResultFailed, events[2].Result.Kind)
}

func TestEventLog_MirrorsSummaryIntoRunLog(t *testing.T) {
	setupTestDir(t)

	var runLog bytes.Buffer
	SetOutput(&runLog)

	var events bytes.Buffer
	sink := NewEventLog(&events)
	sink.Emit(types.NewSessionResultEvent("run-2", "bob", types.Booked(types.NewDate(2025, time.July, 2), "Warsaw"), time.Minute))

	assert.Contains(t, runLog.String(), "user=bob result=booked(2025-07-02 @ Warsaw)")
	assert.Contains(t, events.String(), `"type":"session_result"`)
	assert.Empty(t, sink.Path())
	assert.NoError(t, sink.Close())
}
