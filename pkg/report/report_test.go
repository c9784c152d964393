package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/orchestrator"
	"github.com/entrhq/booker/pkg/types"
)

func testSummary() orchestrator.Summary {
	start := time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)
	return orchestrator.Summary{
		Records: []orchestrator.Record{
			{Alias: "alice", Result: types.NoSlotFound(), Started: start, Duration: time.Minute},
			{Alias: "bob", Result: types.Failed(errors.New("step | broke\nbadly")), Started: start.Add(time.Minute), Duration: time.Minute},
			{Alias: "alice", Result: types.Booked(types.NewDate(2025, time.July, 2), "Warsaw"), Started: start.Add(2 * time.Minute), Duration: time.Minute},
			{Alias: "carol", Result: types.ConstraintUnsatisfiable("no dates"), Started: start.Add(3 * time.Minute)},
		},
		Stopped: true,
	}
}

func TestBuild(t *testing.T) {
	start := time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)
	s := Build("sess", testSummary(), start, start.Add(time.Hour))

	assert.Equal(t, "stopped", s.Status)
	assert.Equal(t, time.Hour, s.Duration)
	assert.Equal(t, RunMetrics{Runs: 4, Users: 3, Booked: 1, NoSlotFound: 1, Unsatisfiable: 1, Failed: 1}, s.Metrics)
	require.Len(t, s.Users, 4)
	assert.Equal(t, "2025-07-02", s.Users[2].Date)
	assert.Equal(t, "Warsaw", s.Users[2].Consulate)
	assert.Equal(t, "step | broke\nbadly", s.Users[1].Error)
	assert.Empty(t, s.Users[0].Date)
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	start := time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)
	s := Build("sess", testSummary(), start, start.Add(time.Hour))

	require.NoError(t, NewArtifactWriter(dir).WriteAll(s))

	data, err := os.ReadFile(filepath.Join(dir, "results.json"))
	require.NoError(t, err)
	var decoded RunSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Metrics, decoded.Metrics)
	assert.Len(t, decoded.Users, 4)

	data, err = os.ReadFile(filepath.Join(dir, "metrics.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"booked": 1`)

	md, err := os.ReadFile(filepath.Join(dir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "**Status:** stopped")
	assert.Contains(t, string(md), "| alice | ✅ booked | 2025-07-02 @ Warsaw |")
	assert.Contains(t, string(md), `step \| broke badly`)
	assert.Contains(t, string(md), "- **Users:** 3")
}
