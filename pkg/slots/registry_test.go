package slots

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/types"
)

func TestRegistry_RecordAndMatch(t *testing.T) {
	reg, err := NewRegistry("")
	require.NoError(t, err)

	key := Key{Country: "Poland", Consulate: "Warsaw", Service: "passport"}
	reg.Record(key, d(2025, time.July, 9), d(2025, time.July, 2), d(2025, time.July, 9))

	assert.Equal(t, []types.Date{d(2025, time.July, 2), d(2025, time.July, 9)}, reg.Dates(key))
	assert.True(t, reg.IsModified())

	assert.True(t, reg.Matches(key, Constraints{Earliest: d(2025, time.July, 5)}))
	assert.False(t, reg.Matches(key, Constraints{Earliest: d(2025, time.July, 10)}))
	assert.False(t, reg.Matches(Key{Country: "Poland"}, Constraints{}))

	reg.Remove(key, d(2025, time.July, 9))
	assert.Len(t, reg.Dates(key), 1)
}

func TestRegistry_Prune(t *testing.T) {
	reg, err := NewRegistry("")
	require.NoError(t, err)

	old := Key{Country: "A", Consulate: "B", Service: "C"}
	mixed := Key{Country: "A", Consulate: "B", Service: "D"}
	reg.Record(old, d(2025, time.January, 1))
	reg.Record(mixed, d(2025, time.January, 1), d(2025, time.March, 1))

	reg.Prune(d(2025, time.February, 1))
	assert.Empty(t, reg.Dates(old))
	assert.Equal(t, []types.Date{d(2025, time.March, 1)}, reg.Dates(mixed))
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "free_slots.json")

	reg, err := NewRegistry(path)
	require.NoError(t, err)
	key := Key{Country: "Poland", Consulate: "Warsaw", Service: "passport"}
	reg.Record(key, d(2025, time.July, 2))
	require.NoError(t, reg.Save())
	assert.False(t, reg.IsModified())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"2025-07-02"`)

	reloaded, err := NewRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Dates(key), reloaded.Dates(key))
}

func TestRegistry_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "free_slots.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewRegistry(path)
	assert.Error(t, err)
}
