package perception

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/types"
)

type mockLocator struct {
	mock.Mock
}

func (m *mockLocator) Locate(ctx context.Context, reference string, threshold float64) (types.Match, error) {
	args := m.Called(ctx, reference, threshold)
	return args.Get(0).(types.Match), args.Error(1)
}

func TestAdapter_Observe(t *testing.T) {
	locator := new(mockLocator)
	locator.On("Locate", mock.Anything, "btn.next", 0.9).
		Return(types.Match{Found: true, Confidence: 0.95, Location: types.Location{X: 10, Y: 20}}, nil).Once()
	locator.On("Locate", mock.Anything, "banner", 0.9).
		Return(types.Match{Found: true, Confidence: 0.6}, nil).Once()

	adapter := NewAdapter(locator, 0.9)
	fixed := time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return fixed }

	obs, err := adapter.Observe(context.Background(), []string{"btn.next", "banner", "btn.next"})
	require.NoError(t, err)

	assert.Equal(t, fixed, obs.Timestamp)
	assert.True(t, obs.Seen("btn.next", 0.9))
	m, ok := obs.Get("btn.next")
	require.True(t, ok)
	assert.Equal(t, "btn.next", m.Reference)
	assert.Equal(t, types.Location{X: 10, Y: 20}, m.Location)

	banner, _ := obs.Get("banner")
	assert.False(t, banner.Found, "low-confidence match is not found")

	locator.AssertExpectations(t)
}

func TestAdapter_LocatorError(t *testing.T) {
	locator := new(mockLocator)
	boom := errors.New("page crashed")
	locator.On("Locate", mock.Anything, "login.form", DefaultThreshold).Return(types.Match{}, boom)

	adapter := NewAdapter(locator, 0)
	assert.Equal(t, DefaultThreshold, adapter.Threshold())

	_, err := adapter.Observe(context.Background(), []string{"login.form"})
	assert.ErrorIs(t, err, boom)
}

func TestAdapter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAdapter(new(mockLocator), 0.8).Observe(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRef(t *testing.T) {
	assert.Equal(t, "consulate.option:Warsaw", Ref("consulate.option", "Warsaw"))
	assert.Equal(t, "login.form", Ref("login.form", ""))

	name, arg := SplitRef("consulate.option:Warsaw")
	assert.Equal(t, "consulate.option", name)
	assert.Equal(t, "Warsaw", arg)

	name, arg = SplitRef("login.form")
	assert.Equal(t, "login.form", name)
	assert.Empty(t, arg)
}
