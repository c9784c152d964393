package actions

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/types"
)

// recordingDevice records every primitive it receives.
type recordingDevice struct {
	pos    types.Location
	calls  []string
	typed  strings.Builder
	pasted []byte
	failOn string
	moves  int
}

func (d *recordingDevice) fail(call string) error {
	d.calls = append(d.calls, call)
	if d.failOn != "" && d.failOn == call {
		return errors.New("device failure")
	}
	return nil
}

func (d *recordingDevice) Position() types.Location { return d.pos }

func (d *recordingDevice) MoveTo(ctx context.Context, loc types.Location) error {
	d.pos = loc
	d.moves++
	return nil
}

func (d *recordingDevice) Click(ctx context.Context) error { return d.fail("click") }

func (d *recordingDevice) TypeRune(ctx context.Context, r rune) error {
	d.typed.WriteRune(r)
	return nil
}

func (d *recordingDevice) Press(ctx context.Context, key string) error { return d.fail("press:" + key) }

func (d *recordingDevice) Scroll(ctx context.Context, dy int) error { return d.fail("scroll") }

func (d *recordingDevice) Upload(ctx context.Context, reference, path string) error {
	return d.fail("upload:" + reference + ":" + path)
}

func (d *recordingDevice) Reload(ctx context.Context) error { return d.fail("reload") }

type pastingDevice struct {
	recordingDevice
}

func (d *pastingDevice) Paste(ctx context.Context, text []byte) error {
	d.pasted = append([]byte(nil), text...)
	return nil
}

func newTestHumanizer(dev Device, opts Options) (*Humanizer, *[]time.Duration) {
	h := NewHumanizer(dev, opts, 1)
	var slept []time.Duration
	h.SetSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	})
	return h, &slept
}

func observed(refs map[string]types.Location) types.ObservedState {
	obs := types.NewObservedState(time.Now())
	for ref, loc := range refs {
		obs.Add(types.Match{Reference: ref, Found: true, Confidence: 1, Location: loc})
	}
	return obs
}

func TestHumanizer_ClickMovesToObservedLocation(t *testing.T) {
	dev := &recordingDevice{}
	h, _ := newTestHumanizer(dev, DefaultOptions())

	target := types.Location{X: 400, Y: 300}
	err := h.Act(context.Background(), Sequence{Click("btn.next")}, observed(map[string]types.Location{"btn.next": target}))
	require.NoError(t, err)

	assert.Equal(t, target, dev.pos)
	assert.Equal(t, DefaultOptions().MoveSteps, dev.moves)
	assert.Equal(t, []string{"click"}, dev.calls)
}

func TestHumanizer_ClickUnobservedTarget(t *testing.T) {
	dev := &recordingDevice{}
	h, _ := newTestHumanizer(dev, DefaultOptions())

	err := h.Act(context.Background(), Sequence{Type("x"), Click("missing")}, types.NewObservedState(time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTargetNotObserved)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, 1, actionErr.Index)
	assert.Empty(t, dev.calls, "no click without a target")
}

func TestHumanizer_TypingJitterWithinBounds(t *testing.T) {
	dev := &recordingDevice{}
	opts := DefaultOptions()
	opts.ActionPause = 0
	h, slept := newTestHumanizer(dev, opts)

	require.NoError(t, h.Act(context.Background(), Sequence{Type("Київ")}, types.ObservedState{}))
	assert.Equal(t, "Київ", dev.typed.String())

	require.Len(t, *slept, 4)
	for _, d := range *slept {
		assert.GreaterOrEqual(t, d, opts.TypingMin)
		assert.LessOrEqual(t, d, opts.TypingMax)
	}
}

func TestHumanizer_SecretsAreWiped(t *testing.T) {
	t.Run("typed", func(t *testing.T) {
		dev := &recordingDevice{}
		h, _ := newTestHumanizer(dev, DefaultOptions())

		secret := []byte("hunter2")
		require.NoError(t, h.Act(context.Background(), Sequence{TypeSecret(secret)}, types.ObservedState{}))
		assert.Equal(t, "hunter2", dev.typed.String())
		assert.Equal(t, make([]byte, 7), secret)
	})

	t.Run("pasted", func(t *testing.T) {
		dev := &pastingDevice{}
		opts := DefaultOptions()
		opts.PasteSecrets = true
		h, _ := newTestHumanizer(dev, opts)

		secret := []byte("hunter2")
		require.NoError(t, h.Act(context.Background(), Sequence{TypeSecret(secret)}, types.ObservedState{}))
		assert.Equal(t, "hunter2", string(dev.pasted))
		assert.Empty(t, dev.typed.String())
		assert.Equal(t, make([]byte, 7), secret)
	})

	t.Run("wiped on failure", func(t *testing.T) {
		dev := &recordingDevice{failOn: "click"}
		h, _ := newTestHumanizer(dev, DefaultOptions())

		secret := []byte("hunter2")
		seq := Sequence{ClickAt(types.Location{X: 1, Y: 1}), TypeSecret(secret)}
		require.Error(t, h.Act(context.Background(), seq, types.ObservedState{}))
		assert.Equal(t, make([]byte, 7), secret)
	})
}

func TestHumanizer_OtherPrimitives(t *testing.T) {
	dev := &recordingDevice{}
	h, slept := newTestHumanizer(dev, Options{MoveSteps: 2})

	seq := Sequence{
		Press("Enter"),
		ScrollBy(-200),
		Upload("login.key_file", "/keys/alice.jks"),
		Wait(time.Second),
		Reload(),
	}
	require.NoError(t, h.Act(context.Background(), seq, types.ObservedState{}))

	assert.Equal(t, []string{"press:Enter", "scroll", "upload:login.key_file:/keys/alice.jks", "reload"}, dev.calls)
	assert.Contains(t, *slept, time.Second)
}

func TestHumanizer_DeviceErrorStopsSequence(t *testing.T) {
	dev := &recordingDevice{failOn: "press:Enter"}
	h, _ := newTestHumanizer(dev, DefaultOptions())

	err := h.Act(context.Background(), Sequence{Press("Enter"), Reload()}, types.ObservedState{})
	require.Error(t, err)
	assert.Equal(t, []string{"press:Enter"}, dev.calls)
	assert.Contains(t, err.Error(), "press(Enter)")
}

func TestHumanizer_PathEndsAtTargetAndStaysNear(t *testing.T) {
	h := NewHumanizer(&recordingDevice{}, DefaultOptions(), 99)

	start := types.Location{X: 0, Y: 0}
	end := types.Location{X: 500, Y: 200}
	for i := 0; i < 50; i++ {
		path := h.Path(start, end)
		require.Len(t, path, 30)
		assert.Equal(t, end, path[len(path)-1])

		// Every bezier point lies within the hull of the anchors, which are
		// at most AnchorRadius away from the endpoints.
		for _, p := range path {
			assert.GreaterOrEqual(t, p.X, -100.0)
			assert.LessOrEqual(t, p.X, 600.0)
			assert.False(t, math.IsNaN(p.Y))
		}
	}
}

func TestAction_StringHidesSecrets(t *testing.T) {
	assert.Equal(t, "type(<secret>)", TypeSecret([]byte("pw")).String())
	assert.Equal(t, "type(4 chars)", Type("Київ").String())
	assert.Equal(t, "click(btn)", Click("btn").String())
}
