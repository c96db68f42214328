package engine_test

import (
	"image/color"
	"testing"
	"time"

	"github.com/plus3/keel/canvas"
	"github.com/plus3/keel/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder appends its tag to a shared log on every tick.
type recorder struct {
	tag string
	log *[]string
}

func (r *recorder) Update(dt float64) bool {
	*r.log = append(*r.log, r.tag)
	return true
}

type funcComponent func(dt float64) bool

func (f funcComponent) Update(dt float64) bool { return f(dt) }

func TestStepTicksInRegistrationOrder(t *testing.T) {
	e := engine.New(engine.Options{})

	var log []string
	e.Attach("a", &recorder{tag: "a", log: &log})
	e.Attach("b", &recorder{tag: "b", log: &log})

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Step(1.0/60.0))
	}

	assert.Equal(t, []string{"a", "b", "a", "b", "a", "b"}, log)
	assert.Equal(t, uint64(3), e.Frame())
}

func TestHandshakeDeliversFreshResumeEveryFrame(t *testing.T) {
	var resumes []*engine.Resume
	e := engine.New(engine.Options{
		OnReadyForNextFrame: func(r *engine.Resume) {
			resumes = append(resumes, r)
		},
	})

	require.NoError(t, e.Step(1))
	require.Len(t, resumes, 1)

	require.NoError(t, resumes[0].Resume(1))
	require.Len(t, resumes, 2)
	assert.Equal(t, uint64(2), e.Frame())
}

func TestConsumedResumeHandleIsFrameOverlap(t *testing.T) {
	var last *engine.Resume
	e := engine.New(engine.Options{
		OnReadyForNextFrame: func(r *engine.Resume) { last = r },
	})

	require.NoError(t, e.Step(1))
	used := last

	require.NoError(t, used.Resume(1))
	err := used.Resume(1)
	require.Error(t, err)
	assert.True(t, engine.IsFrameOverlap(err))
}

func TestStaleResumeHandleIsFrameOverlap(t *testing.T) {
	var resumes []*engine.Resume
	e := engine.New(engine.Options{
		OnReadyForNextFrame: func(r *engine.Resume) { resumes = append(resumes, r) },
	})

	require.NoError(t, e.Step(1))
	require.NoError(t, e.Step(1))
	require.Len(t, resumes, 2)

	err := resumes[0].Resume(1)
	require.Error(t, err)
	assert.True(t, engine.IsFrameOverlap(err))

	// The current handle still works.
	require.NoError(t, resumes[1].Resume(1))
}

func TestStepDuringStepIsFrameOverlap(t *testing.T) {
	e := engine.New(engine.Options{})

	var inner error
	e.Attach("reentrant", funcComponent(func(dt float64) bool {
		inner = e.Step(1)
		return false
	}))

	require.NoError(t, e.Step(1))
	require.Error(t, inner)
	assert.True(t, engine.IsFrameOverlap(inner))
	// The outer frame still completed.
	assert.Equal(t, uint64(1), e.Frame())
}

func TestPanickingComponentIsIsolated(t *testing.T) {
	e := engine.New(engine.Options{})

	var log []string
	e.Attach("boom", funcComponent(func(dt float64) bool {
		panic("component failure")
	}))
	e.Attach("after", &recorder{tag: "after", log: &log})

	require.NoError(t, e.Step(1))
	assert.Equal(t, []string{"after"}, log)
}

func TestSoftDisablePreservesOrder(t *testing.T) {
	e := engine.New(engine.Options{})

	var log []string
	e.Attach("a", &recorder{tag: "a", log: &log})
	e.Attach("b", &recorder{tag: "b", log: &log})
	e.Attach("c", &recorder{tag: "c", log: &log})

	e.SetEnabled("b", false)
	require.NoError(t, e.Step(1))
	assert.Equal(t, []string{"a", "c"}, log)

	log = nil
	e.SetEnabled("b", true)
	require.NoError(t, e.Step(1))
	assert.Equal(t, []string{"a", "b", "c"}, log)
}

func TestMidFrameStructuralChangesAreDeferred(t *testing.T) {
	e := engine.New(engine.Options{})

	var log []string
	e.Attach("first", funcComponent(func(dt float64) bool {
		if len(log) == 0 {
			e.Attach("late", &recorder{tag: "late", log: &log})
		}
		log = append(log, "first")
		return true
	}))

	// The attach lands at frame end, not during the tick.
	require.NoError(t, e.Step(1))
	assert.Equal(t, []string{"first"}, log)

	require.NoError(t, e.Step(1))
	assert.Equal(t, []string{"first", "first", "late"}, log)
}

type fakeLoader struct {
	pending int
	closed  bool
}

func (f *fakeLoader) PendingCount() int { return f.pending }
func (f *fakeLoader) Close()            { f.closed = true }

func TestBlockUpdateGateSkipsTicksButKeepsHandshake(t *testing.T) {
	loader := &fakeLoader{pending: 1}

	ready := 0
	e := engine.New(engine.Options{
		AssetLoadingBehavior: engine.AssetBlockUpdate,
		AssetLoader:          loader,
		OnReadyForNextFrame:  func(r *engine.Resume) { ready++ },
	})

	var log []string
	e.Attach("a", &recorder{tag: "a", log: &log})

	require.NoError(t, e.Step(1))
	assert.Empty(t, log, "ticks must be skipped while loads are pending")
	assert.Equal(t, uint64(0), e.Frame())
	assert.Equal(t, 1, ready, "handshake still fires on a blocked frame")

	loader.pending = 0
	require.NoError(t, e.Step(1))
	assert.Equal(t, []string{"a"}, log)
	assert.Equal(t, uint64(1), e.Frame())
}

func TestReplacedLoaderIsClosed(t *testing.T) {
	old := &fakeLoader{}
	e := engine.New(engine.Options{AssetLoader: old})

	e.SetOptions(engine.Options{AssetLoader: &fakeLoader{}})
	assert.True(t, old.closed, "the engine owns its loader; a replaced one has no other closer")

	// Re-merging the same loader must not close it.
	current := &fakeLoader{}
	e.SetOptions(engine.Options{AssetLoader: current})
	e.SetOptions(engine.Options{AssetLoader: current})
	assert.False(t, current.closed)
}

func TestProceedModeTicksWithPendingLoads(t *testing.T) {
	loader := &fakeLoader{pending: 3}
	e := engine.New(engine.Options{
		AssetLoadingBehavior: engine.AssetProceed,
		AssetLoader:          loader,
	})

	var log []string
	e.Attach("a", &recorder{tag: "a", log: &log})

	require.NoError(t, e.Step(1))
	assert.Equal(t, []string{"a"}, log)
}

func TestFixedDeltaDrivesAutoSteps(t *testing.T) {
	e := engine.New(engine.Options{FixedDelta: 0.5})

	var got []float64
	e.Attach("probe", funcComponent(func(dt float64) bool {
		got = append(got, dt)
		return false
	}))

	require.NoError(t, e.Step(engine.AutoDelta))
	require.NoError(t, e.Step(engine.AutoDelta))
	assert.Equal(t, []float64{0.5, 0.5}, got)
}

func TestMeasuredDeltaUsesInjectedClock(t *testing.T) {
	now := time.Unix(0, 0)
	e := engine.New(engine.Options{
		Now: func() time.Time { return now },
	})

	var got []float64
	e.Attach("probe", funcComponent(func(dt float64) bool {
		got = append(got, dt)
		return false
	}))

	require.NoError(t, e.Step(engine.AutoDelta)) // first auto step has no baseline
	now = now.Add(250 * time.Millisecond)
	require.NoError(t, e.Step(engine.AutoDelta))

	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0])
	assert.InDelta(t, 0.25, got[1], 1e-9)
}

func TestKeyHandlingFollowsBindings(t *testing.T) {
	e := engine.New(engine.Options{})
	e.BindKeys(engine.Key(32), engine.Key(87))

	assert.True(t, e.KeyDown(engine.Key(32)))
	assert.False(t, e.KeyDown(engine.Key(13)))
	assert.True(t, e.KeyHeld(engine.Key(32)))
	assert.True(t, e.KeyHeld(engine.Key(13)))

	assert.True(t, e.KeyUp(engine.Key(32)))
	assert.False(t, e.KeyHeld(engine.Key(32)))
}

func TestAttachSpecBindsDeclaredKeys(t *testing.T) {
	e := engine.New(engine.Options{})
	require.NoError(t, e.AttachSpec(engine.ComponentSpec{
		Name: "mover",
		Kind: "lerp",
		Keys: []engine.Key{87, 83},
		Lerp: &engine.LerpSpec{From: 0, Target: 10, Speed: 1},
	}))

	assert.True(t, e.KeyDown(engine.Key(87)))
	assert.True(t, e.KeyDown(engine.Key(83)))
	assert.False(t, e.KeyDown(engine.Key(13)))
}

func TestReleaseAllKeysIsIdempotent(t *testing.T) {
	e := engine.New(engine.Options{})
	e.KeyDown(engine.Key(65))

	e.ReleaseAllKeys()
	assert.False(t, e.KeyHeld(engine.Key(65)))
	e.ReleaseAllKeys() // safe with nothing held
}

func TestRenderClearsAndPaintsInOrder(t *testing.T) {
	e := engine.New(engine.Options{})
	c := canvas.New(8, 8)
	e.SetCanvas("main", c)

	e.Attach("dot", engine.NewDot("dot", 4, 4, 2, 100, color.RGBA{R: 255, A: 255}))
	require.NoError(t, e.Step(1))

	assert.Equal(t, color.RGBA{R: 255, A: 255}, c.Image().RGBAAt(4, 4))
	assert.Equal(t, color.RGBA{A: 255}, c.Image().RGBAAt(0, 0))
}

func TestSetCanvasSizeUnknownIdFails(t *testing.T) {
	e := engine.New(engine.Options{})
	assert.Error(t, e.SetCanvasSize("nope", 10, 10))

	e.SetCanvas("main", canvas.New(4, 4))
	require.NoError(t, e.SetCanvasSize("main", 16, 16))
	assert.Equal(t, 16, e.Canvas("main").Width())
}

func TestDestroyIsIdempotentAndFinal(t *testing.T) {
	destroyed := 0
	loader := &fakeLoader{}
	e := engine.New(engine.Options{
		OnDestroy:   func() { destroyed++ },
		AssetLoader: loader,
	})

	var last *engine.Resume
	e.SetOptions(engine.Options{OnReadyForNextFrame: func(r *engine.Resume) { last = r }})
	require.NoError(t, e.Step(1))

	e.Destroy()
	e.Destroy()

	assert.Equal(t, 1, destroyed, "OnDestroy must fire exactly once")
	assert.True(t, loader.closed)
	assert.ErrorIs(t, e.Step(1), engine.ErrDestroyed)
	assert.ErrorIs(t, last.Resume(1), engine.ErrDestroyed)
	assert.False(t, e.KeyDown(engine.Key(1)))
}

func TestValuesAggregatesReporters(t *testing.T) {
	e := engine.New(engine.Options{})

	x := 10.0
	e.Attach("x", engine.NewLerp("x", engine.Float64Var(&x), engine.LerpLinear, 5))
	e.Attach("silent", funcComponent(func(dt float64) bool { return false }))

	vals := e.Values()
	require.Len(t, vals, 1)
	assert.Equal(t, 10.0, vals["x"])
}

func TestStatsTrackExecutionAndDirtyCounts(t *testing.T) {
	e := engine.New(engine.Options{})

	x := 10.0
	l := engine.NewLerp("x", engine.Float64Var(&x), engine.LerpLinear, 5)
	l.SetTarget(0)
	e.Attach("x", l)

	require.NoError(t, e.Step(1))
	require.NoError(t, e.Step(1))
	require.NoError(t, e.Step(1)) // settled: no change this frame

	stats := e.Stats()
	require.Equal(t, 1, stats.ComponentCount)
	cs := stats.Components[0]
	assert.Equal(t, "x", cs.Name)
	assert.Equal(t, int64(3), cs.ExecutionCount)
	assert.Equal(t, int64(2), cs.ChangedCount)
	assert.Equal(t, int64(3), stats.TotalExecutions)
}
