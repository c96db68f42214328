// Package engine implements the cooperative frame scheduler at the core of
// the runtime: discrete ticks paced by a host-controlled handshake, an
// ordered component registry, per-frame canvas rendering, and input state.
//
// An Engine is owned by exactly one goroutine (the host thread for a direct
// session, the worker for a remote one); it takes no locks of its own.
package engine

import (
	"fmt"
	"time"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"

	"github.com/plus3/keel/canvas"
)

// AutoDelta asks Step to derive the delta itself: the configured FixedDelta
// when one is set, the measured wall-clock delta otherwise.
const AutoDelta = -1

// Key identifies a key by platform-independent code. Hosts map their native
// key codes onto this space before forwarding.
type Key int32

// PointerState is the engine's view of the host pointer, updated by the
// input forwarding operations and readable by bound components.
type PointerState struct {
	X, Y    float64
	Buttons uint32
	WheelX  float64
	WheelY  float64
}

// Engine is the simulation/render state machine. It advances by discrete
// frames; at most one frame is in flight at a time, and a new frame may not
// begin until the previous frame's resume handle has been released.
type Engine struct {
	opts Options

	frame    uint64
	lastTick time.Time
	haveLast bool

	reg       *registry
	canvasIDs []string
	canvases  map[string]*canvas.Canvas

	pointer  PointerState
	held     *intmap.Map[Key, bool]
	bindings *intmap.Map[Key, bool]

	resumeGen uint64
	inFlight  bool
	destroyed bool
}

// New creates an engine with the given initial options.
func New(opts Options) *Engine {
	e := &Engine{
		opts:     Options{Now: time.Now, AssetLoadingBehavior: AssetProceed, DevicePixelRatio: 1},
		reg:      newRegistry(),
		canvases: make(map[string]*canvas.Canvas),
		held:     intmap.New[Key, bool](16),
		bindings: intmap.New[Key, bool](16),
	}
	e.opts.merge(opts)
	return e
}

// SetOptions merges configuration field-by-field. Zero-valued fields are
// ignored, not errors.
func (e *Engine) SetOptions(opts Options) {
	if e.destroyed {
		return
	}
	e.opts.merge(opts)
}

// Frame returns the number of completed frames.
func (e *Engine) Frame() uint64 { return e.frame }

// AssetLoader returns the configured asset loader, or nil.
func (e *Engine) AssetLoader() AssetLoader { return e.opts.AssetLoader }

// SetCanvas registers (or replaces) a named canvas. Registration order is
// render order.
func (e *Engine) SetCanvas(id string, c *canvas.Canvas) {
	if e.destroyed {
		return
	}
	if _, ok := e.canvases[id]; !ok {
		e.canvasIDs = append(e.canvasIDs, id)
	}
	e.canvases[id] = c
}

// SetCanvasSize resizes a registered canvas.
func (e *Engine) SetCanvasSize(id string, width, height int) error {
	if e.destroyed {
		return ErrDestroyed
	}
	c, ok := e.canvases[id]
	if !ok {
		return fmt.Errorf("engine: unknown canvas %q", id)
	}
	c.Resize(width, height)
	return nil
}

// Canvas returns the canvas registered under id, or nil.
func (e *Engine) Canvas(id string) *canvas.Canvas {
	return e.canvases[id]
}

// Attach registers a component under a name. During a frame the attach is
// deferred to frame end; outside a frame it applies immediately. Attaching
// over an existing name replaces that component in place, keeping its order.
func (e *Engine) Attach(name string, c Component) {
	if e.destroyed {
		return
	}
	if b, ok := c.(Binder); ok {
		b.Bind(e)
	}
	entry := newEntry(name, c)
	if e.inFlight {
		e.reg.deferOp(pendingOp{kind: opAttach, entry: entry})
		return
	}
	e.reg.attach(entry)
}

// Detach removes a component by name. Deferred to frame end mid-frame.
func (e *Engine) Detach(name string) {
	if e.destroyed {
		return
	}
	if e.inFlight {
		e.reg.deferOp(pendingOp{kind: opDetach, name: name})
		return
	}
	e.reg.detach(name)
}

// SetEnabled soft-enables or soft-disables a component. Disabled components
// are skipped in place, preserving registration order for when re-enabled.
func (e *Engine) SetEnabled(name string, enabled bool) {
	if e.destroyed {
		return
	}
	kind := opDisable
	if enabled {
		kind = opEnable
	}
	if e.inFlight {
		e.reg.deferOp(pendingOp{kind: kind, name: name})
		return
	}
	e.reg.setEnabled(name, enabled)
}

// BindKeys marks keys as engine-consumed: KeyDown/KeyUp report them handled,
// which hosts use for default-action suppression.
func (e *Engine) BindKeys(keys ...Key) {
	if e.destroyed {
		return
	}
	for _, k := range keys {
		e.bindings.Put(k, true)
	}
}

// PointerMove updates the pointer position.
func (e *Engine) PointerMove(x, y float64) {
	if e.destroyed {
		return
	}
	e.pointer.X = x
	e.pointer.Y = y
}

// PointerDown updates the pointer position and presses a button.
func (e *Engine) PointerDown(x, y float64, button int) {
	if e.destroyed {
		return
	}
	e.pointer.X = x
	e.pointer.Y = y
	e.pointer.Buttons |= 1 << uint(button)
}

// PointerUp updates the pointer position and releases a button.
func (e *Engine) PointerUp(x, y float64, button int) {
	if e.destroyed {
		return
	}
	e.pointer.X = x
	e.pointer.Y = y
	e.pointer.Buttons &^= 1 << uint(button)
}

// Wheel accumulates scroll deltas for the current frame.
func (e *Engine) Wheel(dx, dy float64) {
	if e.destroyed {
		return
	}
	e.pointer.WheelX += dx
	e.pointer.WheelY += dy
}

// KeyDown records a held key and reports whether the engine consumes it.
func (e *Engine) KeyDown(k Key) bool {
	if e.destroyed {
		return false
	}
	e.held.Put(k, true)
	handled, _ := e.bindings.Get(k)
	return handled
}

// KeyUp releases a held key and reports whether the engine consumes it.
func (e *Engine) KeyUp(k Key) bool {
	if e.destroyed {
		return false
	}
	e.held.Del(k)
	handled, _ := e.bindings.Get(k)
	return handled
}

// KeyHeld reports whether a key is currently held.
func (e *Engine) KeyHeld(k Key) bool {
	held, _ := e.held.Get(k)
	return held
}

// ReleaseAllKeys clears the held-key set. Safe to call when no keys are held.
func (e *Engine) ReleaseAllKeys() {
	if e.destroyed {
		return
	}
	e.held = intmap.New[Key, bool](16)
}

// Pointer returns the current pointer state.
func (e *Engine) Pointer() PointerState { return e.pointer }

// Values aggregates the named values of every component implementing
// Reporter. This is the engine's inspectable state surface.
func (e *Engine) Values() map[string]float64 {
	out := make(map[string]float64)
	for _, entry := range e.reg.entries {
		if rep, ok := entry.component.(Reporter); ok {
			for k, v := range rep.Values() {
				out[k] = v
			}
		}
	}
	return out
}

// Stats returns statistics about component execution.
func (e *Engine) Stats() *Stats {
	return e.reg.collectStats()
}

// Step advances the engine by exactly one logical frame: tick every enabled
// component once in registration order, render every canvas, flush deferred
// structural changes, then hand the host a fresh resume handle through
// OnReadyForNextFrame.
//
// Calling Step while a frame is in flight fails fast with a
// FrameOverlapError; two ticks are never silently interleaved.
func (e *Engine) Step(dt float64) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if e.inFlight {
		return &FrameOverlapError{Frame: e.frame, Reason: "step requested while a frame is in flight"}
	}
	e.inFlight = true

	if dt < 0 {
		dt = e.autoDelta()
	}

	if !e.assetGateBlocked() {
		e.reg.tick(dt)
		e.frame++
	}
	e.render()
	e.reg.flush()

	e.pointer.WheelX = 0
	e.pointer.WheelY = 0

	e.inFlight = false
	e.resumeGen++
	if e.opts.OnReadyForNextFrame != nil {
		e.opts.OnReadyForNextFrame(&Resume{engine: e, gen: e.resumeGen})
	}
	return nil
}

func (e *Engine) autoDelta() float64 {
	if e.opts.FixedDelta > 0 {
		return e.opts.FixedDelta
	}
	now := e.opts.Now()
	if !e.haveLast {
		e.haveLast = true
		e.lastTick = now
		return 0
	}
	dt := now.Sub(e.lastTick).Seconds()
	e.lastTick = now
	return dt
}

func (e *Engine) assetGateBlocked() bool {
	return e.opts.AssetLoadingBehavior == AssetBlockUpdate &&
		e.opts.AssetLoader != nil &&
		e.opts.AssetLoader.PendingCount() > 0
}

// render clears every registered canvas and lets painting components draw,
// in registration order. The engine writes pixels and never reads them.
func (e *Engine) render() {
	for _, id := range e.canvasIDs {
		c := e.canvases[id]
		c.Clear()
		for _, entry := range e.reg.entries {
			if !entry.enabled {
				continue
			}
			if p, ok := entry.component.(Painter); ok {
				p.Paint(c)
			}
		}
	}
}

// Destroy tears the engine down: the outstanding resume handle is
// invalidated, no further ticks may occur, canvases are detached, the asset
// loader is closed (late completions are dropped silently), and OnDestroy
// fires exactly once. A second call is a no-op.
func (e *Engine) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.resumeGen++

	e.canvases = nil
	e.canvasIDs = nil

	if e.opts.AssetLoader != nil {
		e.opts.AssetLoader.Close()
	}
	if e.opts.OnDestroy != nil {
		e.opts.OnDestroy()
	}
	Logger().Debug("engine destroyed", zap.Uint64("frame", e.frame))
}

// Destroyed reports whether Destroy has been called.
func (e *Engine) Destroyed() bool { return e.destroyed }

// Resume is the one-shot handle released by the engine at the end of every
// frame. The host invokes it with the next delta (or AutoDelta) to advance
// exactly one frame. A handle is valid until the engine produces its
// successor; invoking a consumed or stale handle is a frame overlap.
type Resume struct {
	engine *Engine
	gen    uint64
	used   bool
}

// Resume advances the engine by one frame.
func (r *Resume) Resume(dt float64) error {
	e := r.engine
	if e.destroyed {
		return ErrDestroyed
	}
	if r.used {
		return &FrameOverlapError{Frame: e.frame, Reason: "resume handle already consumed"}
	}
	if r.gen != e.resumeGen {
		return &FrameOverlapError{Frame: e.frame, Reason: "stale resume handle"}
	}
	r.used = true
	return e.Step(dt)
}
