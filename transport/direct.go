package transport

import (
	"context"
	"fmt"
	"image"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plus3/keel/asset"
	"github.com/plus3/keel/canvas"
	"github.com/plus3/keel/engine"
)

// Direct wraps an engine living in the caller's execution context. All
// operations mutate the engine synchronously.
type Direct struct {
	id        uuid.UUID
	eng       *engine.Engine
	resume    *engine.Resume
	hostReady func(*engine.Resume)
	destroyed bool
}

var _ Session = (*Direct)(nil)

// NewDirect creates a direct session around a fresh engine.
func NewDirect(opts engine.Options) *Direct {
	d := &Direct{id: uuid.New()}
	d.hostReady = opts.OnReadyForNextFrame
	opts.OnReadyForNextFrame = d.onReady
	d.eng = engine.New(opts)
	Logger().Debug("direct session created", zap.String("session", d.id.String()))
	return d
}

// Engine exposes the wrapped engine for in-process collaborators (debug
// overlays). Meaningful only in Direct mode.
func (d *Direct) Engine() *engine.Engine { return d.eng }

// onReady stores the fresh resume handle for the next StepFrame and relays
// it to the host's own callback, when one is configured.
func (d *Direct) onReady(r *engine.Resume) {
	d.resume = r
	if d.hostReady != nil {
		d.hostReady(r)
	}
}

// SetOptions merges configuration into the engine synchronously. A host
// readiness callback is chained behind the session's own handle tracking.
func (d *Direct) SetOptions(opts engine.Options) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	if opts.OnReadyForNextFrame != nil {
		d.hostReady = opts.OnReadyForNextFrame
		opts.OnReadyForNextFrame = nil
	}
	d.eng.SetOptions(opts)
	return nil
}

// SetCanvas registers the canvas handle by reference.
func (d *Direct) SetCanvas(canvasID string, c *canvas.Canvas) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.SetCanvas(canvasID, c)
	return nil
}

// SetCanvasSize resizes a registered canvas.
func (d *Direct) SetCanvasSize(canvasID string, width, height int) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	return d.eng.SetCanvasSize(canvasID, width, height)
}

// Attach builds and registers the described component.
func (d *Direct) Attach(spec engine.ComponentSpec) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	return d.eng.AttachSpec(spec)
}

// Detach removes a component by name.
func (d *Direct) Detach(name string) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.Detach(name)
	return nil
}

// SetEnabled toggles a component in place.
func (d *Direct) SetEnabled(name string, enabled bool) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.SetEnabled(name, enabled)
	return nil
}

// BindKeys marks keys as engine-consumed.
func (d *Direct) BindKeys(keys ...engine.Key) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.BindKeys(keys...)
	return nil
}

// PointerMove forwards a pointer move.
func (d *Direct) PointerMove(x, y float64) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.PointerMove(x, y)
	return nil
}

// PointerDown forwards a pointer press.
func (d *Direct) PointerDown(x, y float64, button int) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.PointerDown(x, y, button)
	return nil
}

// PointerUp forwards a pointer release.
func (d *Direct) PointerUp(x, y float64, button int) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.PointerUp(x, y, button)
	return nil
}

// Wheel forwards scroll deltas.
func (d *Direct) Wheel(dx, dy float64) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.Wheel(dx, dy)
	return nil
}

// KeyDown forwards a key press and returns the engine's handled result
// immediately.
func (d *Direct) KeyDown(k engine.Key) (bool, error) {
	if d.destroyed {
		return false, ErrSessionClosed
	}
	return d.eng.KeyDown(k), nil
}

// KeyUp forwards a key release and returns the engine's handled result
// immediately.
func (d *Direct) KeyUp(k engine.Key) (bool, error) {
	if d.destroyed {
		return false, ErrSessionClosed
	}
	return d.eng.KeyUp(k), nil
}

// ReleaseAllKeys clears held keys.
func (d *Direct) ReleaseAllKeys() error {
	if d.destroyed {
		return ErrSessionClosed
	}
	d.eng.ReleaseAllKeys()
	return nil
}

// StepFrame advances the engine by one frame, through the previous frame's
// resume handle once one exists.
func (d *Direct) StepFrame(ctx context.Context, dt float64) (uint64, error) {
	if d.destroyed {
		return 0, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return d.eng.Frame(), err
	}
	if r := d.resume; r != nil {
		d.resume = nil
		if err := r.Resume(dt); err != nil {
			return d.eng.Frame(), err
		}
		return d.eng.Frame(), nil
	}
	if err := d.eng.Step(dt); err != nil {
		return d.eng.Frame(), err
	}
	return d.eng.Frame(), nil
}

// LoadAsset drives the loader configured through engine.Options.
func (d *Direct) LoadAsset(source string, kind asset.Kind, name ...string) error {
	if d.destroyed {
		return ErrSessionClosed
	}
	l := d.loader()
	if l == nil {
		return fmt.Errorf("transport: no asset loader configured")
	}
	l.Load(source, kind, name...)
	return nil
}

// Assets lists the configured loader's resolved assets and in-flight count.
// Without a loader the session has no assets.
func (d *Direct) Assets(ctx context.Context) ([]AssetInfo, int, error) {
	if d.destroyed {
		return nil, 0, ErrSessionClosed
	}
	l := d.loader()
	if l == nil {
		return nil, 0, nil
	}
	all := l.Assets()
	infos := make([]AssetInfo, 0, len(all))
	for _, a := range all {
		infos = append(infos, AssetInfo{Name: a.Name, Source: a.Source, Kind: a.Kind})
	}
	return infos, l.PendingCount(), nil
}

func (d *Direct) loader() *asset.Loader {
	l, _ := d.eng.AssetLoader().(*asset.Loader)
	return l
}

// Values returns the engine's reported values.
func (d *Direct) Values(ctx context.Context) (map[string]float64, error) {
	if d.destroyed {
		return nil, ErrSessionClosed
	}
	return d.eng.Values(), nil
}

// SnapshotCanvas copies the canvas pixels.
func (d *Direct) SnapshotCanvas(ctx context.Context, canvasID string) (*image.RGBA, error) {
	if d.destroyed {
		return nil, ErrSessionClosed
	}
	c := d.eng.Canvas(canvasID)
	if c == nil {
		return nil, fmt.Errorf("transport: unknown canvas %q", canvasID)
	}
	return c.Snapshot(), nil
}

// Destroy tears down the engine. The second call is a no-op.
func (d *Direct) Destroy() error {
	if d.destroyed {
		return nil
	}
	d.destroyed = true
	d.resume = nil
	d.eng.Destroy()
	Logger().Debug("direct session destroyed", zap.String("session", d.id.String()))
	return nil
}
