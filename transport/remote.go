package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kamstrup/intmap"
	"go.uber.org/zap"

	"github.com/plus3/keel/asset"
	"github.com/plus3/keel/canvas"
	"github.com/plus3/keel/engine"
)

// RemoteConfig parameterizes the worker side of a remote session.
type RemoteConfig struct {
	// AssetRoot is the root directory of the loader the worker creates on
	// the first asset operation. The loader lives for the whole session.
	AssetRoot string

	// SelfPaced makes the worker pace its own frames from a ticker instead
	// of host step messages, for headless operation.
	SelfPaced bool

	// TickRate is the self-paced frame interval. Defaults to ~60 FPS.
	TickRate time.Duration
}

type canvasReg struct {
	width  int
	height int
}

type pendingCall struct {
	id uint64
	ch chan Envelope
}

// Remote wraps a channel to an engine executing in an isolated worker
// context. Every operation is serialized into a message; delivery order
// host-to-worker is preserved.
//
// Key-handled contract: because the worker's answer is asynchronous while
// callers may need a same-tick boolean (default-action suppression), KeyDown
// and KeyUp return a best-effort synchronous prediction. The prediction
// table mirrors the key bindings this session has sent and learns from
// worker key-consumed notices, so the first press of a key bound only on
// the worker side (a ComponentSpec key declaration) reports unhandled until
// a notice arrives. This is a deliberate tradeoff of the isolation boundary,
// not a defect.
type Remote struct {
	id  uuid.UUID
	cfg RemoteConfig

	mu        sync.Mutex
	tx        chan []byte
	nextID    uint64
	pending   map[MessageKind]*pendingCall
	predicted *intmap.Map[engine.Key, bool]
	canvases  map[string]canvasReg
	onDestroy func()
	destroyed bool

	done chan struct{}
}

var _ Session = (*Remote)(nil)

// NewRemote creates a remote session and starts its worker.
func NewRemote(cfg RemoteConfig) *Remote {
	tx := make(chan []byte, 64)
	rx := make(chan []byte, 64)

	r := &Remote{
		id:        uuid.New(),
		cfg:       cfg,
		tx:        tx,
		pending:   make(map[MessageKind]*pendingCall),
		predicted: intmap.New[engine.Key, bool](16),
		canvases:  make(map[string]canvasReg),
		done:      make(chan struct{}),
	}

	go newWorker(cfg, tx, rx).run()
	go r.readLoop(rx)

	Logger().Debug("remote session created", zap.String("session", r.id.String()))
	return r
}

// readLoop routes worker replies to their outstanding calls. A reply whose
// id does not match the most recent outstanding request of its kind is
// dropped.
func (r *Remote) readLoop(rx <-chan []byte) {
	defer close(r.done)
	for raw := range rx {
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			Logger().Warn("dropping malformed worker message", zap.Error(err))
			continue
		}

		switch env.Kind {
		case KindKeyConsumed:
			var p KeyPayload
			if err := env.decodePayload(&p); err == nil {
				r.mu.Lock()
				r.predicted.Put(p.Key, true)
				r.mu.Unlock()
			}

		case KindWorkerError:
			var p ErrorPayload
			_ = env.decodePayload(&p)
			Logger().Warn("worker error",
				zap.String("session", r.id.String()),
				zap.String("message", p.Message),
			)

		default:
			r.mu.Lock()
			call := r.pending[env.Kind]
			if call == nil || call.id != env.ID {
				r.mu.Unlock()
				Logger().Debug("dropping stale reply",
					zap.String("kind", string(env.Kind)),
					zap.Uint64("id", env.ID),
				)
				continue
			}
			delete(r.pending, env.Kind)
			r.mu.Unlock()
			call.ch <- env
		}
	}
}

// post sends a fire-and-forget message (no correlation id, no reply).
func (r *Remote) post(kind MessageKind, payload any) error {
	raw, err := encodeMessage(kind, 0, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrSessionClosed
	}
	r.mu.Unlock()

	// Never send while holding the lock: the read loop takes it too, and
	// with both channel buffers full a held lock wedges host and worker
	// against each other.
	select {
	case r.tx <- raw:
		return nil
	case <-r.done:
		return ErrSessionClosed
	}
}

// roundTrip sends a request carrying a fresh correlation id and waits for
// the matching reply kind.
func (r *Remote) roundTrip(ctx context.Context, req MessageKind, replyKind MessageKind, payload any) (Envelope, error) {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return Envelope{}, ErrSessionClosed
	}
	r.nextID++
	call := &pendingCall{id: r.nextID, ch: make(chan Envelope, 1)}
	// A newer request of the same kind supersedes the old one; the stale
	// reply will be dropped by the read loop.
	r.pending[replyKind] = call
	r.mu.Unlock()

	raw, err := encodeMessage(req, call.id, payload)
	if err != nil {
		r.dropCall(replyKind, call)
		return Envelope{}, err
	}

	// Send outside the lock; see post.
	select {
	case r.tx <- raw:
	case <-ctx.Done():
		r.dropCall(replyKind, call)
		return Envelope{}, ctx.Err()
	case <-r.done:
		return Envelope{}, ErrSessionClosed
	}

	select {
	case env := <-call.ch:
		return env, nil
	case <-ctx.Done():
		r.dropCall(replyKind, call)
		return Envelope{}, ctx.Err()
	case <-r.done:
		return Envelope{}, ErrSessionClosed
	}
}

func (r *Remote) dropCall(replyKind MessageKind, call *pendingCall) {
	r.mu.Lock()
	if r.pending[replyKind] == call {
		delete(r.pending, replyKind)
	}
	r.mu.Unlock()
}

// SetOptions serializes wire-safe options fire-and-forget. Engine-side
// callables cannot cross the isolation boundary and are rejected rather
// than silently dropped; OnDestroy stays host-side and is honored.
func (r *Remote) SetOptions(opts engine.Options) error {
	if opts.Now != nil || opts.OnReadyForNextFrame != nil || opts.AssetLoader != nil {
		return &UnsupportedOperationError{Op: "engine-side callables in SetOptions", Mode: "remote"}
	}
	if opts.OnDestroy != nil {
		r.mu.Lock()
		r.onDestroy = opts.OnDestroy
		r.mu.Unlock()
	}
	return r.post(KindSetOptions, OptionsPayload{
		AssetLoadingBehavior: string(opts.AssetLoadingBehavior),
		DevicePixelRatio:     opts.DevicePixelRatio,
		Platform:             opts.Platform,
		FixedDelta:           opts.FixedDelta,
	})
}

// SetCanvas transfers the canvas geometry; the worker creates and owns an
// offscreen twin. The live handle never crosses the boundary.
func (r *Remote) SetCanvas(canvasID string, c *canvas.Canvas) error {
	r.mu.Lock()
	r.canvases[canvasID] = canvasReg{width: c.Width(), height: c.Height()}
	r.mu.Unlock()
	return r.post(KindSetCanvas, CanvasPayload{CanvasID: canvasID, Width: c.Width(), Height: c.Height()})
}

// SetCanvasSize resizes the remote twin. The per-canvas registration table
// makes sure resizes target a canvas this session actually registered.
func (r *Remote) SetCanvasSize(canvasID string, width, height int) error {
	r.mu.Lock()
	reg, ok := r.canvases[canvasID]
	if ok {
		reg.width, reg.height = width, height
		r.canvases[canvasID] = reg
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: unknown canvas %q", canvasID)
	}
	return r.post(KindSetCanvasSize, CanvasPayload{CanvasID: canvasID, Width: width, Height: height})
}

// Attach serializes the component spec to the worker.
func (r *Remote) Attach(spec engine.ComponentSpec) error {
	// Validate locally so Direct and Remote reject bad specs identically.
	if _, err := spec.Build(); err != nil {
		return err
	}
	return r.post(KindAttach, AttachPayload{Spec: spec})
}

// Detach removes a component by name.
func (r *Remote) Detach(name string) error {
	return r.post(KindDetach, NamePayload{Name: name})
}

// SetEnabled toggles a component in place.
func (r *Remote) SetEnabled(name string, enabled bool) error {
	return r.post(KindSetEnabled, NamePayload{Name: name, Enabled: enabled})
}

// BindKeys marks keys as engine-consumed and mirrors them into the local
// prediction table.
func (r *Remote) BindKeys(keys ...engine.Key) error {
	r.mu.Lock()
	for _, k := range keys {
		r.predicted.Put(k, true)
	}
	r.mu.Unlock()
	return r.post(KindBindKeys, BindKeysPayload{Keys: keys})
}

// PointerMove posts a pointer move.
func (r *Remote) PointerMove(x, y float64) error {
	return r.post(KindPointerMove, PointerPayload{X: x, Y: y})
}

// PointerDown posts a pointer press.
func (r *Remote) PointerDown(x, y float64, button int) error {
	return r.post(KindPointerDown, PointerPayload{X: x, Y: y, Button: button})
}

// PointerUp posts a pointer release.
func (r *Remote) PointerUp(x, y float64, button int) error {
	return r.post(KindPointerUp, PointerPayload{X: x, Y: y, Button: button})
}

// Wheel posts scroll deltas.
func (r *Remote) Wheel(dx, dy float64) error {
	return r.post(KindWheel, WheelPayload{DX: dx, DY: dy})
}

// KeyDown posts the key event and returns the predicted handled result. The
// prediction reflects what the host knew at call time; a notice raced in by
// this very event only affects later presses.
func (r *Remote) KeyDown(k engine.Key) (bool, error) {
	r.mu.Lock()
	handled, _ := r.predicted.Get(k)
	r.mu.Unlock()
	if err := r.post(KindKeyDown, KeyPayload{Key: k}); err != nil {
		return false, err
	}
	return handled, nil
}

// KeyUp posts the key event and returns the predicted handled result.
func (r *Remote) KeyUp(k engine.Key) (bool, error) {
	r.mu.Lock()
	handled, _ := r.predicted.Get(k)
	r.mu.Unlock()
	if err := r.post(KindKeyUp, KeyPayload{Key: k}); err != nil {
		return false, err
	}
	return handled, nil
}

// ReleaseAllKeys posts the release. Idempotent.
func (r *Remote) ReleaseAllKeys() error {
	return r.post(KindReleaseKeys, nil)
}

// StepFrame asks the worker to advance one frame and waits for its
// readiness reply.
func (r *Remote) StepFrame(ctx context.Context, dt float64) (uint64, error) {
	env, err := r.roundTrip(ctx, KindStep, KindStepDone, StepPayload{Delta: dt})
	if err != nil {
		return 0, err
	}
	var p StepDonePayload
	if err := env.decodePayload(&p); err != nil {
		return 0, err
	}
	if p.Error != "" {
		return p.Frame, errors.New(p.Error)
	}
	return p.Frame, nil
}

// Ping round-trips a readiness probe. Used by test harnesses to verify the
// worker is responsive and that correlation ids are honored.
func (r *Remote) Ping(ctx context.Context) error {
	_, err := r.roundTrip(ctx, KindPing, KindPong, nil)
	return err
}

// LoadAsset posts an asynchronous load to the loader the worker owns,
// rooted at RemoteConfig.AssetRoot.
func (r *Remote) LoadAsset(source string, kind asset.Kind, name ...string) error {
	p := LoadAssetPayload{Source: source, Kind: kind}
	if len(name) > 0 {
		p.Name = name[0]
	}
	return r.post(KindLoadAsset, p)
}

// Assets queries the worker loader's resolved assets and in-flight count.
func (r *Remote) Assets(ctx context.Context) ([]AssetInfo, int, error) {
	env, err := r.roundTrip(ctx, KindQueryAssets, KindAssetsData, nil)
	if err != nil {
		return nil, 0, err
	}
	var p AssetsDataPayload
	if err := env.decodePayload(&p); err != nil {
		return nil, 0, err
	}
	return p.Assets, p.Pending, nil
}

// Values queries the worker engine's reported values.
func (r *Remote) Values(ctx context.Context) (map[string]float64, error) {
	env, err := r.roundTrip(ctx, KindQueryValues, KindValuesData, nil)
	if err != nil {
		return nil, err
	}
	var p ValuesDataPayload
	if err := env.decodePayload(&p); err != nil {
		return nil, err
	}
	return p.Values, nil
}

// SnapshotCanvas asks the worker for its twin's pixels and rebuilds the
// image host-side. This is the only path pixels take back to the host.
func (r *Remote) SnapshotCanvas(ctx context.Context, canvasID string) (*image.RGBA, error) {
	env, err := r.roundTrip(ctx, KindSnapshot, KindSnapshotData, SnapshotRequestPayload{CanvasID: canvasID})
	if err != nil {
		return nil, err
	}
	var p SnapshotDataPayload
	if err := env.decodePayload(&p); err != nil {
		return nil, err
	}
	if p.Error != "" {
		return nil, fmt.Errorf("transport: %s", p.Error)
	}
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	copy(img.Pix, p.Pixels)
	return img, nil
}

// Destroy posts a teardown message and joins the worker. In-flight worker
// work after teardown is discarded silently. Safe to call multiple times;
// OnDestroy fires at most once.
func (r *Remote) Destroy() error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return nil
	}
	r.destroyed = true
	onDestroy := r.onDestroy
	r.onDestroy = nil
	r.mu.Unlock()

	// The channel is never closed: the worker exits on the teardown message
	// and stragglers a racing post left in the buffer are simply never read.
	if raw, err := encodeMessage(KindDestroy, 0, nil); err == nil {
		select {
		case r.tx <- raw:
		case <-r.done:
		}
	}

	<-r.done
	if onDestroy != nil {
		onDestroy()
	}
	Logger().Debug("remote session destroyed", zap.String("session", r.id.String()))
	return nil
}
