package transport

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/plus3/keel/asset"
	"github.com/plus3/keel/canvas"
	"github.com/plus3/keel/engine"
)

// worker hosts the engine for a Remote session in its own goroutine — the
// isolated execution context. It owns the engine, its offscreen canvases,
// and its asset loader outright; the host reaches it only through serialized
// envelopes, and message delivery order from the host is preserved by the
// channel.
type worker struct {
	cfg    RemoteConfig
	in     <-chan []byte
	out    chan<- []byte
	eng    *engine.Engine
	resume *engine.Resume
	loader *asset.Loader
}

func newWorker(cfg RemoteConfig, in <-chan []byte, out chan<- []byte) *worker {
	return &worker{cfg: cfg, in: in, out: out}
}

// run is the worker's single-writer loop: decode, dispatch, reply. It exits
// when the host closes the channel or posts a teardown message, destroying
// the engine on the way out.
func (w *worker) run() {
	defer close(w.out)

	w.eng = engine.New(engine.Options{
		OnReadyForNextFrame: func(r *engine.Resume) { w.resume = r },
	})

	var tick <-chan time.Time
	if w.cfg.SelfPaced {
		rate := w.cfg.TickRate
		if rate <= 0 {
			rate = 16667 * time.Microsecond
		}
		ticker := time.NewTicker(rate)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case raw, ok := <-w.in:
			if !ok {
				w.eng.Destroy()
				return
			}
			if w.dispatch(raw) {
				w.eng.Destroy()
				return
			}
		case <-tick:
			// Self-paced mode: the worker paces its own frames instead of
			// waiting for host step messages.
			if err := w.advance(engine.AutoDelta); err != nil {
				Logger().Warn("self-paced frame failed", zap.Error(err))
			}
		}
	}
}

// assetLoader lazily creates the loader the worker owns, wiring it into the
// engine's asset gate. One loader per session lifetime; engine teardown
// closes it.
func (w *worker) assetLoader() *asset.Loader {
	if w.loader == nil {
		w.loader = asset.NewLoader(asset.Config{
			Root: w.cfg.AssetRoot,
			OnError: func(err error) {
				Logger().Warn("worker asset load failed", zap.Error(err))
			},
		})
		w.eng.SetOptions(engine.Options{AssetLoader: w.loader})
	}
	return w.loader
}

// advance releases the engine's outstanding resume handle, or drives the
// very first frame directly.
func (w *worker) advance(dt float64) error {
	if r := w.resume; r != nil {
		w.resume = nil
		return r.Resume(dt)
	}
	return w.eng.Step(dt)
}

// dispatch handles one envelope. It returns true when the session is done.
func (w *worker) dispatch(raw []byte) bool {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		w.post(KindWorkerError, 0, ErrorPayload{Message: "malformed envelope: " + err.Error()})
		return false
	}

	switch env.Kind {
	case KindSetOptions:
		var p OptionsPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.SetOptions(engine.Options{
			AssetLoadingBehavior: engine.AssetLoadingBehavior(p.AssetLoadingBehavior),
			DevicePixelRatio:     p.DevicePixelRatio,
			Platform:             p.Platform,
			FixedDelta:           p.FixedDelta,
		})

	case KindSetCanvas:
		var p CanvasPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		// The worker creates and exclusively owns the offscreen twin.
		w.eng.SetCanvas(p.CanvasID, canvas.New(p.Width, p.Height))

	case KindSetCanvasSize:
		var p CanvasPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		if err := w.eng.SetCanvasSize(p.CanvasID, p.Width, p.Height); err != nil {
			w.fail(env, err)
		}

	case KindAttach:
		var p AttachPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		if err := w.eng.AttachSpec(p.Spec); err != nil {
			w.fail(env, err)
		}

	case KindDetach:
		var p NamePayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.Detach(p.Name)

	case KindSetEnabled:
		var p NamePayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.SetEnabled(p.Name, p.Enabled)

	case KindBindKeys:
		var p BindKeysPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.BindKeys(p.Keys...)

	case KindPointerMove:
		var p PointerPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.PointerMove(p.X, p.Y)

	case KindPointerDown:
		var p PointerPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.PointerDown(p.X, p.Y, p.Button)

	case KindPointerUp:
		var p PointerPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.PointerUp(p.X, p.Y, p.Button)

	case KindWheel:
		var p WheelPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.eng.Wheel(p.DX, p.DY)

	case KindKeyDown:
		var p KeyPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		if w.eng.KeyDown(p.Key) {
			// Teach the host's prediction table which keys the engine
			// consumes.
			w.post(KindKeyConsumed, 0, KeyPayload{Key: p.Key})
		}

	case KindKeyUp:
		var p KeyPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		if w.eng.KeyUp(p.Key) {
			w.post(KindKeyConsumed, 0, KeyPayload{Key: p.Key})
		}

	case KindReleaseKeys:
		w.eng.ReleaseAllKeys()

	case KindStep:
		var p StepPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		reply := StepDonePayload{}
		if err := w.advance(p.Delta); err != nil {
			reply.Error = err.Error()
		}
		reply.Frame = w.eng.Frame()
		w.post(KindStepDone, env.ID, reply)

	case KindPing:
		w.post(KindPong, env.ID, nil)

	case KindSnapshot:
		var p SnapshotRequestPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		reply := SnapshotDataPayload{CanvasID: p.CanvasID}
		if c := w.eng.Canvas(p.CanvasID); c != nil {
			img := c.Snapshot()
			reply.Width = img.Rect.Dx()
			reply.Height = img.Rect.Dy()
			reply.Pixels = img.Pix
		} else {
			reply.Error = "unknown canvas " + p.CanvasID
		}
		w.post(KindSnapshotData, env.ID, reply)

	case KindLoadAsset:
		var p LoadAssetPayload
		if err := env.decodePayload(&p); err != nil {
			w.fail(env, err)
			return false
		}
		w.assetLoader().Load(p.Source, p.Kind, p.Name)

	case KindQueryAssets:
		reply := AssetsDataPayload{}
		if w.loader != nil {
			for _, a := range w.loader.Assets() {
				reply.Assets = append(reply.Assets, AssetInfo{Name: a.Name, Source: a.Source, Kind: a.Kind})
			}
			reply.Pending = w.loader.PendingCount()
		}
		w.post(KindAssetsData, env.ID, reply)

	case KindQueryValues:
		w.post(KindValuesData, env.ID, ValuesDataPayload{Values: w.eng.Values()})

	case KindDestroy:
		return true

	default:
		w.post(KindWorkerError, 0, ErrorPayload{Message: "unknown message kind " + string(env.Kind)})
	}
	return false
}

func (w *worker) fail(env Envelope, err error) {
	Logger().Warn("worker dispatch failed",
		zap.String("kind", string(env.Kind)),
		zap.Error(err),
	)
	w.post(KindWorkerError, env.ID, ErrorPayload{Message: err.Error()})
}

func (w *worker) post(kind MessageKind, id uint64, payload any) {
	raw, err := encodeMessage(kind, id, payload)
	if err != nil {
		Logger().Error("worker reply encode failed", zap.Error(err))
		return
	}
	w.out <- raw
}
