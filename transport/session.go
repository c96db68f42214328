// Package transport lets a caller treat a locally-executing engine and a
// worker-isolated engine identically. A Session is the uniform facade;
// Direct wraps an engine in the caller's goroutine, Remote wraps a channel
// to an engine running the identical logic in an isolated worker, reached
// only through serialized messages. Exactly one variant is active for a
// session's lifetime.
package transport

import (
	"context"
	"image"

	"github.com/plus3/keel/asset"
	"github.com/plus3/keel/canvas"
	"github.com/plus3/keel/engine"
)

// Session is the execution-location-independent contract over an engine.
// All operations behave identically across variants from the caller's
// perspective, with one documented exception: in Remote mode the boolean
// result of KeyDown/KeyUp is a best-effort synchronous prediction (see
// Remote).
type Session interface {
	// SetOptions merges configuration. Direct applies it synchronously;
	// Remote serializes it fire-and-forget, rejecting engine-side callables
	// with an UnsupportedOperationError.
	SetOptions(opts engine.Options) error

	// SetCanvas registers a named canvas. Direct passes the handle by
	// reference; Remote transfers geometry only and the worker owns an
	// offscreen twin.
	SetCanvas(canvasID string, c *canvas.Canvas) error

	// SetCanvasSize resizes a previously registered canvas.
	SetCanvasSize(canvasID string, width, height int) error

	// Attach adds a component described by a serializable spec.
	Attach(spec engine.ComponentSpec) error

	// Detach removes a component by name.
	Detach(name string) error

	// SetEnabled soft-enables or soft-disables a component.
	SetEnabled(name string, enabled bool) error

	// BindKeys marks keys as engine-consumed.
	BindKeys(keys ...engine.Key) error

	// Input forwarding.
	PointerMove(x, y float64) error
	PointerDown(x, y float64, button int) error
	PointerUp(x, y float64, button int) error
	Wheel(dx, dy float64) error
	KeyDown(k engine.Key) (handled bool, err error)
	KeyUp(k engine.Key) (handled bool, err error)

	// ReleaseAllKeys clears held keys. Idempotent, safe with nothing held.
	ReleaseAllKeys() error

	// StepFrame advances the engine by exactly one frame and returns the
	// resulting frame counter. The context bounds the wait for the frame's
	// readiness handshake; production display-callback hosts pass
	// context.Background().
	StepFrame(ctx context.Context, dt float64) (uint64, error)

	// LoadAsset requests an asynchronous asset load. Direct drives the
	// loader configured through engine.Options; Remote drives the loader
	// the worker owns, rooted at RemoteConfig.AssetRoot.
	LoadAsset(source string, kind asset.Kind, name ...string) error

	// Assets returns the resolved assets and the in-flight load count.
	Assets(ctx context.Context) ([]AssetInfo, int, error)

	// Values returns the engine's inspectable state surface.
	Values(ctx context.Context) (map[string]float64, error)

	// SnapshotCanvas captures a canvas's pixels.
	SnapshotCanvas(ctx context.Context, canvasID string) (*image.RGBA, error)

	// Destroy tears the session down. Safe to call multiple times; the
	// second call is a no-op, and OnDestroy fires at most once.
	Destroy() error
}
