package engine

import "time"

// AssetLoader is the subset of the asset loader the engine consults: the
// frame gate reads PendingCount, Destroy closes the loader so late
// completions are dropped. *asset.Loader satisfies it.
type AssetLoader interface {
	PendingCount() int
	Close()
}

// AssetLoadingBehavior selects how the engine treats frames while assets are
// still in flight.
type AssetLoadingBehavior string

const (
	// AssetBlockUpdate skips component ticks (and frame counter advances)
	// until the attached loader has no in-flight loads. The readiness
	// handshake still fires every frame, so the loop never stalls.
	AssetBlockUpdate AssetLoadingBehavior = "block-update"

	// AssetProceed ticks components regardless; components that depend on an
	// unready asset must tolerate its absence and retry on a later tick.
	AssetProceed AssetLoadingBehavior = "proceed"
)

// Options is the engine's mutable configuration. SetOptions merges
// field-by-field: zero-valued fields leave the current configuration alone.
type Options struct {
	// Now is the wall-clock source, injectable for deterministic tests.
	// Defaults to time.Now.
	Now func() time.Time

	// OnReadyForNextFrame is invoked at the end of every frame with a fresh
	// one-shot resume handle. The host advances the engine by invoking the
	// handle; this is the sole cooperative suspension point.
	OnReadyForNextFrame func(*Resume)

	// OnDestroy is invoked exactly once when the engine is destroyed.
	OnDestroy func()

	// AssetLoadingBehavior gates frame advancement on pending asset loads.
	AssetLoadingBehavior AssetLoadingBehavior

	// AssetLoader is the loader consulted by the asset gate. The loader is
	// private to this engine; it is closed on Destroy.
	AssetLoader AssetLoader

	// DevicePixelRatio scales logical canvas coordinates to device pixels.
	DevicePixelRatio float64

	// Platform tags the host environment, for diagnostics only.
	Platform string

	// FixedDelta, when positive, replaces measured wall-clock deltas for
	// AutoDelta steps. Used for deterministic and offline execution.
	FixedDelta float64
}

// merge applies non-zero fields of in over o.
func (o *Options) merge(in Options) {
	if in.Now != nil {
		o.Now = in.Now
	}
	if in.OnReadyForNextFrame != nil {
		o.OnReadyForNextFrame = in.OnReadyForNextFrame
	}
	if in.OnDestroy != nil {
		o.OnDestroy = in.OnDestroy
	}
	if in.AssetLoadingBehavior != "" {
		o.AssetLoadingBehavior = in.AssetLoadingBehavior
	}
	if in.AssetLoader != nil {
		// The loader is private to the engine; nobody else would close a
		// replaced one.
		if o.AssetLoader != nil && o.AssetLoader != in.AssetLoader {
			o.AssetLoader.Close()
		}
		o.AssetLoader = in.AssetLoader
	}
	if in.DevicePixelRatio != 0 {
		o.DevicePixelRatio = in.DevicePixelRatio
	}
	if in.Platform != "" {
		o.Platform = in.Platform
	}
	if in.FixedDelta != 0 {
		o.FixedDelta = in.FixedDelta
	}
}
