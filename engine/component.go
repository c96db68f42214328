package engine

import "github.com/plus3/keel/canvas"

// Component is a per-frame behavior unit driven by the engine's tick cycle.
// Update reports whether the component produced a visible change this frame;
// the result is advisory (dirty tracking, early-exit optimizations) and never
// required for correctness. A component may only mutate state it owns or was
// explicitly handed an accessor for.
type Component interface {
	Update(dt float64) (changed bool)
}

// Painter is implemented by components that draw into the engine's canvases
// during the render phase. Paint is called once per registered canvas, in
// component registration order, after all ticks for the frame completed.
type Painter interface {
	Paint(c *canvas.Canvas)
}

// Reporter is implemented by components that expose named numeric values for
// inspection. The engine aggregates them into Values snapshots; the transport
// layer uses those snapshots as its state-equality surface.
type Reporter interface {
	Values() map[string]float64
}

// Binder is implemented by components that read engine input state (pointer
// position, held keys). The engine calls Bind once when the component is
// attached.
type Binder interface {
	Bind(e *Engine)
}
