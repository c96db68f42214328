// Package debugui provides an immediate-mode diagnostic overlay using Dear
// ImGui. It renders per-component frame statistics and asset loader state on
// top of a running engine, and reports ImGui's input capture state so hosts
// can stop forwarding captured input to the engine.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
)

// Panel renders one ImGui window. Panels are registered on an Overlay and
// drawn in registration order while the overlay is visible.
type Panel interface {
	Render()
}

// InputCapture is a per-frame snapshot of ImGui's input capture state. When
// WantCaptureMouse is set, pointer events belong to the overlay and should
// not reach the engine; likewise WantCaptureKeyboard for key events.
type InputCapture struct {
	WantCaptureMouse    bool
	WantCaptureKeyboard bool
}

// Overlay owns a set of diagnostic panels and their visibility toggle.
type Overlay struct {
	panels  []Panel
	visible bool
	capture InputCapture
}

// NewOverlay returns a hidden overlay with no panels.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// Add registers a panel. Panels render in the order they were added.
func (o *Overlay) Add(p Panel) {
	o.panels = append(o.panels, p)
}

// Toggle flips the overlay's visibility.
func (o *Overlay) Toggle() {
	o.visible = !o.visible
}

// Visible reports whether panels render this frame.
func (o *Overlay) Visible() bool {
	return o.visible
}

// Capture returns the input capture state refreshed by the last Render call.
func (o *Overlay) Capture() InputCapture {
	return o.capture
}

// Render refreshes the input capture snapshot and draws all panels if the
// overlay is visible. Call between the backend's BeginFrame and EndFrame.
func (o *Overlay) Render() {
	io := imgui.CurrentIO()
	o.capture.WantCaptureMouse = io.WantCaptureMouse()
	o.capture.WantCaptureKeyboard = io.WantCaptureKeyboard()

	if !o.visible {
		return
	}
	for _, p := range o.panels {
		p.Render()
	}
}
