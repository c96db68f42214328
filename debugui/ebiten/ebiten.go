// Package ebiten provides Dear ImGui backend integration for Ebiten hosts.
package ebiten

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
// Use this to draw the debug overlay on top of an Ebiten game loop.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}
