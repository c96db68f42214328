package debugui

import (
	"fmt"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/plus3/keel/engine"
)

// FrameStatsPanel renders per-component tick statistics and a rolling frame
// time graph. The stats source is polled once per rendered frame.
type FrameStatsPanel struct {
	source        func() *engine.Stats
	timer         *FrameTimer
	historyFrames int
	frameHistory  []float32
	frameIndex    int
}

// NewFrameStatsPanel builds a stats panel over a stats source, typically a
// direct session's engine. historyFrames sizes the frame time graph.
func NewFrameStatsPanel(source func() *engine.Stats, historyFrames int) *FrameStatsPanel {
	return &FrameStatsPanel{
		source:        source,
		timer:         NewFrameTimer(),
		historyFrames: historyFrames,
		frameHistory:  make([]float32, historyFrames),
	}
}

func (ps *FrameStatsPanel) Render() {
	if !imgui.BeginV("Frame Stats", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	ps.frameHistory[ps.frameIndex] = ps.timer.GetDeltaTime() * 1000.0
	ps.frameIndex = (ps.frameIndex + 1) % ps.historyFrames

	stats := ps.source()

	imgui.Text(fmt.Sprintf("Components: %d", stats.ComponentCount))
	imgui.Text(fmt.Sprintf("Total Ticks: %d", stats.TotalExecutions))

	var avgFrameTime float32
	for _, ft := range ps.frameHistory {
		avgFrameTime += ft
	}
	avgFrameTime /= float32(ps.historyFrames)

	imgui.Text(fmt.Sprintf("Avg Frame Time: %.2f ms (%.0f FPS)", avgFrameTime, 1000.0/avgFrameTime))

	imgui.Separator()
	imgui.Text("Frame Time Graph (ms)")
	imgui.PlotLinesFloatPtr("##frametime", &ps.frameHistory[0], int32(len(ps.frameHistory)))

	if imgui.TreeNodeStr("Component Details") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("ComponentStatsTable", 5, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("Name")
			imgui.TableSetupColumn("Enabled")
			imgui.TableSetupColumn("Ticks")
			imgui.TableSetupColumn("Changed")
			imgui.TableSetupColumn("Avg")
			imgui.TableHeadersRow()

			for _, c := range stats.Components {
				imgui.TableNextRow()
				imgui.TableNextColumn()
				imgui.Text(c.Name)
				imgui.TableNextColumn()
				imgui.Text(fmt.Sprintf("%t", c.Enabled))
				imgui.TableNextColumn()
				imgui.Text(fmt.Sprintf("%d", c.ExecutionCount))
				imgui.TableNextColumn()
				imgui.Text(fmt.Sprintf("%d", c.ChangedCount))
				imgui.TableNextColumn()
				imgui.Text(c.AvgDuration.Round(time.Microsecond).String())
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}

	imgui.End()
}

// FrameTimer measures wall-clock time between consecutive frames.
type FrameTimer struct {
	lastFrameTime time.Time
}

func NewFrameTimer() *FrameTimer {
	return &FrameTimer{
		lastFrameTime: time.Now(),
	}
}

func (ft *FrameTimer) GetDeltaTime() float32 {
	now := time.Now()
	delta := float32(now.Sub(ft.lastFrameTime).Seconds())
	ft.lastFrameTime = now
	return delta
}
