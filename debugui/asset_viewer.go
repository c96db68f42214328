package debugui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/plus3/keel/asset"
)

// AssetViewerPanel lists the loader's published assets and its in-flight
// count.
type AssetViewerPanel struct {
	loader *asset.Loader
}

func NewAssetViewerPanel(loader *asset.Loader) *AssetViewerPanel {
	return &AssetViewerPanel{loader: loader}
}

func (av *AssetViewerPanel) Render() {
	if !imgui.BeginV("Assets", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	assets := av.loader.Assets()
	imgui.Text(fmt.Sprintf("Loaded: %d", len(assets)))
	imgui.Text(fmt.Sprintf("Pending: %d", av.loader.PendingCount()))

	imgui.Separator()

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
	if imgui.BeginTableV("AssetTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Name")
		imgui.TableSetupColumn("Kind")
		imgui.TableSetupColumn("Source")
		imgui.TableSetupColumn("Owned")
		imgui.TableHeadersRow()

		for _, a := range assets {
			imgui.TableNextRow()
			imgui.TableNextColumn()
			imgui.Text(a.Name)
			imgui.TableNextColumn()
			imgui.Text(string(a.Kind))
			imgui.TableNextColumn()
			imgui.Text(a.Source)
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%t", a.Owned))
		}

		imgui.EndTable()
	}

	imgui.End()
}
