package tui

import "github.com/charmbracelet/bubbles/viewport"

// viewportRegion exposes a viewport, measured in lines, to the sticky
// scroll controller.
type viewportRegion struct {
	vp *viewport.Model
}

func (r viewportRegion) ScrollHeight() int { return r.vp.TotalLineCount() }
func (r viewportRegion) ClientHeight() int { return r.vp.Height }
func (r viewportRegion) ScrollTop() int    { return r.vp.YOffset }

func (r viewportRegion) SetScrollTop(top int) {
	r.vp.SetYOffset(top)
}
