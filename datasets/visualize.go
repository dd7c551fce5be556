package datasets

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Visualizer receives the normalized pixel grid of a sample right
// before the channels-first reorder. It is a diagnostic capability: the
// transform works the same whether or not one is installed, and its
// errors are discarded. Implementations must not modify values.
type Visualizer interface {
	Visualize(values []float32, height, width, channels int) error
}

// HeatmapVisualizer renders the grid as a heat-map PNG, averaging the
// channels into one intensity plane.
type HeatmapVisualizer struct {
	// Path of the PNG to write. Successive calls overwrite it.
	Path string
}

func (v *HeatmapVisualizer) Visualize(values []float32, height, width, channels int) error {
	grid := &intensityGrid{values: values, height: height, width: width, channels: channels}
	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))

	p := plot.New()
	p.Title.Text = "normalized sample"
	p.Add(hm)
	return p.Save(4*vg.Inch, 4*vg.Inch, v.Path)
}

// intensityGrid adapts a flat (height, width, channels) buffer to
// plotter.GridXYZ.
type intensityGrid struct {
	values        []float32
	height, width int
	channels      int
}

func (g *intensityGrid) Dims() (int, int) { return g.width, g.height }
func (g *intensityGrid) X(c int) float64  { return float64(c) }
func (g *intensityGrid) Y(r int) float64  { return float64(r) }

func (g *intensityGrid) Z(c, r int) float64 {
	// Row 0 of the buffer renders at the top, like an image.
	y := g.height - 1 - r
	base := (y*g.width + c) * g.channels
	var sum float64
	for ch := 0; ch < g.channels; ch++ {
		sum += float64(g.values[base+ch])
	}
	return sum / float64(g.channels)
}
