/*
Copyright © 2025 the SERegrid authors.
This file is part of SERegrid.

SERegrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SERegrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SERegrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package mapplot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/ctessum/geom/carto"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/seregrid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Layout returns the number of columns and rows used to show n panels:
// ncols = ceil(sqrt(n)) and nrows = ceil(n / ncols).
func Layout(n int) (ncols, nrows int) {
	if n < 1 {
		return 0, 0
	}
	ncols = int(math.Ceil(math.Sqrt(float64(n))))
	nrows = (n + ncols - 1) / ncols
	return ncols, nrows
}

// PanelLabel returns the label of the i-th panel along dimension dim.
func PanelLabel(dim string, i int) string { return fmt.Sprintf("%s=%d", dim, i) }

// Panels draws each slice along the first dimension of field, which has
// shape (k, lat, lon), as a separate map panel labeled "dim=k". All
// panels share one color scale, which is shown below them. The figure is
// saved to figname + ".png".
func Panels(field *sparse.DenseArray, g *seregrid.Grid, dim, figname string, o Options) error {
	if len(field.Shape) != 3 {
		return fmt.Errorf("mapplot: panel field should have 3 dimensions but has shape %v", field.Shape)
	}
	n, nlat, nlon := field.Shape[0], field.Shape[1], field.Shape[2]
	if gy, gx := g.Shape(); gy != nlat || gx != nlon {
		return fmt.Errorf("mapplot: field shape %v does not match grid (%d, %d)", field.Shape, gy, gx)
	}
	ncols, nrows := Layout(n)

	const panelW, panelH = 4 * vg.Inch, 2.4 * vg.Inch
	w := vg.Length(ncols) * panelW
	h := vg.Length(nrows)*panelH + titleH + legendH
	c := vgimg.New(w, h)
	dc := draw.New(c)
	if err := drawTitle(draw.Crop(dc, 0, 0, h-titleH, 0), title(figname), vg.Points(14)); err != nil {
		return err
	}
	legendc := draw.Crop(dc, w/4, -w/4, 0, -h+legendH)
	panelsc := draw.Crop(dc, 0, 0, legendH, -titleH)

	values, label, err := prepare(field.Elements, o)
	if err != nil {
		o.log().WithField("figure", figname).Warnf("Not able to produce plot due to %v", err)
		return savePNG(c, figname)
	}
	cm, err := panelColors(values, o)
	if err != nil {
		o.log().WithField("figure", figname).Warnf("Not able to produce plot due to %v", err)
		return savePNG(c, figname)
	}
	font, err := vg.MakeFont(plot.DefaultFont, vg.Points(10))
	if err != nil {
		return err
	}
	ts := draw.TextStyle{Color: color.Black, Font: font, XAlign: -0.5}
	ts.YAlign = -1

	tiles := draw.Tiles{Cols: ncols, Rows: nrows, PadX: vg.Points(6), PadY: vg.Points(6), PadTop: vg.Points(2)}
	b := g.Bounds()
	stride := nlat * nlon
	for k := 0; k < n; k++ {
		pc := tiles.At(panelsc, k%ncols, k/ncols)
		labelH := font.Extents().Height * 1.3
		pc.FillText(ts, vg.Point{X: pc.X(0.5), Y: pc.Max.Y}, PanelLabel(dim, k))
		mapc := draw.Crop(pc, 0, 0, 0, -labelH)
		m := carto.NewCanvas(b.Max.Y, b.Min.Y, b.Max.X, b.Min.X, mapc)
		slice := values[k*stride : (k+1)*stride]
		for i := 0; i < nlat; i++ {
			for j := 0; j < nlon; j++ {
				v := slice[i*nlon+j]
				if math.IsNaN(v) {
					continue
				}
				col, err := panelColor(cm, v)
				if err != nil {
					return err
				}
				ls := draw.LineStyle{Color: col, Width: vg.Points(0.1)}
				if err := m.DrawVector(g.Cell(i, j), col, ls, draw.GlyphStyle{}); err != nil {
					return err
				}
			}
		}
		if err := frame(m, b); err != nil {
			return err
		}
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Add(&plotter.ColorBar{ColorMap: cm})
	p.HideY()
	p.X.Padding = 0
	p.X.Label.Text = label
	p.Draw(legendc)
	return savePNG(c, figname)
}

// panelColors creates the shared color scale of a set of panels.
func panelColors(values []float64, o Options) (palette.ColorMap, error) {
	var lo, hi float64
	if o.hasRange() {
		lo, hi = *o.Min, *o.Max
		if o.LogScale {
			lo, hi = math.Log10(lo), math.Log10(hi)
		}
	} else {
		v := finite(values)
		if len(v) == 0 {
			return nil, fmt.Errorf("mapplot: no finite values to plot")
		}
		lo, hi = floats.Min(v), floats.Max(v)
	}
	if hi <= lo {
		lo, hi = lo-0.5, lo+0.5
	}
	cm := moreland.ExtendedBlackBody()
	cm.SetMin(lo)
	cm.SetMax(hi)
	return cm, nil
}

// panelColor returns the color of v, clamped to the range of cm.
func panelColor(cm palette.ColorMap, v float64) (color.NRGBA, error) {
	v = math.Max(cm.Min(), math.Min(cm.Max(), v))
	c, err := cm.At(v)
	if err != nil {
		return color.NRGBA{}, err
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA), nil
}
