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

// Package mapplot creates diagnostic maps of regridded fields.
package mapplot

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/seregrid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Figure dimensions.
const (
	figWidth  = 10 * vg.Inch
	figHeight = 5 * vg.Inch
	titleH    = 0.4 * vg.Inch
	legendH   = 0.6 * vg.Inch
)

// Options control the appearance of a map.
type Options struct {
	// Min and Max, if both are set, fix the range of the color scale.
	Min, Max *float64

	// LogScale specifies a logarithmic color scale. Only values greater
	// than zero are drawn.
	LogScale bool

	// Label is the color scale label in the format "name [units]". When
	// the units have a known display conversion (e.g. K to °C), the
	// values and the label are converted.
	Label string

	// Anomaly specifies that the values are differences, so unit
	// conversions only scale them.
	Anomaly bool

	// Log receives warnings. If nil, the standard logger is used.
	Log logrus.FieldLogger
}

func (o Options) log() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

func (o Options) hasRange() bool { return o.Min != nil && o.Max != nil }

// Float returns a pointer to v, for use in Options.
func Float(v float64) *float64 { return &v }

// title returns the figure title, which is the base name of figname.
func title(figname string) string { return filepath.Base(figname) }

// Collapse sums a three-dimensional (k, lat, lon) field over its
// first dimension. Two-dimensional fields are returned unchanged.
func Collapse(field *sparse.DenseArray) (*sparse.DenseArray, error) {
	switch len(field.Shape) {
	case 2:
		return field, nil
	case 3:
		nlat, nlon := field.Shape[1], field.Shape[2]
		o := sparse.ZerosDense(nlat, nlon)
		n := nlat * nlon
		for k := 0; k < field.Shape[0]; k++ {
			floats.Add(o.Elements, field.Elements[k*n:(k+1)*n])
		}
		return o, nil
	}
	return nil, fmt.Errorf("mapplot: field should have 2 or 3 dimensions but has shape %v", field.Shape)
}

// prepare applies the unit conversion and scale options to the values of
// a field and returns the values to color and the legend label.
func prepare(values []float64, o Options) ([]float64, string, error) {
	v := append([]float64{}, values...)
	label := o.Label
	if label != "" {
		c, newLabel := ConvertLabel(label)
		if o.Anomaly {
			c.Offset = 0
		}
		for i := range v {
			v[i] = c.Apply(v[i])
		}
		label = newLabel
	}
	if o.LogScale {
		n := 0
		for i, x := range v {
			if x > 0 {
				v[i] = math.Log10(x)
				n++
			} else {
				v[i] = math.NaN()
			}
		}
		if n == 0 {
			return nil, "", fmt.Errorf("mapplot: no values greater than zero for logarithmic scale")
		}
		label = "log10 " + label
	}
	if o.hasRange() {
		lo, hi := *o.Min, *o.Max
		if o.LogScale {
			lo, hi = math.Log10(lo), math.Log10(hi)
		}
		for i, x := range v {
			if !math.IsNaN(x) {
				v[i] = math.Max(lo, math.Min(hi, x))
			}
		}
	}
	return v, label, nil
}

// colorMap creates a color scale for values.
func colorMap(values []float64, o Options) *carto.ColorMap {
	var cmap *carto.ColorMap
	if o.hasRange() {
		cmap = carto.NewColorMap(carto.Linear)
		lo, hi := *o.Min, *o.Max
		if o.LogScale {
			lo, hi = math.Log10(lo), math.Log10(hi)
		}
		cmap.AddArray([]float64{lo, hi})
	} else {
		cmap = carto.NewColorMap(carto.LinCutoff)
		f := finite(values)
		if floats.Norm(f, math.Inf(1)) == 0 {
			// The scale needs a nonzero extent, e.g. for a zero difference.
			f = append(f, -1, 1)
		}
		cmap.AddArray(f)
	}
	cmap.Font = plot.DefaultFont
	cmap.Set()
	return cmap
}

func finite(v []float64) []float64 {
	o := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			o = append(o, x)
		}
	}
	return o
}

// drawField draws a field on grid g onto canvas c.
func drawField(c draw.Canvas, g *seregrid.Grid, values []float64, cmap *carto.ColorMap) error {
	b := g.Bounds()
	m := carto.NewCanvas(b.Max.Y, b.Min.Y, b.Max.X, b.Min.X, c)
	nlat, nlon := g.Shape()
	for i := 0; i < nlat; i++ {
		for j := 0; j < nlon; j++ {
			v := values[i*nlon+j]
			if math.IsNaN(v) {
				continue
			}
			col := cmap.GetColor(v)
			ls := draw.LineStyle{Color: col, Width: vg.Points(0.1)}
			if err := m.DrawVector(g.Cell(i, j), col, ls, draw.GlyphStyle{}); err != nil {
				return err
			}
		}
	}
	return frame(m, b)
}

// frame draws the outline of the map.
func frame(m *carto.Canvas, b *geom.Bounds) error {
	outline := geom.Polygon{{
		b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y}, b.Min,
	}}
	ls := draw.LineStyle{Color: color.Black, Width: vg.Points(0.5)}
	return m.DrawVector(outline, color.NRGBA{}, ls, draw.GlyphStyle{})
}

func drawTitle(c draw.Canvas, text string, size vg.Length) error {
	font, err := vg.MakeFont(plot.DefaultFont, size)
	if err != nil {
		return err
	}
	ts := draw.TextStyle{Color: color.Black, Font: font, XAlign: -0.5, YAlign: -0.5}
	c.FillText(ts, vg.Point{X: c.X(0.5), Y: c.Y(0.5)}, text)
	return nil
}

func savePNG(c *vgimg.Canvas, figname string) error {
	f, err := os.Create(figname + ".png")
	if err != nil {
		return fmt.Errorf("mapplot: %v", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("mapplot: writing %s.png: %v", figname, err)
	}
	return f.Close()
}

// BiasMap draws field, which has shape (lat, lon) or (k, lat, lon), on
// grid g and saves it to figname + ".png". Three-dimensional fields are
// summed over their first dimension. If the data cannot be drawn with
// the requested options, a warning is logged and the map is left blank.
func BiasMap(field *sparse.DenseArray, g *seregrid.Grid, figname string, o Options) error {
	f2, err := Collapse(field)
	if err != nil {
		return err
	}
	nlat, nlon := g.Shape()
	if f2.Shape[0] != nlat || f2.Shape[1] != nlon {
		return fmt.Errorf("mapplot: field shape %v does not match grid (%d, %d)", f2.Shape, nlat, nlon)
	}

	c := vgimg.New(figWidth, figHeight)
	dc := draw.New(c)
	titlec := draw.Crop(dc, 0, 0, figHeight-titleH, 0)
	mapc := draw.Crop(dc, 0, 0, legendH, -titleH)
	legendc := draw.Crop(dc, figWidth/4, -figWidth/4, 0, -figHeight+legendH)

	if err := drawTitle(titlec, title(figname), vg.Points(14)); err != nil {
		return err
	}
	values, label, err := prepare(f2.Elements, o)
	if err != nil {
		o.log().WithField("figure", figname).Warnf("Not able to produce plot due to %v", err)
		return savePNG(c, figname)
	}
	cmap := colorMap(values, o)
	if err := drawField(mapc, g, values, cmap); err != nil {
		return err
	}
	if err := cmap.Legend(&legendc, label); err != nil {
		return err
	}
	return savePNG(c, figname)
}

// BiasMapXY draws a field whose cell centers are given by the
// two-dimensional latitude and longitude arrays latixy and longxy,
// which have the same shape as field. The color scale spans
// [min, max]. The map is saved to figname + ".png".
func BiasMapXY(field, latixy, longxy *sparse.DenseArray, figname string, min, max float64) error {
	if len(field.Shape) != 2 || !sameShape(field, latixy) || !sameShape(field, longxy) {
		return fmt.Errorf("mapplot: field, latitude and longitude arrays should be two-dimensional with the same shape")
	}
	ny, nx := field.Shape[0], field.Shape[1]
	if ny < 2 || nx < 2 {
		return fmt.Errorf("mapplot: curvilinear grid should be at least 2x2 but is %dx%d", ny, nx)
	}
	c := vgimg.New(figWidth, figHeight)
	dc := draw.New(c)
	titlec := draw.Crop(dc, 0, 0, figHeight-titleH, 0)
	mapc := draw.Crop(dc, 0, 0, legendH, -titleH)
	legendc := draw.Crop(dc, figWidth/4, -figWidth/4, 0, -figHeight+legendH)
	if err := drawTitle(titlec, title(figname), vg.Points(14)); err != nil {
		return err
	}

	o := Options{Min: Float(min), Max: Float(max)}
	values, _, err := prepare(field.Elements, o)
	if err != nil {
		return err
	}
	cmap := colorMap(values, o)

	b := geom.NewBounds()
	cells := make([]geom.Polygon, ny*nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			cells[i*nx+j] = quad(latixy, longxy, i, j)
			b.Extend(cells[i*nx+j].Bounds())
		}
	}
	m := carto.NewCanvas(b.Max.Y, b.Min.Y, b.Max.X, b.Min.X, mapc)
	for k, cell := range cells {
		v := values[k]
		if math.IsNaN(v) {
			continue
		}
		col := cmap.GetColor(v)
		ls := draw.LineStyle{Color: col, Width: vg.Points(0.1)}
		if err := m.DrawVector(cell, col, ls, draw.GlyphStyle{}); err != nil {
			return err
		}
	}
	if err := frame(m, b); err != nil {
		return err
	}
	if err := cmap.Legend(&legendc, ""); err != nil {
		return err
	}
	return savePNG(c, figname)
}

func sameShape(a, b *sparse.DenseArray) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// quad returns the cell around point (i, j) of a curvilinear grid, with
// corners halfway to the neighboring points. Edge cells are extrapolated.
func quad(lat, lon *sparse.DenseArray, i, j int) geom.Polygon {
	corner := func(di, dj int) geom.Point {
		var x, y float64
		for _, ii := range []int{i, i + di} {
			for _, jj := range []int{j, j + dj} {
				x += lon.Get(clamp(ii, lat.Shape[0]), clamp(jj, lat.Shape[1]))
				y += lat.Get(clamp(ii, lat.Shape[0]), clamp(jj, lat.Shape[1]))
			}
		}
		p := geom.Point{X: x / 4, Y: y / 4}
		// Reflect across the center where the neighbor is off the grid.
		ci, cj := clamp(i+di, lat.Shape[0]) != i+di, clamp(j+dj, lat.Shape[1]) != j+dj
		if ci || cj {
			cx, cy := lon.Get(i, j), lat.Get(i, j)
			ox := lon.Get(clamp(i-di, lat.Shape[0]), clamp(j-dj, lat.Shape[1]))
			oy := lat.Get(clamp(i-di, lat.Shape[0]), clamp(j-dj, lat.Shape[1]))
			p = geom.Point{X: cx + (cx-ox)/2, Y: cy + (cy-oy)/2}
			if !ci {
				p.Y = y / 4
			}
			if !cj {
				p.X = x / 4
			}
		}
		return p
	}
	sw, se, ne, nw := corner(-1, -1), corner(-1, 1), corner(1, 1), corner(1, -1)
	return geom.Polygon{{sw, se, ne, nw, sw}}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
