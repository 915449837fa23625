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

package seregrid

import (
	"fmt"

	"github.com/ctessum/geom"
)

// Grid is a regular latitude-longitude grid with cell centers
// Lat and Lon and cell edges LatB and LonB.
type Grid struct {
	Lat, Lon   []float64
	LatB, LonB []float64
}

// Shape returns the number of latitudes and longitudes.
func (g *Grid) Shape() (nlat, nlon int) { return len(g.Lat), len(g.Lon) }

// Cell returns the polygon of the cell at latitude index i
// and longitude index j.
func (g *Grid) Cell(i, j int) geom.Polygon {
	w, e := g.LonB[j], g.LonB[j+1]
	s, n := g.LatB[i], g.LatB[i+1]
	return geom.Polygon{{
		{X: w, Y: s}, {X: e, Y: s}, {X: e, Y: n}, {X: w, Y: n}, {X: w, Y: s},
	}}
}

// Bounds returns the extent of the grid.
func (g *Grid) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for i := 0; i < len(g.Lat); i++ {
		b.Extend(g.Cell(i, 0).Bounds())
		b.Extend(g.Cell(i, len(g.Lon)-1).Bounds())
	}
	return b
}

// DestinationGrid derives the regular destination grid from the
// destination cell centers and vertices of w. The destination cells
// are stored with longitude varying fastest, so dst_grid_dims is
// (nlon, nlat) and the grid shape is its reverse.
func (w *Weights) DestinationGrid() (*Grid, error) {
	if len(w.DstShape) != 2 {
		return nil, fmt.Errorf("seregrid: destination grid should be two-dimensional but has dimensions %v", w.DstShape)
	}
	nlat, nlon := w.DstShape[1], w.DstShape[0]
	g := &Grid{
		Lat: make([]float64, nlat),
		Lon: make([]float64, nlon),
	}
	for i := 0; i < nlat; i++ {
		g.Lat[i] = w.YcB[i*nlon]
	}
	copy(g.Lon, w.XcB[:nlon])

	if w.NV == 0 || len(w.YvB) != w.NDst*w.NV || nlon+1 > w.NDst {
		return nil, fmt.Errorf("seregrid: destination grid vertices xv_b and yv_b are missing or malformed")
	}
	g.LatB = make([]float64, nlat+1)
	for i := 0; i < nlat; i++ {
		g.LatB[i] = w.YvB[i*nlon*w.NV]
	}
	g.LatB[nlat] = w.YvB[len(w.YvB)-1]

	g.LonB = make([]float64, nlon+1)
	for j := 0; j <= nlon; j++ {
		g.LonB[j] = w.XvB[j*w.NV]
	}
	// The last edge is taken from the first cell of the next row,
	// which repeats the first edge on a periodic grid.
	if g.LonB[nlon] <= g.LonB[nlon-1] {
		g.LonB[nlon] += 360
	}
	return g, nil
}
