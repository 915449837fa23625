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
	"math"
	"sort"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// RegularGrid is a latitude-longitude grid described by the
// coordinates of its cell centers.
type RegularGrid struct {
	Lat, Lon []float64
}

// Grid returns g with cell edges halfway between the cell centers.
// Edge latitudes are limited to ±90.
func (g RegularGrid) Grid() *Grid {
	return &Grid{
		Lat:  g.Lat,
		Lon:  g.Lon,
		LatB: edges(g.Lat, -90, 90),
		LonB: edges(g.Lon, math.Inf(-1), math.Inf(1)),
	}
}

func edges(c []float64, lo, hi float64) []float64 {
	e := make([]float64, len(c)+1)
	if len(c) == 1 {
		e[0], e[1] = c[0]-0.5, c[0]+0.5
		return e
	}
	for i := 1; i < len(c); i++ {
		e[i] = (c[i-1] + c[i]) / 2
	}
	e[0] = c[0] - (e[1] - c[0])
	e[len(c)] = c[len(c)-1] + (c[len(c)-1] - e[len(c)-1])
	for i, v := range e {
		e[i] = math.Max(lo, math.Min(hi, v))
	}
	return e
}

// RegularGridOf returns the grid of a dataset that has lat and lon
// coordinate variables.
func RegularGridOf(ds *Dataset) (RegularGrid, error) {
	lat, lon := ds.Var("lat"), ds.Var("lon")
	if lat == nil || lon == nil || len(lat.Dims) != 1 || len(lon.Dims) != 1 {
		return RegularGrid{}, fmt.Errorf("seregrid: dataset does not have one-dimensional lat and lon coordinates")
	}
	return RegularGrid{Lat: lat.Floats(), Lon: lon.Floats()}, nil
}

// Bilinear regrids fields between regular grids by bilinear
// interpolation. Longitude is periodic.
type Bilinear struct {
	Src, Dst RegularGrid

	// LatOffset is the index of the first latitude of Dst in the
	// target grid it was subset from.
	LatOffset int

	y0, y1, x0, x1 []int
	wy, wx         []float64
}

// NewBilinearRegridder creates a bilinear regridder from src to dst.
// The latitudes of dst are first limited to the latitude range of src,
// from the target latitude nearest the smallest source latitude
// (inclusive) to the target latitude nearest the largest source latitude
// (exclusive).
func NewBilinearRegridder(src, dst RegularGrid) (*Bilinear, error) {
	if len(src.Lat) < 2 || len(src.Lon) < 2 {
		return nil, fmt.Errorf("seregrid: source grid needs at least two latitudes and longitudes")
	}
	if len(dst.Lat) == 0 || len(dst.Lon) == 0 {
		return nil, fmt.Errorf("seregrid: destination grid is empty")
	}
	lo := nearest(dst.Lat, floats.Min(src.Lat))
	hi := nearest(dst.Lat, floats.Max(src.Lat))
	if lo > hi {
		lo, hi = hi, lo
	}
	b := &Bilinear{
		Src:       src,
		Dst:       RegularGrid{Lat: dst.Lat[lo:hi], Lon: dst.Lon},
		LatOffset: lo,
	}
	b.y0, b.y1, b.wy = latWeights(src.Lat, b.Dst.Lat)
	b.x0, b.x1, b.wx = lonWeights(src.Lon, b.Dst.Lon)
	return b, nil
}

// nearest returns the index of the value in s closest to v.
func nearest(s []float64, v float64) int {
	best, idx := math.Inf(1), 0
	for i, x := range s {
		if d := math.Abs(x - v); d < best {
			best, idx = d, i
		}
	}
	return idx
}

// latWeights returns, for each target latitude, the indices of the
// bracketing source latitudes and the weight of the second one. Targets
// outside of the source range take the nearest source value.
func latWeights(src, dst []float64) (i0, i1 []int, w []float64) {
	asc := src[len(src)-1] > src[0]
	i0, i1, w = make([]int, len(dst)), make([]int, len(dst)), make([]float64, len(dst))
	for k, y := range dst {
		var j int
		if asc {
			j = sort.SearchFloat64s(src, y)
		} else {
			j = sort.Search(len(src), func(i int) bool { return src[i] <= y })
		}
		switch {
		case j < len(src) && src[j] == y:
			i0[k], i1[k] = j, j
		case j <= 0:
			i0[k], i1[k] = 0, 0
		case j >= len(src):
			i0[k], i1[k] = len(src)-1, len(src)-1
		default:
			i0[k], i1[k] = j-1, j
			w[k] = (y - src[j-1]) / (src[j] - src[j-1])
		}
	}
	return
}

// lonWeights is like latWeights but wraps around the globe.
func lonWeights(src, dst []float64) (i0, i1 []int, w []float64) {
	n := len(src)
	i0, i1, w = make([]int, len(dst)), make([]int, len(dst)), make([]float64, len(dst))
	for k, x := range dst {
		x = src[0] + math.Mod(math.Mod(x-src[0], 360)+360, 360)
		j := sort.SearchFloat64s(src, x)
		if j > 0 && j < n && src[j] == x {
			i0[k], i1[k] = j, j
			continue
		}
		if j == 0 {
			i0[k], i1[k] = 0, 0
			continue
		}
		lo, hi := src[j-1], src[0]+360
		i0[k], i1[k] = j-1, 0
		if j < n {
			hi = src[j]
			i1[k] = j
		}
		w[k] = (x - lo) / (hi - lo)
	}
	return
}

// Regrid interpolates field, which has shape (lat, lon) on the source
// grid, to the destination grid. Missing values propagate.
func (b *Bilinear) Regrid(field *sparse.DenseArray) (*sparse.DenseArray, error) {
	if len(field.Shape) != 2 || field.Shape[0] != len(b.Src.Lat) || field.Shape[1] != len(b.Src.Lon) {
		return nil, fmt.Errorf("seregrid: field shape %v does not match source grid (%d, %d)",
			field.Shape, len(b.Src.Lat), len(b.Src.Lon))
	}
	o := sparse.ZerosDense(len(b.Dst.Lat), len(b.Dst.Lon))
	for i := range b.Dst.Lat {
		for j := range b.Dst.Lon {
			v00 := field.Get(b.y0[i], b.x0[j])
			v01 := field.Get(b.y0[i], b.x1[j])
			v10 := field.Get(b.y1[i], b.x0[j])
			v11 := field.Get(b.y1[i], b.x1[j])
			wy, wx := b.wy[i], b.wx[j]
			v := (1-wy)*((1-wx)*v00+wx*v01) + wy*((1-wx)*v10+wx*v11)
			o.Set(v, i, j)
		}
	}
	return o, nil
}

// RegridToCoarsest creates a regridder from the finer of two grids to
// the coarser one, judged by the number of latitudes. It returns a nil
// regridder when the grids have the same shape. The returned bool is
// true when g1 is regridded to g2 and false when g2 is regridded to g1.
func RegridToCoarsest(g1, g2 RegularGrid) (*Bilinear, bool, error) {
	if len(g1.Lat) == len(g2.Lat) && len(g1.Lon) == len(g2.Lon) {
		return nil, false, nil
	}
	if len(g1.Lat) > len(g2.Lat) {
		b, err := NewBilinearRegridder(g1, g2)
		return b, true, err
	}
	b, err := NewBilinearRegridder(g2, g1)
	return b, false, err
}

// MeanField returns the named variable of a regular-grid dataset
// averaged over every dimension other than its trailing (lat, lon)
// dimensions. Missing values are ignored.
func MeanField(ds *Dataset, name string) (*sparse.DenseArray, error) {
	v := ds.Var(name)
	if v == nil {
		return nil, fmt.Errorf("seregrid: variable %s not in dataset", name)
	}
	n := len(v.Dims)
	if n < 2 || v.Dims[n-2] != "lat" || v.Dims[n-1] != "lon" {
		return nil, fmt.Errorf("seregrid: variable %s has dimensions %v; last two should be (lat, lon)", name, v.Dims)
	}
	shape, err := ds.Shape(v)
	if err != nil {
		return nil, err
	}
	nlat, nlon := shape[n-2], shape[n-1]
	data := v.Floats()
	o := sparse.ZerosDense(nlat, nlon)
	count := make([]float64, nlat*nlon)
	for k, x := range data {
		if math.IsNaN(x) {
			continue
		}
		o.Elements[k%(nlat*nlon)] += x
		count[k%(nlat*nlon)]++
	}
	for i, c := range count {
		o.Elements[i] = nanIfZero(o.Elements[i], c)
	}
	return o, nil
}

// Difference returns the time mean of variable name in b minus that in
// a, after regridding the finer of the two onto the coarser grid, along
// with the grid of the result.
func Difference(a, b *Dataset, name string) (*sparse.DenseArray, RegularGrid, error) {
	fa, fb, grid, err := CommonFields(a, b, name)
	if err != nil {
		return nil, RegularGrid{}, err
	}
	diff := fb.Copy()
	floats.Sub(diff.Elements, fa.Elements)
	return diff, grid, nil
}

// CommonFields returns the time means of variable name in a and b on the
// coarser of their two grids, along with that grid.
func CommonFields(a, b *Dataset, name string) (fa, fb *sparse.DenseArray, grid RegularGrid, err error) {
	ga, err := RegularGridOf(a)
	if err != nil {
		return nil, nil, RegularGrid{}, err
	}
	gb, err := RegularGridOf(b)
	if err != nil {
		return nil, nil, RegularGrid{}, err
	}
	if fa, err = MeanField(a, name); err != nil {
		return nil, nil, RegularGrid{}, err
	}
	if fb, err = MeanField(b, name); err != nil {
		return nil, nil, RegularGrid{}, err
	}
	r, aIsSource, err := RegridToCoarsest(ga, gb)
	if err != nil {
		return nil, nil, RegularGrid{}, err
	}
	if r == nil {
		return fa, fb, ga, nil
	}
	if aIsSource {
		if fa, err = r.Regrid(fa); err != nil {
			return nil, nil, RegularGrid{}, err
		}
		fb = latRows(fb, r.LatOffset, len(r.Dst.Lat))
	} else {
		if fb, err = r.Regrid(fb); err != nil {
			return nil, nil, RegularGrid{}, err
		}
		fa = latRows(fa, r.LatOffset, len(r.Dst.Lat))
	}
	return fa, fb, r.Dst, nil
}

// latRows returns n rows of f starting at row i0.
func latRows(f *sparse.DenseArray, i0, n int) *sparse.DenseArray {
	nlon := f.Shape[1]
	o := sparse.ZerosDense(n, nlon)
	copy(o.Elements, f.Elements[i0*nlon:(i0+n)*nlon])
	return o
}
