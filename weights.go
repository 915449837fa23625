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
)

// weightVars are the variables read from a remap weight file.
var weightVars = []string{
	"col", "row", "S", "src_grid_dims", "dst_grid_dims",
	"xc_b", "yc_b", "xv_b", "yv_b", "area_b", "frac_b", "mask_b",
}

// Weights is a sparse remapping matrix read from an ESMF or SCRIP
// weight file, stored in compressed-row form, along with the description
// of the destination grid.
type Weights struct {
	// Path is the location the weights were read from.
	Path string

	// SrcShape and DstShape are the source and destination grid
	// dimensions as stored in the file (src_grid_dims, dst_grid_dims).
	SrcShape, DstShape []int

	// NSrc and NDst are the number of source and destination cells.
	NSrc, NDst int

	rowPtr []int
	colIdx []int
	vals   []float64

	// Destination cell centers, vertices (NDst x NV, row-major),
	// areas, fractions and mask.
	XcB, YcB, XvB, YvB []float64
	NV                 int
	AreaB, FracB       []float64
	MaskB              []int32
}

// LoadWeights reads the remap weight file at path.
func LoadWeights(path string) (*Weights, error) {
	ds, err := ReadDataset(path, weightVars...)
	if err != nil {
		return nil, err
	}
	w, err := NewWeights(ds)
	if err != nil {
		return nil, fmt.Errorf("seregrid: loading weights %s: %v", path, err)
	}
	w.Path = path
	return w, nil
}

// NewWeights creates a weight matrix from the variables of a
// weight file that has already been read.
func NewWeights(ds *Dataset) (*Weights, error) {
	for _, name := range []string{"col", "row", "S", "src_grid_dims", "dst_grid_dims", "xc_b", "yc_b"} {
		if ds.Var(name) == nil {
			return nil, fmt.Errorf("variable %s is missing from weight file", name)
		}
	}
	w := &Weights{
		SrcShape: intValues(ds.Var("src_grid_dims")),
		DstShape: intValues(ds.Var("dst_grid_dims")),
	}
	w.NSrc, w.NDst = product(w.SrcShape), product(w.DstShape)

	col := intValues(ds.Var("col"))
	row := intValues(ds.Var("row"))
	s := ds.Var("S").Floats()
	if len(col) != len(row) || len(col) != len(s) {
		return nil, fmt.Errorf("col, row and S lengths differ: %d, %d, %d", len(col), len(row), len(s))
	}

	w.rowPtr = make([]int, w.NDst+1)
	for i, r := range row {
		if r < 1 || r > w.NDst {
			return nil, fmt.Errorf("row index %d at position %d is outside of destination grid of size %d", r, i, w.NDst)
		}
		if c := col[i]; c < 1 || c > w.NSrc {
			return nil, fmt.Errorf("col index %d at position %d is outside of source grid of size %d", c, i, w.NSrc)
		}
		w.rowPtr[r]++
	}
	for i := 1; i <= w.NDst; i++ {
		w.rowPtr[i] += w.rowPtr[i-1]
	}
	w.colIdx = make([]int, len(col))
	w.vals = make([]float64, len(col))
	next := append([]int{}, w.rowPtr[:w.NDst]...)
	for i, r := range row {
		k := next[r-1]
		w.colIdx[k] = col[i] - 1
		w.vals[k] = s[i]
		next[r-1]++
	}

	w.XcB = ds.Var("xc_b").Floats()
	w.YcB = ds.Var("yc_b").Floats()
	if len(w.XcB) != w.NDst || len(w.YcB) != w.NDst {
		return nil, fmt.Errorf("xc_b and yc_b should have %d values but have %d and %d", w.NDst, len(w.XcB), len(w.YcB))
	}
	if xv, yv := ds.Var("xv_b"), ds.Var("yv_b"); xv != nil && yv != nil {
		w.XvB, w.YvB = xv.Floats(), yv.Floats()
		if w.NDst > 0 {
			w.NV = len(w.XvB) / w.NDst
		}
	}
	if v := ds.Var("area_b"); v != nil {
		w.AreaB = v.Floats()
	}
	if v := ds.Var("frac_b"); v != nil {
		w.FracB = v.Floats()
	}
	if v := ds.Var("mask_b"); v != nil {
		for _, m := range v.Floats() {
			w.MaskB = append(w.MaskB, int32(m))
		}
	}
	return w, nil
}

func intValues(v *Variable) []int {
	f := v.Floats()
	o := make([]int, len(f))
	for i, x := range f {
		o[i] = int(x)
	}
	return o
}

func product(s []int) int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

// NNZ returns the number of nonzero weights.
func (w *Weights) NNZ() int { return len(w.vals) }

// Apply multiplies the weight matrix by src, writing the result to dst,
// i.e. dst[row-1] = sum(S * src[col-1]). NaN source values propagate to
// every destination cell they contribute to.
func (w *Weights) Apply(dst, src []float64) error {
	if err := w.checkLen(dst, src); err != nil {
		return err
	}
	for r := 0; r < w.NDst; r++ {
		var sum float64
		for k := w.rowPtr[r]; k < w.rowPtr[r+1]; k++ {
			sum += w.vals[k] * src[w.colIdx[k]]
		}
		dst[r] = sum
	}
	return nil
}

// ApplySkipNaN is like Apply, but NaN source values are skipped and each
// destination value is divided by the sum of the weights that did
// contribute. Destination cells that receive no valid contribution are NaN.
func (w *Weights) ApplySkipNaN(dst, src []float64) error {
	if err := w.checkLen(dst, src); err != nil {
		return err
	}
	for r := 0; r < w.NDst; r++ {
		var sum, wsum float64
		for k := w.rowPtr[r]; k < w.rowPtr[r+1]; k++ {
			v := src[w.colIdx[k]]
			if math.IsNaN(v) {
				continue
			}
			sum += w.vals[k] * v
			wsum += w.vals[k]
		}
		if wsum == 0 {
			dst[r] = math.NaN()
		} else {
			dst[r] = sum / wsum
		}
	}
	return nil
}

func (w *Weights) checkLen(dst, src []float64) error {
	if len(src) != w.NSrc {
		return fmt.Errorf("seregrid: source field has %d values but weights expect %d", len(src), w.NSrc)
	}
	if len(dst) != w.NDst {
		return fmt.Errorf("seregrid: destination field has %d values but weights produce %d", len(dst), w.NDst)
	}
	return nil
}
