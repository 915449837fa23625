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
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
)

const testTolerance = 1.0e-10

// testWeights returns a weight file dataset mapping 4 source cells to a
// 2 x 3 (lat x lon) destination grid:
//
//	dst = [s1, (s1+s2)/2, s2, s3, (s3+3*s4)/4, s4]
//
// The entries are stored out of row order.
func testWeights() *Dataset {
	lat := []float64{-45, 45}
	lon := []float64{60, 180, 300}
	latB := []float64{-90, 0, 90}
	lonB := []float64{0, 120, 240, 360}
	const nlat, nlon, nv = 2, 3, 4
	var xc, yc, xv, yv, area []float64
	for i := 0; i < nlat; i++ {
		for j := 0; j < nlon; j++ {
			xc = append(xc, lon[j])
			yc = append(yc, lat[i])
			w, e, s, n := lonB[j], lonB[j+1], latB[i], latB[i+1]
			if e == 360 {
				e = 0
			}
			xv = append(xv, w, e, e, w)
			yv = append(yv, s, s, n, n)
			area = append(area, float64(i*nlon+j+1)*0.1)
		}
	}
	ds := &Dataset{
		Dims: []Dim{
			{Name: "n_s", Len: 8}, {Name: "n_b", Len: nlat * nlon}, {Name: "nv_b", Len: nv},
			{Name: "src_grid_rank", Len: 1}, {Name: "dst_grid_rank", Len: 2},
		},
	}
	add := func(name string, dims []string, t Type, data interface{}) {
		ds.AddVar(&Variable{Name: name, Dims: dims, Type: t, Data: data})
	}
	add("row", []string{"n_s"}, Int, []int32{6, 1, 2, 5, 3, 2, 4, 5})
	add("col", []string{"n_s"}, Int, []int32{4, 1, 1, 3, 2, 2, 3, 4})
	add("S", []string{"n_s"}, Double, []float64{1, 1, 0.5, 0.25, 1, 0.5, 1, 0.75})
	add("src_grid_dims", []string{"src_grid_rank"}, Int, []int32{4})
	add("dst_grid_dims", []string{"dst_grid_rank"}, Int, []int32{nlon, nlat})
	add("xc_b", []string{"n_b"}, Double, xc)
	add("yc_b", []string{"n_b"}, Double, yc)
	add("xv_b", []string{"n_b", "nv_b"}, Double, xv)
	add("yv_b", []string{"n_b", "nv_b"}, Double, yv)
	add("area_b", []string{"n_b"}, Double, area)
	ds.SetAttr("title", "test weights")
	return ds
}

// writeTestWeights writes testWeights to dir and returns its path.
func writeTestWeights(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "map_test.nc")
	if err := testWeights().Write(path); err != nil {
		t.Fatal(err)
	}
	return path
}

// testHistory returns a land history dataset with two records on the
// 4-cell source grid of testWeights. Values of record r at cell k are
// offset + 10*r + k + 1.
func testHistory(offset float64) *Dataset {
	const ncol, nrec, nlev = 4, 2, 2
	ds := &Dataset{
		Dims: []Dim{
			{Name: "time", Len: nrec, Unlimited: true},
			{Name: "lndgrid", Len: ncol},
			{Name: "levgrnd", Len: nlev},
			{Name: "string_length", Len: 8},
		},
		Attrs: []Attr{{Name: "source", Value: "test land model"}},
	}
	tsa := make([]float64, nrec*ncol)
	for r := 0; r < nrec; r++ {
		for k := 0; k < ncol; k++ {
			tsa[r*ncol+k] = offset + float64(10*r+k+1)
		}
	}
	tsoi := make([]float64, nrec*nlev*ncol)
	for i := range tsoi {
		tsoi[i] = float64(i)
	}
	ds.AddVar(&Variable{Name: "time", Dims: []string{"time"}, Type: Double,
		Data: []float64{offset, offset + 31}, Attrs: []Attr{{Name: "units", Value: "days since 0001-01-01"}}})
	ds.AddVar(&Variable{Name: "date_written", Dims: []string{"time", "string_length"}, Type: Char,
		Data: []uint8("01/01/2501/02/25")})
	ds.AddVar(&Variable{Name: "TSA", Dims: []string{"time", "lndgrid"}, Type: Float, Data: tsa,
		Attrs: []Attr{
			{Name: "long_name", Value: "2m air temperature"},
			{Name: "units", Value: "K"},
			{Name: "_FillValue", Value: []float32{1e36}},
		}})
	ds.AddVar(&Variable{Name: "TSOI", Dims: []string{"time", "levgrnd", "lndgrid"}, Type: Double, Data: tsoi})
	ds.AddVar(&Variable{Name: "landfrac", Dims: []string{"lndgrid"}, Type: Double, Data: []float64{1, 0.5, 0, 1}})
	ds.AddVar(&Variable{Name: "area", Dims: []string{"lndgrid"}, Type: Double, Data: []float64{1, 1, 1, 1},
		Attrs: []Attr{{Name: "units", Value: "km^2"}}})
	ds.AddVar(&Variable{Name: "lat", Dims: []string{"lndgrid"}, Type: Double, Data: []float64{-10, -5, 5, 10}})
	ds.AddVar(&Variable{Name: "lon", Dims: []string{"lndgrid"}, Type: Double, Data: []float64{10, 100, 200, 300}})
	ds.AddVar(&Variable{Name: "pftmask", Dims: []string{"lndgrid"}, Type: Int, Data: []int32{1, 1, 0, 1}})
	ds.AddVar(&Variable{Name: "FATES_DAYSINCE_DROUGHTLEAFON_PF", Dims: []string{"lndgrid"}, Type: Double,
		Data: []float64{1, 2, 3, 4}})
	ds.AddVar(&Variable{Name: "levgrnd", Dims: []string{"levgrnd"}, Type: Float, Data: []float64{0.01, 0.1}})
	return ds
}

// sameFloats reports whether a and b are equal within testTolerance,
// treating NaNs as equal.
func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) {
			return false
		}
		if !math.IsNaN(a[i]) && !floats.EqualWithinAbsOrRel(a[i], b[i], testTolerance, testTolerance) {
			return false
		}
	}
	return true
}
