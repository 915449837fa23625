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

package seregridutil

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/seregrid"
)

func helperLog(t *testing.T) logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return l.WithField("test", t.Name())
}

// writeWeights writes a weight file mapping 4 spectral-element columns to
// a 2 x 3 regular grid, such that
//
//	dst = [s1, (s1+s2)/2, s2, s3, (s3+3*s4)/4, s4]
func writeWeights(t *testing.T, dir string) string {
	t.Helper()
	lat, latB := []float64{-45, 45}, []float64{-90, 0, 90}
	lon, lonB := []float64{60, 180, 300}, []float64{0, 120, 240, 0}
	var xc, yc, xv, yv, area []float64
	for i := range lat {
		for j := range lon {
			xc = append(xc, lon[j])
			yc = append(yc, lat[i])
			xv = append(xv, lonB[j], lonB[j+1], lonB[j+1], lonB[j])
			yv = append(yv, latB[i], latB[i], latB[i+1], latB[i+1])
			area = append(area, 1)
		}
	}
	ds := &seregrid.Dataset{Dims: []seregrid.Dim{
		{Name: "n_s", Len: 8}, {Name: "n_b", Len: 6}, {Name: "nv_b", Len: 4},
		{Name: "src_grid_rank", Len: 1}, {Name: "dst_grid_rank", Len: 2},
	}}
	for _, v := range []*seregrid.Variable{
		{Name: "row", Dims: []string{"n_s"}, Type: seregrid.Int, Data: []int32{1, 2, 2, 3, 4, 5, 5, 6}},
		{Name: "col", Dims: []string{"n_s"}, Type: seregrid.Int, Data: []int32{1, 1, 2, 2, 3, 3, 4, 4}},
		{Name: "S", Dims: []string{"n_s"}, Type: seregrid.Double, Data: []float64{1, 0.5, 0.5, 1, 1, 0.25, 0.75, 1}},
		{Name: "src_grid_dims", Dims: []string{"src_grid_rank"}, Type: seregrid.Int, Data: []int32{4}},
		{Name: "dst_grid_dims", Dims: []string{"dst_grid_rank"}, Type: seregrid.Int, Data: []int32{3, 2}},
		{Name: "xc_b", Dims: []string{"n_b"}, Type: seregrid.Double, Data: xc},
		{Name: "yc_b", Dims: []string{"n_b"}, Type: seregrid.Double, Data: yc},
		{Name: "xv_b", Dims: []string{"n_b", "nv_b"}, Type: seregrid.Double, Data: xv},
		{Name: "yv_b", Dims: []string{"n_b", "nv_b"}, Type: seregrid.Double, Data: yv},
		{Name: "area_b", Dims: []string{"n_b"}, Type: seregrid.Double, Data: area},
	} {
		ds.AddVar(v)
	}
	path := filepath.Join(dir, "map_test.nc")
	if err := ds.Write(path); err != nil {
		t.Fatal(err)
	}
	return path
}

// history returns a land history dataset with two records on the
// 4-column grid of writeWeights. TSA at record r and column k is
// offset + 10*r + k + 1.
func history(offset float64) *seregrid.Dataset {
	ds := &seregrid.Dataset{Dims: []seregrid.Dim{
		{Name: "time", Len: 2, Unlimited: true},
		{Name: "lndgrid", Len: 4},
		{Name: "levgrnd", Len: 2},
	}}
	tsa := make([]float64, 8)
	for i := range tsa {
		tsa[i] = offset + float64(10*(i/4)+i%4+1)
	}
	tsoi := make([]float64, 16)
	for i := range tsoi {
		tsoi[i] = 270 + float64(i)
	}
	for _, v := range []*seregrid.Variable{
		{Name: "time", Dims: []string{"time"}, Type: seregrid.Double, Data: []float64{offset, offset + 31}},
		{Name: "TSA", Dims: []string{"time", "lndgrid"}, Type: seregrid.Float, Data: tsa, Attrs: []seregrid.Attr{
			{Name: "long_name", Value: "2m air temperature"}, {Name: "units", Value: "K"},
		}},
		{Name: "TSOI", Dims: []string{"time", "levgrnd", "lndgrid"}, Type: seregrid.Double, Data: tsoi, Attrs: []seregrid.Attr{
			{Name: "long_name", Value: "soil temperature"}, {Name: "units", Value: "K"},
		}},
		{Name: "landfrac", Dims: []string{"lndgrid"}, Type: seregrid.Double, Data: []float64{1, 0.5, 0, 1}},
	} {
		ds.AddVar(v)
	}
	return ds
}

// writeHistory writes history files for months 1 and 2 to dir.
func writeHistory(t *testing.T, dir string) []string {
	t.Helper()
	var paths []string
	for i, name := range []string{"case.clm2.h0.0001-01.nc", "case.clm2.h0.0001-02.nc"} {
		p := filepath.Join(dir, name)
		if err := history(100 * float64(i)).Write(p); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

// freshConfig gives the test its own configuration, restoring Cfg when
// the test ends.
func freshConfig(t *testing.T) {
	t.Helper()
	old := Cfg
	Cfg = newConfig()
	t.Cleanup(func() { Cfg = old })
}
