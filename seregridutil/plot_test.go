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
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spatialmodel/seregrid"
	"github.com/spatialmodel/seregrid/mapplot"
)

// regriddedFile regrids the history file with the given TSA offset and
// writes it to dir.
func regriddedFile(t *testing.T, dir, name string, offset float64) string {
	t.Helper()
	w, err := seregrid.LoadWeights(writeWeights(t, t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	r, err := seregrid.NewSERegridder(w)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := r.RegridDataset(history(offset), seregrid.LndColumnDim)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := ds.Write(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLabel(t *testing.T) {
	v := &seregrid.Variable{Name: "TSA"}
	if l := label(v); l != "TSA" {
		t.Errorf("label %q", l)
	}
	v.SetAttr("units", "K")
	v.SetAttr("long_name", "2m air temperature")
	if l := label(v); l != "2m air temperature [K]" {
		t.Errorf("label %q", l)
	}
}

func TestTimeMean(t *testing.T) {
	ds := history(0)
	v := ds.Var("TSA")
	v.Data.([]float64)[5] = math.NaN()
	m, dims, err := timeMean(ds, v)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(dims, []string{"lndgrid"}) {
		t.Errorf("dims %v", dims)
	}
	if want := []float64{6, 2, 8, 9}; !reflect.DeepEqual(m.Elements, want) {
		t.Errorf("%v != %v", m.Elements, want)
	}
	m, dims, err = timeMean(ds, ds.Var("landfrac"))
	if err != nil || len(dims) != 1 || m.Elements[1] != 0.5 {
		t.Errorf("static variable: %v %v %v", m, dims, err)
	}
}

func TestPlotVariable(t *testing.T) {
	dir := t.TempDir()
	path := regriddedFile(t, dir, "a.nc", 0)
	fig := filepath.Join(dir, "TSA")
	if err := PlotVariable(path, "TSA", fig, false, mapplot.Options{Log: helperLog(t)}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fig + ".png"); err != nil {
		t.Error(err)
	}

	fig = filepath.Join(dir, "TSOI")
	if err := PlotVariable(path, "TSOI", fig, true, mapplot.Options{Log: helperLog(t)}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fig + ".png"); err != nil {
		t.Error(err)
	}
	if err := PlotVariable(path, "TSA", fig, true, mapplot.Options{}); err == nil {
		t.Error("expected an error for panels of a variable without a level dimension")
	}
	if err := PlotVariable(path, "missing", fig, false, mapplot.Options{}); err == nil {
		t.Error("expected an error for a missing variable")
	}
}

func TestPlotVariableXY(t *testing.T) {
	dir := t.TempDir()
	ds := &seregrid.Dataset{Dims: []seregrid.Dim{{Name: "lsmlat", Len: 2}, {Name: "lsmlon", Len: 2}}}
	dims := []string{"lsmlat", "lsmlon"}
	ds.AddVar(&seregrid.Variable{Name: "LATIXY", Dims: dims, Type: seregrid.Double, Data: []float64{-45, -45, 45, 45}})
	ds.AddVar(&seregrid.Variable{Name: "LONGXY", Dims: dims, Type: seregrid.Double, Data: []float64{90, 270, 90, 270}})
	ds.AddVar(&seregrid.Variable{Name: "PCT_SAND", Dims: dims, Type: seregrid.Double, Data: []float64{10, 20, 30, 40}})
	path := filepath.Join(dir, "surfdata.nc")
	if err := ds.Write(path); err != nil {
		t.Fatal(err)
	}
	fig := filepath.Join(dir, "sand")
	if err := PlotVariable(path, "PCT_SAND", fig, false, mapplot.Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fig + ".png"); err != nil {
		t.Error(err)
	}
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	a := regriddedFile(t, dir, "a.nc", 0)
	b := regriddedFile(t, dir, "b.nc", 2)
	fig := filepath.Join(dir, "TSA_diff")
	if err := Compare(a, b, "TSA", fig, mapplot.Options{Log: helperLog(t)}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fig + ".png"); err != nil {
		t.Error(err)
	}
	if err := Compare(a, b, "missing", fig, mapplot.Options{}); err == nil {
		t.Error("expected an error for a missing variable")
	}
}
