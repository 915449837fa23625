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
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/seregrid"
	"github.com/spatialmodel/seregrid/mapplot"
	"gonum.org/v1/gonum/floats"
)

// Names of the two-dimensional coordinate variables of land surface
// datasets.
const (
	latXY = "LATIXY"
	lonXY = "LONGXY"
)

// label returns the default plot label of v, "long_name [units]".
func label(v *seregrid.Variable) string {
	name, _ := v.Attr("long_name").(string)
	if name == "" {
		name = v.Name
	}
	if u, ok := v.Attr("units").(string); ok && u != "" {
		return fmt.Sprintf("%s [%s]", name, u)
	}
	return name
}

// timeMean returns variable v of ds averaged over the record dimension,
// ignoring missing values, along with its remaining dimensions.
func timeMean(ds *seregrid.Dataset, v *seregrid.Variable) (*sparse.DenseArray, []string, error) {
	shape, err := ds.Shape(v)
	if err != nil {
		return nil, nil, err
	}
	data := v.Floats()
	if !ds.IsRecord(v) {
		o := sparse.ZerosDense(shape...)
		copy(o.Elements, data)
		return o, v.Dims, nil
	}
	o := sparse.ZerosDense(shape[1:]...)
	n := len(o.Elements)
	count := make([]float64, n)
	for i, x := range data {
		if !math.IsNaN(x) {
			o.Elements[i%n] += x
			count[i%n]++
		}
	}
	for i, c := range count {
		if c == 0 {
			o.Elements[i] = math.NaN()
		} else {
			o.Elements[i] /= c
		}
	}
	return o, v.Dims[1:], nil
}

// PlotVariable plots the time mean of variable name in the NetCDF file
// at path and saves it to figname + ".png". If panels is true, the
// variable must have one dimension besides time, lat and lon, and each
// of its levels is shown in a separate panel. Otherwise such a dimension
// is summed over. Datasets with two-dimensional LATIXY and LONGXY
// coordinates are plotted on those coordinates.
func PlotVariable(path, name, figname string, panels bool, o mapplot.Options) error {
	ds, err := seregrid.ReadDataset(path, name, "lat", "lon", latXY, lonXY)
	if err != nil {
		return err
	}
	v := ds.Var(name)
	if v == nil {
		return fmt.Errorf("seregridutil: variable %s is not in %s", name, path)
	}
	if o.Label == "" {
		o.Label = label(v)
	}
	field, dims, err := timeMean(ds, v)
	if err != nil {
		return err
	}

	if ds.Var("lat") == nil && ds.Var(latXY) != nil {
		return plotXY(ds, field, figname, o)
	}
	rg, err := seregrid.RegularGridOf(ds)
	if err != nil {
		return err
	}
	n := len(dims)
	if n < 2 || dims[n-2] != "lat" || dims[n-1] != "lon" {
		return fmt.Errorf("seregridutil: variable %s has dimensions %v; last two should be (lat, lon)", name, v.Dims)
	}
	g := rg.Grid()
	if panels {
		if n != 3 {
			return fmt.Errorf("seregridutil: panel plots need one dimension besides time, lat and lon but %s has %v", name, v.Dims)
		}
		return mapplot.Panels(field, g, dims[0], figname, o)
	}
	if n > 3 {
		return fmt.Errorf("seregridutil: variable %s has too many dimensions to plot: %v", name, v.Dims)
	}
	return mapplot.BiasMap(field, g, figname, o)
}

func plotXY(ds *seregrid.Dataset, field *sparse.DenseArray, figname string, o mapplot.Options) error {
	lat, lon := ds.Var(latXY), ds.Var(lonXY)
	if lon == nil {
		return fmt.Errorf("seregridutil: %s is present but %s is not", latXY, lonXY)
	}
	la, _, err := timeMean(ds, lat)
	if err != nil {
		return err
	}
	lo, _, err := timeMean(ds, lon)
	if err != nil {
		return err
	}
	var min, max float64
	if o.Min != nil && o.Max != nil {
		min, max = *o.Min, *o.Max
	} else {
		var finite []float64
		for _, x := range field.Elements {
			if !math.IsNaN(x) {
				finite = append(finite, x)
			}
		}
		if len(finite) == 0 {
			return fmt.Errorf("seregridutil: no values to plot")
		}
		min, max = floats.Min(finite), floats.Max(finite)
	}
	return mapplot.BiasMapXY(field, la, lo, figname, min, max)
}

// Compare plots the difference between the time means of variable name
// in the regular-grid files at pathA and pathB (B minus A), after
// regridding the finer of the two to the coarser grid.
func Compare(pathA, pathB, name, figname string, o mapplot.Options) error {
	a, err := seregrid.ReadDataset(pathA, name, "lat", "lon")
	if err != nil {
		return err
	}
	b, err := seregrid.ReadDataset(pathB, name, "lat", "lon")
	if err != nil {
		return err
	}
	fa, fb, grid, err := seregrid.CommonFields(a, b, name)
	if err != nil {
		return err
	}
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if c, err := seregrid.Compare(fa, fb); err != nil {
		log.WithError(err).Warn("Comparison statistics unavailable")
	} else {
		log.WithFields(logrus.Fields{
			"variable": name, "n": c.N, "mb": c.MB, "me": c.ME, "mfb": c.MFB, "mfe": c.MFE,
			"slope": c.Slope, "intercept": c.Intercept, "r2": c.R2,
		}).Info("Comparison statistics")
	}
	diff := fb.Copy()
	floats.Sub(diff.Elements, fa.Elements)
	if o.Label == "" {
		if v := b.Var(name); v != nil {
			o.Label = label(v)
		}
	}
	o.Anomaly = true
	return mapplot.BiasMap(diff, grid.Grid(), figname, o)
}
