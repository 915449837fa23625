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

// Package seregrid regrids climate model history files from a
// spectral-element grid to a regular latitude-longitude grid using
// precomputed remapping weights, and creates time series from
// history files.
package seregrid

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.3.0"

// Column dimension names of spectral-element history files.
const (
	AtmColumnDim = "ncol"
	LndColumnDim = "lndgrid"
)

// earthRadius is the radius of the Earth [km] used for cell areas.
const earthRadius = 6371.22

// ExcludedVars are variables that are dropped from regridded output.
var ExcludedVars = map[string]bool{
	"FATES_DAYSINCE_DROUGHTLEAFON_PF":  true,
	"FATES_DAYSINCE_DROUGHTLEAFOFF_PF": true,
}

// Regridder regrids fields on a spectral-element grid to a regular grid.
type Regridder struct {
	Weights *Weights
	Grid    *Grid

	// SkipNaN specifies whether missing source values are skipped
	// and the remaining weights renormalized. By default missing values
	// propagate.
	SkipNaN bool

	// LandFrac specifies whether land fraction normalization is applied
	// to datasets that contain a landfrac variable.
	LandFrac bool

	// Log receives debugging information. If nil, the standard logger is used.
	Log logrus.FieldLogger
}

// NewSERegridder creates a regridder from spectral-element weights.
func NewSERegridder(w *Weights) (*Regridder, error) {
	g, err := w.DestinationGrid()
	if err != nil {
		return nil, err
	}
	return &Regridder{Weights: w, Grid: g}, nil
}

// IsRegular returns whether ds is already on a regular
// latitude-longitude grid.
func IsRegular(ds *Dataset) bool {
	return ds.HasDim("lat") && ds.HasDim("lon")
}

// GenericRegridder returns a regridder for datasets like example.
// If example is already on a regular grid it returns nil, and
// regridding with the nil regridder passes data through unchanged.
func GenericRegridder(w *Weights, example *Dataset) (*Regridder, error) {
	if IsRegular(example) {
		return nil, nil
	}
	return NewSERegridder(w)
}

func (r *Regridder) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// Apply regrids a single spectral-element field.
func (r *Regridder) Apply(src []float64) ([]float64, error) {
	dst := make([]float64, r.Weights.NDst)
	var err error
	if r.SkipNaN {
		err = r.Weights.ApplySkipNaN(dst, src)
	} else {
		err = r.Weights.Apply(dst, src)
	}
	return dst, err
}

// RegridField regrids a one-dimensional spectral-element field and
// returns it with shape (lat, lon).
func (r *Regridder) RegridField(src *sparse.DenseArray) (*sparse.DenseArray, error) {
	if len(src.Shape) != 1 {
		return nil, fmt.Errorf("seregrid: field to regrid should be one-dimensional but has shape %v", src.Shape)
	}
	d, err := r.Apply(src.Elements)
	if err != nil {
		return nil, err
	}
	nlat, nlon := r.Grid.Shape()
	o := sparse.ZerosDense(nlat, nlon)
	copy(o.Elements, d)
	return o, nil
}

// RenameDim returns a copy of dims where the dimension named from is
// removed and to is appended. This mirrors moving the column dimension
// of a variable to the end and then splitting it into the destination
// grid dimensions.
func RenameDim(dims []string, from string, to ...string) []string {
	o := make([]string, 0, len(dims)+len(to))
	for _, d := range dims {
		if d != from {
			o = append(o, d)
		}
	}
	return append(o, to...)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// RegridDataset regrids every variable in ds that has the dimension
// dimName and returns the result as a new dataset. Variables without
// dimName are copied unchanged. A nil regridder returns ds.
func (r *Regridder) RegridDataset(ds *Dataset, dimName string) (*Dataset, error) {
	if r == nil {
		logrus.StandardLogger().Debug("dataset is already on a regular grid; not regridding")
		return ds, nil
	}
	col, ok := ds.Dim(dimName)
	if !ok {
		return nil, fmt.Errorf("seregrid: dataset does not have dimension %s", dimName)
	}
	if col.Len != r.Weights.NSrc {
		return nil, fmt.Errorf("seregrid: dimension %s has length %d but the weights %s have %d source cells",
			dimName, col.Len, r.Weights.Path, r.Weights.NSrc)
	}
	nlat, nlon := r.Grid.Shape()

	o := &Dataset{Attrs: append([]Attr{}, ds.Attrs...)}
	for _, d := range ds.Dims {
		if d.Name != dimName {
			o.Dims = append(o.Dims, d)
		}
	}
	o.AddDim("lat", nlat, false)
	o.AddDim("lon", nlon, false)
	bnd := "nbnd"
	if d, ok := ds.Dim(bnd); ok && d.Len != 2 {
		bnd = "nbnd2"
	}
	o.AddDim(bnd, 2, false)

	var norm *landFracNormalizer
	if r.LandFrac {
		if lf := ds.Var("landfrac"); lf != nil && len(lf.Dims) == 1 && lf.Dims[0] == dimName {
			norm = &landFracNormalizer{r: r, landfrac: lf.Floats()}
		}
	}

	for _, v := range ds.Vars {
		if ExcludedVars[v.Name] {
			r.log().WithField("variable", v.Name).Debug("dropping excluded variable")
			continue
		}
		p := indexOf(v.Dims, dimName)
		if p < 0 {
			o.AddVar(v.Copy())
			continue
		}
		if !r.Regrids(v, dimName) {
			// lat and lon are replaced by the destination grid coordinates.
			if r.replacesArea(v) {
				o.AddVar(r.areaVar(v))
			}
			continue
		}
		r.log().WithField("variable", v.Name).Debug("regridding")
		shape, err := ds.Shape(v)
		if err != nil {
			return nil, err
		}
		nv, err := r.regridVar(v, shape, p, norm)
		if err != nil {
			return nil, fmt.Errorf("seregrid: regridding variable %s: %v", v.Name, err)
		}
		o.AddVar(nv)
	}
	r.addCoordinates(o, bnd)

	o.SetAttr("regrid_weights", r.Weights.Path)
	o.SetAttr("regrid_method", "conservative")
	return o, nil
}

// Regrids reports whether RegridDataset regrids variable v of a dataset
// with column dimension dimName, rather than copying, replacing or
// dropping it.
func (r *Regridder) Regrids(v *Variable, dimName string) bool {
	if r == nil || ExcludedVars[v.Name] || indexOf(v.Dims, dimName) < 0 {
		return false
	}
	switch v.Name {
	case "lat", "lon":
		return false
	case "area":
		return !r.replacesArea(v)
	}
	return true
}

func (r *Regridder) replacesArea(v *Variable) bool {
	return v.Name == "area" && len(r.Weights.AreaB) == r.Weights.NDst && len(v.Dims) == 1
}

// regridVar regrids variable v, whose dimension at position p is the
// column dimension.
func (r *Regridder) regridVar(v *Variable, shape []int, p int, norm *landFracNormalizer) (*Variable, error) {
	ncol := shape[p]
	outer := product(shape[:p])
	inner := product(shape[p+1:])
	ngrid := r.Weights.NDst
	data := v.Floats()

	out := make([]float64, outer*inner*ngrid)
	src := make([]float64, ncol)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			for k := 0; k < ncol; k++ {
				src[k] = data[o*ncol*inner+k*inner+i]
			}
			b := o*inner + i
			dst := out[b*ngrid : (b+1)*ngrid]
			var err error
			if norm != nil && v.Name != "landfrac" {
				err = norm.apply(dst, src)
			} else {
				var d []float64
				d, err = r.Apply(src)
				copy(dst, d)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	nv := &Variable{
		Name:  v.Name,
		Dims:  RenameDim(v.Dims, v.Dims[p], "lat", "lon"),
		Type:  v.Type,
		Data:  out,
		Attrs: append([]Attr{}, v.Attrs...),
	}
	if !v.Type.IsFloat() {
		// Regridded integer fields are fractional.
		nv.Type = Float
		nv.Attrs = dropAttrs(nv.Attrs, "_FillValue", "missing_value")
	}
	return nv, nil
}

func dropAttrs(attrs []Attr, names ...string) []Attr {
	var o []Attr
	for _, a := range attrs {
		if indexOf(names, a.Name) < 0 {
			o = append(o, a)
		}
	}
	return o
}

// areaVar replaces the source cell areas with the destination cell areas.
func (r *Regridder) areaVar(v *Variable) *Variable {
	area := make([]float64, r.Weights.NDst)
	for i, a := range r.Weights.AreaB {
		area[i] = a * earthRadius * earthRadius
	}
	attrs := dropAttrs(v.Attrs, "units")
	attrs = append(attrs, Attr{Name: "units", Value: "km^2"})
	return &Variable{
		Name:  v.Name,
		Dims:  []string{"lat", "lon"},
		Type:  Double,
		Data:  area,
		Attrs: attrs,
	}
}

func (r *Regridder) addCoordinates(o *Dataset, bnd string) {
	g := r.Grid
	o.AddVar(&Variable{
		Name: "lat", Dims: []string{"lat"}, Type: Double,
		Data: append([]float64{}, g.Lat...),
		Attrs: []Attr{
			{Name: "long_name", Value: "latitude"},
			{Name: "units", Value: "degrees_north"},
			{Name: "bounds", Value: "lat_bnds"},
		},
	})
	o.AddVar(&Variable{
		Name: "lon", Dims: []string{"lon"}, Type: Double,
		Data: append([]float64{}, g.Lon...),
		Attrs: []Attr{
			{Name: "long_name", Value: "longitude"},
			{Name: "units", Value: "degrees_east"},
			{Name: "bounds", Value: "lon_bnds"},
		},
	})
	latB := make([]float64, 2*len(g.Lat))
	for i := range g.Lat {
		latB[2*i], latB[2*i+1] = g.LatB[i], g.LatB[i+1]
	}
	lonB := make([]float64, 2*len(g.Lon))
	for j := range g.Lon {
		lonB[2*j], lonB[2*j+1] = g.LonB[j], g.LonB[j+1]
	}
	o.AddVar(&Variable{
		Name: "lat_bnds", Dims: []string{"lat", bnd}, Type: Double, Data: latB,
		Attrs: []Attr{{Name: "units", Value: "degrees_north"}},
	})
	o.AddVar(&Variable{
		Name: "lon_bnds", Dims: []string{"lon", bnd}, Type: Double, Data: lonB,
		Attrs: []Attr{{Name: "units", Value: "degrees_east"}},
	})
}

// nanIfZero returns NaN when d is zero and n/d otherwise.
func nanIfZero(n, d float64) float64 {
	if d == 0 {
		return math.NaN()
	}
	return n / d
}
