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
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
)

// Type is the storage type of a NetCDF variable.
type Type int

// These are the NetCDF classic data types.
const (
	Byte Type = iota + 1
	Char
	Short
	Int
	Float
	Double
)

func (t Type) String() string {
	switch t {
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsFloat returns whether values of this type are held as []float64.
func (t Type) IsFloat() bool { return t == Float || t == Double }

// Dim is a NetCDF dimension. The length of an unlimited
// dimension is the number of records.
type Dim struct {
	Name      string
	Len       int
	Unlimited bool
}

// Attr is a NetCDF attribute. Value is one of
// []uint8, string, []int16, []int32, []float32 or []float64.
type Attr struct {
	Name  string
	Value interface{}
}

// Variable holds the contents of a NetCDF variable.
// Data is []float64 for Float and Double variables, []uint8 for
// Byte and Char variables, []int16 for Short and []int32 for Int.
// Floating point fill values are held as NaN.
type Variable struct {
	Name  string
	Dims  []string
	Type  Type
	Data  interface{}
	Attrs []Attr
}

// Floats returns the variable data as float64 values. Integer
// data is converted.
func (v *Variable) Floats() []float64 {
	switch d := v.Data.(type) {
	case []float64:
		return d
	case []int32:
		o := make([]float64, len(d))
		for i, x := range d {
			o[i] = float64(x)
		}
		return o
	case []int16:
		o := make([]float64, len(d))
		for i, x := range d {
			o[i] = float64(x)
		}
		return o
	case []uint8:
		o := make([]float64, len(d))
		for i, x := range d {
			o[i] = float64(x)
		}
		return o
	}
	panic(fmt.Errorf("seregrid: invalid data type %T for variable %s", v.Data, v.Name))
}

// Len returns the number of values held by v.
func (v *Variable) Len() int {
	switch d := v.Data.(type) {
	case []float64:
		return len(d)
	case []int32:
		return len(d)
	case []int16:
		return len(d)
	case []uint8:
		return len(d)
	}
	return 0
}

// Attr returns the value of the named attribute, or nil if it
// does not exist.
func (v *Variable) Attr(name string) interface{} {
	return getAttr(v.Attrs, name)
}

// SetAttr sets the named attribute, replacing any existing value.
func (v *Variable) SetAttr(name string, value interface{}) {
	v.Attrs = setAttr(v.Attrs, name, value)
}

// Copy returns a deep copy of v.
func (v *Variable) Copy() *Variable {
	o := &Variable{
		Name:  v.Name,
		Dims:  append([]string{}, v.Dims...),
		Type:  v.Type,
		Attrs: append([]Attr{}, v.Attrs...),
	}
	switch d := v.Data.(type) {
	case []float64:
		o.Data = append([]float64{}, d...)
	case []int32:
		o.Data = append([]int32{}, d...)
	case []int16:
		o.Data = append([]int16{}, d...)
	case []uint8:
		o.Data = append([]uint8{}, d...)
	}
	return o
}

func getAttr(attrs []Attr, name string) interface{} {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

func setAttr(attrs []Attr, name string, value interface{}) []Attr {
	for i, a := range attrs {
		if a.Name == name {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, Attr{Name: name, Value: value})
}

// Dataset is an in-memory representation of a NetCDF classic file.
type Dataset struct {
	Dims  []Dim
	Vars  []*Variable
	Attrs []Attr
}

// Dim returns the named dimension and whether it exists.
func (d *Dataset) Dim(name string) (Dim, bool) {
	for _, dd := range d.Dims {
		if dd.Name == name {
			return dd, true
		}
	}
	return Dim{}, false
}

// HasDim returns whether the dataset has the named dimension.
func (d *Dataset) HasDim(name string) bool {
	_, ok := d.Dim(name)
	return ok
}

// RecordDim returns the unlimited dimension and whether there is one.
func (d *Dataset) RecordDim() (Dim, bool) {
	for _, dd := range d.Dims {
		if dd.Unlimited {
			return dd, true
		}
	}
	return Dim{}, false
}

// AddDim adds a dimension, or updates the length of an existing
// dimension with the same name.
func (d *Dataset) AddDim(name string, length int, unlimited bool) {
	for i, dd := range d.Dims {
		if dd.Name == name {
			d.Dims[i].Len = length
			d.Dims[i].Unlimited = unlimited
			return
		}
	}
	d.Dims = append(d.Dims, Dim{Name: name, Len: length, Unlimited: unlimited})
}

// Var returns the named variable, or nil if it does not exist.
func (d *Dataset) Var(name string) *Variable {
	for _, v := range d.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// AddVar adds v to the dataset, replacing any variable with the same name.
func (d *Dataset) AddVar(v *Variable) {
	for i, vv := range d.Vars {
		if vv.Name == v.Name {
			d.Vars[i] = v
			return
		}
	}
	d.Vars = append(d.Vars, v)
}

// RemoveVar removes the named variable if it exists.
func (d *Dataset) RemoveVar(name string) {
	for i, v := range d.Vars {
		if v.Name == name {
			d.Vars = append(d.Vars[:i], d.Vars[i+1:]...)
			return
		}
	}
}

// Attr returns the value of the named global attribute, or nil.
func (d *Dataset) Attr(name string) interface{} {
	return getAttr(d.Attrs, name)
}

// SetAttr sets the named global attribute.
func (d *Dataset) SetAttr(name string, value interface{}) {
	d.Attrs = setAttr(d.Attrs, name, value)
}

// Shape returns the dimension lengths of the named variable.
func (d *Dataset) Shape(v *Variable) ([]int, error) {
	shape := make([]int, len(v.Dims))
	for i, name := range v.Dims {
		dim, ok := d.Dim(name)
		if !ok {
			return nil, fmt.Errorf("seregrid: variable %s has undefined dimension %s", v.Name, name)
		}
		shape[i] = dim.Len
	}
	return shape, nil
}

// IsRecord returns whether v is a record variable, i.e., its
// first dimension is unlimited.
func (d *Dataset) IsRecord(v *Variable) bool {
	if len(v.Dims) == 0 {
		return false
	}
	dim, ok := d.Dim(v.Dims[0])
	return ok && dim.Unlimited
}

// Check verifies that every variable's data length matches its dimensions.
func (d *Dataset) Check() error {
	for _, v := range d.Vars {
		shape, err := d.Shape(v)
		if err != nil {
			return err
		}
		n := 1
		for _, l := range shape {
			n *= l
		}
		if v.Len() != n {
			return fmt.Errorf("seregrid: variable %s has %d values but its dimensions %v require %d",
				v.Name, v.Len(), v.Dims, n)
		}
	}
	return nil
}

// ReadDataset reads the NetCDF classic or 64-bit offset file at path.
// If include is not empty, only the named variables are read; names that
// are not in the file are ignored.
func ReadDataset(path string, include ...string) (*Dataset, error) {
	if len(include) == 0 {
		return ReadDatasetFunc(path, func(string, bool) bool { return true })
	}
	want := make(map[string]bool)
	for _, v := range include {
		want[v] = true
	}
	return ReadDatasetFunc(path, func(name string, _ bool) bool { return want[name] })
}

// ReadDatasetFunc reads the header of the NetCDF file at path and the
// variables for which keep returns true. keep is called with the name of
// each variable and whether it is a record variable.
func ReadDatasetFunc(path string, keep func(name string, record bool) bool) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seregrid: opening %s: %v", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("seregrid: opening %s: %v", path, err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("seregrid: reading %s: %v", path, err)
	}
	ds := readHeader(nc, fi.Size())
	for _, name := range nc.Header.Variables() {
		if !keep(name, nc.Header.IsRecordVariable(name)) {
			continue
		}
		v, err := readVar(nc, ds, name)
		if err != nil {
			return nil, fmt.Errorf("seregrid: reading %s from %s: %v", name, path, err)
		}
		ds.Vars = append(ds.Vars, v)
	}
	return ds, nil
}

// VariableNames returns the names of the variables in the NetCDF file
// at path without reading their data.
func VariableNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seregrid: opening %s: %v", path, err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("seregrid: reading %s: %v", path, err)
	}
	return nc.Header.Variables(), nil
}

func readHeader(nc *cdf.File, fsize int64) *Dataset {
	ds := new(Dataset)
	nrec := int(nc.Header.NumRecs(fsize))
	names := nc.Header.Dimensions("")
	lengths := nc.Header.Lengths("")
	for i, name := range names {
		if lengths[i] == 0 {
			ds.Dims = append(ds.Dims, Dim{Name: name, Len: nrec, Unlimited: true})
		} else {
			ds.Dims = append(ds.Dims, Dim{Name: name, Len: lengths[i]})
		}
	}
	for _, a := range nc.Header.Attributes("") {
		ds.Attrs = append(ds.Attrs, Attr{Name: a, Value: nc.Header.GetAttribute("", a)})
	}
	return ds
}

func ncType(nc *cdf.File, v string) (Type, error) {
	switch nc.Header.ZeroValue(v, 1).(type) {
	case []uint8:
		return Byte, nil
	case string:
		return Char, nil
	case []int16:
		return Short, nil
	case []int32:
		return Int, nil
	case []float32:
		return Float, nil
	case []float64:
		return Double, nil
	}
	return 0, fmt.Errorf("unsupported data type")
}

func readVar(nc *cdf.File, ds *Dataset, name string) (*Variable, error) {
	typ, err := ncType(nc, name)
	if err != nil {
		return nil, err
	}
	v := &Variable{
		Name: name,
		Dims: nc.Header.Dimensions(name),
		Type: typ,
	}
	for _, a := range nc.Header.Attributes(name) {
		v.Attrs = append(v.Attrs, Attr{Name: a, Value: nc.Header.GetAttribute(name, a)})
	}
	shape, err := ds.Shape(v)
	if err != nil {
		return nil, err
	}
	n := 1
	for _, l := range shape {
		n *= l
	}

	var raw interface{}
	if nc.Header.IsRecordVariable(name) {
		nrec := shape[0]
		perRec := n
		if nrec > 0 {
			perRec = n / nrec
		}
		raw = zero(typ, n)
		for r := 0; r < nrec; r++ {
			start, end := make([]int, len(shape)), make([]int, len(shape))
			start[0], end[0] = r, r+1
			rr := nc.Reader(name, start, end)
			buf := zero(typ, perRec)
			if _, err := rr.Read(buf); err != nil {
				return nil, fmt.Errorf("record %d: %v", r, err)
			}
			copySlice(raw, buf, r*perRec)
		}
	} else {
		raw = zero(typ, n)
		if n > 0 {
			if _, err := nc.Reader(name, nil, nil).Read(raw); err != nil {
				return nil, err
			}
		}
	}

	switch d := raw.(type) {
	case []float32:
		o := make([]float64, len(d))
		for i, x := range d {
			o[i] = float64(x)
		}
		v.Data = o
	default:
		v.Data = d
	}
	if typ.IsFloat() {
		maskFill(v)
	}
	return v, nil
}

// zero returns a slice suitable for reading n values of type t.
func zero(t Type, n int) interface{} {
	switch t {
	case Byte, Char:
		return make([]uint8, n)
	case Short:
		return make([]int16, n)
	case Int:
		return make([]int32, n)
	case Float:
		return make([]float32, n)
	case Double:
		return make([]float64, n)
	}
	panic("invalid type")
}

func copySlice(dst, src interface{}, offset int) {
	switch d := dst.(type) {
	case []uint8:
		copy(d[offset:], src.([]uint8))
	case []int16:
		copy(d[offset:], src.([]int16))
	case []int32:
		copy(d[offset:], src.([]int32))
	case []float32:
		copy(d[offset:], src.([]float32))
	case []float64:
		copy(d[offset:], src.([]float64))
	}
}

// fillValue returns the first value of a numeric attribute.
func fillValue(a interface{}) (float64, bool) {
	switch x := a.(type) {
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []int32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case []int16:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

// maskFill replaces _FillValue and missing_value entries with NaN.
func maskFill(v *Variable) {
	data := v.Data.([]float64)
	for _, attr := range []string{"_FillValue", "missing_value"} {
		fv, ok := fillValue(v.Attr(attr))
		if !ok {
			continue
		}
		if v.Type == Float {
			// Compare at the precision the value was stored with.
			fv = float64(float32(fv))
		}
		for i, d := range data {
			if d == fv {
				data[i] = math.NaN()
			}
		}
	}
}

// DefaultFillValue is written in place of NaN for floating point
// variables that have no _FillValue attribute.
const DefaultFillValue = 1.0e36

// Write writes the dataset to a new NetCDF classic file at path.
// NaN values in floating point variables are written as the variable's
// _FillValue, which is added when missing.
func (d *Dataset) Write(path string) error {
	if err := d.Check(); err != nil {
		return err
	}
	names := make([]string, len(d.Dims))
	lengths := make([]int, len(d.Dims))
	for i, dim := range d.Dims {
		names[i] = dim.Name
		if dim.Unlimited {
			lengths[i] = 0
		} else {
			lengths[i] = dim.Len
		}
	}
	h := cdf.NewHeader(names, lengths)
	for _, a := range d.Attrs {
		h.AddAttribute("", a.Name, a.Value)
	}
	for _, v := range d.Vars {
		if v.Type == Char {
			// The NetCDF type is chosen from the dynamic type of the value.
			h.AddVariable(v.Name, v.Dims, "")
		} else {
			h.AddVariable(v.Name, v.Dims, zero(v.Type, 1))
		}
		hasFill := false
		for _, a := range v.Attrs {
			if a.Name == "_FillValue" {
				hasFill = true
				a.Value = fillAttr(v.Type, a.Value)
			}
			h.AddAttribute(v.Name, a.Name, a.Value)
		}
		if v.Type.IsFloat() && !hasFill && hasNaN(v.Data.([]float64)) {
			h.AddAttribute(v.Name, "_FillValue", fillAttr(v.Type, []float64{DefaultFillValue}))
		}
	}
	h.Define()

	// The file is written next to path and renamed into place, so a failed
	// write never leaves a partial file at path.
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("seregrid: creating %s: %v", path, err)
	}
	tmp := f.Name()
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("seregrid: creating %s: %v", path, err)
	}
	if err := writeFile(f, h, d); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("seregrid: writing %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("seregrid: writing %s: %v", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("seregrid: writing %s: %v", path, err)
	}
	return nil
}

// writeFile writes the header h and the data of d to f.
func writeFile(f *os.File, h *cdf.Header, d *Dataset) error {
	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("header: %v", err)
	}
	for _, v := range d.Vars {
		if err := writeVar(nc, d, v); err != nil {
			return fmt.Errorf("variable %s: %v", v.Name, err)
		}
	}
	return cdf.UpdateNumRecs(f)
}

func hasNaN(data []float64) bool {
	for _, x := range data {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// fillAttr converts a fill value attribute to the type of the variable,
// as NetCDF requires.
func fillAttr(t Type, a interface{}) interface{} {
	fv, ok := fillValue(a)
	if !ok {
		return a
	}
	switch t {
	case Float:
		return []float32{float32(fv)}
	case Double:
		return []float64{fv}
	case Int:
		return []int32{int32(fv)}
	case Short:
		return []int16{int16(fv)}
	}
	return a
}

// storage converts the in-memory data of v to the slice type that
// is written to disk.
func storage(v *Variable) interface{} {
	if !v.Type.IsFloat() {
		return v.Data
	}
	data := v.Data.([]float64)
	fv := DefaultFillValue
	if f, ok := fillValue(v.Attr("_FillValue")); ok {
		fv = f
	}
	if v.Type == Float {
		o := make([]float32, len(data))
		for i, x := range data {
			if math.IsNaN(x) {
				o[i] = float32(fv)
			} else {
				o[i] = float32(x)
			}
		}
		return o
	}
	o := make([]float64, len(data))
	for i, x := range data {
		if math.IsNaN(x) {
			o[i] = fv
		} else {
			o[i] = x
		}
	}
	return o
}

func writeVar(nc *cdf.File, d *Dataset, v *Variable) error {
	shape, err := d.Shape(v)
	if err != nil {
		return err
	}
	data := storage(v)
	if v.Len() == 0 {
		return nil
	}
	if !d.IsRecord(v) {
		w := nc.Writer(v.Name, nil, nil)
		return writeAll(w, data, v.Len())
	}
	nrec := shape[0]
	perRec := v.Len() / nrec
	for r := 0; r < nrec; r++ {
		start := make([]int, len(shape))
		start[0] = r
		w := nc.Writer(v.Name, start, nil)
		if err := writeAll(w, sliceOf(data, r*perRec, (r+1)*perRec), perRec); err != nil {
			return fmt.Errorf("record %d: %v", r, err)
		}
	}
	return nil
}

// writeAll writes n values of data with w. The writer returns io.EOF
// when it reaches the end of the variable, which is success when all n
// values were written.
func writeAll(w cdf.Writer, data interface{}, n int) error {
	m, err := w.Write(data)
	if err == io.EOF && m == n {
		return nil
	}
	if err != nil {
		return err
	}
	if m != n {
		return fmt.Errorf("wrote %d of %d values", m, n)
	}
	return nil
}

func sliceOf(data interface{}, begin, end int) interface{} {
	switch d := data.(type) {
	case []uint8:
		return d[begin:end]
	case []int16:
		return d[begin:end]
	case []int32:
		return d[begin:end]
	case []float32:
		return d[begin:end]
	case []float64:
		return d[begin:end]
	}
	panic("invalid type")
}
