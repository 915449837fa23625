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

package mapplot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctessum/unit"
)

// Conversion is a linear change of units.
type Conversion struct {
	Scale, Offset float64
}

// Identity leaves values unchanged.
var Identity = Conversion{Scale: 1}

// Apply converts v.
func (c Conversion) Apply(v float64) float64 { return v*c.Scale + c.Offset }

var pressure = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -1, unit.TimeDim: -2}

// baseUnits are the unit symbols found in model history files.
var baseUnits = map[string]*unit.Unit{
	"m":   unit.New(1, unit.Meter),
	"cm":  unit.New(0.01, unit.Meter),
	"mm":  unit.New(0.001, unit.Meter),
	"km":  unit.New(1000, unit.Meter),
	"kg":  unit.New(1, unit.Kilogram),
	"g":   unit.New(0.001, unit.Kilogram),
	"s":   unit.New(1, unit.Second),
	"sec": unit.New(1, unit.Second),
	"h":   unit.New(3600, unit.Second),
	"hr":  unit.New(3600, unit.Second),
	"day": unit.New(86400, unit.Second),
	"K":   unit.New(1, unit.Kelvin),
	"Pa":  unit.New(1, pressure),
	"hPa": unit.New(100, pressure),
	"W":   unit.New(1, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -3}),
	"J":   unit.New(1, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: 2, unit.TimeDim: -2}),
}

var unitToken = regexp.MustCompile(`^([A-Za-z]+)\^?(-?[0-9]+)?$`)

// ParseUnits parses unit strings such as "kg m-2 s-1", "kg/m2/s" or
// "W/m^2".
func ParseUnits(s string) (*unit.Unit, error) {
	parts := strings.Split(s, "/")
	var factors []*unit.Unit
	for i, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return nil, fmt.Errorf("mapplot: invalid units '%s'", s)
		}
		for _, f := range fields {
			m := unitToken.FindStringSubmatch(f)
			if m == nil {
				return nil, fmt.Errorf("mapplot: invalid unit '%s' in '%s'", f, s)
			}
			base, ok := baseUnits[m[1]]
			if !ok {
				return nil, fmt.Errorf("mapplot: unknown unit '%s' in '%s'", m[1], s)
			}
			exp := 1
			if m[2] != "" {
				exp, _ = strconv.Atoi(m[2])
			}
			if i > 0 {
				exp = -exp
			}
			factors = append(factors, power(base, exp))
		}
	}
	return unit.Mul(factors...), nil
}

func power(u *unit.Unit, exp int) *unit.Unit {
	o := unit.New(1, unit.Dimless)
	for i := 0; i < exp; i++ {
		o = unit.Mul(o, u)
	}
	for i := 0; i > exp; i-- {
		o = unit.Div(o, u)
	}
	return o
}

// splitLabel splits a label such as "Temperature [K]" into its name and
// units.
func splitLabel(label string) (name, units string, ok bool) {
	i, j := strings.LastIndex(label, "["), strings.LastIndex(label, "]")
	if i < 0 || j < i {
		return label, "", false
	}
	return strings.TrimSpace(label[:i]), strings.TrimSpace(label[i+1 : j]), true
}

// ConvertLabel returns the conversion from the units in label to the
// units used for display, along with the label in display units.
// Temperatures are shown in °C, water fluxes in mm/day and pressures in
// hPa. Other labels are returned unchanged with the Identity conversion.
func ConvertLabel(label string) (Conversion, string) {
	name, units, ok := splitLabel(label)
	if !ok {
		return Identity, label
	}
	u, err := ParseUnits(units)
	if err != nil {
		return Identity, label
	}
	d := u.Dimensions()
	var c Conversion
	var to string
	switch {
	case d.Matches(unit.Kelvin):
		c, to = Conversion{Scale: u.Value(), Offset: -273.15}, "°C"
	case d.Matches(unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2, unit.TimeDim: -1}):
		// 1 kg m-2 of water is 1 mm deep.
		c, to = Conversion{Scale: u.Value() * 86400}, "mm/day"
	case d.Matches(unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}):
		c, to = Conversion{Scale: u.Value() * 1000 * 86400}, "mm/day"
	case d.Matches(pressure):
		c, to = Conversion{Scale: u.Value() / 100}, "hPa"
	default:
		return Identity, label
	}
	return c, fmt.Sprintf("%s [%s]", name, to)
}
