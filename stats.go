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

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/sparse"
)

// Comparison holds summary statistics of one field against a reference
// field over the cells where both are finite.
type Comparison struct {
	N int

	// MB and ME are the mean bias and mean absolute error.
	MB, ME float64

	// MFB and MFE are the mean fractional bias and error.
	MFB, MFE float64

	Slope, Intercept, R2 float64
}

// Compare returns statistics of b against the reference a.
func Compare(a, b *sparse.DenseArray) (Comparison, error) {
	if len(a.Elements) != len(b.Elements) {
		return Comparison{}, fmt.Errorf("seregrid: comparing fields of length %d and %d", len(a.Elements), len(b.Elements))
	}
	var x, y []float64
	for i, v := range a.Elements {
		w := b.Elements[i]
		if math.IsNaN(v) || math.IsNaN(w) || math.IsInf(v, 0) || math.IsInf(w, 0) {
			continue
		}
		x = append(x, v)
		y = append(y, w)
	}
	c := Comparison{N: len(x)}
	if c.N == 0 {
		return c, fmt.Errorf("seregrid: no cells where both fields are finite")
	}
	var nfrac int
	for i, v := range x {
		d := y[i] - v
		c.MB += d
		c.ME += math.Abs(d)
		if s := v + y[i]; s != 0 {
			c.MFB += 2 * d / s
			c.MFE += 2 * math.Abs(d) / math.Abs(s)
			nfrac++
		}
	}
	c.MB /= float64(c.N)
	c.ME /= float64(c.N)
	if nfrac > 0 {
		c.MFB /= float64(nfrac)
		c.MFE /= float64(nfrac)
	}
	if c.N > 1 {
		c.Slope, c.Intercept, c.R2, _, _, _ = stats.LinearRegression(x, y)
	}
	return c, nil
}
