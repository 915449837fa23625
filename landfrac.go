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

// landFracNormalizer regrids land fields weighted by the land fraction
// of each source cell, so that values in coastal destination cells
// represent the land portion only:
//
//	out = R(v * landfrac) / R(landfrac)
//
// Source cells where v is missing contribute to neither term. Destination
// cells with no land contribution are missing.
type landFracNormalizer struct {
	r        *Regridder
	landfrac []float64

	num, den, mask []float64
}

func (n *landFracNormalizer) apply(dst, src []float64) error {
	w := n.r.Weights
	if n.num == nil {
		n.num = make([]float64, w.NSrc)
		n.mask = make([]float64, w.NSrc)
		n.den = make([]float64, w.NDst)
	}
	for i, v := range src {
		lf := n.landfrac[i]
		if math.IsNaN(v) || math.IsNaN(lf) {
			n.num[i], n.mask[i] = 0, 0
			continue
		}
		n.num[i], n.mask[i] = v*lf, lf
	}
	if err := w.Apply(dst, n.num); err != nil {
		return err
	}
	if err := w.Apply(n.den, n.mask); err != nil {
		return err
	}
	for i, d := range n.den {
		dst[i] = nanIfZero(dst[i], d)
	}
	return nil
}

// NormalizeByLandFrac regrids a single land field using land fraction
// weighting. It is exported for callers that regrid fields outside of a
// dataset.
func (r *Regridder) NormalizeByLandFrac(src, landfrac []float64) ([]float64, error) {
	if len(landfrac) != len(src) {
		return nil, fmt.Errorf("seregrid: land fraction has %d values but field has %d", len(landfrac), len(src))
	}
	n := &landFracNormalizer{r: r, landfrac: landfrac}
	dst := make([]float64, r.Weights.NDst)
	if err := n.apply(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}
