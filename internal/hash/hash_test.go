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

package hash

import (
	"math"
	"testing"
)

type request struct {
	Path    string
	SkipNaN bool
}

type private struct{ v float64 }

func TestHash(t *testing.T) {
	a := Hash(request{Path: "w.nc"})
	if a != Hash(request{Path: "w.nc"}) {
		t.Error("equal requests should have equal keys")
	}
	if a == Hash(request{Path: "w.nc", SkipNaN: true}) {
		t.Error("different requests should have different keys")
	}
	if Hash("a", "b") == Hash("b", "a") {
		t.Error("key should depend on order")
	}
	// gob cannot encode these.
	if Hash(private{v: math.NaN()}) != Hash(private{v: math.NaN()}) {
		t.Error("spew fallback should be deterministic")
	}
	if len(a) != 32 {
		t.Errorf("key length %d", len(a))
	}
}
