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
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// Catalog maps spectral-element grid resolutions to the locations of
// remap weight files onto regular grids.
type Catalog map[string]string

// DefaultCatalog holds the weight files used when no catalog file is given.
var DefaultCatalog = Catalog{
	"ne16pg3": "/datalake/NS9560K/diagnostics/land_xesmf_diag_data/map_ne16pg3_to_1.9x2.5_nomask_scripgrids_c250425.nc",
	"ne30pg3": "/datalake/NS9560K/diagnostics/land_xesmf_diag_data/map_ne30pg3_to_0.9x1.25_nomask_scripgrids_c250425.nc",
}

// catalogFile is the layout of a TOML catalog file:
//
//	[Weights]
//	ne16pg3 = "/path/to/map_ne16pg3_to_1.9x2.5.nc"
type catalogFile struct {
	Weights map[string]string
}

// ReadCatalog reads a TOML catalog. Entries in r are added to, or
// replace, the entries of DefaultCatalog.
func ReadCatalog(r io.Reader) (Catalog, error) {
	var f catalogFile
	if _, err := toml.DecodeReader(r, &f); err != nil {
		return nil, fmt.Errorf("seregrid: reading weight catalog: %v", err)
	}
	c := make(Catalog)
	for k, v := range DefaultCatalog {
		c[k] = v
	}
	for k, v := range f.Weights {
		c[k] = os.ExpandEnv(v)
	}
	return c, nil
}

// LoadCatalog reads the TOML catalog file at path. An empty path
// returns DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seregrid: opening weight catalog: %v", err)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// Resolutions returns the resolutions in the catalog in sorted order.
func (c Catalog) Resolutions() []string {
	o := make([]string, 0, len(c))
	for k := range c {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// WeightFile returns the weight file for the given resolution.
func (c Catalog) WeightFile(resolution string) (string, error) {
	w, ok := c[resolution]
	if !ok {
		return "", fmt.Errorf("seregrid: unsupported resolution '%s'; valid options are %v", resolution, c.Resolutions())
	}
	return w, nil
}
