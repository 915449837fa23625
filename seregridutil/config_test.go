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
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/seregrid"
)

func TestRegridConfigFrom(t *testing.T) {
	in := t.TempDir()
	os.Setenv("SEREGRID_TEST_DIR", in)
	defer os.Unsetenv("SEREGRID_TEST_DIR")

	cfg := viper.New()
	cfg.Set("inputdir", "${SEREGRID_TEST_DIR}")
	cfg.Set("outputdir", filepath.Join(in, "out"))
	cfg.Set("realm", "atm")
	cfg.Set("weights", "map.nc")
	cfg.Set("pattern", "*.h0a.*")
	cfg.Set("workers", "3")
	cfg.Set("skipnan", true)
	c, err := RegridConfigFrom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.InputDir != in || c.Realm != seregrid.Atm || c.Weights != "map.nc" || c.Workers != 3 || !c.SkipNaN || c.LandFrac {
		t.Errorf("config %+v", c)
	}

	cfg.Set("weights", "")
	cfg.Set("resolution", "ne30pg3")
	if c, err = RegridConfigFrom(cfg); err != nil || c.Weights != seregrid.DefaultCatalog["ne30pg3"] {
		t.Errorf("catalog weights: %v, %v", c, err)
	}
}

func TestRegridConfigFromErrors(t *testing.T) {
	in := t.TempDir()
	notDir := filepath.Join(in, "file")
	if err := os.WriteFile(notDir, nil, 0644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{"no inputdir", map[string]interface{}{"outputdir": "out", "weights": "w.nc"}},
		{"missing inputdir", map[string]interface{}{"inputdir": filepath.Join(in, "missing"), "outputdir": "out", "weights": "w.nc"}},
		{"inputdir is a file", map[string]interface{}{"inputdir": notDir, "outputdir": "out", "weights": "w.nc"}},
		{"no outputdir", map[string]interface{}{"inputdir": in, "weights": "w.nc"}},
		{"bad realm", map[string]interface{}{"inputdir": in, "outputdir": "out", "weights": "w.nc", "realm": "ocn"}},
		{"no weights", map[string]interface{}{"inputdir": in, "outputdir": "out"}},
		{"bad resolution", map[string]interface{}{"inputdir": in, "outputdir": "out", "resolution": "ne1"}},
		{"bad workers", map[string]interface{}{"inputdir": in, "outputdir": "out", "weights": "w.nc", "workers": "many"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := viper.New()
			cfg.Set("realm", "lnd")
			for k, v := range test.set {
				cfg.Set(k, v)
			}
			if _, err := RegridConfigFrom(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTimeSeriesConfigFrom(t *testing.T) {
	cfg := viper.New()
	cfg.Set("inputdir", "a, b,,c")
	cfg.Set("outputdir", "ts")
	cfg.Set("realm", "lnd")
	cfg.Set("overwrite_timeseries", true)
	c, err := TimeSeriesConfigFrom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.InputDirs, []string{"a", "b", "c"}) || !c.Overwrite {
		t.Errorf("config %+v", c)
	}
	if !reflect.DeepEqual(c.Patterns, []string{"*clm2.h0*"}) {
		t.Errorf("patterns %v", c.Patterns)
	}
	cfg.Set("inputdir", "")
	if _, err := TimeSeriesConfigFrom(cfg); err == nil {
		t.Error("expected an error for a missing input directory")
	}
}

func TestPlotOptions(t *testing.T) {
	tests := []struct {
		name             string
		vmin, vmax       string
		logscale         bool
		wantErr          bool
		wantMin, wantMax float64
		hasRange         bool
	}{
		{name: "unset"},
		{name: "only vmin", vmin: "1"},
		{name: "range", vmin: "-1", vmax: "2.5", hasRange: true, wantMin: -1, wantMax: 2.5},
		{name: "reversed", vmin: "3", vmax: "2", wantErr: true},
		{name: "not a number", vmin: "a", vmax: "2", wantErr: true},
		{name: "log zero", vmin: "0", vmax: "2", logscale: true, wantErr: true},
		{name: "log", vmin: "0.1", vmax: "10", logscale: true, hasRange: true, wantMin: 0.1, wantMax: 10},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := viper.New()
			cfg.Set("vmin", test.vmin)
			cfg.Set("vmax", test.vmax)
			cfg.Set("logscale", test.logscale)
			o, err := plotOptions(cfg)
			if (err != nil) != test.wantErr {
				t.Fatalf("error: %v", err)
			}
			if test.wantErr {
				return
			}
			if (o.Min != nil) != test.hasRange || (o.Max != nil) != test.hasRange {
				t.Fatalf("range %v %v", o.Min, o.Max)
			}
			if test.hasRange && (*o.Min != test.wantMin || *o.Max != test.wantMax) {
				t.Errorf("range (%g, %g)", *o.Min, *o.Max)
			}
			if o.LogScale != test.logscale {
				t.Error("log scale not set")
			}
		})
	}
}
