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
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/seregrid"
	"github.com/spatialmodel/seregrid/mapplot"
	"github.com/spf13/cast"
)

// requireString returns the value of the named option with environment
// variables expanded, or an error if it is not set.
func requireString(cfg *viper.Viper, name string) (string, error) {
	v := os.ExpandEnv(cfg.GetString(name))
	if v == "" {
		return "", fmt.Errorf("seregridutil: the --%s option is required", name)
	}
	return v, nil
}

// checkInputDir makes sure the input directory exists.
func checkInputDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("seregridutil: input directory: %v", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("seregridutil: input directory %s is not a directory", dir)
	}
	return nil
}

// expandStringSlice expands the environment variables in a slice of
// strings, splitting any comma-separated entries.
func expandStringSlice(s []string) []string {
	var o []string
	for _, v := range s {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(os.ExpandEnv(p)); p != "" {
				o = append(o, p)
			}
		}
	}
	return o
}

// weightFile returns the weight file location given by the weights
// option, or else the catalog entry for the resolution option.
func weightFile(cfg *viper.Viper) (string, error) {
	if w := os.ExpandEnv(cfg.GetString("weights")); w != "" {
		return w, nil
	}
	res := cfg.GetString("resolution")
	if res == "" {
		return "", fmt.Errorf("seregridutil: one of the --weights or --resolution options is required")
	}
	cat, err := seregrid.LoadCatalog(os.ExpandEnv(cfg.GetString("catalog")))
	if err != nil {
		return "", err
	}
	return cat.WeightFile(res)
}

// RegridConfigFrom reads the settings for a regridding run from cfg.
func RegridConfigFrom(cfg *viper.Viper) (*RegridConfig, error) {
	in, err := requireString(cfg, "inputdir")
	if err != nil {
		return nil, err
	}
	if err := checkInputDir(in); err != nil {
		return nil, err
	}
	out, err := requireString(cfg, "outputdir")
	if err != nil {
		return nil, err
	}
	realm, err := seregrid.ParseRealm(cfg.GetString("realm"))
	if err != nil {
		return nil, err
	}
	w, err := weightFile(cfg)
	if err != nil {
		return nil, err
	}
	workers, err := cast.ToIntE(cfg.Get("workers"))
	if err != nil {
		return nil, fmt.Errorf("seregridutil: reading 'workers': %v", err)
	}
	return &RegridConfig{
		InputDir:    in,
		OutputDir:   out,
		Realm:       realm,
		Weights:     w,
		Pattern:     cfg.GetString("pattern"),
		Workers:     workers,
		Overwrite:   cfg.GetBool("overwrite"),
		SkipNaN:     cfg.GetBool("skipnan"),
		LandFrac:    cfg.GetBool("landfrac_normalize"),
		TimeSeries:  cfg.GetBool("time_series"),
		MetricsFile: os.ExpandEnv(cfg.GetString("metrics_file")),
		Log:         logrus.StandardLogger(),
	}, nil
}

// TimeSeriesConfigFrom reads the settings for time series generation
// from cfg.
func TimeSeriesConfigFrom(cfg *viper.Viper) (*seregrid.TimeSeriesConfig, error) {
	dirs := expandStringSlice(cast.ToStringSlice(cfg.Get("inputdir")))
	if len(dirs) == 0 {
		return nil, fmt.Errorf("seregridutil: the --inputdir option is required")
	}
	out, err := requireString(cfg, "outputdir")
	if err != nil {
		return nil, err
	}
	realm, err := seregrid.ParseRealm(cfg.GetString("realm"))
	if err != nil {
		return nil, err
	}
	return &seregrid.TimeSeriesConfig{
		InputDirs: dirs,
		OutputDir: out,
		Patterns:  realm.IncludePatterns(),
		Overwrite: cfg.GetBool("overwrite_timeseries"),
		Workers:   cfg.GetInt("workers"),
		Frequency: realm.Frequency(),
		Log:       logrus.StandardLogger(),
	}, nil
}

// plotOptions reads the map options from cfg. The scale range is only
// fixed when both vmin and vmax are set.
func plotOptions(cfg *viper.Viper) (mapplot.Options, error) {
	o := mapplot.Options{
		LogScale: cfg.GetBool("logscale"),
		Label:    cfg.GetString("label"),
		Log:      logrus.StandardLogger(),
	}
	vmin, vmax := cfg.GetString("vmin"), cfg.GetString("vmax")
	if vmin != "" && vmax != "" {
		lo, err := cast.ToFloat64E(vmin)
		if err != nil {
			return o, fmt.Errorf("seregridutil: reading 'vmin': %v", err)
		}
		hi, err := cast.ToFloat64E(vmax)
		if err != nil {
			return o, fmt.Errorf("seregridutil: reading 'vmax': %v", err)
		}
		if hi <= lo {
			return o, fmt.Errorf("seregridutil: vmax (%g) must be greater than vmin (%g)", hi, lo)
		}
		if o.LogScale && lo <= 0 {
			return o, fmt.Errorf("seregridutil: vmin must be greater than zero for a logarithmic scale")
		}
		o.Min, o.Max = mapplot.Float(lo), mapplot.Float(hi)
	}
	return o, nil
}
