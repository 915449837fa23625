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

// Package seregridutil contains the command-line interface to SERegrid.
package seregridutil

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/seregrid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "debug",
			usage: `
              debug turns on debug-level logging.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "inputdir",
			usage: `
              inputdir is the directory holding the history files to process.
              For timeseries, it may be a comma-separated list of directories.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), timeseriesCmd.Flags()},
		},
		{
			name: "outputdir",
			usage: `
              outputdir is the directory output files are written to. It is
              created if it does not exist.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), timeseriesCmd.Flags()},
		},
		{
			name: "realm",
			usage: `
              realm is the model component of the history files: atm or lnd.
              It determines the spectral-element column dimension (ncol or
              lndgrid) and the history files used for time series.`,
			shorthand:  "r",
			defaultVal: "lnd",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), timeseriesCmd.Flags()},
		},
		{
			name: "resolution",
			usage: `
              resolution is the spectral-element grid resolution of the
              input files, e.g. ne16pg3 or ne30pg3. It selects the weight
              file from the catalog.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "weights",
			usage: `
              weights is the location of an ESMF weight file. It overrides
              resolution. It may be a local path, an http(s) URL, or a
              gs://, s3:// or file:// location.`,
			shorthand:  "w",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "catalog",
			usage: `
              catalog is a TOML file mapping resolutions to weight files.
              Its [Weights] entries are added to the built-in catalog.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "pattern",
			usage: `
              pattern selects the files in inputdir to regrid.`,
			defaultVal: "*.nc",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of files or variables processed at
              the same time.`,
			shorthand:  "n",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags(), timeseriesCmd.Flags()},
		},
		{
			name: "overwrite",
			usage: `
              overwrite specifies whether existing regridded files are
              replaced.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "overwrite_timeseries",
			usage: `
              overwrite_timeseries specifies whether existing time series
              files are replaced.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{timeseriesCmd.Flags()},
		},
		{
			name: "skipnan",
			usage: `
              skipnan specifies whether missing source values are skipped
              and the remaining weights renormalized. By default missing
              values make the destination cell missing.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "landfrac_normalize",
			usage: `
              landfrac_normalize specifies whether land variables are
              weighted by the landfrac variable when regridded.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "time_series",
			usage: `
              time_series specifies whether time series files are created
              from the regridded files, in outputdir/timeseries.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "metrics_file",
			usage: `
              metrics_file, if set, is where run metrics are written in
              the Prometheus text format.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "file",
			usage: `
              file is the regridded NetCDF file to plot. For compare, it is
              the reference file.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "file2",
			usage: `
              file2 is the file compared to the reference file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{compareCmd.Flags()},
		},
		{
			name: "var",
			usage: `
              var is the name of the variable to plot.`,
			shorthand:  "v",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "figname",
			usage: `
              figname is the output figure path without the .png extension.
              The figure title is its base name.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "vmin",
			usage: `
              vmin is the lower limit of the color scale. It is only used
              if vmax is also set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "vmax",
			usage: `
              vmax is the upper limit of the color scale.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "logscale",
			usage: `
              logscale specifies a logarithmic color scale.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "label",
			usage: `
              label is the color scale label in the format "name [units]".
              By default it is made from the long_name and units attributes.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "panels",
			usage: `
              panels specifies whether each level of a variable with an
              extra dimension is plotted in its own panel.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
	}

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
		}
	}
	Cfg = newConfig()
}

// newConfig returns a configuration bound to the command line flags and
// to environment variables with the SEREGRID_ prefix.
func newConfig() *viper.Viper {
	cfg := viper.New()
	cfg.SetEnvPrefix("SEREGRID")
	cfg.AutomaticEnv()
	for _, option := range options {
		cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
	return cfg
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(regridCmd)
	Root.AddCommand(timeseriesCmd)
	Root.AddCommand(plotCmd)
	Root.AddCommand(compareCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("seregrid: problem reading configuration file: %v", err)
		}
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if Cfg.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "seregrid",
	Short: "Regrid spectral-element model output to regular grids.",
	Long: `seregrid regrids history files written on spectral-element grids by
atmosphere and land models to regular latitude-longitude grids using
precomputed ESMF weight files, creates per-variable time series, and plots
regridded fields. Use the subcommands specified below to access the
functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SEREGRID_var' where 'var'
is the name of the variable to be set. Many configuration variables are
additionally allowed to contain environment variables within them.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of SERegrid.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("SERegrid v%s\n", seregrid.Version)
	},
	DisableAutoGenTag: true,
}

var regridCmd = &cobra.Command{
	Use:   "regrid",
	Short: "Regrid history files.",
	Long: `regrid regrids every file in inputdir that matches pattern from its
spectral-element grid to the regular grid of the weight file, writing
<name>_regridded.nc files to outputdir. Files that are already on a regular
grid are copied unchanged. The weight file is given directly with --weights
or selected by --resolution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := RegridConfigFrom(Cfg)
		if err != nil {
			return err
		}
		_, err = Regrid(context.Background(), cfg)
		return err
	},
	DisableAutoGenTag: true,
}

var timeseriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Create per-variable time series files.",
	Long: `timeseries concatenates the monthly history files of the realm found in
inputdir along time and writes one file per time-varying variable to
outputdir, named <stream>.<variable>.<first>-<last>.nc.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := TimeSeriesConfigFrom(Cfg)
		if err != nil {
			return err
		}
		_, err = seregrid.TimeSeries(cfg)
		return err
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot a regridded variable.",
	Long: `plot draws a map of the time mean of a variable in a regridded file and
saves it to <figname>.png.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := requireString(Cfg, "file")
		if err != nil {
			return err
		}
		name, err := requireString(Cfg, "var")
		if err != nil {
			return err
		}
		o, err := plotOptions(Cfg)
		if err != nil {
			return err
		}
		return PlotVariable(file, name, figname(Cfg, name), Cfg.GetBool("panels"), o)
	},
	DisableAutoGenTag: true,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Plot the difference between two regridded files.",
	Long: `compare regrids the finer of two regular-grid files to the grid of the
coarser one and plots the difference of the time means of a variable
(file2 minus file).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireString(Cfg, "file")
		if err != nil {
			return err
		}
		b, err := requireString(Cfg, "file2")
		if err != nil {
			return err
		}
		name, err := requireString(Cfg, "var")
		if err != nil {
			return err
		}
		o, err := plotOptions(Cfg)
		if err != nil {
			return err
		}
		return Compare(a, b, name, figname(Cfg, name+"_diff"), o)
	},
	DisableAutoGenTag: true,
}

// figname returns the figname option, or def if it is not set.
func figname(cfg *viper.Viper, def string) string {
	if f := strings.TrimSuffix(os.ExpandEnv(cfg.GetString("figname")), ".png"); f != "" {
		return f
	}
	return def
}
