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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/seregrid"
	"golang.org/x/sync/errgroup"
)

// RegridConfig holds the settings for a batch regridding run.
type RegridConfig struct {
	InputDir, OutputDir string
	Realm               seregrid.Realm

	// Weights is the location of the weight file. It may be a local
	// path, an http(s) URL or a gs://, s3:// or file:// blob.
	Weights string

	// Pattern selects the input files within InputDir.
	Pattern string

	Workers int

	Overwrite bool
	SkipNaN   bool
	LandFrac  bool

	// TimeSeries specifies whether time series files are created from
	// the regridded files, in OutputDir/timeseries.
	TimeSeries bool

	// MetricsFile, if set, is where run metrics are written.
	MetricsFile string

	Log   logrus.FieldLogger
	Clock clockwork.Clock
}

// OutputName returns the name of the regridded version of file.
func OutputName(file string) string {
	return strings.TrimSuffix(filepath.Base(file), ".nc") + seregrid.RegriddedSuffix + ".nc"
}

// Regrid regrids every file in cfg.InputDir matching cfg.Pattern and
// returns the paths of the files written. Errors for individual files
// are collected and returned together after all files are processed.
func Regrid(ctx context.Context, cfg *RegridConfig) ([]string, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	metrics := seregrid.NewMetrics(cfg.Clock)
	done := metrics.Time("run")

	files, err := filepath.Glob(filepath.Join(cfg.InputDir, cfg.Pattern))
	if err != nil {
		return nil, fmt.Errorf("seregridutil: searching for input files: %v", err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		log.Warnf("No input files to process in %s matching %s", cfg.InputDir, cfg.Pattern)
		return nil, nil
	}
	if err := os.MkdirAll(cfg.OutputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("seregridutil: creating output directory: %v", err)
	}

	stopDownload := metrics.Time("download")
	weights, cleanup, err := maybeDownload(ctx, cfg.Weights, log)
	stopDownload()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	cache := newRegridderCache(workers(cfg.Workers), log)
	req := regridderRequest{Weights: weights, SkipNaN: cfg.SkipNaN, LandFrac: cfg.LandFrac}

	var (
		mu      sync.Mutex
		errs    *multierror.Error
		written []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(cfg.Workers))
	for _, f := range files {
		f := f
		g.Go(func() error {
			out, outcome, err := regridFile(gctx, cache, req, cfg, f, metrics, log)
			metrics.File(outcome)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %v", f, err))
				return nil
			}
			if out != "" {
				written = append(written, out)
			}
			return nil
		})
	}
	g.Wait()
	sort.Strings(written)
	log.WithFields(logrus.Fields{"files": len(files), "written": len(written)}).Info("Regridding complete")

	if cfg.TimeSeries {
		stop := metrics.Time("timeseries")
		_, err := seregrid.TimeSeries(&seregrid.TimeSeriesConfig{
			InputDirs: []string{cfg.OutputDir},
			OutputDir: filepath.Join(cfg.OutputDir, "timeseries"),
			Patterns:  cfg.Realm.IncludePatterns(),
			Overwrite: cfg.Overwrite,
			Workers:   cfg.Workers,
			Frequency: cfg.Realm.Frequency(),
			Log:       log,
		})
		stop()
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	done()
	if cfg.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.MetricsFile); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("seregridutil: writing metrics: %v", err))
		}
	}
	return written, errs.ErrorOrNil()
}

func workers(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// regridFile regrids one file and returns the output path and the
// outcome to record.
func regridFile(ctx context.Context, cache *regridderCache, req regridderRequest, cfg *RegridConfig, f string, m *seregrid.Metrics, log logrus.FieldLogger) (string, string, error) {
	out := filepath.Join(cfg.OutputDir, OutputName(f))
	flog := log.WithField("file", f)
	if _, err := os.Stat(out); err == nil && !cfg.Overwrite {
		flog.Debug("output exists; skipping")
		return "", seregrid.FileSkipped, nil
	}
	if err := ctx.Err(); err != nil {
		return "", seregrid.FileFailed, err
	}
	stop := m.Time("read")
	ds, err := seregrid.ReadDataset(f)
	stop()
	if err != nil {
		return "", seregrid.FileFailed, err
	}
	outcome := seregrid.FilePassthrough
	if !seregrid.IsRegular(ds) {
		r, err := cache.Regridder(ctx, req)
		if err != nil {
			return "", seregrid.FileFailed, err
		}
		dim := cfg.Realm.ColumnDim()
		nvars := 0
		for _, v := range ds.Vars {
			if r.Regrids(v, dim) {
				nvars++
			}
		}
		stop := m.Time("regrid")
		ds, err = r.RegridDataset(ds, dim)
		stop()
		if err != nil {
			return "", seregrid.FileFailed, err
		}
		outcome = seregrid.FileRegridded
		m.AddVariables(nvars)
	} else {
		flog.Info("File is already on a regular grid; copying")
	}
	stop = m.Time("write")
	err = ds.Write(out)
	stop()
	if err != nil {
		return "", seregrid.FileFailed, err
	}
	flog.WithField("output", out).Info("Wrote regridded file")
	return out, outcome, nil
}
