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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Realm is a model component whose history files can be processed.
type Realm string

// These are the supported realms.
const (
	Atm Realm = "atm"
	Lnd Realm = "lnd"
)

// Realms lists the supported realms.
var Realms = []Realm{Atm, Lnd}

// ParseRealm checks that s names a supported realm.
func ParseRealm(s string) (Realm, error) {
	for _, r := range Realms {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("seregrid: invalid realm '%s'; valid options are %v", s, Realms)
}

// ColumnDim returns the name of the spectral-element column dimension
// in history files of the realm.
func (r Realm) ColumnDim() string {
	if r == Lnd {
		return LndColumnDim
	}
	return AtmColumnDim
}

// IncludePatterns returns the file name patterns of the history files
// that time series are created from.
func (r Realm) IncludePatterns() []string {
	if r == Lnd {
		return []string{"*clm2.h0*"}
	}
	return []string{"*cam.h0a*"}
}

// Frequency returns the output frequency of the history files matched
// by IncludePatterns.
func (r Realm) Frequency() string { return "mon" }

// timeVars are record variables that describe the time axis. They are
// written to every time series file rather than getting their own.
var timeVars = map[string]bool{
	"time": true, "time_bnds": true, "time_bounds": true, "date": true,
	"datesec": true, "mcdate": true, "mcsec": true, "mdcur": true,
	"mscur": true, "nstep": true, "ndcur": true, "nscur": true,
	"date_written": true, "time_written": true,
}

// TimeSeriesConfig holds the configuration for time series generation.
type TimeSeriesConfig struct {
	// InputDirs are the directories searched for history files.
	InputDirs []string

	// OutputDir is where time series files are written.
	OutputDir string

	// Patterns are the file name patterns of the history files.
	Patterns []string

	// Overwrite specifies whether existing time series files are replaced.
	Overwrite bool

	// Workers is the number of variables processed concurrently.
	Workers int

	// Frequency, if set, is recorded as the "frequency" global attribute
	// of every time series file.
	Frequency string

	// Log receives progress messages. If nil, the standard logger is used.
	Log logrus.FieldLogger
}

// HistoryStream is a sorted set of history files written by the same
// model component with the same history tag.
type HistoryStream struct {
	// Name is the common file name prefix, e.g. "case.cam.h0a".
	Name  string
	Files []string
}

// RegriddedSuffix is appended to the base name of regridded history files.
const RegriddedSuffix = "_regridded"

// splitHistoryName splits a history file name such as
// "case.cam.h0a.0001-02.nc" or "case.cam.h0a.0001-02_regridded.nc" into
// its stream name and date token.
func splitHistoryName(path string) (stream, date string) {
	base := strings.TrimSuffix(filepath.Base(path), ".nc")
	base = strings.TrimSuffix(base, RegriddedSuffix)
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return base, ""
	}
	return base[:i], base[i+1:]
}

// FindHistoryFiles returns the files in dirs matching any of patterns,
// grouped into history streams.
func FindHistoryFiles(dirs, patterns []string) ([]HistoryStream, error) {
	seen := make(map[string]bool)
	streams := make(map[string][]string)
	for _, dir := range dirs {
		for _, p := range patterns {
			matches, err := filepath.Glob(filepath.Join(dir, p))
			if err != nil {
				return nil, fmt.Errorf("seregrid: searching for history files: %v", err)
			}
			for _, m := range matches {
				if seen[m] || !strings.HasSuffix(m, ".nc") {
					continue
				}
				seen[m] = true
				s, _ := splitHistoryName(m)
				streams[s] = append(streams[s], m)
			}
		}
	}
	o := make([]HistoryStream, 0, len(streams))
	for name, files := range streams {
		sort.Slice(files, func(i, j int) bool { return filepath.Base(files[i]) < filepath.Base(files[j]) })
		o = append(o, HistoryStream{Name: name, Files: files})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Name < o[j].Name })
	return o, nil
}

// OutputName returns the time series file name for variable v.
func (s HistoryStream) OutputName(v string) string {
	_, first := splitHistoryName(s.Files[0])
	_, last := splitHistoryName(s.Files[len(s.Files)-1])
	first = strings.Replace(first, "-", "", -1)
	last = strings.Replace(last, "-", "", -1)
	return fmt.Sprintf("%s.%s.%s-%s.nc", s.Name, v, first, last)
}

// TimeSeries creates one time series file per time-varying variable for
// every history stream found in the input directories. It returns the
// paths of the files written. When no history files are found, a warning
// is logged and no error is returned.
func TimeSeries(cfg *TimeSeriesConfig) ([]string, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	streams, err := FindHistoryFiles(cfg.InputDirs, cfg.Patterns)
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		log.Warnf("No input files to process in %v with %v", cfg.InputDirs, cfg.Patterns)
		return nil, nil
	}
	if err := os.MkdirAll(cfg.OutputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("seregrid: creating time series output directory: %v", err)
	}

	var (
		mu      sync.Mutex
		errs    *multierror.Error
		written []string
	)
	for _, s := range streams {
		log.WithFields(logrus.Fields{"stream": s.Name, "files": len(s.Files)}).Info("Processing history stream")
		plan, err := planTimeSeries(s)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		plan.frequency = cfg.Frequency
		var g errgroup.Group
		g.SetLimit(workers(cfg.Workers))
		for _, v := range plan.vars {
			v := v
			out := filepath.Join(cfg.OutputDir, s.OutputName(v))
			if _, err := os.Stat(out); err == nil && !cfg.Overwrite {
				log.WithField("file", out).Debug("time series exists; skipping")
				continue
			}
			g.Go(func() error {
				err := plan.write(v, out)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = multierror.Append(errs, err)
					return nil
				}
				log.WithField("file", out).Debug("wrote time series")
				written = append(written, out)
				return nil
			})
		}
		g.Wait()
		log.WithField("stream", s.Name).Info("Timeseries processing complete")
	}
	sort.Strings(written)
	return written, errs.ErrorOrNil()
}

func workers(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// tsPlan holds the information shared by all time series of a stream.
type tsPlan struct {
	stream  HistoryStream
	first   *Dataset // header and static variables of the first file
	vars    []string // variables that get their own file
	timeAux []string // time variables written to every file
	nrec    []int    // number of records in each file

	frequency string
}

func planTimeSeries(s HistoryStream) (*tsPlan, error) {
	p := &tsPlan{stream: s}
	for i, f := range s.Files {
		var keep func(string, bool) bool
		if i == 0 {
			keep = func(name string, record bool) bool {
				if record && !timeVars[name] {
					p.vars = append(p.vars, name)
					return false
				}
				return true
			}
		} else {
			keep = func(string, bool) bool { return false }
		}
		ds, err := ReadDatasetFunc(f, keep)
		if err != nil {
			return nil, err
		}
		rec, ok := ds.RecordDim()
		if !ok {
			return nil, fmt.Errorf("seregrid: history file %s has no record dimension", f)
		}
		p.nrec = append(p.nrec, rec.Len)
		if i == 0 {
			p.first = ds
			continue
		}
		if err := sameDims(p.first, ds); err != nil {
			return nil, fmt.Errorf("seregrid: history file %s does not match %s: %v", f, s.Files[0], err)
		}
	}
	for _, v := range p.first.Vars {
		if p.first.IsRecord(v) {
			p.timeAux = append(p.timeAux, v.Name)
		}
	}
	return p, nil
}

// sameDims checks that the fixed dimensions of a and b agree.
func sameDims(a, b *Dataset) error {
	for _, d := range a.Dims {
		if d.Unlimited {
			continue
		}
		db, ok := b.Dim(d.Name)
		if !ok {
			return fmt.Errorf("dimension %s is missing", d.Name)
		}
		if db.Len != d.Len {
			return fmt.Errorf("dimension %s has length %d instead of %d", d.Name, db.Len, d.Len)
		}
	}
	return nil
}

// write concatenates variable v and the time variables along the record
// dimension and writes them with the static variables to out.
func (p *tsPlan) write(v, out string) error {
	rec, _ := p.first.RecordDim()
	o := &Dataset{Attrs: append([]Attr{}, p.first.Attrs...)}
	if p.frequency != "" {
		o.SetAttr("frequency", p.frequency)
	}
	total := 0
	for _, n := range p.nrec {
		total += n
	}
	for _, d := range p.first.Dims {
		if d.Unlimited {
			o.Dims = append(o.Dims, Dim{Name: d.Name, Len: total, Unlimited: true})
		} else {
			o.Dims = append(o.Dims, d)
		}
	}
	names := append([]string{v}, p.timeAux...)
	series := make(map[string]*Variable)
	for i, f := range p.stream.Files {
		ds, err := ReadDataset(f, names...)
		if err != nil {
			return err
		}
		for _, name := range names {
			x := ds.Var(name)
			if x == nil {
				return fmt.Errorf("seregrid: variable %s is missing from %s", name, f)
			}
			s, ok := series[name]
			if !ok {
				series[name] = x
				continue
			}
			if err := appendRecords(s, x); err != nil {
				return fmt.Errorf("seregrid: concatenating %s from %s: %v", name, p.stream.Files[i], err)
			}
		}
	}
	if x := series[v]; len(x.Dims) == 0 || x.Dims[0] != rec.Name {
		return fmt.Errorf("seregrid: variable %s does not vary in time", v)
	}
	for _, x := range p.first.Vars {
		if !p.first.IsRecord(x) {
			o.AddVar(x)
		}
	}
	for _, name := range p.timeAux {
		o.AddVar(series[name])
	}
	o.AddVar(series[v])
	o.SetAttr("time_series_variable", v)
	return o.Write(out)
}

func appendRecords(dst, src *Variable) error {
	if dst.Type != src.Type {
		return fmt.Errorf("type %v does not match %v", src.Type, dst.Type)
	}
	switch d := dst.Data.(type) {
	case []float64:
		dst.Data = append(d, src.Data.([]float64)...)
	case []int32:
		dst.Data = append(d, src.Data.([]int32)...)
	case []int16:
		dst.Data = append(d, src.Data.([]int16)...)
	case []uint8:
		dst.Data = append(d, src.Data.([]uint8)...)
	}
	return nil
}
