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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitHistoryName(t *testing.T) {
	tests := []struct {
		path, stream, date string
	}{
		{"/a/case.cam.h0a.0001-02.nc", "case.cam.h0a", "0001-02"},
		{"case.clm2.h0.0010-12_regridded.nc", "case.clm2.h0", "0010-12"},
		{"noperiod.nc", "noperiod", ""},
	}
	for _, test := range tests {
		s, d := splitHistoryName(test.path)
		if s != test.stream || d != test.date {
			t.Errorf("%s: got (%s, %s); want (%s, %s)", test.path, s, d, test.stream, test.date)
		}
	}
}

func TestParseRealm(t *testing.T) {
	r, err := ParseRealm("lnd")
	if err != nil || r != Lnd || r.ColumnDim() != LndColumnDim {
		t.Errorf("lnd: %v %v", r, err)
	}
	if r, _ := ParseRealm("atm"); r.ColumnDim() != AtmColumnDim || r.IncludePatterns()[0] != "*cam.h0a*" {
		t.Errorf("atm: %v", r)
	}
	if _, err := ParseRealm("ocn"); err == nil {
		t.Error("expected an error for an unsupported realm")
	}
}

// writeHistoryFiles writes two monthly land history files to dir, along
// with a file that does not match the land history pattern.
func writeHistoryFiles(t *testing.T, dir string) {
	t.Helper()
	for i, name := range []string{"case.clm2.h0.0001-01.nc", "case.clm2.h0.0001-02.nc", "case.cam.h0a.0001-01.nc"} {
		if err := testHistory(100 * float64(i)).Write(filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindHistoryFiles(t *testing.T) {
	dir := t.TempDir()
	writeHistoryFiles(t, dir)
	streams, err := FindHistoryFiles([]string{dir}, Lnd.IncludePatterns())
	if err != nil {
		t.Fatal(err)
	}
	if len(streams) != 1 {
		t.Fatalf("found %d streams; want 1", len(streams))
	}
	s := streams[0]
	want := []string{filepath.Join(dir, "case.clm2.h0.0001-01.nc"), filepath.Join(dir, "case.clm2.h0.0001-02.nc")}
	if s.Name != "case.clm2.h0" || !reflect.DeepEqual(s.Files, want) {
		t.Errorf("stream %+v", s)
	}
	if name := s.OutputName("TSA"); name != "case.clm2.h0.TSA.000101-000102.nc" {
		t.Errorf("output name %s", name)
	}
}

func TestTimeSeries(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "ts")
	writeHistoryFiles(t, in)
	cfg := &TimeSeriesConfig{
		InputDirs: []string{in},
		OutputDir: out,
		Patterns:  Lnd.IncludePatterns(),
		Workers:   2,
		Frequency: Lnd.Frequency(),
	}
	written, err := TimeSeries(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(out, "case.clm2.h0.TSA.000101-000102.nc"),
		filepath.Join(out, "case.clm2.h0.TSOI.000101-000102.nc"),
	}
	if !reflect.DeepEqual(written, want) {
		t.Fatalf("written %v; want %v", written, want)
	}

	ds, err := ReadDataset(want[0])
	if err != nil {
		t.Fatal(err)
	}
	if rec, _ := ds.RecordDim(); rec.Len != 4 {
		t.Errorf("records: %d", rec.Len)
	}
	tsa := []float64{1, 2, 3, 4, 11, 12, 13, 14, 101, 102, 103, 104, 111, 112, 113, 114}
	if !sameFloats(ds.Var("TSA").Floats(), tsa) {
		t.Errorf("TSA: %v", ds.Var("TSA").Floats())
	}
	if !sameFloats(ds.Var("time").Floats(), []float64{0, 31, 100, 131}) {
		t.Errorf("time: %v", ds.Var("time").Floats())
	}
	if ds.Var("TSOI") != nil {
		t.Error("other time-varying variables should not be included")
	}
	if ds.Var("landfrac") == nil || ds.Var("date_written") == nil {
		t.Error("static and time variables should be included")
	}
	if f, _ := ds.Attr("frequency").(string); f != "mon" {
		t.Errorf("frequency attribute %q", f)
	}
	if v, _ := ds.Attr("time_series_variable").(string); v != "TSA" {
		t.Errorf("time_series_variable attribute %q", v)
	}

	// Existing files are kept unless overwriting is requested.
	written, err = TimeSeries(cfg)
	if err != nil || len(written) != 0 {
		t.Errorf("second run: %v, %v", written, err)
	}
	cfg.Overwrite = true
	written, err = TimeSeries(cfg)
	if err != nil || len(written) != 2 {
		t.Errorf("overwrite: %v, %v", written, err)
	}
}

func TestTimeSeriesNoFiles(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ts")
	written, err := TimeSeries(&TimeSeriesConfig{
		InputDirs: []string{t.TempDir()},
		OutputDir: out,
		Patterns:  Atm.IncludePatterns(),
	})
	if err != nil || written != nil {
		t.Errorf("%v, %v", written, err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output directory should not be created")
	}
}

func TestTimeSeriesMismatch(t *testing.T) {
	in := t.TempDir()
	if err := testHistory(0).Write(filepath.Join(in, "case.clm2.h0.0001-01.nc")); err != nil {
		t.Fatal(err)
	}
	ds := testHistory(0)
	ds.AddDim("levgrnd", 3, false)
	ds.RemoveVar("TSOI")
	ds.RemoveVar("levgrnd")
	if err := ds.Write(filepath.Join(in, "case.clm2.h0.0001-02.nc")); err != nil {
		t.Fatal(err)
	}
	_, err := TimeSeries(&TimeSeriesConfig{
		InputDirs: []string{in},
		OutputDir: t.TempDir(),
		Patterns:  Lnd.IncludePatterns(),
	})
	if err == nil {
		t.Error("expected an error for files with different dimensions")
	}
}
