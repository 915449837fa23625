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
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1000, 0))
	m := NewMetrics(clock)
	stop := m.Time("regrid")
	clock.Advance(2 * time.Second)
	stop()
	m.File(FileRegridded)
	m.File(FileRegridded)
	m.File(FileSkipped)
	m.AddVariables(5)

	if n := testutil.ToFloat64(m.Files.WithLabelValues(FileRegridded)); n != 2 {
		t.Errorf("regridded files: %g", n)
	}
	if n := testutil.ToFloat64(m.Variables); n != 5 {
		t.Errorf("variables: %g", n)
	}
	if n := testutil.ToFloat64(m.RunStart); n != 1000 {
		t.Errorf("run start: %g", n)
	}

	path := filepath.Join(t.TempDir(), "seregrid.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`seregrid_files_total{outcome="skipped"} 1`,
		`seregrid_stage_duration_seconds_sum{stage="regrid"} 2`,
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("metrics file does not contain %q:\n%s", want, b)
		}
	}
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.Time("regrid")()
	m.File(FileFailed)
	m.AddVariables(1)
}
