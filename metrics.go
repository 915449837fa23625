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
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// File outcomes recorded by Metrics.Files.
const (
	FileRegridded   = "regridded"
	FilePassthrough = "passthrough"
	FileSkipped     = "skipped"
	FileFailed      = "failed"
)

// Metrics holds counters and timings for a batch run. Each Metrics has
// its own registry, so runs do not share state.
type Metrics struct {
	Files     *prometheus.CounterVec // labels: outcome
	Variables prometheus.Counter
	Duration  *prometheus.HistogramVec // labels: stage
	RunStart  prometheus.Gauge

	Registry *prometheus.Registry
	Clock    clockwork.Clock
}

// NewMetrics creates run metrics that time stages with clock.
// A nil clock uses the real time.
func NewMetrics(clock clockwork.Clock) *Metrics {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Metrics{
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seregrid",
			Name:      "files_total",
			Help:      "History files processed, by outcome.",
		}, []string{"outcome"}),
		Variables: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seregrid",
			Name:      "variables_regridded_total",
			Help:      "Variables regridded across all files.",
		}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seregrid",
			Name:      "stage_duration_seconds",
			Help:      "Duration of processing stages.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"stage"}),
		RunStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seregrid",
			Name:      "run_start_timestamp_seconds",
			Help:      "Unix time the run started.",
		}),
		Registry: prometheus.NewRegistry(),
		Clock:    clock,
	}
	m.Registry.MustRegister(m.Files, m.Variables, m.Duration, m.RunStart)
	m.RunStart.Set(float64(clock.Now().Unix()))
	return m
}

// Time starts timing stage and returns a function that records the
// elapsed time when called.
func (m *Metrics) Time(stage string) func() {
	if m == nil {
		return func() {}
	}
	start := m.Clock.Now()
	return func() {
		m.Duration.WithLabelValues(stage).Observe(m.Clock.Since(start).Seconds())
	}
}

// File records the outcome of processing a file.
func (m *Metrics) File(outcome string) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(outcome).Inc()
}

// AddVariables records n regridded variables.
func (m *Metrics) AddVariables(n int) {
	if m == nil {
		return
	}
	m.Variables.Add(float64(n))
}

// WriteFile writes the metrics to path in the Prometheus text format,
// e.g. for the node exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
