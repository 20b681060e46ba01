// Package perf captures CPU profiles around a unit of work and summarises
// them by flat time per function.
package perf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime/pprof"
	"sort"
	"strings"
	"time"

	"github.com/google/pprof/profile"
)

// DefaultTopN is the number of functions kept when topN <= 0.
const DefaultTopN = 10

// ErrNoSampleType is returned for profiles without a usable value column.
var ErrNoSampleType = errors.New("profile has no usable sample type")

// FunctionStat is the flat cost attributed to one function.
type FunctionStat struct {
	Name    string  `json:"name"`
	Flat    int64   `json:"flat"`
	Percent float64 `json:"percent"`
}

// Report summarises a CPU profile.
type Report struct {
	ValueType  string         `json:"value_type"`
	ValueUnit  string         `json:"value_unit"`
	TotalValue int64          `json:"total_value"`
	Duration   time.Duration  `json:"duration"`
	Functions  []FunctionStat `json:"functions"`
}

// Capture runs fn under the CPU profiler and returns the top functions by
// flat time. If raw is non-nil the encoded profile is copied to it. The error
// from fn is returned alongside the report.
func Capture(fn func() error, topN int, raw io.Writer) (*Report, error) {
	var buf bytes.Buffer
	if err := pprof.StartCPUProfile(&buf); err != nil {
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	start := time.Now()
	runErr := fn()
	pprof.StopCPUProfile()
	elapsed := time.Since(start)

	if raw != nil {
		if _, err := raw.Write(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("write profile: %w", err)
		}
	}

	p, err := profile.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parse cpu profile: %w", err)
	}

	report, err := Analyze(p, topN)
	if err != nil {
		return nil, err
	}
	if report.Duration == 0 {
		report.Duration = elapsed
	}
	return report, runErr
}

// Analyze aggregates flat values by the leaf function of each sample.
func Analyze(p *profile.Profile, topN int) (*Report, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	idx := valueIndex(p)
	if idx < 0 {
		return nil, ErrNoSampleType
	}

	flat := make(map[string]int64)
	var total int64
	for _, s := range p.Sample {
		if len(s.Location) == 0 || len(s.Value) <= idx {
			continue
		}
		v := s.Value[idx]
		total += v
		for _, line := range s.Location[0].Line {
			if line.Function != nil {
				flat[line.Function.Name] += v
				break
			}
		}
	}

	stats := make([]FunctionStat, 0, len(flat))
	for name, v := range flat {
		st := FunctionStat{Name: name, Flat: v}
		if total != 0 {
			st.Percent = float64(v) / float64(total) * 100
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Flat != stats[j].Flat {
			return stats[i].Flat > stats[j].Flat
		}
		return stats[i].Name < stats[j].Name
	})
	if len(stats) > topN {
		stats = stats[:topN]
	}

	return &Report{
		ValueType:  p.SampleType[idx].Type,
		ValueUnit:  p.SampleType[idx].Unit,
		TotalValue: total,
		Duration:   time.Duration(p.DurationNanos),
		Functions:  stats,
	}, nil
}

// valueIndex prefers cpu/nanoseconds, then samples/count, then the last column.
func valueIndex(p *profile.Profile) int {
	idx := -1
	for i, st := range p.SampleType {
		if (st.Type == "cpu" || st.Type == "samples") && (st.Unit == "nanoseconds" || st.Unit == "count") {
			if idx == -1 || st.Type == "cpu" {
				idx = i
			}
		}
	}
	if idx == -1 && len(p.SampleType) > 0 {
		idx = len(p.SampleType) - 1
	}
	return idx
}

// String renders the report as a fixed-width table.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CPU profile: %d %s over %s\n", r.TotalValue, r.ValueUnit, r.Duration)
	fmt.Fprintf(&b, "%-15s %-8s %s\n", "Flat", "%", "Function")
	for _, f := range r.Functions {
		fmt.Fprintf(&b, "%-15d %-8.2f %s\n", f.Flat, f.Percent, f.Name)
	}
	return b.String()
}
