package app

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/gekko3d/vct/voxelrt/rt/pipeline"

	"github.com/olekukonko/tablewriter"
)

// Profiler keeps the last duration of named scopes in first seen order
// together with a set of counters.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
	}
}

func (p *Profiler) track(name string) {
	if _, ok := p.Scopes[name]; !ok {
		p.Order = append(p.Order, name)
		p.Scopes[name] = 0
	}
}

func (p *Profiler) BeginScope(name string) {
	p.track(name)
	p.StartTimes[name] = time.Now()
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = time.Since(start)
		delete(p.StartTimes, name)
	}
}

// Record sets a scope measured elsewhere.
func (p *Profiler) Record(name string, d time.Duration) {
	p.track(name)
	p.Scopes[name] = d
}

// RecordFrame copies the stage timings and counters of a pipeline frame.
func (p *Profiler) RecordFrame(stats pipeline.FrameStats) {
	for _, s := range stats.Stages {
		p.Record(s.Name, s.Duration)
	}
	p.SetCount("voxelized triangles", stats.Voxelized)
	p.SetCount("mip levels", len(stats.MipDimensions))
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

// String renders timings and counters as two tables.
func (p *Profiler) String() string {
	var buf bytes.Buffer

	timings := tablewriter.NewWriter(&buf)
	timings.SetAlignment(tablewriter.ALIGN_LEFT)
	timings.SetAutoFormatHeaders(false)
	timings.SetHeader([]string{"Scope", "Time (ms)"})
	var total time.Duration
	for _, name := range p.Order {
		d := p.Scopes[name]
		total += d
		timings.Append([]string{name, fmtMillis(d)})
	}
	timings.SetFooter([]string{"total", fmtMillis(total)})
	timings.Render()

	if len(p.Counts) == 0 {
		return buf.String()
	}
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	counts := tablewriter.NewWriter(&buf)
	counts.SetAlignment(tablewriter.ALIGN_LEFT)
	counts.SetAutoFormatHeaders(false)
	counts.SetHeader([]string{"Counter", "Value"})
	for _, k := range keys {
		counts.Append([]string{k, fmt.Sprint(p.Counts[k])})
	}
	counts.Render()
	return buf.String()
}

func fmtMillis(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Microseconds())/1000)
}
