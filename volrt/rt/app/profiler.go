package app

import (
	"fmt"
	"sort"
	"time"
)

// Profiler keeps per-scope CPU timings and counters for the stats overlay.
// It is owned by the render goroutine.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	fps      float64
	smoothed bool
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	for _, n := range p.Order {
		if n == name {
			return
		}
	}
	p.Order = append(p.Order, name)
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = time.Since(start)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Frame feeds one frame interval into the smoothed FPS estimate.
func (p *Profiler) Frame(delta time.Duration) {
	if delta <= 0 {
		return
	}
	inst := float64(time.Second) / float64(delta)
	if !p.smoothed {
		p.fps, p.smoothed = inst, true
		return
	}
	p.fps += (inst - p.fps) * 0.1
}

func (p *Profiler) FPS() float64 { return p.fps }

// Lines formats FPS, timings in first-use order, then counters by name.
func (p *Profiler) Lines() []string {
	lines := make([]string, 0, 1+len(p.Order)+len(p.Counts))
	lines = append(lines, fmt.Sprintf("FPS %.1f", p.fps))
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		lines = append(lines, fmt.Sprintf("%-8s %6.2f ms", name, ms))
	}
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-8s %d", k, p.Counts[k]))
	}
	return lines
}
