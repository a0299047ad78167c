package main

import (
	"fmt"
	"io"
	"runtime"
	"text/template"
	"time"

	json "github.com/goccy/go-json"

	"github.com/plus3/simstep/sim"
)

type Report struct {
	// Configuration
	Steps           uint64        `json:"steps"`
	InitialEntities int           `json:"initial_entities"`
	SpawnPerStep    int           `json:"spawn_per_step"`
	TTL             int           `json:"ttl"`
	Workers         int           `json:"workers"`
	UpdatePeriod    time.Duration `json:"update_period_ns"`

	// Results
	TotalTime      time.Duration     `json:"total_time_ns"`
	StepsPerSecond float64           `json:"steps_per_second"`
	TotalCreated   int64             `json:"total_created"`
	TotalErased    int64             `json:"total_erased"`
	FinalEntities  int               `json:"final_entities"`
	Systems        []sim.SystemStats `json:"systems"`
	MemStatsStart  runtime.MemStats  `json:"-"`
	MemStatsEnd    runtime.MemStats  `json:"-"`
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Simulation Stress Test Report

## Test Configuration
- **Steps:** {{.Steps}}
- **Initial Entities:** {{.InitialEntities}}
- **Spawned Per Step:** {{.SpawnPerStep}}
- **Entity TTL (steps):** {{.TTL}}
- **Workers:** {{.Workers}}
- **Update Period:** {{.UpdatePeriod}}

## Performance Results
- **Total Test Time:** {{.TotalTime}}
- **Steps Per Second:** {{printf "%.1f" .StepsPerSecond}}
- **Entities Created:** {{.TotalCreated}}
- **Entities Erased:** {{.TotalErased}}
- **Entities Remaining:** {{.FinalEntities}}

## System Timings
{{range .Systems}}- **{{.Name}}** ({{.ExecutionCount}} calls)
  - **Avg:** {{.AvgDuration}}
  - **Min:** {{.MinDuration}}
  - **Max:** {{.MaxDuration}}
{{end}}
## Memory Usage (Raw Bytes)
- Heap Alloc:     {{.MemStatsStart.HeapAlloc}} (start) -> {{.MemStatsEnd.HeapAlloc}} (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}}
- Total Alloc:    {{.MemStatsStart.TotalAlloc}} (start) -> {{.MemStatsEnd.TotalAlloc}} (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc}}
- Sys Memory:     {{.MemStatsStart.Sys}} (start) -> {{.MemStatsEnd.Sys}} (end) -> delta: {{bsub .MemStatsEnd.Sys .MemStatsStart.Sys}}
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
- Total GC Pause: {{.MemStatsEnd.PauseTotalNs | ns}}
`

	fm := template.FuncMap{
		"mb": func(v any) string {
			switch val := v.(type) {
			case uint64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			case int64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			default:
				return "N/A"
			}
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}

func (r *Report) GenerateJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*Report
		HeapAllocDelta int64  `json:"heap_alloc_delta"`
		GCCycles       uint32 `json:"gc_cycles"`
	}{
		Report:         r,
		HeapAllocDelta: int64(r.MemStatsEnd.HeapAlloc) - int64(r.MemStatsStart.HeapAlloc),
		GCCycles:       r.MemStatsEnd.NumGC - r.MemStatsStart.NumGC,
	})
}
