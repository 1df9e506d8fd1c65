// Package health reports process and session state for the /healthz endpoint.
package health

import (
	"runtime"
	"time"
)

// Options describes what the caller knows about the service.
type Options struct {
	Sessions  int
	Terminal  bool
	StartedAt time.Time
}

// Snapshot is the health document.
type Snapshot struct {
	Status     string      `json:"status"`
	Sessions   int         `json:"sessions"`
	Terminal   bool        `json:"terminal"`
	Uptime     string      `json:"uptime,omitempty"`
	Goroutines int         `json:"goroutines"`
	Memory     MemoryInfo  `json:"memory"`
	Runtime    RuntimeInfo `json:"runtime"`
	Timestamp  string      `json:"timestamp"`
}

// MemoryInfo is a subset of runtime.MemStats in megabytes.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
	NumGC        uint32  `json:"numGC"`
}

// RuntimeInfo identifies the Go runtime.
type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
}

// Collect returns a health snapshot for the current process.
func Collect(opts Options) Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{
		Status:     "ok",
		Sessions:   opts.Sessions,
		Terminal:   opts.Terminal,
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if !opts.StartedAt.IsZero() {
		s.Uptime = time.Since(opts.StartedAt).Round(time.Second).String()
	}
	return s
}
