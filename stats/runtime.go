// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"runtime"
	"time"

	"github.com/kelindar/process"
)

// processStartedAt is the reference point Proc.Uptime is measured from.
var processStartedAt = time.Now()

// Runtime is the full Go runtime memory breakdown, served behind the
// diagnostics API's extra=1 query flag since collecting it forces a
// GC-stopping ReadMemStats call.
type Runtime struct {
	Heap   Heap   `json:"heap"`
	MCache Memory `json:"mcache"`
	MSpan  Memory `json:"mspan"`
	Stack  Memory `json:"stack"`
	GC     GC     `json:"gc"`
	Go     Go     `json:"go"`
}

// Proc is the lightweight, always-on process summary: CPU and memory
// as seen by the OS, plus how long this process has been running.
type Proc struct {
	CPU    float64 `json:"cpu"`
	Priv   int32   `json:"priv"`   // resident private memory, KB
	Virt   int32   `json:"virt"`   // virtual memory, KB
	Uptime int32   `json:"uptime"` // seconds since process start
}

// Heap breaks down runtime.MemStats' heap fields.
type Heap struct {
	Inuse    int32 `json:"inuse"`
	Sys      int32 `json:"sys"`
	Alloc    int32 `json:"alloc"`
	Idle     int32 `json:"idle"`
	Released int32 `json:"released"`
	Objects  int32 `json:"objects"`
}

// Memory is a generic Inuse/Sys pair shared by MCache, MSpan and Stack.
type Memory struct {
	Inuse int32 `json:"inuse"`
	Sys   int32 `json:"sys"`
}

// GC summarizes garbage collector overhead.
type GC struct {
	CPU float64 `json:"cpu"`
	Sys int32   `json:"sys"`
}

// Go reports goroutine count, the number of logical CPUs, and total
// memory under Go's management.
type Go struct {
	Count int32 `json:"count"`
	Procs int32 `json:"procs"`
	Sys   int32 `json:"sys"`
	Alloc int32 `json:"alloc"`
}

// MeasureRuntime samples the cheap, OS-level process metrics. Safe to
// call on every diagnostics request.
func MeasureRuntime() Proc {
	defer recover()
	var cpu float64
	var priv, virt int64
	process.ProcUsage(&cpu, &priv, &virt)
	return Proc{
		CPU:    cpu,
		Priv:   toKB(uint64(priv)),
		Virt:   toKB(uint64(virt)),
		Uptime: int32(time.Since(processStartedAt).Seconds()),
	}
}

// MeasureFullRuntime samples the full Go memory breakdown. Reserved
// for the extra=1 diagnostics path since ReadMemStats is comparatively
// expensive.
func MeasureFullRuntime() *Runtime {
	defer recover()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &Runtime{
		Heap: Heap{
			Alloc:    toKB(m.HeapAlloc),
			Idle:     toKB(m.HeapIdle),
			Inuse:    toKB(m.HeapInuse),
			Objects:  int32(m.HeapObjects),
			Released: toKB(m.HeapReleased),
			Sys:      toKB(m.HeapSys),
		},
		MCache: Memory{
			Inuse: toKB(m.MCacheInuse),
			Sys:   toKB(m.MCacheSys),
		},
		MSpan: Memory{
			Inuse: toKB(m.MSpanInuse),
			Sys:   toKB(m.MSpanSys),
		},
		Stack: Memory{
			Inuse: toKB(m.StackInuse),
			Sys:   toKB(m.StackSys),
		},
		GC: GC{
			CPU: m.GCCPUFraction,
			Sys: toKB(m.GCSys),
		},
		Go: Go{
			Count: int32(runtime.NumGoroutine()),
			Procs: int32(runtime.NumCPU()),
			Sys:   toKB(m.Sys),
			Alloc: toKB(m.TotalAlloc),
		},
	}
}

// toKB converts bytes to kilobytes, truncating, to keep the JSON
// payload in int32 range.
func toKB(v uint64) int32 {
	return int32(v / 1024)
}
