package main

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// resourceUsage is the process footprint of a generate run.
type resourceUsage struct {
	CPUPercent     float64
	MemoryRSS      uint64
	MemoryVMS      uint64
	ThreadCount    int32
	OpenFDs        int32
	GoroutineCount int
}

// resourceMonitor samples the current process relative to when it was
// created. Samples are best effort: a field the platform cannot report
// stays zero.
type resourceMonitor struct {
	proc         *process.Process
	startCPUTime float64
	startTime    time.Time
}

func newResourceMonitor() *resourceMonitor {
	rm := &resourceMonitor{startTime: time.Now()}
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return rm
	}
	rm.proc = proc
	if t, err := proc.Times(); err == nil {
		rm.startCPUTime = t.User + t.System
	}
	return rm
}

func (rm *resourceMonitor) sample() resourceUsage {
	usage := resourceUsage{GoroutineCount: runtime.NumGoroutine()}
	if rm.proc == nil {
		return usage
	}

	if t, err := rm.proc.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = (t.User + t.System - rm.startCPUTime) / elapsed * 100
		}
	}
	if mem, err := rm.proc.MemoryInfo(); err == nil {
		usage.MemoryRSS = mem.RSS
		usage.MemoryVMS = mem.VMS
	}
	usage.ThreadCount, _ = rm.proc.NumThreads()
	usage.OpenFDs, _ = rm.proc.NumFDs()
	return usage
}
