//go:build linux || darwin

package handler

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Process CPU time at the previous Stats call.
var (
	cpuMu       sync.Mutex
	lastCPUTime time.Duration
	lastWall    time.Time
)

// getDiskStats returns disk usage of the filesystem holding path.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, 0, 0, 0
	}
	total = int64(fs.Blocks) * int64(fs.Bsize)
	free = int64(fs.Bavail) * int64(fs.Bsize)
	used = total - free
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return total, free, used, usedPct
}

// getCPUUsage returns this process's CPU use since the previous call as a
// percentage of one core, capped at 100. The first call returns 0.
func getCPUUsage() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	cpu := time.Duration(ru.Utime.Nano()) + time.Duration(ru.Stime.Nano())
	now := time.Now()

	cpuMu.Lock()
	defer cpuMu.Unlock()

	prevCPU, prevWall := lastCPUTime, lastWall
	lastCPUTime, lastWall = cpu, now
	if prevWall.IsZero() {
		return 0
	}

	wall := now.Sub(prevWall)
	if wall <= 0 {
		return 0
	}
	pct := float64(cpu-prevCPU) / float64(wall) * 100
	return min(max(pct, 0), 100)
}
