package statusserver

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo describes the running bridge process.
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads,omitempty"`
	UptimeSec  float64 `json:"uptime_seconds,omitempty"`
}

// currentProcess collects best-effort figures; fields the platform cannot
// report are left zero.
func currentProcess() ProcessInfo {
	info := ProcessInfo{PID: int32(os.Getpid())}
	p, err := process.NewProcess(info.PID)
	if err != nil {
		return info
	}
	if m, err := p.MemoryInfo(); err == nil && m != nil {
		info.RSSBytes = m.RSS
	}
	if c, err := p.CPUPercent(); err == nil {
		info.CPUPercent = c
	}
	if n, err := p.NumThreads(); err == nil {
		info.Threads = n
	}
	if ms, err := p.CreateTime(); err == nil && ms > 0 {
		info.UptimeSec = time.Since(time.UnixMilli(ms)).Seconds()
	}
	return info
}
