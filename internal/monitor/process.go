package monitor

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats describes the demo process at snapshot time.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	Goroutines int     `json:"goroutines"`
	RSS        uint64  `json:"rss"`
	CPUPercent float64 `json:"cpuPercent"`
	NumThreads int32   `json:"numThreads"`
}

// processStats reads the current process. Fields gopsutil cannot read on
// this platform stay zero.
func (s *Service) processStats() *ProcessStats {
	st := &ProcessStats{
		PID:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
	}

	s.procOnce.Do(func() {
		p, err := process.NewProcess(st.PID)
		if err != nil {
			s.logger().Debug("Process stats unavailable", "error", err)
			return
		}
		s.proc = p
	})
	if s.proc == nil {
		return st
	}

	if mem, err := s.proc.MemoryInfo(); err == nil {
		st.RSS = mem.RSS
	}
	if cpu, err := s.proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if n, err := s.proc.NumThreads(); err == nil {
		st.NumThreads = n
	}
	return st
}
