package enrich

import (
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// MemoryProbe reports the process's resident set size. The browser
// enrichment path gates on it; tests substitute a fixed probe.
type MemoryProbe interface {
	RSS() (uint64, error)
}

// ProcessProbe measures the current process via the OS.
type ProcessProbe struct{}

func (ProcessProbe) RSS() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
