package buildinfo

import (
	"fmt"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}

// System describes the machine a search runs on, so timings from different
// hosts can be told apart.
type System struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	Cores    int    `json:"cores"`
	Memory   string `json:"memory"`
}

// Host collects a System description. Fields the platform does not report
// are left empty.
func Host() System {
	var s System
	if h, err := host.Info(); err == nil {
		s.Hostname = h.Hostname
		s.Platform = fmt.Sprintf("%s %s", h.Platform, h.PlatformVersion)
	}
	if c, err := cpu.Info(); err == nil && len(c) > 0 {
		s.CPU = c[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		s.Cores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.Memory = fmt.Sprintf("%d GB", vm.Total/1024/1024/1024)
	}
	return s
}
