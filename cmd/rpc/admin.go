package rpc

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Tracker responds with the committee tracker: the active committees and whether a change is in progress
func (s *Server) Tracker(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.committee.Tracker(), http.StatusOK)
}

// Config responds with the node configuration
func (s *Server) Config(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.config, http.StatusOK)
}

// ResourceUsage responds with the process and host resource usage
func (s *Server) ResourceUsage(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	pm, err := mem.VirtualMemory() // os memory
	if err != nil {
		write(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c, err := cpu.Times(false) // os cpu
	if err != nil || len(c) == 0 {
		write(w, "unable to read cpu times", http.StatusInternalServerError)
		return
	}
	cp, err := cpu.Percent(0, false) // os cpu percent
	if err != nil || len(cp) == 0 {
		write(w, "unable to read cpu percent", http.StatusInternalServerError)
		return
	}
	d, err := disk.Usage(s.config.DataDirPath) // the disk holding the slivers
	if err != nil {
		write(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ioCounters, err := net.IOCounters(false)
	if err != nil || len(ioCounters) == 0 {
		write(w, "unable to read io counters", http.StatusInternalServerError)
		return
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		write(w, err.Error(), http.StatusInternalServerError)
		return
	}
	usage, err := processUsage(p)
	if err != nil {
		write(w, err.Error(), http.StatusInternalServerError)
		return
	}
	write(w, resourceUsageResponse{
		Process: *usage,
		System: SystemResourceUsage{
			TotalRAM:        pm.Total,
			AvailableRAM:    pm.Available,
			UsedRAM:         pm.Used,
			UsedRAMPercent:  pm.UsedPercent,
			FreeRAM:         pm.Free,
			UsedCPUPercent:  cp[0],
			UserCPU:         c[0].User,
			SystemCPU:       c[0].System,
			IdleCPU:         c[0].Idle,
			TotalDisk:       d.Total,
			UsedDisk:        d.Used,
			UsedDiskPercent: d.UsedPercent,
			FreeDisk:        d.Free,
			ReceivedBytesIO: ioCounters[0].BytesRecv,
			WrittenBytesIO:  ioCounters[0].BytesSent,
		},
	}, http.StatusOK)
}

// processUsage() reads the resource usage of a single process
func processUsage(p *process.Process) (*ProcessResourceUsage, error) {
	name, err := p.Name()
	if err != nil {
		return nil, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return nil, err
	}
	status, err := p.Status()
	if err != nil {
		return nil, err
	}
	fds, err := p.NumFDs()
	if err != nil {
		return nil, err
	}
	numThreads, err := p.NumThreads()
	if err != nil {
		return nil, err
	}
	memPercent, err := p.MemoryPercent()
	if err != nil {
		return nil, err
	}
	created, err := p.CreateTime()
	if err != nil {
		return nil, err
	}
	return &ProcessResourceUsage{
		Name:          name,
		Status:        strings.Join(status, ","),
		CreateTime:    time.UnixMilli(created).Format(time.RFC822),
		FDCount:       uint64(fds),
		ThreadCount:   uint64(numThreads),
		MemoryPercent: float64(memPercent),
		CPUPercent:    cpuPercent,
	}, nil
}
