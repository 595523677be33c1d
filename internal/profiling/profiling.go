// Package profiling captures pprof data for a single scan: a CPU profile
// over the run and a heap snapshot when it finishes.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Session holds open profile files for one run. A zero Session is inert;
// Stop on it is a no-op.
type Session struct {
	cpuFile  *os.File
	heapPath string
}

// Start begins CPU profiling to cpuPath and records heapPath for a snapshot
// at Stop. Either path may be empty to skip that profile.
func Start(cpuPath, heapPath string) (*Session, error) {
	s := &Session{heapPath: heapPath}

	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, fmt.Errorf("create cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("start cpu profile: %w", err)
		}
		s.cpuFile = f
	}
	return s, nil
}

// Stop flushes the CPU profile and writes the heap snapshot, if requested.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		_ = s.cpuFile.Close()
		s.cpuFile = nil
	}
	if s.heapPath == "" {
		return nil
	}

	f, err := os.Create(s.heapPath)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collect garbage first so the snapshot reflects live objects.
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}
