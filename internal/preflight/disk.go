package preflight

import (
	"fmt"
	"syscall"
)

// MinDiskSpaceBytes is the free space required in the data directory. Index
// and embedding cache files for a large repository stay well under this.
const MinDiskSpaceBytes = 100 * 1024 * 1024

func (c *Checker) checkDiskSpace() Result {
	r := Result{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(c.dataDir, &stat); err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("cannot stat filesystem: %v", err)
		r.Required = false
		return r
	}

	free := stat.Bavail * uint64(stat.Bsize)
	r.Message = fmt.Sprintf("%s free (minimum: %s)", formatBytes(free), formatBytes(MinDiskSpaceBytes))
	if free < MinDiskSpaceBytes {
		r.Status = StatusFail
		return r
	}
	r.Status = StatusPass
	return r
}

func formatBytes(n uint64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
		tb = 1 << 40
	)
	switch {
	case n >= tb:
		return fmt.Sprintf("%.1f TB", float64(n)/tb)
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
