package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the lowest nofile limit a scan can work with. The
// chunker, index checkpoints and SQLite each hold handles during a run.
const MinFileDescriptors = 1024

func (c *Checker) checkFileDescriptors() Result {
	r := Result{Name: "file_descriptors", Required: true}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("cannot read limit: %v", err)
		r.Required = false
		return r
	}

	r.Message = fmt.Sprintf("%d (minimum: %d)", lim.Cur, MinFileDescriptors)
	if lim.Cur < MinFileDescriptors {
		r.Status = StatusFail
		r.Details = "raise the limit with 'ulimit -n 4096'"
		return r
	}
	r.Status = StatusPass
	return r
}
