// Package preflight validates the environment before a scan starts: disk
// space and write access in the data directory, file descriptor limits, and
// reachability of the embedding and vulnerability database endpoints.
package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status classifies the outcome of a single check.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Result holds the outcome of one check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	Required bool   `json:"required"`
}

// Critical reports whether a required check failed.
func (r Result) Critical() bool {
	return r.Required && r.Status == StatusFail
}

// EndpointProber reports whether a remote service answers.
type EndpointProber interface {
	Available(ctx context.Context) bool
}

// Checker runs environment checks for a scan.
type Checker struct {
	dataDir  string
	embedder EndpointProber
	vulnDB   string // endpoint URL, probed with a plain GET
	verbose  bool
	output   io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithEmbedder sets the embedding service prober.
func WithEmbedder(p EndpointProber) Option {
	return func(c *Checker) { c.embedder = p }
}

// WithVulnDB sets the vulnerability database endpoint to probe.
func WithVulnDB(endpoint string) Option {
	return func(c *Checker) { c.vulnDB = endpoint }
}

// WithVerbose enables per-check detail lines in Print.
func WithVerbose(v bool) Option {
	return func(c *Checker) { c.verbose = v }
}

// WithOutput sets the writer Print uses.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// New creates a Checker for the given data directory.
func New(dataDir string, opts ...Option) *Checker {
	c := &Checker{
		dataDir: dataDir,
		output:  os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes every check and returns the results in a stable order.
func (c *Checker) Run(ctx context.Context) []Result {
	results := []Result{
		c.checkWritable(),
		c.checkDiskSpace(),
		c.checkFileDescriptors(),
	}
	if c.embedder != nil {
		results = append(results, c.checkEmbedder(ctx))
	}
	if c.vulnDB != "" {
		results = append(results, c.checkVulnDB(ctx))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.Critical() {
			return true
		}
	}
	return false
}

// Summary condenses the results into "ready", "ready_with_warnings" or
// "failed".
func Summary(results []Result) string {
	warned := false
	for _, r := range results {
		if r.Critical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// Print writes a human-readable report of the results.
func (c *Checker) Print(results []Result) {
	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}
	_, _ = fmt.Fprintf(c.output, "\nStatus: %s\n", strings.ToUpper(Summary(results)))
}

func (c *Checker) checkWritable() Result {
	r := Result{Name: "data_dir", Required: true}

	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("cannot create %s: %v", c.dataDir, err)
		return r
	}
	probe := filepath.Join(c.dataDir, ".preflight-write-test")
	f, err := os.Create(probe)
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("not writable: %v", err)
		return r
	}
	_ = f.Close()
	_ = os.Remove(probe)

	r.Status = StatusPass
	r.Message = c.dataDir
	return r
}

func (c *Checker) checkEmbedder(ctx context.Context) Result {
	r := Result{Name: "embedding_endpoint", Required: true}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !c.embedder.Available(probeCtx) {
		r.Status = StatusFail
		r.Message = "embedding service unreachable"
		r.Details = "start the embedding service or point providers.embedding.endpoint at a running one"
		return r
	}
	r.Status = StatusPass
	r.Message = "reachable"
	return r
}

func (c *Checker) checkVulnDB(ctx context.Context) Result {
	r := Result{Name: "vulndb_endpoint", Required: false}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.vulnDB, nil)
	if err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("invalid endpoint: %v", err)
		return r
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r.Status = StatusWarn
		r.Message = "vulnerability database unreachable"
		r.Details = err.Error()
		return r
	}
	_ = resp.Body.Close()

	r.Status = StatusPass
	r.Message = "reachable"
	return r
}
