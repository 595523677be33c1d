// Package chunk splits a source tree into analyzable, language-aware code
// units. Three strategies are tried in priority order per file: syntax-aware
// splitting via tree-sitter, pattern-based boundary detection, and a fixed
// sliding window of lines as the universal fallback.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Chunk is one contiguous span of source lines treated as a single
// embeddable and retrievable unit. Line numbers are 1-indexed inclusive.
type Chunk struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Language  string `json:"language"`
	Text      string `json:"text"`
}

// Ref is the id-based back-reference stored in findings and index metadata.
type Ref struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Ref returns the chunk's location reference.
func (c *Chunk) Ref() Ref {
	return Ref{File: c.File, StartLine: c.StartLine, EndLine: c.EndLine}
}

// Options bounds the chunker.
type Options struct {
	// MaxFiles caps the number of files scanned per tree.
	MaxFiles int

	// MaxChunksPerFile truncates a file's chunk list to the earliest chunks.
	MaxChunksPerFile int

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64

	// WindowLines and WindowOverlap parameterize the sliding-window fallback.
	WindowLines   int
	WindowOverlap int
}

// DefaultOptions returns the default chunker bounds.
func DefaultOptions() Options {
	return Options{
		MaxFiles:         2000,
		MaxChunksPerFile: 50,
		MaxFileSize:      1 << 20,
		WindowLines:      120,
		WindowOverlap:    15,
	}
}

// chunkID derives a content-addressed id from file path and content, stable
// across line-number shifts elsewhere in the file.
func chunkID(file, text string) string {
	contentHash := sha256.Sum256([]byte(text))
	input := fmt.Sprintf("%s:%s", file, hex.EncodeToString(contentHash[:])[:16])
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
