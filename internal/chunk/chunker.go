package chunk

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/vulnscout/vulnscout/internal/gitignore"
)

// Chunker walks a source tree and splits files into chunks.
type Chunker struct {
	opts   Options
	parser *parser
}

// New creates a chunker with the given options.
func New(opts Options) *Chunker {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultOptions().MaxFiles
	}
	if opts.MaxChunksPerFile <= 0 {
		opts.MaxChunksPerFile = DefaultOptions().MaxChunksPerFile
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultOptions().MaxFileSize
	}
	if opts.WindowLines <= 0 {
		opts.WindowLines = DefaultOptions().WindowLines
	}
	if opts.WindowOverlap <= 0 || opts.WindowOverlap >= opts.WindowLines {
		opts.WindowOverlap = DefaultOptions().WindowOverlap
	}
	return &Chunker{opts: opts, parser: newParser()}
}

// Close releases parser resources.
func (c *Chunker) Close() {
	c.parser.Close()
}

// Process splits every supported file under repoPath into chunks, in
// path-walk order. Files with unsupported extensions, and files excluded by
// the repository's .gitignore files, are skipped; a file that fails to chunk
// is logged and skipped, never fatal.
func (c *Chunker) Process(ctx context.Context, repoPath string) ([]Chunk, error) {
	var chunks []Chunk
	filesSeen := 0
	ignore := gitignore.NewMatcher()

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil {
			rel = path
		}

		if d.IsDir() {
			if path != repoPath {
				if IgnoredDir(d.Name()) || ignore.Ignored(rel, true) {
					return filepath.SkipDir
				}
			}
			// Load the directory's .gitignore on entry so every child,
			// regardless of name ordering, is matched against it.
			base := filepath.ToSlash(rel)
			if path == repoPath || base == "." {
				base = ""
			}
			giPath := filepath.Join(path, ".gitignore")
			if _, statErr := os.Stat(giPath); statErr == nil {
				if err := ignore.LoadFile(giPath, base); err != nil {
					slog.Debug("skipping unreadable gitignore",
						slog.String("dir", rel),
						slog.String("error", err.Error()))
				}
			}
			return nil
		}

		if ignore.Ignored(rel, false) {
			return nil
		}

		cfg, ok := lookupLanguage(path)
		if !ok {
			return nil
		}
		if filesSeen >= c.opts.MaxFiles {
			return filepath.SkipAll
		}
		filesSeen++

		info, err := d.Info()
		if err != nil || info.Size() > c.opts.MaxFileSize {
			return nil
		}

		fileChunks, err := c.chunkFile(ctx, path, rel, cfg)
		if err != nil {
			slog.Warn("chunking failed, skipping file",
				slog.String("file", rel),
				slog.String("error", err.Error()))
			return nil
		}
		if len(fileChunks) > c.opts.MaxChunksPerFile {
			fileChunks = fileChunks[:c.opts.MaxChunksPerFile]
		}
		chunks = append(chunks, fileChunks...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// chunkFile dispatches a single file to the strategy chain. A parser-backed
// file that fails to parse, or yields no declarations, falls through to the
// sliding window; pattern-backed files do the same.
func (c *Chunker) chunkFile(ctx context.Context, path, rel string, cfg langConfig) ([]Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 || !utf8.Valid(content) {
		return nil, nil
	}

	switch cfg.Strategy {
	case strategyParser:
		chunks, err := c.parser.declarationChunks(ctx, content, rel, cfg)
		if err == nil && len(chunks) > 0 {
			return chunks, nil
		}
		if err != nil {
			slog.Debug("parse failed, falling back to window",
				slog.String("file", rel),
				slog.String("error", err.Error()))
		}
	case strategyPattern:
		chunks := patternChunks(content, rel, cfg.Name, c.opts)
		if len(chunks) > 0 {
			return chunks, nil
		}
	}

	return windowChunks(content, rel, cfg.Name, c.opts), nil
}
