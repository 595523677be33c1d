package chunk

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RepoMetadata is the structural-analysis result cached per (repo, revision).
type RepoMetadata struct {
	PrimaryLanguage string         `json:"primary_language"`
	FilesByLanguage map[string]int `json:"files_by_language"`
	TotalFiles      int            `json:"total_files"`
	TotalBytes      int64          `json:"total_bytes"`
	TopLevelDirs    []string       `json:"top_level_dirs"`
}

// AnalyzeStructure walks the tree once and summarizes its shape: language
// distribution, size, and top-level layout. Honors the same ignore list as
// chunking.
func AnalyzeStructure(repoPath string) (*RepoMetadata, error) {
	meta := &RepoMetadata{
		FilesByLanguage: make(map[string]int),
	}

	entries, err := os.ReadDir(repoPath)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() && !IgnoredDir(e.Name()) {
			meta.TopLevelDirs = append(meta.TopLevelDirs, e.Name())
		}
	}
	sort.Strings(meta.TopLevelDirs)

	err = filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != repoPath && IgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		meta.TotalFiles++
		if info, err := d.Info(); err == nil {
			meta.TotalBytes += info.Size()
		}
		if cfg, ok := lookupLanguage(path); ok {
			meta.FilesByLanguage[cfg.Name]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	best := 0
	for lang, n := range meta.FilesByLanguage {
		if n > best || (n == best && strings.Compare(lang, meta.PrimaryLanguage) < 0) {
			best = n
			meta.PrimaryLanguage = lang
		}
	}
	return meta, nil
}
