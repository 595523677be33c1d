// Package gitignore matches paths against gitignore patterns, following the
// syntax at https://git-scm.com/docs/gitignore. It covers the subset needed
// to skip ignored files while walking a repository: anchored and unanchored
// patterns, directory-only patterns, negation, wildcards and **.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher holds compiled patterns from one or more gitignore files. Rules
// are evaluated in insertion order; the last matching rule wins, so nested
// .gitignore files should be loaded as the walk descends.
type Matcher struct {
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	base     string // rules from a nested file only apply under base
	negation bool
	dirOnly  bool
	anchored bool
}

// NewMatcher returns a matcher with no rules. A matcher with no rules
// ignores nothing.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Add compiles a single pattern. base scopes the rule to paths under that
// directory (slash-separated, relative to the walk root); an empty base
// applies everywhere. Blank lines and comments are dropped.
func (m *Matcher) Add(pattern, base string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || (strings.HasPrefix(pattern, "#") && !strings.HasPrefix(pattern, `\#`)) {
		return
	}

	r := rule{base: base}

	if strings.HasPrefix(pattern, `\#`) || strings.HasPrefix(pattern, `\!`) {
		pattern = pattern[1:]
	} else if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	// A slash anywhere in the pattern anchors it to the gitignore's own
	// directory: "doc/frotz" means "/doc/frotz", not "**/doc/frotz".
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + patternToRegex(pattern) + "$")
	m.rules = append(m.rules, r)
}

// LoadFile reads a .gitignore file and adds its patterns scoped to base.
func (m *Matcher) LoadFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open gitignore: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.Add(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read gitignore: %w", err)
	}
	return nil
}

// Ignored reports whether the slash-separated relative path matches the
// loaded patterns. The last matching rule decides, so a negated pattern can
// re-include a path an earlier rule excluded.
func (m *Matcher) Ignored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)

	ignored := false
	for _, r := range m.rules {
		if matchRule(relPath, isDir, r) {
			ignored = !r.negation
		}
	}
	return ignored
}

func matchRule(path string, isDir bool, r rule) bool {
	if r.base != "" {
		if !strings.HasPrefix(path, r.base+"/") {
			return false
		}
		path = strings.TrimPrefix(path, r.base+"/")
	}

	parts := strings.Split(path, "/")
	basename := parts[len(parts)-1]

	if r.anchored {
		if r.regex.MatchString(path) {
			return !r.dirOnly || isDir
		}
		if r.dirOnly {
			// A matched directory also covers everything inside it.
			for i := range parts[:len(parts)-1] {
				if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(basename) || r.regex.MatchString(path) {
		return true
	}
	// An unanchored pattern matching a parent component ignores the subtree.
	for _, part := range parts[:len(parts)-1] {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex translates gitignore glob syntax into a Go regexp.
func patternToRegex(pattern string) string {
	var b strings.Builder

	i := 0
	for i < len(pattern) {
		switch c := pattern[i]; c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
				continue
			}
			if strings.HasPrefix(pattern[i:], "**") && (i == 0 || pattern[i-1] == '/') {
				b.WriteString(".*")
				i += 2
				continue
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := strings.IndexByte(pattern[i:], ']')
			if j > 0 {
				b.WriteString(pattern[i : i+j+1])
				i += j + 1
			} else {
				b.WriteString(regexp.QuoteMeta("["))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(`\`))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
