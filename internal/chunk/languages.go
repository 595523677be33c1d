package chunk

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	tsx "github.com/smacker/go-tree-sitter/typescript/tsx"
	typescript "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// strategy selects how a file is split.
type strategy int

const (
	strategyParser strategy = iota
	strategyPattern
	strategyWindow
)

// langConfig describes one supported language.
type langConfig struct {
	Name     string
	Strategy strategy

	// Parser-backed languages
	Language  *sitter.Language
	DeclTypes map[string]bool
}

var goDeclTypes = map[string]bool{
	"function_declaration": true,
	"method_declaration":   true,
	"type_declaration":     true,
}

var pyDeclTypes = map[string]bool{
	"function_definition":  true,
	"class_definition":     true,
	"decorated_definition": true,
}

var jsDeclTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"class_declaration":              true,
}

var tsDeclTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"class_declaration":              true,
	"interface_declaration":          true,
	"enum_declaration":               true,
	"type_alias_declaration":         true,
	"module_declaration":             true,
}

// registry maps file extensions to language configs. Extensions absent from
// the registry are unsupported and skipped entirely.
var registry = map[string]langConfig{
	".go": {Name: "go", Strategy: strategyParser, Language: golang.GetLanguage(), DeclTypes: goDeclTypes},
	".py": {Name: "python", Strategy: strategyParser, Language: python.GetLanguage(), DeclTypes: pyDeclTypes},
	".js": {Name: "javascript", Strategy: strategyParser, Language: javascript.GetLanguage(), DeclTypes: jsDeclTypes},
	".jsx": {Name: "javascript", Strategy: strategyParser, Language: javascript.GetLanguage(), DeclTypes: jsDeclTypes},
	".ts": {Name: "typescript", Strategy: strategyParser, Language: typescript.GetLanguage(), DeclTypes: tsDeclTypes},
	".tsx": {Name: "tsx", Strategy: strategyParser, Language: tsx.GetLanguage(), DeclTypes: tsDeclTypes},

	".java":  {Name: "java", Strategy: strategyPattern},
	".c":     {Name: "c", Strategy: strategyPattern},
	".h":     {Name: "c", Strategy: strategyPattern},
	".cc":    {Name: "cpp", Strategy: strategyPattern},
	".cpp":   {Name: "cpp", Strategy: strategyPattern},
	".hpp":   {Name: "cpp", Strategy: strategyPattern},
	".cs":    {Name: "csharp", Strategy: strategyPattern},
	".rs":    {Name: "rust", Strategy: strategyPattern},
	".kt":    {Name: "kotlin", Strategy: strategyPattern},
	".swift": {Name: "swift", Strategy: strategyPattern},
	".scala": {Name: "scala", Strategy: strategyPattern},
	".php":   {Name: "php", Strategy: strategyPattern},

	".rb":  {Name: "ruby", Strategy: strategyWindow},
	".pl":  {Name: "perl", Strategy: strategyWindow},
	".lua": {Name: "lua", Strategy: strategyWindow},
	".sh":  {Name: "shell", Strategy: strategyWindow},
	".sql": {Name: "sql", Strategy: strategyWindow},
}

// ignoredDirs is the fixed set of directories never descended into:
// build output, dependency caches, and version-control metadata.
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".jj":          true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"bin":          true,
	"obj":          true,
}

// IgnoredDir reports whether a directory name is never descended into.
// Shared with fingerprinting so the cache key and the chunker agree on
// what counts as part of the tree.
func IgnoredDir(name string) bool {
	return ignoredDirs[name]
}

// lookupLanguage resolves a file path to its language config.
func lookupLanguage(path string) (langConfig, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	cfg, ok := registry[ext]
	return cfg, ok
}

// SupportedExtensions returns the extensions the chunker handles.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	return exts
}
