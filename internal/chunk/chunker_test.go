package chunk

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package sample

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	fmt.Println("hello", name)
}

type Greeter struct {
	Name string
}

func (g Greeter) Shout() {
	fmt.Println(strings.ToUpper(g.Name))
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	c := New(DefaultOptions())
	t.Cleanup(c.Close)
	return c
}

func TestProcess_GoDeclarations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sample.go", goSource)

	chunks, err := newTestChunker(t).Process(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, chunks, 3) // Greet, Greeter, Shout

	assert.Equal(t, "sample.go", chunks[0].File)
	assert.Equal(t, "go", chunks[0].Language)
	assert.Contains(t, chunks[0].Text, "func Greet")
	assert.Equal(t, 6, chunks[0].StartLine)
	assert.Equal(t, 8, chunks[0].EndLine)
	assert.Contains(t, chunks[1].Text, "type Greeter struct")
}

func TestProcess_BrokenSyntaxFallsBackToWindow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.go", "package x\n\nfunc oops( {{{ not go at all\nmore garbage here\n")

	chunks, err := newTestChunker(t).Process(context.Background(), dir)
	require.NoError(t, err)
	require.NotEmpty(t, chunks, "unparseable file must still chunk via fallback")
	assert.Equal(t, 1, chunks[0].StartLine)
}

func TestProcess_PatternStrategy(t *testing.T) {
	dir := t.TempDir()
	javaSource := `package demo;

public class Account {
	private int balance;

	public void deposit(int amount) {
		balance += amount;
	}
}
`
	writeFile(t, dir, "Account.java", javaSource)

	chunks, err := newTestChunker(t).Process(context.Background(), dir)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Text, "class Account")
	// Balance returns to zero at the closing brace of the class.
	assert.Equal(t, 9, chunks[0].EndLine)
}

func TestPatternChunks_BalanceTieBreak(t *testing.T) {
	src := []byte("void f() {\n  if (x) {\n    y();\n  }\n}\nvoid g() {\n}\n")
	chunks := patternChunks(src, "a.c", "c", DefaultOptions())

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 5, chunks[0].EndLine)
	assert.Equal(t, 6, chunks[1].StartLine)
	assert.Equal(t, 7, chunks[1].EndLine)
}

func TestProcess_WindowOverlap(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("line\n")
	}
	writeFile(t, dir, "script.sh", sb.String())

	opts := DefaultOptions()
	opts.WindowLines = 20
	opts.WindowOverlap = 5
	c := New(opts)
	defer c.Close()

	chunks, err := c.Process(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 20, chunks[0].EndLine)
	assert.Equal(t, 16, chunks[1].StartLine) // 20 - 5 + 1
}

func TestProcess_SkipsIgnoredDirsAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("node_modules", "dep.go"), goSource)
	writeFile(t, dir, filepath.Join(".git", "hook.go"), goSource)
	writeFile(t, dir, "image.png", "\x89PNG")
	writeFile(t, dir, "notes.txt", "plain text")

	chunks, err := newTestChunker(t).Process(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcess_HonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated/\n*_gen.go\n")
	writeFile(t, dir, "main.go", goSource)
	writeFile(t, dir, "types_gen.go", goSource)
	writeFile(t, dir, filepath.Join("generated", "api.go"), goSource)

	chunks, err := newTestChunker(t).Process(context.Background(), dir)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "main.go", ch.File)
	}
}

func TestProcess_GitignoreCoversEarlySortingNames(t *testing.T) {
	dir := t.TempDir()
	// "-skip.go" sorts before ".gitignore"; the rules must still apply.
	writeFile(t, dir, ".gitignore", "-skip.go\n")
	writeFile(t, dir, "-skip.go", goSource)
	writeFile(t, dir, "keep.go", goSource)

	chunks, err := newTestChunker(t).Process(context.Background(), dir)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "keep.go", ch.File)
	}
}

func TestProcess_NestedGitignoreScoped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("sub", ".gitignore"), "*.go\n")
	writeFile(t, dir, filepath.Join("sub", "hidden.go"), goSource)
	writeFile(t, dir, "visible.go", goSource)

	chunks, err := newTestChunker(t).Process(context.Background(), dir)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, "visible.go", ch.File)
	}
}

func TestProcess_MaxChunksPerFileTruncatesEarliest(t *testing.T) {
	dir := t.TempDir()
	var sb strings.Builder
	sb.WriteString("package many\n\n")
	for i := 0; i < 20; i++ {
		sb.WriteString("func F")
		sb.WriteByte(byte('A' + i))
		sb.WriteString("() {}\n\n")
	}
	writeFile(t, dir, "many.go", sb.String())

	opts := DefaultOptions()
	opts.MaxChunksPerFile = 5
	c := New(opts)
	defer c.Close()

	chunks, err := c.Process(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	assert.Contains(t, chunks[0].Text, "func FA")
}

func TestChunkID_StableAndFileScoped(t *testing.T) {
	a := chunkID("a.go", "func X() {}")
	b := chunkID("a.go", "func X() {}")
	c := chunkID("b.go", "func X() {}")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestAnalyzeStructure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", goSource)
	writeFile(t, dir, filepath.Join("pkg", "util.go"), goSource)
	writeFile(t, dir, filepath.Join("scripts", "run.sh"), "echo hi\n")
	writeFile(t, dir, filepath.Join("node_modules", "x.js"), "var a;\n")

	meta, err := AnalyzeStructure(dir)
	require.NoError(t, err)
	assert.Equal(t, "go", meta.PrimaryLanguage)
	assert.Equal(t, 2, meta.FilesByLanguage["go"])
	assert.Equal(t, 1, meta.FilesByLanguage["shell"])
	assert.Equal(t, 3, meta.TotalFiles)
	assert.Equal(t, []string{"pkg", "scripts"}, meta.TopLevelDirs)
}
