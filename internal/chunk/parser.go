package chunk

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// parser wraps a tree-sitter parser. One instance is shared per Chunker;
// tree-sitter parsers are not safe for concurrent use, hence the mutex.
type parser struct {
	mu sync.Mutex
	p  *sitter.Parser
}

func newParser() *parser {
	return &parser{p: sitter.NewParser()}
}

func (p *parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p != nil {
		p.p.Close()
		p.p = nil
	}
}

// declarationChunks produces one chunk per top-level function/class-like
// declaration. Returns an empty slice when the file parses but has no such
// boundaries; the caller falls through to the window strategy.
func (p *parser) declarationChunks(ctx context.Context, content []byte, rel string, cfg langConfig) ([]Chunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.p == nil {
		return nil, nil
	}

	p.p.SetLanguage(cfg.Language)
	tree, err := p.p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		// Broken syntax: let the fallback strategies handle it.
		return nil, nil
	}

	lines := strings.Split(string(content), "\n")
	var chunks []Chunk

	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		node := root.NamedChild(i)
		decl := declarationNode(node, cfg)
		if decl == nil {
			continue
		}
		start := int(decl.StartPoint().Row) + 1
		end := int(decl.EndPoint().Row) + 1
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[start-1:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:        chunkID(rel, text),
			File:      rel,
			StartLine: start,
			EndLine:   end,
			Language:  cfg.Name,
			Text:      text,
		})
	}
	return chunks, nil
}

// declarationNode unwraps export statements and returns the node when it is
// a declaration type for the language, else nil.
func declarationNode(node *sitter.Node, cfg langConfig) *sitter.Node {
	if node.Type() == "export_statement" {
		count := int(node.NamedChildCount())
		for i := 0; i < count; i++ {
			child := node.NamedChild(i)
			if cfg.DeclTypes[child.Type()] {
				// Keep the export wrapper's span: it starts the declaration.
				return node
			}
		}
		return nil
	}
	if cfg.DeclTypes[node.Type()] {
		return node
	}
	return nil
}
