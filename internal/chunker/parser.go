package chunker

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// node is a lightweight copy of a tree-sitter node, detached from the
// parser's internal state so it can be walked after the parser is reused.
type node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartLine  int // 1-indexed
	EndLine    int // 1-indexed, inclusive
	HasError   bool
	Children   []*node
}

func (n *node) content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// findByTypes recursively collects every descendant of n (not n itself)
// whose Type is in types.
func (n *node) findByTypes(types map[string]struct{}) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		if _, ok := types[cur.Type]; ok {
			out = append(out, cur)
			return // a matched node's children are part of its chunk, don't re-split it
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	for _, c := range n.Children {
		walk(c)
	}
	return out
}

// parser wraps a tree-sitter parser for one-shot parses of a known language.
type parser struct {
	registry *LanguageRegistry
}

func newParser(registry *LanguageRegistry) *parser {
	return &parser{registry: registry}
}

// parse parses source as the named language and returns the root node, or
// an error if the language is unsupported or the parse fails outright.
func (p *parser) parse(ctx context.Context, source []byte, language string) (*node, error) {
	tsLang, ok := p.registry.TreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("chunker: unsupported language %q", language)
	}

	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(tsLang)

	tree, err := sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("chunker: parse failed: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("chunker: parse returned nil tree")
	}
	root := convert(tree.RootNode())
	if root != nil && root.HasError {
		return root, fmt.Errorf("chunker: parse produced error nodes")
	}
	return root, nil
}

func convert(tsNode *sitter.Node) *node {
	if tsNode == nil {
		return nil
	}
	n := &node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartLine: int(tsNode.StartPoint().Row) + 1,
		EndLine:   int(tsNode.EndPoint().Row) + 1,
		HasError:  tsNode.HasError(),
		Children:  make([]*node, 0, tsNode.ChildCount()),
	}
	for i := 0; i < int(tsNode.ChildCount()); i++ {
		if child := convert(tsNode.Child(i)); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}
