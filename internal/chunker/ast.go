package chunker

import (
	"context"
	"fmt"
)

// astChunker splits source into chunks bounded by tree-sitter's top-level
// semantic nodes (functions, methods, classes, types). It returns nil,
// false when parsing fails or the language has no Processor, signalling
// the caller to use the generic fallback.
type astChunker struct {
	registry *LanguageRegistry
	parser   *parser
}

func newASTChunker(registry *LanguageRegistry) *astChunker {
	return &astChunker{registry: registry, parser: newParser(registry)}
}

// chunk attempts AST-guided chunking. ok is false when the language is
// unsupported or the parse failed, in which case the caller must fall back
// to generic chunking.
func (a *astChunker) chunk(ctx context.Context, file *FileInput) (chunks []*Chunk, ok bool) {
	cfg, supported := a.registry.Config(file.Language)
	if !supported {
		return nil, false
	}

	root, err := a.parser.parse(ctx, file.Content, file.Language)
	if err != nil || root == nil {
		return nil, false
	}

	nodes := root.findByTypes(cfg.symbolTypes())
	if len(nodes) == 0 {
		return nil, false
	}

	out := make([]*Chunk, 0, len(nodes))
	for _, n := range nodes {
		content := n.content(file.Content)
		if content == "" {
			continue
		}
		out = append(out, &Chunk{
			ID:        chunkID(file.Path, n.StartLine),
			FilePath:  file.Path,
			Content:   content,
			Language:  file.Language,
			StartLine: n.StartLine,
			EndLine:   n.EndLine,
			Metadata: map[string]string{
				"chunk_type": string(ChunkTypeAST),
				"node_type":  n.Type,
			},
		})
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// chunkID builds the stable identity: "{file_path}:{start_line}".
func chunkID(filePath string, startLine int) string {
	return fmt.Sprintf("%s:%d", filePath, startLine)
}
