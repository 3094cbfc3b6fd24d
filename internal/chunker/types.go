// Package chunker decomposes a source file into syntactically meaningful
// chunks: AST-guided splitting where a tree-sitter grammar is available,
// falling back to fixed-size line windows otherwise.
package chunker

import "context"

// GenericWindowLines is the default window size for the fallback chunker.
const GenericWindowLines = 50

// MinGenericChunkChars is the minimum trimmed length a generic window must
// have to be kept.
const MinGenericChunkChars = 20

// ChunkType distinguishes how a Chunk's boundaries were determined.
type ChunkType string

const (
	ChunkTypeAST     ChunkType = "ast"
	ChunkTypeGeneric ChunkType = "generic"
)

// Chunk is the atomic unit of indexing.
type Chunk struct {
	ID        string
	FilePath  string // always relative; absolute paths are rejected at the boundary
	Content   string
	Language  string
	StartLine int // 1-indexed
	EndLine   int // inclusive
	Metadata  map[string]string
}

// FileInput is the input to a Chunker.
type FileInput struct {
	Path     string // relative path
	Content  []byte
	Language string
}

// Chunker splits a file into an ordered, non-overlapping sequence of chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}
