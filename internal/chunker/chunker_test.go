package chunker

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_RejectsAbsolutePath(t *testing.T) {
	svc := New(DefaultConfig(), nil)
	_, err := svc.Chunk(context.Background(), &FileInput{
		Path:    "/tmp/x.go",
		Content: []byte("package main\n"),
	})
	require.Error(t, err)
}

func TestChunk_RejectsParentTraversal(t *testing.T) {
	svc := New(DefaultConfig(), nil)
	_, err := svc.Chunk(context.Background(), &FileInput{
		Path:    "../outside.go",
		Content: []byte("package main\n"),
	})
	require.Error(t, err)
}

func TestChunk_GoFunctionsBecomeASTChunks(t *testing.T) {
	svc := New(DefaultConfig(), nil)
	src := `package main

func authenticate(token string) bool {
	return token != ""
}

func greet(name string) string {
	return "hello " + name
}
`
	chunks, err := svc.Chunk(context.Background(), &FileInput{
		Path:     "src/a.go",
		Content:  []byte(src),
		Language: "go",
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Equal(t, "ast", c.Metadata["chunk_type"])
		assert.GreaterOrEqual(t, c.EndLine, c.StartLine)
		assert.NotEmpty(t, c.Content)
		assert.Equal(t, "src/a.go:"+strconv.Itoa(c.StartLine), c.ID)
	}
}

func TestChunk_UnsupportedLanguageFallsBackToGeneric(t *testing.T) {
	svc := New(Config{GenericWindowLines: 2}, nil)
	src := strings.Repeat("this is a line of plain text content\n", 10)
	chunks, err := svc.Chunk(context.Background(), &FileInput{
		Path:     "notes.txt",
		Content:  []byte(src),
		Language: "text",
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "generic", c.Metadata["chunk_type"])
		assert.GreaterOrEqual(t, c.EndLine, c.StartLine)
	}
}

func TestChunk_EmptyContentYieldsNoChunks(t *testing.T) {
	svc := New(DefaultConfig(), nil)
	chunks, err := svc.Chunk(context.Background(), &FileInput{Path: "empty.go", Content: nil})
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestChunk_GenericDiscardsShortWindows(t *testing.T) {
	svc := New(Config{GenericWindowLines: 50}, nil)
	chunks, err := svc.Chunk(context.Background(), &FileInput{
		Path:     "short.txt",
		Content:  []byte("hi\n"),
		Language: "text",
	})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
