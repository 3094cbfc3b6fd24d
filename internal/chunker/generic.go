package chunker

import "strings"

// genericChunk splits content into fixed-size line windows, discarding
// windows whose trimmed length is below MinGenericChunkChars.
func genericChunk(file *FileInput, windowLines int) []*Chunk {
	if windowLines <= 0 {
		windowLines = GenericWindowLines
	}
	lines := strings.Split(string(file.Content), "\n")

	var out []*Chunk
	for start := 0; start < len(lines); start += windowLines {
		end := start + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[start:end], "\n")
		if len(strings.TrimSpace(window)) < MinGenericChunkChars {
			continue
		}
		out = append(out, &Chunk{
			ID:        chunkID(file.Path, start+1),
			FilePath:  file.Path,
			Content:   window,
			Language:  file.Language,
			StartLine: start + 1,
			EndLine:   end,
			Metadata: map[string]string{
				"chunk_type": string(ChunkTypeGeneric),
			},
		})
	}
	return out
}
