package chunk

import "strings"

// windowChunks is the universal fallback: a fixed-size sliding window of
// lines with overlap. Content-agnostic, never empty for non-blank input.
func windowChunks(content []byte, rel, language string, opts Options) []Chunk {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var chunks []Chunk

	for i := 0; i < len(lines); {
		end := i + opts.WindowLines
		if end > len(lines) {
			end = len(lines)
		}

		body := strings.Join(lines[i:end], "\n")
		chunks = append(chunks, Chunk{
			ID:        chunkID(rel, body),
			File:      rel,
			StartLine: i + 1,
			EndLine:   end,
			Language:  language,
			Text:      body,
		})

		if end >= len(lines) || len(chunks) >= opts.MaxChunksPerFile {
			break
		}
		i = end - opts.WindowOverlap
		if i <= 0 {
			break
		}
	}

	return chunks
}
