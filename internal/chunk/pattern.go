package chunk

import (
	"regexp"
	"strings"
)

// declPattern marks candidate declaration starts for languages without a
// parser: a declaration keyword near the start of a line, eventually
// followed by an opening brace.
var declPattern = regexp.MustCompile(`^\s*(?:(?:pub|public|private|protected|internal|static|final|abstract|virtual|override|async|unsafe|export|extern|inline|constexpr)\s+)*` +
	`(?:fn|func|function|def|class|struct|interface|enum|impl|trait|object|record|namespace|void|int|long|float|double|bool|char|auto|String|string)\b`)

// patternChunks detects declaration boundaries via a keyword regex plus a
// running open/close-brace balance. A chunk ends at the first line where the
// balance returns to zero after having gone positive. Returns nil when no
// boundary is found so the caller falls through to the window strategy.
func patternChunks(content []byte, rel, language string, opts Options) []Chunk {
	lines := strings.Split(string(content), "\n")
	var chunks []Chunk

	i := 0
	for i < len(lines) {
		if !declPattern.MatchString(lines[i]) {
			i++
			continue
		}

		start := i
		balance := 0
		wentPositive := false
		end := -1

		for j := i; j < len(lines); j++ {
			balance += strings.Count(lines[j], "{") - strings.Count(lines[j], "}")
			if balance > 0 {
				wentPositive = true
			}
			if wentPositive && balance <= 0 {
				end = j
				break
			}
			// A declaration that never opens a brace within a window is
			// abandoned; restart scanning after it.
			if !wentPositive && j-start > 10 {
				break
			}
		}

		if end == -1 {
			i++
			continue
		}

		text := strings.Join(lines[start:end+1], "\n")
		chunks = append(chunks, Chunk{
			ID:        chunkID(rel, text),
			File:      rel,
			StartLine: start + 1,
			EndLine:   end + 1,
			Language:  language,
			Text:      text,
		})
		i = end + 1

		if len(chunks) >= opts.MaxChunksPerFile {
			break
		}
	}

	return chunks
}
