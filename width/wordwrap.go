// ABOUTME: Whitespace-aware word wrapping with byte-offset-tracked chunks
// ABOUTME: WordWrapLine mirrors the editor's visual layout so navigation matches what's on screen

package width

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Chunk is one wrapped piece of a logical line, along with the byte offsets
// into the original line it was cut from.
type Chunk struct {
	Text       string
	StartIndex int
	EndIndex   int
}

type wrapToken struct {
	text    string
	start   int
	end     int
	width   int
	isSpace bool
}

// WordWrapLine splits line into chunks of visible width <= maxWidth, breaking
// at the last whitespace-to-non-whitespace transition that fits. A run of
// whitespace never breaks in its own middle. A single grapheme cluster wider
// than maxWidth is never split; it is emitted alone in its own chunk.
//
// Concatenating the returned chunks' Text, re-inserting the whitespace run
// each break consumed (line[prev.EndIndex:next.StartIndex]), reproduces line
// exactly.
func WordWrapLine(line string, maxWidth int) []Chunk {
	if maxWidth < 1 {
		maxWidth = 1
	}
	if line == "" {
		return []Chunk{{Text: "", StartIndex: 0, EndIndex: 0}}
	}
	return wrapTokens(tokenize(line), maxWidth)
}

func tokenize(line string) []wrapToken {
	var toks []wrapToken
	i := 0
	for i < len(line) {
		cluster, rest, _, _ := uniseg.FirstGraphemeClusterInString(line[i:], -1)
		clusterLen := len(line[i:]) - len(rest)
		toks = append(toks, wrapToken{
			text:    cluster,
			start:   i,
			end:     i + clusterLen,
			width:   graphemeWidth(cluster),
			isSpace: isWrapSpace(cluster),
		})
		i += clusterLen
	}
	return toks
}

// isWrapSpace reports whether a single-byte grapheme cluster is a wrap point.
// Multi-byte clusters (combining marks, wide characters) are never treated
// as whitespace.
func isWrapSpace(cluster string) bool {
	return len(cluster) == 1 && (cluster[0] == ' ' || cluster[0] == '\t')
}

// wrapTokens packs tokens into width-bounded chunks. Each call to nextChunk
// advances past exactly one chunk (possibly empty when a whitespace run is
// dropped as a pure separator), guaranteeing forward progress.
func wrapTokens(toks []wrapToken, maxWidth int) []Chunk {
	var chunks []Chunk
	n := len(toks)
	pos := 0
	for pos < n {
		end, next := nextChunk(toks, pos, maxWidth)
		if end > pos {
			chunks = append(chunks, buildChunk(toks, pos, end))
		}
		if next <= pos {
			next = pos + 1 // safety net against non-progress
		}
		pos = next
	}
	if len(chunks) == 0 {
		chunks = []Chunk{{Text: "", StartIndex: 0, EndIndex: 0}}
	}
	return chunks
}

// nextChunk greedily extends a chunk starting at pos until adding the next
// whitespace-run-plus-word would overflow maxWidth, then reports where the
// chunk ends and where the next chunk should begin (skipping a dropped
// whitespace separator, if that's why this chunk stopped).
func nextChunk(toks []wrapToken, pos, maxWidth int) (end, next int) {
	n := len(toks)
	width := 0
	end = pos
	for end < n {
		t := toks[end]
		if t.isSpace {
			wsEnd := end
			for wsEnd < n && toks[wsEnd].isSpace {
				wsEnd++
			}
			wordEnd := wsEnd
			for wordEnd < n && !toks[wordEnd].isSpace {
				wordEnd++
			}
			if wordEnd == wsEnd {
				// Trailing whitespace with nothing after it.
				if width == 0 {
					end += fitWithin(toks[end:wsEnd], maxWidth)
				}
				return end, end
			}

			wsWidth := sumWidth(toks[end:wsEnd])
			wordWidth := sumWidth(toks[wsEnd:wordEnd])
			if width+wsWidth+wordWidth <= maxWidth {
				width += wsWidth + wordWidth
				end = wordEnd
				continue
			}
			// The whitespace run is the break point; drop it entirely.
			return end, wsEnd
		}

		wordEnd := end
		for wordEnd < n && !toks[wordEnd].isSpace {
			wordEnd++
		}
		wordWidth := sumWidth(toks[end:wordEnd])
		if width == 0 {
			if wordWidth <= maxWidth {
				width = wordWidth
				end = wordEnd
				continue
			}
			// Oversized leading word: hard-break at the grapheme boundary
			// that first overflows.
			end += fitWithin(toks[end:wordEnd], maxWidth)
			return end, end
		}
		// Maximal whitespace/word runs alternate by construction, so a bare
		// word run is never reached here once width > 0. Defensive stop.
		return end, end
	}
	return end, end
}

// fitWithin returns how many leading tokens fit within budget visible
// columns. A single token wider than budget is still taken alone (the
// "intrinsically wider than max_width" exception), guaranteeing callers make
// progress even when budget is tight.
func fitWithin(toks []wrapToken, budget int) int {
	w := 0
	for i, t := range toks {
		if w == 0 && t.width > budget {
			return 1
		}
		if w+t.width > budget {
			return i
		}
		w += t.width
	}
	return len(toks)
}

func sumWidth(toks []wrapToken) int {
	w := 0
	for _, t := range toks {
		w += t.width
	}
	return w
}

func buildChunk(toks []wrapToken, start, end int) Chunk {
	var b strings.Builder
	for _, t := range toks[start:end] {
		b.WriteString(t.text)
	}
	return Chunk{Text: b.String(), StartIndex: toks[start].start, EndIndex: toks[end-1].end}
}
