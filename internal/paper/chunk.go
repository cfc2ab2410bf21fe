package paper

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the default number of words per chunk.
const DefaultChunkSize = 250

// DefaultOverlap is the default number of words shared between adjacent chunks.
const DefaultOverlap = 15

// DefaultMinLen is the minimum word count for a trailing chunk; shorter
// remainders are merged into the previous chunk.
const DefaultMinLen = 50

// Chunk splits text into pieces of roughly size words, with overlap words
// repeated at each cut and an ellipsis marking both sides of the join.
// Text of at most size+minLen words is returned as a single chunk. The scan
// counts word boundaries character by character so the overlap is literal
// text, rewound from the cut by the character length of the last overlap
// words. A final remainder shorter than minLen words is appended to the last
// chunk instead of emitted on its own.
func Chunk(text string, size, overlap, minLen int) []string {
	if len(strings.Fields(text)) <= size+minLen {
		return []string{text}
	}

	var chunks []string
	start := 0
	end := 1
	numWords := 0
	chrOverlap := 0
	for end < len(text) {
		if (text[end] == ' ' || text[end] == '\n') && end-start > 1 {
			numWords++
			if numWords >= size {
				next := text[start:end]
				if len(chunks) > 0 {
					chunks[len(chunks)-1] += "..."
					next = "... " + next
				}
				chunks = append(chunks, next)

				// Rewind by the character length of the trailing overlap
				// words plus one separator per word.
				words := strings.Fields(next)
				tail := words
				if len(tail) > overlap {
					tail = tail[len(tail)-overlap:]
				}
				chrOverlap = overlap - 1
				for _, w := range tail {
					chrOverlap += len(w)
				}
				start = end - chrOverlap
				end = start
				numWords = 0
			}
		}
		end++
	}

	if numWords < minLen {
		chunks[len(chunks)-1] += text[start+chrOverlap:]
	} else {
		chunks[len(chunks)-1] += "..."
		chunks = append(chunks, "... "+text[start:end])
	}
	return chunks
}

// UniqueContent returns the section's content with any span matching
// "<subsection title>...<subsection content>" removed for each immediate
// subsection, so the same prose is not indexed under both parent and child.
func UniqueContent(s *Section) string {
	if len(s.Subsections) == 0 {
		return s.Content
	}

	unique := s.Content
	for _, sub := range s.Subsections {
		pattern := "(?s)" + regexp.QuoteMeta(sub.Title) + ".*?" + regexp.QuoteMeta(sub.Content)
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		unique = re.ReplaceAllString(unique, "")
	}
	return unique
}
