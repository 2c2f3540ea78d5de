package excerpt

import "strings"

// Chunk is one piece of a split document, with the byte offset of its
// first word in the original text.
type Chunk struct {
	Text   string
	Offset int
}

// Splitter splits text into word-bounded chunks of roughly chunkTokens
// words, with fractional overlap between consecutive chunks. A trailing
// chunk smaller than lastChunkThreshold*chunkTokens merges into its
// predecessor.
type Splitter struct {
	chunkTokens        int
	overlap            float64
	lastChunkThreshold float64
}

func NewSplitter(chunkTokens int, overlap, lastChunkThreshold float64) *Splitter {
	if chunkTokens <= 0 {
		chunkTokens = 300
	}
	if overlap < 0 || overlap > 1 {
		overlap = 0.1
	}
	if lastChunkThreshold <= 0 || lastChunkThreshold > 1 {
		lastChunkThreshold = 0.25
	}
	return &Splitter{
		chunkTokens:        chunkTokens,
		overlap:            overlap,
		lastChunkThreshold: lastChunkThreshold,
	}
}

type word struct {
	text   string
	offset int
}

// Split returns chunks covering the whole text in order.
func (s *Splitter) Split(text string) []Chunk {
	words := fieldsWithOffsets(text)
	if len(words) == 0 {
		return nil
	}

	step := s.chunkTokens - int(s.overlap*float64(s.chunkTokens))
	if step <= 0 {
		step = 1
	}

	var chunks []Chunk
	for start := 0; start < len(words); start += step {
		end := start + s.chunkTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Text:   joinWords(words[start:end]),
			Offset: words[start].offset,
		})
		if end == len(words) {
			break
		}
	}

	// Merge an undersized trailing chunk into the one before it.
	if len(chunks) > 1 {
		lastWords := len(strings.Fields(chunks[len(chunks)-1].Text))
		if float64(lastWords) < float64(s.chunkTokens)*s.lastChunkThreshold {
			prev := &chunks[len(chunks)-2]
			prev.Text = prev.Text + " " + chunks[len(chunks)-1].Text
			chunks = chunks[:len(chunks)-1]
		}
	}

	return chunks
}

// EstimateTokens approximates the token count of text for budget
// bookkeeping. Word count times 1.3 tracks subword tokenizers closely
// enough for prose.
func EstimateTokens(text string) int {
	n := len(strings.Fields(text))
	if n == 0 {
		return 0
	}
	return int(float64(n) * 1.3)
}

func fieldsWithOffsets(text string) []word {
	var words []word
	start := -1
	for i, r := range text {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if start >= 0 {
				words = append(words, word{text: text[start:i], offset: start})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{text: text[start:], offset: start})
	}
	return words
}

func joinWords(words []word) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.text)
	}
	return b.String()
}
