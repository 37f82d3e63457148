// Package chunk splits text into token-bounded pieces with configurable
// overlap. Used to keep LLM conversation windows and tool
// inputs within a model's context budget.
package chunk

import "strings"

// Options configures Split.
type Options struct {
	// MaxTokens is the maximum estimated token count per chunk.
	MaxTokens int
	// OverlapTokens is how many trailing tokens of the previous chunk are
	// repeated at the start of the next, to preserve local context.
	OverlapTokens int
}

func (o *Options) defaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = 512
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	}
}

// Chunk is one piece of a split text.
type Chunk struct {
	Text        string
	Index       int
	TokenCount  int
	OverlapPrev int // tokens repeated from the previous chunk
}

// CountTokens returns the exact whitespace-delimited word count.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens approximates a model tokenizer's count using a
// characters-per-token heuristic (~4 chars/token for English prose),
// blended with the word count so short texts aren't under-counted.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byChars := len(text) / 4
	byWords := CountTokens(text)
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// Split breaks text into chunks no larger than Options.MaxTokens tokens,
// breaking on word boundaries by word count alone: paragraph boundaries
// ("\n\n") do not move a chunk boundary, and chunk text joins words with
// single spaces. Each chunk after the first repeats up to OverlapTokens
// words from the end of the previous chunk.
func Split(text string, opts Options) []Chunk {
	if text == "" {
		return nil
	}
	opts.defaults()

	if CountTokens(text) <= opts.MaxTokens {
		return []Chunk{{Text: text, Index: 0, TokenCount: CountTokens(text)}}
	}

	paragraphs := strings.Split(text, "\n\n")
	var words []string
	for i, p := range paragraphs {
		words = append(words, strings.Fields(p)...)
		if i < len(paragraphs)-1 {
			words = append(words, " PARA ")
		}
	}

	var chunks []Chunk
	var cur []string
	overlap := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		text := renderWords(cur)
		chunks = append(chunks, Chunk{
			Text:        text,
			Index:       len(chunks),
			TokenCount:  CountTokens(text),
			OverlapPrev: overlap,
		})
	}

	for _, w := range words {
		if w == " PARA " {
			if len(cur) >= opts.MaxTokens {
				flush()
				cur = overlapTail(cur, opts.OverlapTokens)
				overlap = len(cur)
			}
			continue
		}
		cur = append(cur, w)
		if len(cur) >= opts.MaxTokens {
			flush()
			cur = overlapTail(cur, opts.OverlapTokens)
			overlap = len(cur)
		}
	}
	flush()

	return chunks
}

func overlapTail(words []string, n int) []string {
	if n <= 0 || n >= len(words) {
		return nil
	}
	tail := make([]string, n)
	copy(tail, words[len(words)-n:])
	return tail
}

func renderWords(words []string) string {
	return strings.Join(words, " ")
}
