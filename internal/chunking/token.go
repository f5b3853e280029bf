package chunking

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCodec encodes text into a token sequence and back. The engine takes it
// as an interface so tests can run without fetching the BPE vocabulary.
type TokenCodec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenCodec struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCodec loads the cl100k_base encoding.
func NewTiktokenCodec() (TokenCodec, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading cl100k_base encoding: %w", err)
	}
	return &tiktokenCodec{enc: enc}, nil
}

func (c *tiktokenCodec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c *tiktokenCodec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}

// boundaryWindow is the final fraction of a token window in which a sentence
// boundary is close enough to trim back to.
const boundaryWindow = 0.75

// chunkTokens emits fixed-size token windows with the configured overlap and
// trims each non-final window back to the last sentence-ending punctuation
// when that boundary falls late enough in the window.
func chunkTokens(codec TokenCodec, text string, maxTokens, tokenOverlap int) []string {
	tokens := codec.Encode(text)
	if len(tokens) == 0 {
		return nil
	}
	stride := maxTokens - tokenOverlap

	var chunks []string
	for i := 0; i < len(tokens); i += stride {
		end := i + maxTokens
		last := false
		if end >= len(tokens) {
			end = len(tokens)
			last = true
		}
		chunkText := codec.Decode(tokens[i:end])
		if !last {
			if idx := strings.LastIndexAny(chunkText, ".!?"); idx >= 0 && float64(idx+1) > boundaryWindow*float64(len(chunkText)) {
				chunkText = chunkText[:idx+1]
			}
		}
		chunks = append(chunks, chunkText)
		if last {
			break
		}
	}
	return chunks
}
