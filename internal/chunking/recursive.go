package chunking

import (
	"strings"
	"unicode/utf8"
)

// Separator priority for recursive splitting: paragraph, line, sentence,
// space, then hard character cuts as the last resort.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// chunkRecursive splits text on the separator priority list until every
// fragment fits, then packs fragments into windows of at most chunkSize runes
// where each window after the first starts with the exact `overlap`-rune tail
// of the text emitted before it. Splits keep their separators attached, so
// stripping that overlap prefix from every chunk after the first and
// concatenating reconstructs the input byte for byte.
func chunkRecursive(text string, chunkSize, overlap int) []string {
	coreMax := chunkSize - overlap
	if coreMax <= 0 {
		coreMax = chunkSize
	}
	fragments := splitFragments(text, coreMax, recursiveSeparators)

	// Pack fragments into core segments of at most coreMax runes.
	var cores []string
	var sb strings.Builder
	curLen := 0
	for _, frag := range fragments {
		n := utf8.RuneCountInString(frag)
		if curLen > 0 && curLen+n > coreMax {
			cores = append(cores, sb.String())
			sb.Reset()
			curLen = 0
		}
		sb.WriteString(frag)
		curLen += n
	}
	if sb.Len() > 0 {
		cores = append(cores, sb.String())
	}

	chunks := make([]string, 0, len(cores))
	emitted := ""
	for i, c := range cores {
		if i == 0 || overlap == 0 {
			chunks = append(chunks, c)
		} else {
			chunks = append(chunks, tailRunes(emitted, overlap)+c)
		}
		emitted += c
	}
	return chunks
}

// splitFragments recursively splits text so that every returned fragment is at
// most maxLen runes and their concatenation equals text exactly.
func splitFragments(text string, maxLen int, seps []string) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if len(seps) == 0 || seps[0] == "" {
		return hardSplit(text, maxLen)
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) == 1 {
		return splitFragments(text, maxLen, seps[1:])
	}
	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= maxLen {
			out = append(out, part)
		} else {
			out = append(out, splitFragments(part, maxLen, seps[1:])...)
		}
	}
	return out
}

// hardSplit cuts text into maxLen-rune pieces on rune boundaries.
func hardSplit(text string, maxLen int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += maxLen {
		end := i + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
