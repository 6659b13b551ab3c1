// Package segment splits input text into bounded-length pieces at sentence
// boundaries, preserving read order.
package segment

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLen bounds a segment's length in runes when the caller does not
// specify one.
const DefaultMaxLen = 300

// terminators are the sentence-ending runes recognized by Split, covering
// both half-width and full-width punctuation.
var terminators = map[rune]bool{
	'.': true, '?': true, '!': true, ';': true, ':': true,
	'。': true, '？': true, '！': true, '；': true, '：': true,
}

// Split cuts text into ordered pieces of at most maxLen runes each, breaking
// only at sentence-ending punctuation. Consecutive sentences are packed
// greedily into one piece until the next sentence would overflow it. A single
// sentence longer than maxLen is emitted unsplit rather than truncated.
// Whitespace-only remainders ride along with a neighboring piece instead of
// becoming pieces of their own; concatenating the result reproduces the input.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if text == "" {
		return nil
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if strings.TrimSpace(buf.String()) == "" {
			if len(chunks) > 0 && buf.Len() > 0 {
				chunks[len(chunks)-1] += buf.String()
			}
		} else {
			chunks = append(chunks, buf.String())
		}
		buf.Reset()
		bufLen = 0
	}

	for _, sentence := range sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if strings.TrimSpace(sentence) == "" {
			// Invisible content never forces a new chunk.
			buf.WriteString(sentence)
			bufLen += n
			continue
		}
		if bufLen > 0 && bufLen+n > maxLen {
			flush()
		}
		buf.WriteString(sentence)
		bufLen += n
	}
	if buf.Len() > 0 {
		flush()
	}
	return chunks
}

// sentences cuts text after every run of sentence-ending punctuation. Text
// with no terminators comes back as a single sentence.
func sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !terminators[runes[i]] {
			continue
		}
		for i+1 < len(runes) && terminators[runes[i+1]] {
			i++
		}
		out = append(out, string(runes[start:i+1]))
		start = i + 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}
