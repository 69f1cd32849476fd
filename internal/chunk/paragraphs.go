package chunk

import (
	"regexp"
	"strings"
)

var (
	paragraphSplitPattern   = regexp.MustCompile(`\n\s*\n`)
	sentenceBoundaryPattern = regexp.MustCompile(`[.!?]['")\]]?\s+`)
)

// splitParagraphs splits text on blank lines, re-merging any paragraph break
// that falls inside an unclosed code fence so a fenced block is never torn
// in half.
func splitParagraphs(text string) []string {
	raw := paragraphSplitPattern.Split(text, -1)
	var out []string
	var pending strings.Builder
	inFence := false

	for _, p := range raw {
		if pending.Len() > 0 {
			pending.WriteString("\n\n")
		}
		pending.WriteString(p)

		fences := len(codeFencePattern.FindAllString(p, -1))
		if fences%2 != 0 {
			inFence = !inFence
		}
		if inFence {
			continue
		}
		trimmed := strings.TrimSpace(pending.String())
		if trimmed != "" {
			out = append(out, trimmed)
		}
		pending.Reset()
	}
	if pending.Len() > 0 {
		if trimmed := strings.TrimSpace(pending.String()); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitSentences breaks text at sentence boundaries, keeping the terminal
// punctuation with the preceding sentence. Falls back to the whole string
// when no boundary is found.
func splitSentences(text string) []string {
	idxs := sentenceBoundaryPattern.FindAllStringIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}
	var out []string
	start := 0
	for _, m := range idxs {
		out = append(out, text[start:m[1]])
		start = m[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return trimAll(out)
}

func trimAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// overlapSuffix returns the trailing portion of text worth roughly
// overlapTokens tokens, cut at a sentence boundary when one exists within the
// window, otherwise at a token (word) boundary.
func overlapSuffix(text string, overlapTokens int) string {
	if overlapTokens <= 0 {
		return ""
	}
	overlapChars := overlapTokens * TokensPerChar
	if overlapChars >= len(text) {
		return text
	}
	window := text[len(text)-overlapChars:]

	if idx := strings.IndexAny(window, ".!?"); idx >= 0 && idx+1 < len(window) {
		return strings.TrimSpace(window[idx+1:])
	}
	if idx := strings.IndexByte(window, ' '); idx >= 0 {
		return strings.TrimSpace(window[idx:])
	}
	return strings.TrimSpace(window)
}
