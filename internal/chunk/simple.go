package chunk

import "strings"

// splitWindowed is the simple splitter: a fixed token window (TargetTokens,
// adaptively clamped to [MinWindowTokens, MaxWindowTokens]) advanced with
// OverlapTokens of shared trailing context between adjacent chunks. It never
// looks at heading structure, so every chunk carries an empty HeadingPath.
func (p *Processor) splitWindowed(text string) []splitResult {
	target := p.TargetTokens
	if target < MinWindowTokens {
		target = MinWindowTokens
	}
	if target > MaxWindowTokens {
		target = MaxWindowTokens
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var results []splitResult
	var current strings.Builder
	carry := ""

	flush := func() {
		body := strings.TrimSpace(current.String())
		if body == "" {
			return
		}
		results = append(results, splitResult{
			text:        body,
			headingPath: nil,
			sectionType: classifySection(body),
		})
		carry = overlapSuffix(body, p.OverlapTokens)
		current.Reset()
	}

	if carry != "" {
		current.WriteString(carry)
	}

	for _, sentence := range sentences {
		sentTokens := estimateTokens(sentence)

		if sentTokens > MaxWindowTokens {
			flush()
			for _, piece := range splitByTokenCount(sentence, target) {
				results = append(results, splitResult{text: piece, sectionType: classifySection(piece)})
			}
			continue
		}

		prospective := estimateTokens(current.String()) + sentTokens
		if current.Len() > 0 && prospective > target {
			flush()
			if carry != "" {
				current.WriteString(carry)
				current.WriteString(" ")
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush()

	return results
}

// splitByTokenCount slices an oversized single sentence (no internal
// boundary short of a space) into target-sized pieces at word boundaries.
func splitByTokenCount(text string, target int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var out []string
	var cur []string
	curTokens := 0
	for _, w := range words {
		wt := estimateTokens(w)
		if curTokens > 0 && curTokens+wt > target {
			out = append(out, strings.Join(cur, " "))
			cur = nil
			curTokens = 0
		}
		cur = append(cur, w)
		curTokens += wt
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}
