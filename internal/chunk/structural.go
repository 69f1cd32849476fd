package chunk

import "strings"

type headingSection struct {
	level       int
	headingPath []string
	content     string
}

// splitStructural descends the document's heading hierarchy, emitting one
// section per leaf and subdividing any section that exceeds MaxChunkTokens
// into paragraph-, then sentence-, then token-bounded pieces, carrying
// OverlapTokens of shared context between the pieces it produces.
func (p *Processor) splitStructural(text string) []splitResult {
	sections := parseHeadingSections(text)
	if len(sections) == 0 {
		sections = []headingSection{{content: text}}
	}

	var results []splitResult
	for _, sec := range sections {
		body := strings.TrimSpace(sec.content)
		if body == "" {
			continue
		}
		if estimateTokens(body) <= p.MaxChunkTokens {
			results = append(results, splitResult{
				text:        body,
				headingPath: sec.headingPath,
				sectionType: classifySection(body),
			})
			continue
		}
		results = append(results, p.subdivide(body, sec.headingPath)...)
	}
	return results
}

// parseHeadingSections walks the document line by line, maintaining a stack
// of open headings (one slot per level 1..6) so each emitted section carries
// the ordered titles of every ancestor heading.
func parseHeadingSections(text string) []headingSection {
	lines := strings.Split(text, "\n")
	var stack [6]string
	var sections []headingSection
	var current strings.Builder
	var currentPath []string
	level := 0
	inFence := false

	flush := func() {
		if strings.TrimSpace(current.String()) == "" {
			return
		}
		pathCopy := append([]string(nil), currentPath...)
		sections = append(sections, headingSection{level: level, headingPath: pathCopy, content: current.String()})
		current.Reset()
	}

	for _, line := range lines {
		if codeFencePattern.MatchString(line) {
			inFence = !inFence
		}
		if !inFence {
			if m := headingLinePattern.FindStringSubmatch(line); m != nil {
				flush()
				lvl := len(m[1])
				title := strings.TrimSpace(m[2])
				for i := lvl; i < len(stack); i++ {
					stack[i] = ""
				}
				stack[lvl-1] = title
				level = lvl
				currentPath = currentPath[:0]
				for _, t := range stack {
					if t != "" {
						currentPath = append(currentPath, t)
					}
				}
				continue
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()
	return sections
}

// subdivide breaks an oversized section into MaxChunkTokens-bounded pieces,
// descending paragraph -> sentence -> token until each piece fits, and
// stitching OverlapTokens of trailing context from one piece into the start
// of the next so no boundary loses context entirely.
func (p *Processor) subdivide(body string, headingPath []string) []splitResult {
	paragraphs := splitParagraphs(body)
	if len(paragraphs) == 0 {
		paragraphs = []string{body}
	}

	var results []splitResult
	var current strings.Builder
	carry := ""

	flush := func() {
		piece := strings.TrimSpace(current.String())
		if piece == "" {
			return
		}
		results = append(results, splitResult{text: piece, headingPath: headingPath, sectionType: classifySection(piece)})
		carry = overlapSuffix(piece, p.OverlapTokens)
		current.Reset()
	}

	if carry != "" {
		current.WriteString(carry)
	}

	for _, para := range paragraphs {
		paraTokens := estimateTokens(para)

		if paraTokens > p.MaxChunkTokens {
			flush()
			for _, sentencePiece := range splitSentenceBounded(para, p.MaxChunkTokens, p.OverlapTokens) {
				results = append(results, splitResult{text: sentencePiece, headingPath: headingPath, sectionType: classifySection(sentencePiece)})
			}
			continue
		}

		prospective := estimateTokens(current.String()) + paraTokens
		if current.Len() > 0 && prospective > p.MaxChunkTokens {
			flush()
			if carry != "" {
				current.WriteString(carry)
				current.WriteString("\n\n")
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return results
}

// splitSentenceBounded handles a single paragraph too large to fit even
// alone, breaking it at sentence boundaries and, if a sentence itself is
// still oversized, at word boundaries.
func splitSentenceBounded(text string, maxTokens, overlapTokens int) []string {
	sentences := splitSentences(text)
	var out []string
	var current strings.Builder
	carry := ""

	flush := func() {
		piece := strings.TrimSpace(current.String())
		if piece == "" {
			return
		}
		out = append(out, piece)
		carry = overlapSuffix(piece, overlapTokens)
		current.Reset()
	}
	if carry != "" {
		current.WriteString(carry)
	}

	for _, s := range sentences {
		st := estimateTokens(s)
		if st > maxTokens {
			flush()
			out = append(out, splitByTokenCount(s, maxTokens)...)
			continue
		}
		prospective := estimateTokens(current.String()) + st
		if current.Len() > 0 && prospective > maxTokens {
			flush()
			if carry != "" {
				current.WriteString(carry)
				current.WriteString(" ")
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	flush()
	return out
}
