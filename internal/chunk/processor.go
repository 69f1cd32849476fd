package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	headingLinePattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)
	codeFencePattern   = regexp.MustCompile(`(?m)^\s*(?:` + "```" + `|~~~)`)
	listLinePattern    = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+`)
	tableLinePattern   = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)
)

// Processor is the content processor (C2): it turns a document body into an
// ordered list of chunks, choosing between a structural splitter (heading
// hierarchy aware) and a simple fixed-window splitter based on a complexity
// score computed over the document.
type Processor struct {
	MaxChunkTokens int
	OverlapTokens  int
	TargetTokens   int
}

// NewProcessor builds a Processor with the §4.2 defaults.
func NewProcessor() *Processor {
	return &Processor{
		MaxChunkTokens: DefaultMaxChunkTokens,
		OverlapTokens:  DefaultOverlapTokens,
		TargetTokens:   DefaultTargetTokens,
	}
}

// Process splits doc into chunks, attaching full metadata to each.
func (p *Processor) Process(doc DocumentInput) []*Chunk {
	text := string(doc.Body)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var bodies []splitResult
	if len(doc.Frontmatter) > 0 {
		bodies = append(bodies, splitResult{
			text:        renderFrontmatter(doc.Frontmatter),
			sectionType: SectionFrontmatter,
		})
	}
	if p.complexityScore(text) >= ComplexityThreshold {
		bodies = append(bodies, p.splitStructural(text)...)
	} else {
		bodies = append(bodies, p.splitWindowed(text)...)
	}

	fmKeys, fmTags := frontmatterKeysAndTags(doc.Frontmatter)
	fileType := strings.TrimPrefix(filepath.Ext(doc.Path), ".")
	now := doc.ModTime
	if now.IsZero() {
		now = time.Now()
	}

	chunks := make([]*Chunk, 0, len(bodies))
	for i, b := range bodies {
		tokens := estimateTokens(b.text)
		c := &Chunk{
			ID:                  generateChunkID(doc.Path, i, b.text),
			Text:                b.text,
			TokenCount:          tokens,
			ChunkIndex:          i,
			HeadingPath:         b.headingPath,
			SectionType:         b.sectionType,
			Path:                doc.Path,
			PathYear:            doc.PathYear,
			PathMonth:           doc.PathMonth,
			PathCategory:        doc.PathCategory,
			FileCreated:         doc.ModTime,
			FileModified:        doc.ModTime,
			FileType:            fileType,
			FrontmatterKeys:     fmKeys,
			FrontmatterTags:     fmTags,
			ContentTags:         doc.ContentTags,
			ChunkCreated:        now,
			ContentQualityScore: contentQualityScore(b.text, tokens),
		}
		chunks = append(chunks, c)
	}
	return chunks
}

type splitResult struct {
	text        string
	headingPath []string
	sectionType SectionType
}

// complexityScore combines heading density, code-fence density, list depth,
// and average paragraph length into a single [0,1] signal. Documents scoring
// at or above ComplexityThreshold are split structurally; simpler documents
// (long unstructured prose, few or no headings) use the fixed window.
func (p *Processor) complexityScore(text string) float64 {
	headingCount := len(headingLinePattern.FindAllString(text, -1))
	codeFenceCount := len(codeFencePattern.FindAllString(text, -1))
	listDepth := maxListDepth(text)
	avgParaTokens := averageParagraphTokens(text)

	normHeadings := clamp01(float64(headingCount) / 10.0)
	normCodeFence := clamp01(float64(codeFenceCount) / 5.0)
	normListDepth := clamp01(float64(listDepth) / 3.0)
	normShortParagraphs := clamp01(1.0 - float64(avgParaTokens)/400.0)

	return 0.4*normHeadings + 0.25*normCodeFence + 0.15*normListDepth + 0.2*normShortParagraphs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxListDepth(text string) int {
	depth := 0
	for _, line := range strings.Split(text, "\n") {
		if !listLinePattern.MatchString(line) {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		d := indent/2 + 1
		if d > depth {
			depth = d
		}
	}
	return depth
}

func averageParagraphTokens(text string) float64 {
	paras := splitParagraphs(text)
	if len(paras) == 0 {
		return 0
	}
	total := 0
	for _, p := range paras {
		total += estimateTokens(p)
	}
	return float64(total) / float64(len(paras))
}

func classifySection(text string) SectionType {
	switch {
	case codeFencePattern.MatchString(text):
		return SectionCode
	case tableLinePattern.MatchString(text):
		return SectionTable
	case listLinePattern.MatchString(text):
		return SectionList
	default:
		return SectionProse
	}
}

func generateChunkID(path string, index int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", path, index, text)))
	return hex.EncodeToString(h[:])[:16]
}

func estimateTokens(s string) int {
	n := len(strings.TrimSpace(s))
	if n == 0 {
		return 0
	}
	return (n + TokensPerChar - 1) / TokensPerChar
}

// renderFrontmatter produces a stable, human-readable rendering of a
// document's frontmatter so it can be embedded and searched like any other
// chunk of text.
func renderFrontmatter(fm map[string]any) string {
	keys := make([]string, 0, len(fm))
	for k := range fm {
		keys = append(keys, k)
	}
	sortStrings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, fm[k])
	}
	return strings.TrimSpace(b.String())
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

func frontmatterKeysAndTags(fm map[string]any) (keys []string, tags []string) {
	for k := range fm {
		keys = append(keys, k)
	}
	if raw, ok := fm["tags"]; ok {
		switch v := raw.(type) {
		case []any:
			for _, t := range v {
				if s, ok := t.(string); ok {
					tags = append(tags, s)
				}
			}
		case []string:
			tags = append(tags, v...)
		case string:
			tags = append(tags, v)
		}
	}
	return keys, tags
}

// contentQualityScore is a cheap heuristic in [0,1]: chunks near the target
// size with some sentence structure score higher than fragments or walls of
// text with no punctuation.
func contentQualityScore(text string, tokens int) float64 {
	if tokens == 0 {
		return 0
	}
	sizeFit := 1.0 - absFloat(float64(tokens-DefaultTargetTokens))/float64(DefaultTargetTokens)
	sizeFit = clamp01(sizeFit)

	sentences := len(sentenceBoundaryPattern.FindAllString(text, -1)) + 1
	density := clamp01(float64(sentences) / (float64(tokens)/20.0 + 1))

	return clamp01(0.6*sizeFit + 0.4*density)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
