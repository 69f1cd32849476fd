package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_Process_ChunkIndicesAreContiguous(t *testing.T) {
	// Given: a structured document with several headings
	doc := DocumentInput{
		Path: "notes/2024/2024-03/example.md",
		Body: []byte(strings.Repeat("# Heading One\n\nSome prose that is reasonably short.\n\n", 3) +
			strings.Repeat("## Heading Two\n\nMore prose under a subheading.\n\n", 3)),
	}

	p := NewProcessor()

	// When: processing the document
	chunks := p.Process(doc)

	// Then: chunk indices are 0-based and contiguous
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestProcessor_Process_TokenCountWithinBounds(t *testing.T) {
	// Given: a long unstructured document with no headings
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("This is a plain sentence without any heading structure at all. ")
	}
	doc := DocumentInput{Path: "journal/loose.md", Body: []byte(b.String())}

	p := NewProcessor()

	// When: processing the document
	chunks := p.Process(doc)

	// Then: every chunk's token count stays within the adaptive window bound
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenCount, MaxWindowTokens+MinWindowTokens)
	}
}

func TestProcessor_Process_OverlapSharesTrailingContext(t *testing.T) {
	// Given: a document long enough to require more than one window
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Sentence number filler text goes here to pad the body out. ")
	}
	doc := DocumentInput{Path: "journal/long.md", Body: []byte(b.String())}

	p := NewProcessor()

	// When: processing the document
	chunks := p.Process(doc)

	// Then: the next chunk opens with context carried over from the
	// previous chunk's tail
	require.Greater(t, len(chunks), 1)
	firstWords := strings.Fields(chunks[0].Text)
	tail := firstWords[len(firstWords)-2]
	assert.Contains(t, chunks[1].Text, tail)
}

func TestProcessor_Process_HeadingPathIsOrdered(t *testing.T) {
	// Given: a document with nested headings
	doc := DocumentInput{
		Path: "guide.md",
		Body: []byte("# Top\n\nIntro text.\n\n## Middle\n\nMiddle text that is long enough to form its own chunk on its own merits here.\n\n### Leaf\n\nLeaf content goes here with enough words to be meaningful.\n"),
	}

	p := NewProcessor()

	// When: processing the document
	chunks := p.Process(doc)

	// Then: a chunk under the leaf heading carries the full ancestor path in order
	require.NotEmpty(t, chunks)
	found := false
	for _, c := range chunks {
		if len(c.HeadingPath) == 3 {
			assert.Equal(t, []string{"Top", "Middle", "Leaf"}, c.HeadingPath)
			found = true
		}
	}
	assert.True(t, found, "expected at least one chunk with a 3-level heading path")
}

func TestProcessor_Process_FrontmatterProducesLeadChunk(t *testing.T) {
	// Given: a document with frontmatter
	doc := DocumentInput{
		Path:        "page.md",
		Body:        []byte("# Heading\n\nBody text that is long enough to stand on its own as a section.\n"),
		Frontmatter: map[string]any{"title": "Example", "tags": []any{"a", "b"}},
	}

	p := NewProcessor()

	// When: processing the document
	chunks := p.Process(doc)

	// Then: the first chunk is the frontmatter section
	require.NotEmpty(t, chunks)
	assert.Equal(t, SectionFrontmatter, chunks[0].SectionType)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestProcessor_Process_EmptyBodyYieldsNoChunks(t *testing.T) {
	// Given: a document with only whitespace
	doc := DocumentInput{Path: "empty.md", Body: []byte("   \n\n  ")}

	p := NewProcessor()

	// When: processing the document
	chunks := p.Process(doc)

	// Then: no chunks are produced
	assert.Empty(t, chunks)
}

func TestGenerateChunkID_DeterministicPerPathIndexText(t *testing.T) {
	// Given: the same path, index, and text
	id1 := generateChunkID("a.md", 0, "hello")
	id2 := generateChunkID("a.md", 0, "hello")
	id3 := generateChunkID("a.md", 1, "hello")

	// Then: identical inputs produce identical ids, differing inputs differ
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestEstimateTokens_ApproximatesFourCharsPerToken(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 2, estimateTokens("abcde"))
}
