// Package chunk implements the content processor (C2): splitting a vault
// document's body into retrievable chunks and attaching the metadata fields
// every chunk must carry regardless of which splitting strategy produced it.
package chunk

import "time"

// Token budget defaults. TargetTokens/OverlapTokens drive the fixed-window
// splitter; MaxChunkTokens bounds the structural splitter's leaf sections.
const (
	DefaultMaxChunkTokens = 512 // structural splitter's hard ceiling per section
	DefaultOverlapTokens  = 64  // shared tokens between adjacent chunks
	MinChunkTokens        = 100 // not consulted by either splitter; short chunks are kept as produced
	TokensPerChar         = 4   // rough approximation: 4 chars = 1 token

	DefaultTargetTokens = 340 // fixed-window splitter's nominal chunk size
	MinWindowTokens     = 15  // adaptive lower bound for the fixed window
	MaxWindowTokens     = 705 // adaptive upper bound for the fixed window

	ComplexityThreshold = 0.5 // >= threshold selects the structural splitter
)

// SectionType classifies the dominant content of a chunk.
type SectionType string

const (
	SectionProse       SectionType = "prose"
	SectionCode        SectionType = "code"
	SectionList        SectionType = "list"
	SectionTable       SectionType = "table"
	SectionFrontmatter SectionType = "frontmatter"
)

// Chunk is a retrievable unit of a document's content, carrying every
// metadata field a search result can filter or display on.
type Chunk struct {
	ID         string
	Text       string
	TokenCount int
	ChunkIndex int

	HeadingPath []string
	SectionType SectionType

	Path         string
	PathYear     string
	PathMonth    string
	PathCategory string

	FileCreated  time.Time
	FileModified time.Time
	FileType     string

	FrontmatterKeys []string
	FrontmatterTags []string
	ContentTags     []string

	ChunkCreated        time.Time
	ContentQualityScore float64
}

// DocumentInput is what the processor needs from a vault document to split
// it: the stripped body plus everything the chunk metadata is derived from.
type DocumentInput struct {
	Path         string
	Body         []byte
	Frontmatter  map[string]any
	ModTime      time.Time
	Size         int64
	PathYear     string
	PathMonth    string
	PathCategory string
	ContentTags  []string
}
