// Package vault implements the vault client (C1): enumerating vault files
// and reading their bytes, frontmatter, and structural stats.
package vault

import "time"

// DocumentMeta is the lightweight record enumerate() yields per file.
type DocumentMeta struct {
	Path    string // vault-relative, slash-separated
	Size    int64
	ModTime time.Time
}

// ContentTag is a single #tag occurrence extracted from a document body.
type ContentTag = string

// Stats holds structural statistics extracted while reading a document.
type Stats struct {
	Headings    []string // heading titles in document order
	WordCount   int
	TokenCount  int
	ContentTags []string // deduped, order of first occurrence
}

// Document is the full result of read(path): bytes plus everything derived
// from them.
type Document struct {
	Path        string
	Body        []byte // content with frontmatter stripped
	Frontmatter map[string]any
	ModTime     time.Time
	Size        int64
	Digest      string // sha256 hex of Body
	Stats       Stats

	PathYear     string
	PathMonth    string
	PathCategory string
}
