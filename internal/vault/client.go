package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	vaerrors "github.com/amanmcp/vaultengine/internal/errors"
	"github.com/amanmcp/vaultengine/internal/telemetry"
)

var (
	headingPattern     = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)
	contentTagPattern  = regexp.MustCompile(`(?:^|\s)#([A-Za-z][\w/-]*)`)
	frontmatterPattern = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n---\r?\n?`)
	yearSegment        = regexp.MustCompile(`^\d{4}$`)
	yearMonthSegment   = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// Client is the vault client (C1): enumerates recognized files under a root
// directory and reads their content, frontmatter, and structural stats.
type Client struct {
	Root       string
	Extensions []string
	Metrics    *telemetry.Recorder
}

// New constructs a Client scoped to root, recognizing the given extensions
// (defaulting to .md when none given).
func New(root string, extensions []string, metrics *telemetry.Recorder) *Client {
	if len(extensions) == 0 {
		extensions = []string{".md"}
	}
	return &Client{Root: root, Extensions: extensions, Metrics: metrics}
}

// Enumerate walks the vault once, yielding DocumentMeta for every recognized
// file in path order. It is finite and restartable: callers may call it
// again to re-enumerate from scratch.
func (c *Client) Enumerate(ctx context.Context) ([]DocumentMeta, error) {
	var out []DocumentMeta
	absRoot, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if !c.recognized(path) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		out = append(out, DocumentMeta{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (c *Client) recognized(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range c.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// Read loads one vault-relative path, parsing frontmatter and extracting
// structural stats. On a transient I/O failure it retries with exponential
// backoff (up to 3 retries after the first attempt); if the path has vanished it returns a NotFound
// KindedError instead of retrying.
func (c *Client) Read(ctx context.Context, relPath string) (*Document, error) {
	absPath := filepath.Join(c.Root, filepath.FromSlash(relPath))

	var raw []byte
	var gone error
	cfg := vaerrors.DefaultRetryConfig()
	err := vaerrors.Retry(ctx, cfg, func() error {
		data, readErr := os.ReadFile(absPath)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				gone = vaerrors.NotFoundErr(fmt.Sprintf("path disappeared: %s", relPath), readErr)
				return nil
			}
			return vaerrors.TransientIo(fmt.Sprintf("read %s", relPath), readErr)
		}
		raw = data
		return nil
	})
	if gone != nil {
		return nil, gone
	}
	if err != nil {
		if vaerrors.GetKind(err) == vaerrors.KindNotFound {
			return nil, err
		}
		if kerr, ok := asKinded(err); ok {
			return nil, kerr
		}
		return nil, vaerrors.TransientIo(fmt.Sprintf("read %s after retries", relPath), err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, vaerrors.NotFoundErr(fmt.Sprintf("path disappeared: %s", relPath), err)
	}

	fm, body := c.parseFrontmatter(relPath, raw)
	stats := extractStats(body)
	digest := sha256.Sum256(body)

	year, month, category := parsePathSegments(relPath)

	return &Document{
		Path:         relPath,
		Body:         body,
		Frontmatter:  fm,
		ModTime:      info.ModTime(),
		Size:         info.Size(),
		Digest:       hex.EncodeToString(digest[:]),
		Stats:        stats,
		PathYear:     year,
		PathMonth:    month,
		PathCategory: category,
	}, nil
}

// parseFrontmatter strips and decodes a leading YAML frontmatter block. Any
// parse error degrades to an empty frontmatter map and emits a warning
// metric rather than failing ingestion of the document.
func (c *Client) parseFrontmatter(relPath string, raw []byte) (map[string]any, []byte) {
	m := frontmatterPattern.FindSubmatchIndex(raw)
	if m == nil {
		return map[string]any{}, raw
	}

	yamlBlock := raw[m[2]:m[3]]
	body := raw[m[1]:]

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil || fm == nil {
		slog.Warn("frontmatter parse error, degrading to empty",
			slog.String("path", relPath),
			slog.String("error", fmt.Sprint(err)))
		if c.Metrics != nil {
			c.Metrics.Counter("vault.frontmatter_parse_error", 1, map[string]string{"path": relPath})
		}
		return map[string]any{}, body
	}
	return fm, body
}

// parsePathSegments applies §4.1's path parsing rule: segments matching
// YYYY or YYYY-MM populate path_year/path_month; the first non-date segment
// becomes path_category.
func parsePathSegments(relPath string) (year, month, category string) {
	segments := strings.Split(filepath.ToSlash(filepath.Dir(relPath)), "/")
	for _, seg := range segments {
		switch {
		case seg == ".", seg == "":
			continue
		case yearMonthSegment.MatchString(seg):
			month = seg
			year = seg[:4]
		case yearSegment.MatchString(seg):
			if year == "" {
				year = seg
			}
		case category == "":
			category = seg
		}
	}
	return
}

// extractStats walks body once, collecting heading titles, word/token
// counts, and #tag occurrences.
func extractStats(body []byte) Stats {
	text := string(body)

	var headings []string
	for _, m := range headingPattern.FindAllStringSubmatch(text, -1) {
		headings = append(headings, strings.TrimSpace(m[2]))
	}

	words := strings.Fields(text)
	wordCount := len(words)
	tokenCount := (len(text) + 3) / 4 // TokensPerChar = 4, matching C2/C3

	seen := map[string]bool{}
	var tags []string
	for _, m := range contentTagPattern.FindAllStringSubmatch(text, -1) {
		tag := m[1]
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	return Stats{
		Headings:    headings,
		WordCount:   wordCount,
		TokenCount:  tokenCount,
		ContentTags: tags,
	}
}

func asKinded(err error) (*vaerrors.KindedError, bool) {
	ke, ok := err.(*vaerrors.KindedError)
	return ke, ok
}
