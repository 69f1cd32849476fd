package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	searchpkg "github.com/amanmcp/vaultengine/internal/search"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var path string
	var topK int
	var keyword string
	var useRerank bool
	var useExpansion bool
	var noCache bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vault for semantically similar chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(path)
			if err != nil {
				return err
			}

			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Search.Search(cmd.Context(), searchpkg.Query{
				Text:          strings.Join(args, " "),
				TopK:          topK,
				KeywordFilter: keyword,
				UseCache:      !noCache,
				UseRerank:     useRerank,
				UseExpansion:  useExpansion,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if resp.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: query deadline exceeded, showing vector-only results")
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}

			for i, r := range resp.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %.3f  %s#%d\n", i+1, r.Score, r.Chunk.Path, r.Chunk.ChunkIndex)
				fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", truncate(r.Chunk.Text, 160))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Vault root (default: current directory)")
	cmd.Flags().IntVar(&topK, "top-k", 10, "Number of results to return")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Require this literal substring in matching chunks")
	cmd.Flags().BoolVar(&useRerank, "rerank", false, "Rerank candidates with the cross-encoder")
	cmd.Flags().BoolVar(&useExpansion, "expand", false, "Expand the query with vault-domain synonyms before embedding")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the query-embedding and result caches")

	return cmd
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
