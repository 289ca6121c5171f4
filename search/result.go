package search

import (
	"fmt"
	"strings"
)

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// FormatResults renders SerpAPI results as a numbered list.
func FormatResults(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %s", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search Results for '%s':\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n\n", i+1, orDefault(r.Title, "No title"), orDefault(r.URL, "No link"), orDefault(r.Snippet, "No snippet"))
	}
	return b.String()
}

// FormatFallbackResults renders fallback results, which carry no snippets.
func FormatFallbackResults(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %s", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fallback Search Results for '%s':\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n\n", i+1, orDefault(r.Title, "N/A"), orDefault(r.URL, "N/A"))
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
