// Package searchtool exposes web search as get_search_query and
// search_fallback.
package searchtool

import (
	"context"
	"time"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/search"
	"github.com/hupe1980/agentstarter/tool"
)

// Searcher returns up to n results for query.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]search.Result, error)
}

// Args are shared by both search tools.
type Args struct {
	Query      string `json:"q" description:"The search query string"`
	NumResults int    `json:"num_results" default:"5" description:"Number of results to return (1-10, default: 5)"`
}

// NewSearchTool returns get_search_query backed by SerpAPI.
func NewSearchTool(s Searcher) tool.Tool {
	return tool.NewTypedTool("get_search_query",
		"Search the internet using Google via SerpAPI. Returns formatted search results with titles, URLs, and snippets. "+
			"Use this to find current information, answer factual questions, or research topics. "+
			"Automatically handles errors like rate limits, invalid keys, and timeouts.",
		func(tc *core.ToolContext, args Args) (any, error) {
			results, err := s.Search(tc.Context(), args.Query, args.NumResults)
			if err != nil {
				return nil, err
			}
			return search.FormatResults(args.Query, results), nil
		})
}

// NewFallbackTool returns search_fallback backed by the sandbox scraper.
// When s reports a Budget the tool carries it to the agent.
func NewFallbackTool(s Searcher) tool.Tool {
	t := tool.NewTypedTool("search_fallback",
		"Fallback search using DuckDuckGo or web scraping when SerpAPI fails. "+
			"Uses execute_code to dynamically fetch and parse search results.",
		func(tc *core.ToolContext, args Args) (any, error) {
			results, err := s.Search(tc.Context(), args.Query, args.NumResults)
			if err != nil {
				return nil, err
			}
			return search.FormatFallbackResults(args.Query, results), nil
		})

	b, ok := s.(interface{ Budget() time.Duration })
	if !ok {
		return t
	}
	return tool.WithBudget(t, func(map[string]any) time.Duration { return b.Budget() })
}
