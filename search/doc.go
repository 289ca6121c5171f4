// Package search provides web search for agents: a SerpAPI (Google) client
// and a DuckDuckGo fallback that runs a scrape script inside the code
// sandbox.
package search
