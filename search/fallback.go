package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/agentstarter/logging"
	"github.com/hupe1980/agentstarter/sandbox"
)

var scrapeScript = template.Must(template.New("ddg").Parse(`import requests
from bs4 import BeautifulSoup
import json

try:
    headers = {"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"}
    url = "https://duckduckgo.com/html"
    params = {"q": {{.Query}}}

    response = requests.get(url, params=params, headers=headers, timeout=5)
    response.raise_for_status()

    soup = BeautifulSoup(response.text, 'html.parser')
    results = []

    for link in soup.find_all('a', {'class': 'result__a'})[:{{.Num}}]:
        title = link.get_text(strip=True)
        href = link.get('href')
        if title and href:
            results.append({"title": title, "url": href})

    if results:
        print(json.dumps({"success": True, "results": results}))
    else:
        print(json.dumps({"success": False, "error": "No results found"}))
except Exception as e:
    print(json.dumps({"success": False, "error": str(e)}))
`))

// Executor runs code in a sandbox. *sandbox.Client satisfies it.
type Executor interface {
	Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error)
}

// ErrFallbackFailed is returned when the scrape script reports failure.
var ErrFallbackFailed = errors.New("fallback search failed")

// Fallback scrapes DuckDuckGo from inside the sandbox.
type Fallback struct {
	exec   Executor
	logger logging.Logger
}

// NewFallback creates a fallback searcher running on exec.
func NewFallback(exec Executor, logger logging.Logger) *Fallback {
	return &Fallback{exec: exec, logger: logging.OrNoOp(logger)}
}

// Budget is the longest Search can take, or 0 when the executor cannot
// tell.
func (f *Fallback) Budget() time.Duration {
	b, ok := f.exec.(interface {
		Budget(req sandbox.Request) time.Duration
	})
	if !ok {
		return 0
	}
	return b.Budget(fallbackRequest(""))
}

func fallbackRequest(code string) sandbox.Request {
	return sandbox.Request{Code: code, Language: "python"}
}

// Script returns the python program used for query.
func Script(query string, n int) (string, error) {
	var buf bytes.Buffer
	// strconv.Quote output is a valid python string literal for printable input.
	err := scrapeScript.Execute(&buf, map[string]any{"Query": strconv.Quote(query), "Num": n})
	return buf.String(), err
}

// Search returns up to n results for query.
func (f *Fallback) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if n <= 0 {
		n = DefaultNumResults
	}

	code, err := Script(query, n)
	if err != nil {
		return nil, err
	}

	f.logger.Info("search.fallback.start", "query", query, "num", n)

	res, err := f.exec.Run(ctx, fallbackRequest(code))
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}

	out := strings.TrimSpace(res.Stdout())
	if !gjson.Valid(out) {
		return nil, fmt.Errorf("fallback search output parsing error: %q", out)
	}
	parsed := gjson.Parse(out)
	if !parsed.Get("success").Bool() {
		msg := parsed.Get("error").String()
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", ErrFallbackFailed, msg)
	}

	var results []Result
	for _, v := range parsed.Get("results").Array() {
		if len(results) == n {
			break
		}
		results = append(results, Result{Title: v.Get("title").String(), URL: v.Get("url").String()})
	}

	f.logger.Info("search.fallback.complete", "query", query, "count", len(results))
	return results, nil
}
