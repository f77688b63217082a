package freshness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultTavilyURL is the hosted search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

// SearchResult is one web hit.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Searcher runs a literature search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	url    string
	apiKey string
	client *http.Client
}

// NewTavilyClient builds a client. An empty url uses DefaultTavilyURL.
func NewTavilyClient(url, apiKey string, client *http.Client) *TavilyClient {
	if url == "" {
		url = DefaultTavilyURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TavilyClient{url: url, apiKey: apiKey, client: client}
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []SearchResult `json:"results"`
}

// Search posts a basic-depth query and returns up to five results.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  5,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var out tavilyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}
