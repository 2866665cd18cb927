package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.duckduckgo.com"

// Result is one web hit.
type Result struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// ResultCache stores results per normalized query.
type ResultCache interface {
	Get(key string) ([]Result, bool)
	Save(key string, results []Result)
}

type Config struct {
	BaseURL    string
	Region     string
	MaxResults int
	Timeout    time.Duration
}

// Client queries the DuckDuckGo instant answer API.
type Client struct {
	http       *resty.Client
	region     string
	maxResults int
	cache      ResultCache
}

func NewClient(cfg Config, cache ResultCache) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second)
	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r != nil && (r.StatusCode() >= 500 || r.StatusCode() == 429)
	})

	return &Client{
		http:       httpClient,
		region:     cfg.Region,
		maxResults: cfg.MaxResults,
		cache:      cache,
	}
}

type topic struct {
	Text     string  `json:"Text"`
	FirstURL string  `json:"FirstURL"`
	Topics   []topic `json:"Topics"`
}

type instantAnswer struct {
	Heading       string  `json:"Heading"`
	AbstractText  string  `json:"AbstractText"`
	AbstractURL   string  `json:"AbstractURL"`
	RelatedTopics []topic `json:"RelatedTopics"`
}

func cacheKey(region, query string) string {
	return region + "|" + strings.ToLower(strings.TrimSpace(query))
}

func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	key := cacheKey(c.region, query)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached, nil
		}
	}

	params := map[string]string{
		"q":             query,
		"format":        "json",
		"no_html":       "1",
		"skip_disambig": "1",
	}
	if c.region != "" {
		params["kl"] = c.region
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/")
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("web search error: status %d", resp.StatusCode())
	}

	var answer instantAnswer
	if err := json.Unmarshal(resp.Body(), &answer); err != nil {
		return nil, fmt.Errorf("decode web search response: %w", err)
	}

	results := c.collect(answer)
	if c.cache != nil {
		c.cache.Save(key, results)
	}
	return results, nil
}

func (c *Client) collect(answer instantAnswer) []Result {
	results := make([]Result, 0, c.maxResults)
	if answer.AbstractText != "" {
		results = append(results, Result{Title: answer.Heading, Href: answer.AbstractURL, Body: answer.AbstractText})
	}

	var walk func(topics []topic)
	walk = func(topics []topic) {
		for _, t := range topics {
			if len(results) >= c.maxResults {
				return
			}
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			if t.Text == "" {
				continue
			}
			results = append(results, Result{Title: titleFrom(t.Text), Href: t.FirstURL, Body: t.Text})
		}
	}
	walk(answer.RelatedTopics)

	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	return results
}

// titleFrom uses the text before the first " - " separator, which is how
// the API marks the topic name.
func titleFrom(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:60])
	}
	return text
}
