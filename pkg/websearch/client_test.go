package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAnswer = `{
  "Heading": "Telehealth",
  "AbstractText": "Telehealth is the distribution of health-related services via electronic information.",
  "AbstractURL": "https://en.wikipedia.org/wiki/Telehealth",
  "RelatedTopics": [
    {"Text": "Telemedicine - Remote diagnosis and treatment of patients.", "FirstURL": "https://duckduckgo.com/Telemedicine"},
    {"Name": "See also", "Topics": [
      {"Text": "mHealth - Mobile health practice.", "FirstURL": "https://duckduckgo.com/mHealth"},
      {"Text": "eHealth - Healthcare supported by electronic processes.", "FirstURL": "https://duckduckgo.com/eHealth"}
    ]},
    {"Text": "", "FirstURL": ""}
  ]
}`

type mapCache struct {
	items map[string][]Result
}

func (m *mapCache) Get(key string) ([]Result, bool) {
	r, ok := m.items[key]
	return r, ok
}

func (m *mapCache) Save(key string, results []Result) {
	m.items[key] = results
}

func TestSearchParsesAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "latest telehealth news", r.URL.Query().Get("q"))
		assert.Equal(t, "ca-en", r.URL.Query().Get("kl"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/x-javascript")
		_, _ = w.Write([]byte(sampleAnswer))
	}))
	defer srv.Close()

	cache := &mapCache{items: map[string][]Result{}}
	c := NewClient(Config{BaseURL: srv.URL, Region: "ca-en", MaxResults: 3}, cache)

	results, err := c.Search(context.Background(), "latest telehealth news")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Telehealth", results[0].Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Telehealth", results[0].Href)
	assert.Equal(t, "Telemedicine", results[1].Title)
	assert.Equal(t, "mHealth", results[2].Title)

	again, err := c.Search(context.Background(), "  Latest telehealth NEWS ")
	require.NoError(t, err)
	assert.Equal(t, results, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Search(context.Background(), "anything")
	assert.Error(t, err)
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "mHealth", titleFrom("mHealth - Mobile health"))
	assert.Equal(t, "short", titleFrom("short"))
	long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"
	assert.Len(t, titleFrom(long), 60)
}
