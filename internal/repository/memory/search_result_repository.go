package memory

import (
	"ai-ragchat-be/pkg/websearch"
	"time"

	"github.com/patrickmn/go-cache"
)

type SearchResultRepository struct {
	cache *cache.Cache
}

// NewSearchResultRepository keeps web results for ttl and purges expired
// entries every cleanup interval.
func NewSearchResultRepository(ttl, cleanup time.Duration) *SearchResultRepository {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	return &SearchResultRepository{
		cache: cache.New(ttl, cleanup),
	}
}

func (r *SearchResultRepository) Save(key string, results []websearch.Result) {
	stored := make([]websearch.Result, len(results))
	copy(stored, results)
	r.cache.Set(key, stored, cache.DefaultExpiration)
}

func (r *SearchResultRepository) Get(key string) ([]websearch.Result, bool) {
	if x, found := r.cache.Get(key); found {
		results := x.([]websearch.Result)
		out := make([]websearch.Result, len(results))
		copy(out, results)
		return out, true
	}
	return nil, false
}

func (r *SearchResultRepository) Delete(key string) {
	r.cache.Delete(key)
}

func (r *SearchResultRepository) Count() int {
	return r.cache.ItemCount()
}
