package memory

import (
	"testing"
	"time"

	"ai-ragchat-be/pkg/websearch"

	"github.com/stretchr/testify/assert"
)

func TestSearchResultRepository(t *testing.T) {
	repo := NewSearchResultRepository(time.Minute, time.Minute)

	_, ok := repo.Get("ca-en|telehealth")
	assert.False(t, ok)

	results := []websearch.Result{{Title: "Telehealth", Href: "https://example.org", Body: "remote care"}}
	repo.Save("ca-en|telehealth", results)
	results[0].Title = "mutated"

	got, ok := repo.Get("ca-en|telehealth")
	assert.True(t, ok)
	assert.Equal(t, "Telehealth", got[0].Title)
	assert.Equal(t, 1, repo.Count())

	repo.Delete("ca-en|telehealth")
	_, ok = repo.Get("ca-en|telehealth")
	assert.False(t, ok)
}

func TestSearchResultRepositoryExpires(t *testing.T) {
	repo := NewSearchResultRepository(20*time.Millisecond, time.Hour)
	repo.Save("k", []websearch.Result{{Title: "t"}})
	time.Sleep(40 * time.Millisecond)
	_, ok := repo.Get("k")
	assert.False(t, ok)
}
