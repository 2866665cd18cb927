package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 10, cfg.Rag.TopK)
	assert.Equal(t, 0.05, cfg.Rag.ScoreThreshold)
	assert.Equal(t, 5, cfg.Rag.RerankTopN)
	assert.Equal(t, 512, cfg.Rag.ChunkSize)
	assert.Equal(t, 50, cfg.Rag.ChunkOverlap)
	assert.False(t, cfg.WebSearch.Enabled)
	assert.Equal(t, "ca-en", cfg.WebSearch.Region)
	assert.Equal(t, 5, cfg.Stream.ChunkSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Stream.ChunkDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Stream.PollInterval)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENABLE_WEB_SEARCH", "true")
	t.Setenv("RETRIEVAL_TOP_K", "4")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("STREAM_CHUNK_DELAY", "25")
	t.Setenv("WEB_SEARCH_CACHE_TTL", "1m")
	t.Setenv("RERANK_TOP_N", "not-a-number")

	cfg := Load()
	assert.True(t, cfg.WebSearch.Enabled)
	assert.Equal(t, 4, cfg.Rag.TopK)
	assert.Equal(t, 0.2, cfg.Ai.Temperature)
	assert.Equal(t, 25*time.Millisecond, cfg.Stream.ChunkDelay)
	assert.Equal(t, time.Minute, cfg.WebSearch.CacheTTL)
	assert.Equal(t, 5, cfg.Rag.RerankTopN)
}

func TestIsProduction(t *testing.T) {
	assert.True(t, AppConfig{Environment: "Production"}.IsProduction())
	assert.False(t, AppConfig{Environment: "development"}.IsProduction())
}
