package bootstrap

import (
	"context"
	"fmt"
	"time"

	"ai-ragchat-be/internal/config"
	"ai-ragchat-be/internal/controller"
	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/internal/repository/memory"
	"ai-ragchat-be/internal/repository/unitofwork"
	"ai-ragchat-be/internal/service"
	"ai-ragchat-be/internal/websocket"
	"ai-ragchat-be/pkg/agent"
	"ai-ragchat-be/pkg/embedding"
	"ai-ragchat-be/pkg/guardrails"
	"ai-ragchat-be/pkg/llm"
	"ai-ragchat-be/pkg/llm/factory"
	pktNats "ai-ragchat-be/pkg/nats"
	"ai-ragchat-be/pkg/rag/search"
	"ai-ragchat-be/pkg/snapshot"
	"ai-ragchat-be/pkg/websearch"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController         controller.IChatController
	ConversationController controller.IConversationController
	DocumentController     controller.IDocumentController
	RealtimeController     controller.IRealtimeController

	// Background services, started by Start
	ConsumerService service.IConsumerService
	AuditService    service.IAuditService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// In-process queue for document indexing
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)

	if cfg.Ai.EmbeddingProvider != "ollama" {
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
	embeddingProvider := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	sysLogger.Info("BOOTSTRAP", "Embedding provider ready", map[string]interface{}{"provider": "ollama", "model": cfg.Ai.EmbeddingModel})

	var llmProvider llm.LLMProvider
	if cfg.Ai.LLMProvider != "none" {
		provider, err := factory.NewLLMProvider(factory.Config{
			Provider:      cfg.Ai.LLMProvider,
			Model:         cfg.Ai.LLMModel,
			OllamaBaseURL: cfg.Ai.OllamaBaseURL,
			OpenAIKey:     cfg.Ai.OpenAIKey,
			OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		llmProvider = provider
		sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})
	} else {
		sysLogger.Warn("BOOTSTRAP", "No LLM configured, answers fall back to retrieved context", nil)
	}

	deps := agent.Deps{
		Retriever: search.NewVectorRetriever(embeddingProvider, uowFactory),
		LLM:       llmProvider,
		Logger:    sysLogger,
	}
	if cfg.WebSearch.Enabled {
		deps.Web = websearch.NewClient(websearch.Config{
			BaseURL:    cfg.WebSearch.BaseURL,
			Region:     cfg.WebSearch.Region,
			MaxResults: cfg.WebSearch.MaxResults,
		}, memory.NewSearchResultRepository(cfg.WebSearch.CacheTTL, 2*cfg.WebSearch.CacheTTL))
	}
	if cfg.Guardrail.Enabled {
		deps.Safety = guardrails.NewChecker()
	}

	runner := agent.NewRunner(agent.Config{
		TopK:             cfg.Rag.TopK,
		ScoreThreshold:   cfg.Rag.ScoreThreshold,
		RerankTopN:       cfg.Rag.RerankTopN,
		MaxHistory:       cfg.Rag.MaxHistory,
		Temperature:      cfg.Ai.Temperature,
		MaxTokens:        cfg.Ai.MaxTokens,
		ModelLabel:       cfg.Ai.LLMModel,
		WebSearchEnabled: cfg.WebSearch.Enabled,
	}, deps)

	c := &Container{Logger: sysLogger, pubSub: pubSub}

	// NATS is optional: without it nothing is audited.
	var eventPublisher service.EventPublisher
	if natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL); err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS publisher unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		c.natsPub = natsPub
		eventPublisher = natsPub
	}
	if natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger); err != nil {
		sysLogger.Warn("BOOTSTRAP", "NATS subscriber unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		c.natsSub = natsSub
		c.AuditService = service.NewAuditService(natsSub, sysLogger)
	}

	cache := snapshot.NewCache()
	if cfg.Realtime.WebsocketEnabled {
		c.rdb = connectRedis(cfg.App.RedisURL, sysLogger)
		wsLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogPath)
		c.WebSocketHub = websocket.NewHub(c.rdb, cfg.Realtime.RedisChannel, wsLogger)
		cache.Subscribe(c.WebSocketHub.OnSnapshot)
	}

	streamCfg := service.DefaultStreamConfig()
	streamCfg.ChunkSize = cfg.Stream.ChunkSize
	streamCfg.ChunkDelay = cfg.Stream.ChunkDelay
	streamCfg.PollInterval = cfg.Stream.PollInterval
	streamCfg.MaxHistory = cfg.Rag.MaxHistory
	streamCfg.ModelLabel = cfg.Ai.LLMModel

	conversationService := service.NewConversationService(uowFactory, sysLogger)
	chatStreamService := service.NewChatStreamService(runner, conversationService, cache, eventPublisher, sysLogger, streamCfg)
	documentService := service.NewDocumentService(uowFactory, pubSub, cfg.Rag.EmbedTopic, sysLogger)

	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Rag.EmbedTopic,
		uowFactory,
		embeddingProvider,
		eventPublisher,
		service.ChunkingConfig{ChunkSize: cfg.Rag.ChunkSize, Overlap: cfg.Rag.ChunkOverlap},
		sysLogger,
	)

	c.ChatController = controller.NewChatController(chatStreamService)
	c.ConversationController = controller.NewConversationController(conversationService)
	c.DocumentController = controller.NewDocumentController(documentService)
	c.RealtimeController = controller.NewRealtimeController(chatStreamService, c.WebSocketHub, sysLogger)

	return c, nil
}

// connectRedis returns nil when Redis is unreachable; the hub then serves
// local viewers only.
func connectRedis(url string, log logger.ILogger) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Redis unavailable, snapshot relay disabled", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// Start launches the background workers. They stop when ctx is done.
func (c *Container) Start(ctx context.Context) error {
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return fmt.Errorf("document consumer: %w", err)
	}
	if c.WebSocketHub != nil {
		if err := c.WebSocketHub.Start(ctx); err != nil {
			return fmt.Errorf("websocket hub: %w", err)
		}
	}
	if c.AuditService != nil {
		if err := c.AuditService.Start(ctx); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Audit subscriber not started", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (c *Container) Close() {
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.pubSub.Close()
}
