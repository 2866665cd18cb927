package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"ai-ragchat-be/internal/dto"
	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/pkg/agent"
	"ai-ragchat-be/pkg/events"
	"ai-ragchat-be/pkg/llm"
	"ai-ragchat-be/pkg/metrics"
	"ai-ragchat-be/pkg/rag/search"
	"ai-ragchat-be/pkg/snapshot"
	"ai-ragchat-be/pkg/stream"

	"github.com/google/uuid"
)

const streamModule = "CHAT_STREAM"

// PipelineRunner is the part of agent.Runner the chat services drive.
type PipelineRunner interface {
	Run(ctx context.Context, req agent.Request, e stream.Emitter) (*agent.Result, error)
	Suggest(ctx context.Context, history []llm.Message, query, answer string, e stream.Emitter) []string
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// StreamWriter is what the HTTP layer hands over for the response body.
type StreamWriter interface {
	io.Writer
	Flush() error
}

type StreamConfig struct {
	ChunkSize       int
	ChunkDelay      time.Duration
	PollInterval    time.Duration
	MaxHistory      int
	PipelineTimeout time.Duration
	PersistTimeout  time.Duration
	ModelLabel      string
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ChunkSize:       stream.DefaultContentChunkSize,
		ChunkDelay:      10 * time.Millisecond,
		PollInterval:    100 * time.Millisecond,
		MaxHistory:      10,
		PipelineTimeout: 3 * time.Minute,
		PersistTimeout:  10 * time.Second,
	}
}

// Turn is one prepared user message: the conversation is resolved, the user
// message stored and history loaded.
type Turn struct {
	UserId         string
	ConversationId uuid.UUID
	SessionId      string
	Query          string
	History        []llm.Message
	UseRAG         bool
	Filter         map[string]string
}

func (t *Turn) request() agent.Request {
	return agent.Request{
		Query:   t.Query,
		History: t.History,
		UseRAG:  t.UseRAG,
		Filter:  t.Filter,
	}
}

type IChatStreamService interface {
	Prepare(ctx context.Context, userId string, req *dto.ChatRequest) (*Turn, error)
	Stream(ctx context.Context, turn *Turn, w StreamWriter) error
	Complete(ctx context.Context, turn *Turn) (*dto.ChatResponse, error)
	Latest() (*snapshot.PipelineSnapshot, bool)
	CacheStats() dto.CacheStatsResponse
}

type chatStreamService struct {
	runner        PipelineRunner
	conversations IConversationService
	cache         *snapshot.Cache
	publisher     EventPublisher
	logger        logger.ILogger
	cfg           StreamConfig
}

func NewChatStreamService(
	runner PipelineRunner,
	conversations IConversationService,
	cache *snapshot.Cache,
	publisher EventPublisher,
	log logger.ILogger,
	cfg StreamConfig,
) IChatStreamService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = stream.DefaultContentChunkSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	return &chatStreamService{
		runner:        runner,
		conversations: conversations,
		cache:         cache,
		publisher:     publisher,
		logger:        log,
		cfg:           cfg,
	}
}

func (s *chatStreamService) Prepare(ctx context.Context, userId string, req *dto.ChatRequest) (*Turn, error) {
	conversation, err := s.conversations.Resolve(ctx, userId, req.SessionId, req.Message)
	if err != nil {
		return nil, err
	}

	var history []llm.Message
	if len(req.ConversationHistory) > 0 {
		history = make([]llm.Message, 0, len(req.ConversationHistory))
		for _, h := range req.ConversationHistory {
			history = append(history, llm.Message{Role: h.Role, Content: h.Content})
		}
	} else {
		history, err = s.conversations.History(ctx, conversation.Id, s.cfg.MaxHistory)
		if err != nil {
			return nil, err
		}
	}

	if err := s.conversations.SaveUserMessage(ctx, conversation.Id, req.Message); err != nil {
		return nil, err
	}

	filter := map[string]string{search.FilterUserID: userId}
	if req.Category != "" {
		filter[search.FilterCategory] = req.Category
	}

	return &Turn{
		UserId:         userId,
		ConversationId: conversation.Id,
		SessionId:      conversation.SessionId,
		Query:          req.Message,
		History:        history,
		UseRAG:         req.RAGEnabled(),
		Filter:         filter,
	}, nil
}

func (s *chatStreamService) newTracker(turn *Turn, now time.Time) *snapshot.Tracker {
	t := snapshot.NewTracker(s.cache, turn.UserId, snapshot.PipelineSnapshot{
		MessageID:      snapshot.NewMessageID(now),
		ConversationID: turn.ConversationId.String(),
		SessionID:      turn.SessionId,
		UserQuery:      turn.Query,
		CreatedAt:      now.UTC(),
	})
	metrics.SnapshotEntries.Set(float64(s.cache.Stats().CachedSubjects))
	return t
}

type runOutcome struct {
	result *agent.Result
	err    error
}

// exchange carries the channels between the pipeline goroutine and the
// stream consumer for one request.
type exchange struct {
	turn        *Turn
	bus         *stream.Bus
	recorder    *stream.Recorder
	tracker     *snapshot.Tracker
	results     chan runOutcome
	suggestions chan []string
	proceed     chan struct{}
	release     sync.Once
	started     time.Time
}

// letSuggest unblocks the suggestion stage. Safe to call more than once.
func (x *exchange) letSuggest() {
	x.release.Do(func() { close(x.proceed) })
}

// Stream runs the pipeline for turn and writes SSE frames to w. It returns
// once the client has received done or error, or has gone away. The
// pipeline itself runs on a detached context so persistence still happens
// after a disconnect.
func (s *chatStreamService) Stream(ctx context.Context, turn *Turn, w StreamWriter) error {
	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	now := time.Now()
	bus := stream.NewBus()
	tracker := s.newTracker(turn, now)
	x := &exchange{
		turn:        turn,
		bus:         bus,
		recorder:    stream.NewRecorder(stream.NewMerger(), bus, tracker.ApplyStep),
		tracker:     tracker,
		results:     make(chan runOutcome, 1),
		suggestions: make(chan []string, 1),
		proceed:     make(chan struct{}),
		started:     now,
	}
	defer x.letSuggest()

	enc := stream.NewEncoder(w)
	if err := enc.Status("starting"); err != nil {
		metrics.StreamsTotal.WithLabelValues(metrics.OutcomeDisconnected).Inc()
		return err
	}

	go s.produce(x)

	outcome, err := s.consume(ctx, x, enc)
	metrics.StreamsTotal.WithLabelValues(outcome).Inc()
	if outcome == metrics.OutcomeDisconnected {
		s.logger.Info(streamModule, "Client disconnected", map[string]interface{}{
			"conversation_id": turn.ConversationId.String(),
		})
	}
	return err
}

// produce runs on its own goroutine and always closes the bus.
func (s *chatStreamService) produce(x *exchange) {
	defer x.bus.Close()

	ctx := context.Background()
	if s.cfg.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PipelineTimeout)
		defer cancel()
	}

	res, err := s.safeRun(ctx, x)
	x.results <- runOutcome{result: res, err: err}
	if err != nil {
		s.publish(x, metrics.OutcomeError, nil, 0)
		return
	}

	var suggestions []string
	if !res.Blocked {
		<-x.proceed
		suggestions = s.safeSuggest(ctx, x, res.Response)
	}
	x.suggestions <- suggestions
	x.bus.Close()

	s.persist(x, res, suggestions)
	s.publish(x, metrics.OutcomeDone, res, len(suggestions))
}

func (s *chatStreamService) safeRun(ctx context.Context, x *exchange) (res *agent.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, panicError(rec)
		}
	}()
	res, err = s.runner.Run(ctx, x.turn.request(), x.recorder)
	if err == nil && res == nil {
		res = &agent.Result{}
	}
	return res, err
}

func (s *chatStreamService) safeSuggest(ctx context.Context, x *exchange, answer string) (out []string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error(streamModule, "Suggestions panicked", map[string]interface{}{"error": panicError(rec).Error()})
			out = nil
		}
	}()
	return s.runner.Suggest(ctx, x.turn.History, x.turn.Query, answer, x.recorder)
}

// consume writes frames until done or error. The returned outcome feeds the
// streams counter.
func (s *chatStreamService) consume(ctx context.Context, x *exchange, enc *stream.Encoder) (string, error) {
	var outcome runOutcome

	// Steps until the pipeline hands back its result.
steps:
	for {
		ev, ok, err := x.bus.Next(ctx, s.cfg.PollInterval)
		if err != nil {
			return metrics.OutcomeDisconnected, err
		}
		if ok {
			if err := enc.Step(ev); err != nil {
				return metrics.OutcomeDisconnected, err
			}
			continue
		}
		select {
		case outcome = <-x.results:
			break steps
		default:
		}
	}
	for _, ev := range x.bus.Drain() {
		if err := enc.Step(ev); err != nil {
			return metrics.OutcomeDisconnected, err
		}
	}

	if outcome.err != nil {
		if err := enc.Error(outcome.err.Error()); err != nil {
			return metrics.OutcomeDisconnected, err
		}
		return metrics.OutcomeError, nil
	}
	res := outcome.result

	for i, piece := range stream.SliceContent(res.Response, s.cfg.ChunkSize) {
		if i > 0 && s.cfg.ChunkDelay > 0 {
			select {
			case <-time.After(s.cfg.ChunkDelay):
			case <-ctx.Done():
				return metrics.OutcomeDisconnected, ctx.Err()
			}
		}
		if err := enc.Content(piece); err != nil {
			return metrics.OutcomeDisconnected, err
		}
		x.tracker.AppendResponse(piece)
	}

	if err := enc.Sources(res.Sources); err != nil {
		return metrics.OutcomeDisconnected, err
	}
	x.tracker.SetSourcesCount(len(res.Sources))

	x.letSuggest()

	// Suggestion steps, then the suggestions themselves.
	for {
		ev, ok, err := x.bus.Next(ctx, s.cfg.PollInterval)
		if err != nil {
			return metrics.OutcomeDisconnected, err
		}
		if ok {
			if err := enc.Step(ev); err != nil {
				return metrics.OutcomeDisconnected, err
			}
			continue
		}
		if x.bus.Closed() && x.bus.Len() == 0 {
			break
		}
	}

	suggestions := <-x.suggestions
	if err := enc.Suggestions(suggestions); err != nil {
		return metrics.OutcomeDisconnected, err
	}
	x.tracker.SetSuggestionsCount(len(suggestions))
	x.tracker.Finish()

	if err := enc.Done(); err != nil {
		return metrics.OutcomeDisconnected, err
	}
	return metrics.OutcomeDone, nil
}

// persist is best effort: failures are logged and counted only.
func (s *chatStreamService) persist(x *exchange, res *agent.Result, suggestions []string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
	defer cancel()

	err := s.conversations.SaveAssistantMessage(ctx, x.turn.ConversationId, res.Response, res.Sources, x.recorder.Steps(), suggestions)
	if err != nil {
		metrics.PersistFailures.Inc()
		s.logger.Error(streamModule, "Failed to persist assistant message", map[string]interface{}{
			"conversation_id": x.turn.ConversationId.String(),
			"error":           err.Error(),
		})
	}
}

func (s *chatStreamService) publish(x *exchange, outcome string, res *agent.Result, suggestions int) {
	if s.publisher == nil {
		return
	}

	summary := events.StreamSummary{
		ConversationID:   x.turn.ConversationId.String(),
		UserID:           x.turn.UserId,
		Outcome:          outcome,
		StepCount:        len(x.recorder.Steps()),
		SuggestionsCount: suggestions,
		Duration:         time.Since(x.started),
	}
	if res != nil {
		summary.Blocked = res.Blocked
		summary.SourcesCount = len(res.Sources)
		summary.ResponseChars = len([]rune(res.Response))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, events.NewChatStreamCompleted(summary, time.Now())); err != nil {
		s.logger.Warn(streamModule, "Failed to publish stream event", map[string]interface{}{"error": err.Error()})
	}
}

// Complete runs the same pipeline without streaming and returns the final
// answer in one response.
func (s *chatStreamService) Complete(ctx context.Context, turn *Turn) (*dto.ChatResponse, error) {
	now := time.Now()
	tracker := s.newTracker(turn, now)
	recorder := stream.NewRecorder(stream.NewMerger(), nil, tracker.ApplyStep)

	res, err := s.runner.Run(ctx, turn.request(), recorder)
	if err != nil {
		metrics.StreamsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	if res == nil {
		res = &agent.Result{}
	}
	tracker.AppendResponse(res.Response)
	tracker.SetSourcesCount(len(res.Sources))

	var suggestions []string
	if !res.Blocked {
		suggestions = s.runner.Suggest(ctx, turn.History, turn.Query, res.Response, recorder)
	}
	tracker.SetSuggestionsCount(len(suggestions))
	tracker.Finish()
	metrics.StreamsTotal.WithLabelValues(metrics.OutcomeDone).Inc()

	x := &exchange{turn: turn, recorder: recorder, started: now}
	s.persist(x, res, suggestions)
	s.publish(x, metrics.OutcomeDone, res, len(suggestions))

	steps := recorder.Steps()
	sources := res.Sources
	if sources == nil {
		sources = []stream.SourceDocument{}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return &dto.ChatResponse{
		Response:    res.Response,
		SessionId:   turn.SessionId,
		Sources:     sources,
		Suggestions: suggestions,
		CotSteps:    steps,
		Metadata: dto.ChatMetadata{
			Blocked:       res.Blocked,
			UsedRAG:       res.UsedRAG,
			UsedWebSearch: res.UsedWebSearch,
			DocsFound:     res.DocsFound,
			DocsUsed:      res.DocsUsed,
			StepCount:     len(steps),
			Model:         s.cfg.ModelLabel,
		},
	}, nil
}

func (s *chatStreamService) Latest() (*snapshot.PipelineSnapshot, bool) {
	snap, ok := s.cache.Latest()
	if !ok {
		return nil, false
	}
	return &snap, true
}

func (s *chatStreamService) CacheStats() dto.CacheStatsResponse {
	return dto.CacheStatsResponse{
		CacheStats:  dto.CacheStats{CachedSubjects: s.cache.Stats().CachedSubjects},
		Description: "In-memory pipeline snapshots, one per requester, kept for the life of the process",
	}
}

func panicError(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("pipeline panicked: %w", err)
	}
	return fmt.Errorf("pipeline panicked: %v", rec)
}
