package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-ragchat-be/internal/pkg/logger"
	"ai-ragchat-be/pkg/guardrails"
	"ai-ragchat-be/pkg/llm"
	"ai-ragchat-be/pkg/metrics"
	"ai-ragchat-be/pkg/stream"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "AGENT"

const systemPrompt = `You are HealthChat, an AI assistant for a hospital system.

INSTRUCTIONS:
- Answer using the provided documentation and web results first
- Say so plainly when the documentation does not cover the question
- Be conversational but precise with medical information

Formatting:
- Add blank lines between major sections/points for readability
- Use **bold text** for emphasis when helpful
- Keep responses conversational and focused`

// Deps are the runner's collaborators. Only Logger is required: a nil
// retriever or web searcher disables that tool, a nil safety checker skips
// both checks and a nil LLM falls back to echoing the context.
type Deps struct {
	Retriever Retriever
	Web       WebSearcher
	Safety    SafetyChecker
	LLM       llm.LLMProvider
	Logger    logger.ILogger
}

// Runner executes the agent stages for one request at a time and reports
// progress through an Emitter. It holds no per-request state.
type Runner struct {
	cfg    Config
	deps   Deps
	tracer trace.Tracer
}

func NewRunner(cfg Config, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = logger.NopLogger{}
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		tracer: otel.Tracer("ai-ragchat-be/agent"),
	}
}

type stageSpec struct {
	name  string
	step  stream.StepType
	label string
}

var (
	stageAnalyze  = stageSpec{"analyze", stream.StepAnalyzing, "Analyzing your request"}
	stageWeb      = stageSpec{"web_search", stream.StepWebSearch, "Searching the web"}
	stageAugment  = stageSpec{"augment", stream.StepAugmenting, "Augmenting your query"}
	stageRetrieve = stageSpec{"retrieve", stream.StepSearching, "Searching vector database"}
	stageRerank   = stageSpec{"rerank", stream.StepReranking, "Reranking documents"}
	stageBuild    = stageSpec{"build_context", stream.StepBuilding, "Building context"}
	stageInput    = stageSpec{"input_check", stream.StepChecking, "Checking input safety"}
	stageGenerate = stageSpec{"generate", stream.StepGenerating, "Generating response"}
	stageOutput   = stageSpec{"output_check", stream.StepValidating, "Validating response"}
	stageSuggest  = stageSpec{"suggest", stream.StepSuggestions, "Generating follow-up suggestions"}
)

func (s stageSpec) emit(e stream.Emitter, desc string, status stream.StepStatus) {
	e.Emit(stream.StepUpdate{Type: s.step, Label: s.label, Description: desc, Status: status})
}

// run wraps one stage with a span, latency metrics and panic recovery. A
// failing stage gets an error step carrying the message.
func (r *Runner) run(ctx context.Context, s stageSpec, e stream.Emitter, fn func(ctx context.Context) error) (err error) {
	ctx, span := r.tracer.Start(ctx, "pipeline."+s.name)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s stage panicked: %v", s.name, rec)
		}
		metrics.StageDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.StageErrors.WithLabelValues(s.name).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.emit(e, err.Error(), stream.StatusError)
			r.deps.Logger.Error(module, "Stage failed", map[string]interface{}{"stage": s.name, "error": err.Error()})
		}
		span.End()
	}()

	return fn(ctx)
}

// Run executes every stage up to and including the output check. A non-nil
// error means a stage failed and an error step has already been emitted.
func (r *Runner) Run(ctx context.Context, req Request, e stream.Emitter) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.Bool("use_rag", req.UseRAG),
		attribute.Int("history", len(req.History)),
	))
	defer span.End()

	res := &Result{}
	var plan ToolPlan
	var webContext, ragContext string

	err := r.run(ctx, stageAnalyze, e, func(ctx context.Context) error {
		stageAnalyze.emit(e, fmt.Sprintf("Analyzing query: '%s'\nEvaluating: • Conversation context • Web search needs • Document retrieval requirements", clip(req.Query, 100)), stream.StatusActive)
		plan = DecideTools(req.Query, r.cfg.WebSearchEnabled && r.deps.Web != nil)
		stageAnalyze.emit(e, plan.describe(), stream.StatusComplete)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if plan.WebSearch {
		err = r.run(ctx, stageWeb, e, func(ctx context.Context) error {
			webContext = r.webSearch(ctx, req.Query, e)
			res.UsedWebSearch = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if req.UseRAG && r.deps.Retriever != nil {
		res.UsedRAG = true
		ragContext, err = r.retrieve(ctx, req, e, res)
		if err != nil {
			return nil, err
		}
	}

	res.Context = combineContext(webContext, ragContext, res.UsedRAG || res.UsedWebSearch)

	if r.deps.Safety != nil {
		err = r.run(ctx, stageInput, e, func(ctx context.Context) error {
			r.checkInput(ctx, req.Query, e, res)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if res.Blocked {
			res.Sources = nil
			return res, nil
		}
	}

	err = r.run(ctx, stageGenerate, e, func(ctx context.Context) error {
		answer, err := r.generate(ctx, req, res.Context, e)
		if err != nil {
			return err
		}
		res.Response = answer
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.deps.Safety != nil {
		err = r.run(ctx, stageOutput, e, func(ctx context.Context) error {
			r.checkOutput(ctx, res, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

func combineContext(web, rag string, usedTools bool) string {
	var parts []string
	for _, p := range []string{web, rag} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	joined := strings.Join(parts, "\n\n")
	if strings.TrimSpace(joined) == "" && usedTools {
		return NoInformationContext
	}
	return joined
}

// webSearch is fail-soft: any search error reads as "no results".
func (r *Runner) webSearch(ctx context.Context, query string, e stream.Emitter) string {
	stageWeb.emit(e, fmt.Sprintf("🌐 Search query: '%s', ⚙️ Querying search engine for real-time information...", clip(query, 80)), stream.StatusActive)

	results, err := r.deps.Web.Search(ctx, query)
	if err != nil {
		r.deps.Logger.Warn(module, "Web search failed", map[string]interface{}{"error": err.Error()})
		results = nil
	}

	if len(results) == 0 {
		stageWeb.emit(e, "⚠️ No web results found. The search returned 0 results. Continuing with document retrieval only.", stream.StatusComplete)
		return FormatWebResults(nil)
	}

	var top []string
	for i, res := range results {
		if i == 3 {
			break
		}
		top = append(top, fmt.Sprintf("%d. %s", i+1, cut(res.Title, 50)))
	}
	stageWeb.emit(e, fmt.Sprintf("✅ Found %d web result(s): %s", len(results), summarizeTop(len(results), top)), stream.StatusComplete)
	return FormatWebResults(results)
}

func (r *Runner) retrieve(ctx context.Context, req Request, e stream.Emitter, res *Result) (string, error) {
	var augmented string
	err := r.run(ctx, stageAugment, e, func(ctx context.Context) error {
		augmented = r.augment(req, e)
		return nil
	})
	if err != nil {
		return "", err
	}

	var chunks []RetrievedChunk
	err = r.run(ctx, stageRetrieve, e, func(ctx context.Context) error {
		chunks = r.search(ctx, augmented, req.Filter, e)
		return nil
	})
	if err != nil {
		return "", err
	}
	res.DocsFound = len(chunks)
	emitRetrieved(e, chunks)

	if len(chunks) == 0 {
		return NoDocumentsContext, nil
	}

	var reranked []RetrievedChunk
	err = r.run(ctx, stageRerank, e, func(ctx context.Context) error {
		reranked = r.rerank(req.Query, chunks, e)
		return nil
	})
	if err != nil {
		return "", err
	}

	var built string
	err = r.run(ctx, stageBuild, e, func(ctx context.Context) error {
		built = buildContext(reranked, e)
		return nil
	})
	if err != nil {
		return "", err
	}

	res.DocsUsed = len(reranked)
	res.Sources = Sources(reranked)
	return built, nil
}

// augment appends the user turns among the last three history messages.
func (r *Runner) augment(req Request, e stream.Emitter) string {
	stageAugment.emit(e, fmt.Sprintf("Original query: '%s'", clip(req.Query, 80)), stream.StatusActive)

	augmented := req.Query
	var detail string
	if len(req.History) == 0 {
		detail = "No conversation history to add"
	} else {
		recent := req.History[max(len(req.History)-3, 0):]
		var users []string
		for _, m := range recent {
			if m.Role == llm.RoleUser {
				users = append(users, m.Content)
			}
		}
		if len(users) > 0 {
			augmented = req.Query + " " + strings.Join(users, " ")
			detail = fmt.Sprintf("Added %d previous message(s) as context", len(users))
		}
	}

	changes := "No augmentation needed"
	if detail != "" {
		changes = "✓ Enhancements: " + detail
	}
	stageAugment.emit(e, fmt.Sprintf("%s\n✓ Enhanced query: '%s'", changes, clip(augmented, 100)), stream.StatusComplete)
	return augmented
}

// search is fail-soft: a retriever error yields no documents.
func (r *Runner) search(ctx context.Context, query string, filter map[string]string, e stream.Emitter) []RetrievedChunk {
	stageRetrieve.emit(e, fmt.Sprintf("Query: '%s'\nGenerating embedding • Searching vector store, Top results: %d, Min score: %.2f",
		clip(query, 80), r.cfg.TopK, r.cfg.ScoreThreshold), stream.StatusActive)

	chunks, err := r.deps.Retriever.Search(ctx, query, r.cfg.TopK, r.cfg.ScoreThreshold, filter)
	if err != nil {
		r.deps.Logger.Warn(module, "Retrieval failed", map[string]interface{}{"error": err.Error()})
		stageRetrieve.emit(e, "⚠️ Vector search unavailable, continuing without documents", stream.StatusComplete)
		return nil
	}

	stageRetrieve.emit(e, fmt.Sprintf("✓ Search complete, Results: • Matched: %d document(s)", len(chunks)), stream.StatusComplete)
	return chunks
}

func emitRetrieved(e stream.Emitter, chunks []RetrievedChunk) {
	if len(chunks) == 0 {
		e.Emit(stream.StepUpdate{
			Type:        stream.StepRetrieved,
			Label:       "Retrieved 0 documents",
			Description: "No matching documents found in database",
			Status:      stream.StatusComplete,
		})
		return
	}

	var top []string
	for i, c := range chunks {
		if i == 3 {
			break
		}
		top = append(top, fmt.Sprintf("%d. '%s' (%.2f)", i+1, cut(titleOrUntitled(c), 40), c.Score))
	}
	e.Emit(stream.StepUpdate{
		Type:        stream.StepRetrieved,
		Label:       fmt.Sprintf("Retrieved %d documents", len(chunks)),
		Description: fmt.Sprintf("✓ Found %d relevant document(s): %s", len(chunks), summarizeTop(len(chunks), top)),
		Status:      stream.StatusComplete,
	})
}

func titleOrUntitled(c RetrievedChunk) string {
	if t := chunkTitle(c); t != "" {
		return t
	}
	return "Untitled"
}

func (r *Runner) rerank(query string, chunks []RetrievedChunk, e stream.Emitter) []RetrievedChunk {
	stageRerank.emit(e, "Scoring documents by keyword relevance", stream.StatusActive)

	reranked := Rerank(query, chunks, r.cfg.RerankTopN)

	var top []string
	for i, c := range reranked {
		if i == 3 {
			break
		}
		top = append(top, fmt.Sprintf("%d. '%s' (V:%.2f K:%.1f)", i+1, cut(titleOrUntitled(c), 35), c.Score, c.RerankScore))
	}
	stageRerank.emit(e, "✓ Reranked by keyword relevance: "+summarizeTop(len(reranked), top), stream.StatusComplete)
	return reranked
}

func buildContext(chunks []RetrievedChunk, e stream.Emitter) string {
	stageBuild.emit(e, "Formatting documents for generation", stream.StatusActive)

	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		title := c.Metadata.Title
		if title == "" {
			title = "Untitled"
		}
		e.Emit(stream.StepUpdate{
			Type:        stream.StepAnalyzingDocument,
			Label:       "Analyzing document: " + title,
			Description: fmt.Sprintf("✓ Doc %d/%d, Relevance: %.2f", i+1, len(chunks), c.Score),
			Status:      stream.StatusComplete,
		})
		parts = append(parts, FormatDocument(i+1, c))
	}

	stageBuild.emit(e, fmt.Sprintf("✓  %d documents for generation", len(chunks)), stream.StatusComplete)
	return strings.Join(parts, "\n")
}

// checkInput is fail-open: a checker error lets the message through.
func (r *Runner) checkInput(ctx context.Context, query string, e stream.Emitter, res *Result) {
	stageInput.emit(e, fmt.Sprintf("Scanning message (%d chars)\nChecking for: • Jailbreak attempts • Sensitive data • Policy violations", len([]rune(query))), stream.StatusActive)

	check, err := r.deps.Safety.CheckInput(ctx, query)
	if err != nil {
		r.deps.Logger.Warn(module, "Input check unavailable, allowing message", map[string]interface{}{"error": err.Error()})
		stageInput.emit(e, "⚠️ Safety check unavailable, message allowed", stream.StatusComplete)
		return
	}

	if !check.Allowed {
		lines := make([]string, 0, len(check.Violations))
		for _, v := range check.Violations {
			lines = append(lines, fmt.Sprintf("• %s: '%s'", v.Type, v.Pattern))
		}
		stageInput.emit(e, "⚠️ Policy violations detected:\n"+strings.Join(lines, "\n"), stream.StatusError)

		res.Blocked = true
		res.Response = check.SafeResponse
		if res.Response == "" {
			res.Response = guardrails.DefaultRefusal
		}
		metrics.GuardrailBlocks.WithLabelValues("input").Inc()
		r.deps.Logger.Warn(module, "Input blocked by guardrails", map[string]interface{}{"violations": check.Violations})
		return
	}

	stageInput.emit(e, fmt.Sprintf("✓ Input validated successfully, Validation results: • Patterns checked: %d • Violations: 0", check.PatternsChecked), stream.StatusComplete)
}

func (r *Runner) generate(ctx context.Context, req Request, docContext string, e stream.Emitter) (string, error) {
	stageGenerate.emit(e, "Processing with "+r.cfg.ModelLabel, stream.StatusActive)

	if r.deps.LLM == nil {
		stageGenerate.emit(e, "⚠️ No language model configured, returning knowledge base excerpts", stream.StatusComplete)
		return FallbackAnswer(docContext), nil
	}

	answer, err := r.deps.LLM.Chat(ctx, BuildMessages(req, docContext, r.cfg.MaxHistory),
		llm.WithTemperature(r.cfg.Temperature),
		llm.WithMaxTokens(r.cfg.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	stageGenerate.emit(e, "✓ Response generated successfully", stream.StatusComplete)
	return answer, nil
}

// BuildMessages assembles the generator prompt: system message, the most
// recent history turns and the question wrapped with its context.
func BuildMessages(req Request, docContext string, maxHistory int) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	history := req.History
	if maxHistory > 0 && len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	msgs = append(msgs, history...)

	user := req.Query
	if strings.TrimSpace(docContext) != "" {
		user = fmt.Sprintf("Here's some relevant healthcare documentation:\n\n%s\n\nQuestion: %s", docContext, req.Query)
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: user})
}

// checkOutput is fail-open. Hallucination hints are reported but only
// harmful content replaces the answer.
func (r *Runner) checkOutput(ctx context.Context, res *Result, e stream.Emitter) {
	stageOutput.emit(e, fmt.Sprintf("Analyzing response (%d chars)\nChecking for: • Hallucinations • Harmful content • Accuracy issues", len([]rune(res.Response))), stream.StatusActive)

	check, err := r.deps.Safety.CheckOutput(ctx, res.Response, res.Context)
	if err != nil {
		r.deps.Logger.Warn(module, "Output check unavailable, allowing response", map[string]interface{}{"error": err.Error()})
		stageOutput.emit(e, "⚠️ Safety check unavailable, response allowed", stream.StatusComplete)
		return
	}

	if !check.Allowed {
		lines := make([]string, 0, len(check.Issues))
		for _, is := range check.Issues {
			lines = append(lines, fmt.Sprintf("• %s: %s", is.Type, is.Detail))
		}
		stageOutput.emit(e, "⚠️ Validation issues detected:\n"+strings.Join(lines, "\n"), stream.StatusError)

		res.Blocked = true
		res.Response = check.SafeResponse
		metrics.GuardrailBlocks.WithLabelValues("output").Inc()
		r.deps.Logger.Warn(module, "Output blocked by guardrails", map[string]interface{}{"issues": check.Issues})
		return
	}

	minor := ""
	if len(check.Issues) > 0 {
		minor = fmt.Sprintf(" • Minor issues: %d", len(check.Issues))
	}
	stageOutput.emit(e, fmt.Sprintf("✓ Response validated successfully, Validation results: • Patterns checked: %d%s • Status: Safe to display", check.PatternsChecked, minor), stream.StatusComplete)
}

// Suggest proposes follow-up questions for the finished exchange. It never
// fails: any problem falls back to the default suggestions.
func (r *Runner) Suggest(ctx context.Context, history []llm.Message, query, answer string, e stream.Emitter) []string {
	var out []string
	_ = r.run(ctx, stageSuggest, e, func(ctx context.Context) error {
		out = r.suggest(ctx, history, query, answer, e)
		return nil
	})
	if out == nil {
		out = defaultSuggestions()
	}
	return out
}

func (r *Runner) suggest(ctx context.Context, history []llm.Message, query, answer string, e stream.Emitter) []string {
	stageSuggest.emit(e, "Analyzing conversation to suggest relevant questions", stream.StatusActive)

	if r.deps.LLM == nil {
		stageSuggest.emit(e, "", stream.StatusComplete)
		return defaultSuggestions()
	}

	conv := append(append([]llm.Message{}, history...),
		llm.Message{Role: llm.RoleUser, Content: query},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
	if len(conv) > 10 {
		conv = conv[len(conv)-10:]
	}
	lines := make([]string, 0, len(conv))
	for _, m := range conv {
		lines = append(lines, fmt.Sprintf("%s: %s", capitalize(m.Role), cut(m.Content, 200)))
	}

	reply, err := r.deps.LLM.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a helpful assistant that generates relevant follow-up questions."},
		{Role: llm.RoleUser, Content: suggestionsPrompt(lines)},
	}, llm.WithTemperature(0.8), llm.WithMaxTokens(300))
	if err != nil {
		r.deps.Logger.Warn(module, "Suggestion generation failed, using defaults", map[string]interface{}{"error": err.Error()})
		stageSuggest.emit(e, "⚠️ Using default suggestions", stream.StatusComplete)
		return defaultSuggestions()
	}

	suggestions := ParseSuggestions(reply)
	stageSuggest.emit(e, fmt.Sprintf("✓ Generated %d suggestions", len(suggestions)), stream.StatusComplete)
	return suggestions
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
