package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haiwise/knowledge-cli/internal/answer"
	"github.com/haiwise/knowledge-cli/internal/generation"
	"github.com/haiwise/knowledge-cli/internal/index"
	"github.com/haiwise/knowledge-cli/internal/lexical"
	"github.com/haiwise/knowledge-cli/internal/metric"
	"github.com/haiwise/knowledge-cli/internal/model"
	"github.com/haiwise/knowledge-cli/internal/prompt"
	"github.com/haiwise/knowledge-cli/internal/retriever"
	"github.com/haiwise/knowledge-cli/internal/store"
	anthropicpkg "github.com/haiwise/knowledge-cli/pkg/anthropic"
	"github.com/haiwise/knowledge-cli/pkg/dashscope"
)

// initStore opens the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEmbedder builds the configured embedding provider.
func initEmbedder() index.Embedder {
	if cfg.Embedding.Provider == "dashscope" {
		client := dashscope.NewClient(cfg.Generation.Key,
			dashscope.WithBaseURL(cfg.Generation.BaseURL),
			dashscope.WithEmbeddingModel(cfg.Embedding.Model),
		)
		return index.NewDashScopeEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension)
	}
	return index.NewMockEmbedder(cfg.Embedding.Dimension)
}

// initGenerator builds the configured generation provider.
func initGenerator() generation.Generator {
	switch cfg.Generation.Provider {
	case "anthropic":
		client := anthropicpkg.NewClient(cfg.Generation.Key)
		return generation.NewAnthropic(client, cfg.Generation.Model, int64(cfg.Generation.MaxTokens))
	case "dashscope":
		client := dashscope.NewClient(cfg.Generation.Key,
			dashscope.WithBaseURL(cfg.Generation.BaseURL),
			dashscope.WithChatModel(cfg.Generation.Model),
		)
		return generation.NewDashScope(client, cfg.Generation.Model, cfg.Generation.MaxTokens)
	default:
		return generation.NewMock()
	}
}

// initVectorSearcher opens the configured vector backend for querying.
// The memory backend loads the flat index snapshot written by the index
// command; the qdrant backend searches the live collection.
func initVectorSearcher(embedder index.Embedder) (retriever.Searcher, func() error, error) {
	if cfg.Index.Backend == "qdrant" {
		q, err := index.NewQdrant(cfg.Index.QdrantAddr, cfg.Index.Collection, embedder)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	}

	flat, err := index.LoadFlat(cfg.Index.VectorPath, embedder)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load vector index (run `knowledge-cli index` first)")
	}
	return flat, nil, nil
}

// initReference loads the metric reference table, falling back to the
// built-in baseline when no file is configured.
func initReference() (map[string]float64, error) {
	if cfg.Metrics.ReferencePath == "" {
		return metric.DefaultReference(), nil
	}
	return metric.LoadReference(cfg.Metrics.ReferencePath)
}

// queryEnv bundles everything a single question needs to travel from
// retrieval to a validated answer payload.
type queryEnv struct {
	retriever *retriever.Retriever
	builder   *prompt.Builder
	generator generation.Generator
	parser    *answer.Parser
	validator *metric.Validator
	store     store.Store
	topK      int
	useBM25   bool
	closers   []func() error
}

// initQueryEnv wires the full answering pipeline from config.
func initQueryEnv(ctx context.Context) (*queryEnv, error) {
	env := &queryEnv{
		topK:    cfg.Retrieval.TopK,
		useBM25: cfg.Retrieval.UseBM25,
	}

	embedder := initEmbedder()
	vector, closeVector, err := initVectorSearcher(embedder)
	if err != nil {
		return nil, err
	}
	if closeVector != nil {
		env.closers = append(env.closers, closeVector)
	}

	var lex retriever.Searcher
	lexIndex, err := lexical.Load(cfg.Index.LexicalPath)
	if err != nil {
		// The lexical index is an optional enrichment over the vector
		// backend; a missing snapshot degrades to vector-only retrieval.
		zap.L().Warn("lexical index unavailable, retrieval is vector-only", zap.Error(err))
	} else {
		lex = lexIndex
	}

	env.retriever = retriever.New(vector, lex, retriever.Weights{
		Vector:       cfg.Retrieval.VectorWeight,
		Lexical:      cfg.Retrieval.LexicalWeight,
		LexicalScale: cfg.Retrieval.LexicalScale,
	})

	env.builder = prompt.NewBuilder(cfg.Prompt.MaxContextChars)
	env.generator = initGenerator()
	env.parser = answer.NewParser()

	reference, err := initReference()
	if err != nil {
		env.Close()
		return nil, err
	}
	env.validator = metric.NewValidator(reference)

	st, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	env.store = st
	env.closers = append(env.closers, st.Close)

	return env, nil
}

// Close releases backend connections in reverse acquisition order.
func (e *queryEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close pipeline resource", zap.Error(err))
		}
	}
}

// Answer runs one question through retrieval, generation, parsing and
// metric validation, then records the run.
func (e *queryEnv) Answer(ctx context.Context, question, agent string) (model.AnswerPayload, []model.RetrievedDocument, error) {
	docs, err := e.retriever.Retrieve(ctx, question, e.topK, e.useBM25)
	if err != nil {
		e.record(ctx, question, agent, model.RunStatusFailed, nil, 0)
		return model.AnswerPayload{}, nil, eris.Wrap(err, "retrieve")
	}

	messages := e.builder.Build(question, docs, agent)
	raw, err := e.generator.Invoke(ctx, messages)
	if err != nil {
		e.record(ctx, question, agent, model.RunStatusFailed, nil, len(docs))
		return model.AnswerPayload{}, nil, eris.Wrap(err, "generate")
	}

	payload := e.parser.Parse(raw, docs)
	payload = e.validator.Validate(payload)

	e.record(ctx, question, agent, model.RunStatusComplete, &payload, len(docs))

	zap.L().Info("question answered",
		zap.String("agent", agent),
		zap.Int("retrieved", len(docs)),
		zap.Float64("confidence", payload.Confidence),
	)
	return payload, docs, nil
}

// record persists the run outcome; persistence failures are logged, never
// surfaced, so auditing cannot break answering.
func (e *queryEnv) record(ctx context.Context, question, agent string, status model.RunStatus, payload *model.AnswerPayload, retrieved int) {
	run := &model.QueryRun{
		Question:  question,
		Agent:     agent,
		Status:    status,
		Payload:   payload,
		Retrieved: retrieved,
	}
	if payload != nil {
		run.Confidence = payload.Confidence
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		zap.L().Warn("save query run", zap.Error(err))
	}
}

// resolveAgent applies the config default when the flag is unset.
func resolveAgent(flag string) string {
	if flag != "" {
		return flag
	}
	if cfg.Prompt.Agent != "" {
		return cfg.Prompt.Agent
	}
	return "dev"
}
