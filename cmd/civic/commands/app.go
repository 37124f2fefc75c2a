package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/civic-go/internal/assistant"
	"github.com/54b3r/civic-go/internal/classifier"
	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/embedder"
	"github.com/54b3r/civic-go/internal/handlers"
	"github.com/54b3r/civic-go/internal/index"
	"github.com/54b3r/civic-go/internal/ingestion"
	"github.com/54b3r/civic-go/internal/orchestrator"
	"github.com/54b3r/civic-go/internal/provider"
	"github.com/54b3r/civic-go/internal/rag"
	"github.com/54b3r/civic-go/internal/retrieval"
	"github.com/54b3r/civic-go/internal/server"
	"github.com/54b3r/civic-go/internal/store"
	"github.com/54b3r/civic-go/internal/structured"
	"github.com/54b3r/civic-go/internal/tools"
	"github.com/54b3r/civic-go/internal/vectorstore/memory"
	"github.com/54b3r/civic-go/internal/vectorstore/pgvector"
	"github.com/54b3r/civic-go/internal/vectorstore/qdrant"
	"github.com/54b3r/civic-go/internal/vectorstore/sqlite"
	"github.com/54b3r/civic-go/internal/webcache"
)

// defaultDataDir is used when CIVIC_DATA_DIR is unset.
const defaultDataDir = "data"

// app holds the components shared by every command. Build it with newApp
// and release it with close.
type app struct {
	log      *slog.Logger
	reg      prometheus.Registerer
	vocab    *config.Vocabulary
	dataDir  string
	embedder rag.Embedder
	store    rag.VectorStore
	index    *index.Index
	cls      *classifier.Classifier
	records  *structured.Merger
	web      *webcache.Cache // nil when CIVIC_WEB_DISABLED is set
	service  *retrieval.Service
	pingers  []server.Pinger
	closers  []func() error
}

// appOptions adjusts newApp for a command.
type appOptions struct {
	// Registerer receives component metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// DataDir overrides CIVIC_DATA_DIR.
	DataDir string

	// SkipRecords leaves the structured merger empty at startup. Ingest
	// loads it itself.
	SkipRecords bool
}

// newApp builds the retrieval stack from the environment. On error every
// resource opened so far is released.
func newApp(ctx context.Context, log *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{log: log, reg: opts.Registerer}
	if a.reg == nil {
		a.reg = prometheus.DefaultRegisterer
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.dataDir = opts.DataDir
	if a.dataDir == "" {
		a.dataDir = getEnvOrDefault("CIVIC_DATA_DIR", defaultDataDir)
	}

	if a.vocab, err = loadVocabulary(); err != nil {
		return nil, err
	}

	if err = embedder.Validate(log); err != nil {
		return nil, err
	}
	if a.embedder, err = embedder.NewFromEnv(ctx); err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embedder.Backend()))

	if err = a.openStore(ctx); err != nil {
		return nil, err
	}
	a.index = index.New(a.store, a.embedder,
		index.WithLogger(log),
		index.WithRegisterer(a.reg),
	)

	if a.cls, err = newClassifier(ctx, a.vocab, a.embedder, log); err != nil {
		return nil, err
	}

	a.records = structured.New(a.cls, log)
	if !opts.SkipRecords {
		a.loadRecords(ctx)
	}

	if a.web, err = a.openWeb(); err != nil {
		return nil, err
	}

	cfg := retrieval.Config{
		Index:      a.index,
		Classifier: a.cls,
		Records:    a.records,
		TopK:       getEnvInt("CIVIC_TOP_K", index.DefaultTopK),
		Logger:     log,
	}
	if a.web != nil {
		cfg.Web = a.web
	}
	if a.service, err = retrieval.New(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// loadVocabulary reads CIVIC_VOCABULARY, falling back to the embedded
// default.
func loadVocabulary() (*config.Vocabulary, error) {
	if path := os.Getenv("CIVIC_VOCABULARY"); path != "" {
		v, err := config.LoadVocabulary(path)
		if err != nil {
			return nil, fmt.Errorf("vocabulary: %w", err)
		}
		return v, nil
	}
	v, err := config.DefaultVocabulary()
	if err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}
	return v, nil
}

func newClassifier(ctx context.Context, vocab *config.Vocabulary, emb rag.Embedder, log *slog.Logger) (*classifier.Classifier, error) {
	mode, err := classifier.ParseMode(os.Getenv("CIVIC_CLASSIFIER_MODE"))
	if err != nil {
		return nil, err
	}
	if mode == classifier.ModeEmbedding {
		return classifier.NewEmbedding(ctx, vocab, emb, log)
	}
	return classifier.NewKeyword(vocab, log), nil
}

// openStore opens the vector store named by CIVIC_VECTOR_BACKEND.
func (a *app) openStore(ctx context.Context) error {
	backend := strings.ToLower(getEnvOrDefault("CIVIC_VECTOR_BACKEND", "sqlite"))
	dims := embedder.DefaultDimensions(embedder.Backend())

	switch backend {
	case "memory":
		a.store = memory.New(dims)

	case "sqlite":
		path := os.Getenv("CIVIC_INDEX_DB")
		if path == "" {
			p, err := sqlite.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		a.store = s
		a.pingers = append(a.pingers, server.NewPinger("index:sqlite", s))
		a.log.Info("index: sqlite store opened", slog.String("path", path))

	case "qdrant":
		cfg := &qdrant.Config{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "civic"),
			VectorSize: uint64(dims), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     getEnvBool("QDRANT_TLS"),
		}
		s, err := qdrant.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("index: qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		a.store = s
		a.pingers = append(a.pingers, server.NewPinger("index:qdrant", s))
		a.log.Info("index: qdrant store ready",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("collection", cfg.Collection),
		)

	case "pgvector":
		dsn := os.Getenv("PGVECTOR_DSN")
		if dsn == "" {
			return errors.New("index: pgvector requires PGVECTOR_DSN")
		}
		s, err := pgvector.New(ctx, pgvector.Config{
			DSN:        dsn,
			Table:      getEnvOrDefault("PGVECTOR_TABLE", pgvector.DefaultTable),
			Dimensions: dims,
		})
		if err != nil {
			return err
		}
		a.store = s
		a.pingers = append(a.pingers, server.NewPinger("index:pgvector", s))
		a.log.Info("index: pgvector store ready")

	default:
		return fmt.Errorf("index: unknown CIVIC_VECTOR_BACKEND %q (valid: memory, sqlite, qdrant, pgvector)", backend)
	}

	a.closers = append(a.closers, a.store.Close)
	return nil
}

// loadRecords reads the structured sources under the data directory. A
// missing directory only costs the structured answers, so it is logged.
func (a *app) loadRecords(ctx context.Context) {
	loaded, err := a.records.Load(ctx, a.dataDir)
	if err != nil {
		a.log.Warn("structured: data unavailable", slog.String("dir", a.dataDir), slog.String("error", err.Error()))
		return
	}
	a.log.Debug("structured: sources loaded", slog.Int("sources", len(loaded)))
}

// openWeb builds the website cache unless CIVIC_WEB_DISABLED is set.
func (a *app) openWeb() (*webcache.Cache, error) {
	if getEnvBool("CIVIC_WEB_DISABLED") {
		a.log.Info("web: disabled via CIVIC_WEB_DISABLED")
		return nil, nil
	}

	base := getEnvOrDefault("CIVIC_WEB_BASE_URL", a.vocab.Web.BaseURL)
	scraper, err := webcache.NewScraper(base, a.vocab.Web.Targets,
		webcache.WithScraperLogger(a.log),
		webcache.WithScraperRegisterer(a.reg),
	)
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	opts := []webcache.Option{
		webcache.WithSource(webcache.SiteKey, scraper),
		webcache.WithTTL(getEnvDuration("CIVIC_WEB_TTL", webcache.DefaultTTL)),
		webcache.WithLogger(a.log),
		webcache.WithRegisterer(a.reg),
	}

	path := os.Getenv("CIVIC_WEB_CACHE_DB")
	if path == "" {
		path, err = webcache.DefaultSnapshotPath()
	}
	if err == nil {
		snap, openErr := webcache.OpenSnapshot(path)
		if openErr == nil {
			opts = append(opts, webcache.WithSnapshot(snap))
			a.closers = append(a.closers, snap.Close)
		} else {
			err = openErr
		}
	}
	if err != nil {
		a.log.Warn("web: snapshot unavailable, cache is memory only", slog.String("error", err.Error()))
	}

	return webcache.New(opts...), nil
}

// ensureIndexed ingests the data directory when the index is empty, so
// the memory backend is usable without a separate ingest run.
func (a *app) ensureIndexed(ctx context.Context) error {
	n, err := a.index.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	a.log.Info("index: empty, ingesting data directory", slog.String("dir", a.dataDir))
	p, err := a.pipeline(false)
	if err != nil {
		return err
	}
	if _, err := p.Ingest(ctx, a.dataDir); err != nil {
		a.log.Warn("index: ingestion failed, answers will have no document context", slog.String("error", err.Error()))
	}
	return nil
}

// pipeline returns an ingestion pipeline over the app's components.
func (a *app) pipeline(includeWeb bool) (*ingestion.Pipeline, error) {
	cfg := ingestion.Config{
		Index:      a.index,
		Classifier: a.cls,
		Records:    a.records,
		IncludeWeb: includeWeb,
		Logger:     a.log,
	}
	if a.web != nil {
		cfg.Web = a.web
	}
	return ingestion.NewPipeline(cfg)
}

// orchestrator builds the routing graph with the demo back-office handlers.
func (a *app) orchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	cfg := orchestrator.Config{
		Vocabulary: a.vocab,
		Billing:    handlers.NewBilling(nil, a.log),
		Incident:   handlers.NewIncident(handlers.NewRecorder(time.Now), a.log),
		Licensing:  handlers.NewLicensing(a.log),
		Logger:     a.log,
		Registerer: a.reg,
	}
	if a.web != nil {
		cfg.Web = a.web
	}
	return orchestrator.New(ctx, cfg)
}

// assistant builds the conversational assistant. It returns a nil
// assistant and nil error when MODEL_PROVIDER is unset.
func (a *app) assistant(ctx context.Context) (*assistant.Assistant, *provider.Config, model.ToolCallingChatModel, error) {
	pcfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, pcfg)
	if errors.Is(err, provider.ErrDisabled) {
		a.log.Info("assistant: disabled", slog.String("reason", "MODEL_PROVIDER not set"))
		return nil, pcfg, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("model provider: %w", err)
	}
	a.log.Info("provider initialised",
		slog.String("provider", string(pcfg.Backend)),
		slog.String("model", pcfg.Model()),
	)

	history := a.openHistory()

	asst, err := assistant.New(ctx, &assistant.Config{
		ChatModel: chatModel,
		Tools:     tools.Set(a.service, a.records),
		Retriever: a.service,
		TopK:      getEnvInt("CIVIC_TOP_K", index.DefaultTopK),
		History:   history,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return asst, pcfg, chatModel, nil
}

// openHistory opens the conversation store per CIVIC_HISTORY_DB. It
// returns nil when history is disabled or unavailable.
func (a *app) openHistory() store.ConversationStore {
	path := os.Getenv("CIVIC_HISTORY_DB")
	if path == "disabled" {
		a.log.Info("history: disabled via CIVIC_HISTORY_DB=disabled")
		return nil
	}
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			a.log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
		path = p
	}
	hs, err := store.Open(path)
	if err != nil {
		a.log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	a.closers = append(a.closers, hs.Close)
	a.pingers = append(a.pingers, server.NewPinger("history", hs))
	a.log.Info("history: store opened", slog.String("path", path))
	return hs
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", slog.Any("error", err))
		}
	}
	a.closers = nil
}
