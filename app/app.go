// Package app assembles the support agent from configuration. Optional
// components that fail to start are logged and left out; the HTTP layer
// reports them as unavailable.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabfab/support-agent/api"
	"github.com/fabfab/support-agent/chat"
	"github.com/fabfab/support-agent/config"
	"github.com/fabfab/support-agent/database"
	"github.com/fabfab/support-agent/embeddings"
	"github.com/fabfab/support-agent/events"
	"github.com/fabfab/support-agent/ingestion"
	"github.com/fabfab/support-agent/keyword"
	"github.com/fabfab/support-agent/knowledge"
	"github.com/fabfab/support-agent/llm"
	"github.com/fabfab/support-agent/scraper"
	"github.com/fabfab/support-agent/ticket"
	"github.com/fabfab/support-agent/triage"
)

const fetchTimeout = 30 * time.Second

type vectorBackend interface {
	chat.VectorStore
	chat.DocumentWriter
}

// App holds every wired component and the resources that must be released.
type App struct {
	Config   config.Config
	Chat     *chat.Service
	Keyword  *keyword.Searcher
	Articles *keyword.Store
	Semantic *chat.SemanticSearch
	Triage   *triage.Service
	Tickets  *ticket.Client
	Ingest   *ingestion.Service
	Events   *events.Emitter

	vectors vectorBackend
	graph   *knowledge.Graph
	logger  *log.Logger
	closers []func() error
}

func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{Config: cfg, logger: logger}

	vocab, err := config.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	var llmClient llm.Client
	if client, err := llm.NewClient(cfg); err != nil {
		logger.Printf("llm disabled: %v", err)
	} else {
		llmClient = client
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Printf("embeddings disabled: %v", err)
	}

	a.vectors = a.openVectorStore(ctx)

	var graphStore chat.GraphStore
	if cfg.Neo4jEnabled {
		driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Printf("knowledge graph disabled: %v", err)
		} else {
			a.closers = append(a.closers, func() error { return driver.Close(context.Background()) })
			graphStore = chat.NewNeo4jGraphStore(driver)
			a.graph = knowledge.NewGraph(driver)
		}
	}

	var vectors chat.VectorStore
	if a.vectors != nil {
		vectors = a.vectors
	}
	a.Semantic = chat.NewSemanticSearch(vectors, graphStore, embedder, logger)

	if err := a.openKeyword(ctx); err != nil {
		a.Close()
		return nil, err
	}

	deps := chat.Dependencies{
		LLM:        llmClient,
		Classifier: chat.NewClassifier(vocab.DomainTerms),
		Escalation: chat.NewEscalationDetector(vocab.UncertaintyPhrases),
		Product:    cfg.ProductName,
	}
	if a.Keyword.Available() {
		deps.Keyword = a.Keyword
	}
	if a.Semantic.Available() {
		deps.Semantic = a.Semantic
		if cfg.FallbackChain {
			if model, err := llm.NewChainModel(cfg); err != nil {
				logger.Printf("fallback chain disabled: %v", err)
			} else {
				deps.Fallback = chat.NewRetrievalQAChain(model, a.Semantic, 0)
			}
		}
	}
	a.Chat = chat.NewService(deps, logger)

	a.Triage = triage.NewService(a.Chat, vocab.RedirectCategories, cfg.ProductName, logger)
	a.Tickets = ticket.NewClient(cfg.Freshservice.Domain, cfg.Freshservice.APIKey, logger)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Printf("event publishing disabled: %v", err)
		} else {
			publisher = kafka
		}
	}
	a.Events = events.NewEmitter(publisher, logger)
	a.closers = append(a.closers, a.Events.Close)

	var writer chat.DocumentWriter
	if a.vectors != nil {
		writer = a.vectors
	}
	var syncer ingestion.GraphSyncer
	if a.graph != nil {
		syncer = a.graph
	}
	a.Ingest = ingestion.NewService(writer, syncer, embedder, ingestion.Options{Logger: logger})

	return a, nil
}

func (a *App) openVectorStore(ctx context.Context) vectorBackend {
	cfg := a.Config
	switch cfg.VectorStore {
	case config.VectorStoreNone:
		return nil
	case config.VectorStoreBadger:
		store, err := chat.OpenBadgerVectorStore(cfg.BadgerDir, a.logger)
		if err != nil {
			a.logger.Printf("semantic search disabled: %v", err)
			return nil
		}
		a.closers = append(a.closers, store.Close)
		return store
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			a.logger.Printf("semantic search disabled: %v", err)
			return nil
		}
		if err := database.EnsureKnowledgeSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			pool.Close()
			a.logger.Printf("semantic search disabled: %v", err)
			return nil
		}
		a.closers = append(a.closers, closePool(pool))
		return chat.NewPostgresVectorStore(pool)
	}
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}

// openKeyword loads articles from the SQLite store, seeding it from the JSON
// export on first run, and builds the keyword searcher over them.
func (a *App) openKeyword(ctx context.Context) error {
	cfg := a.Config

	store, err := keyword.OpenStore(ctx, cfg.ArticlesDB)
	if err != nil {
		a.logger.Printf("article store unavailable: %v", err)
	} else {
		a.Articles = store
		a.closers = append(a.closers, store.Close)
	}

	articles, err := a.loadArticles(ctx)
	if err != nil {
		a.logger.Printf("keyword search disabled: %v", err)
	}

	opts := keyword.Options{Product: cfg.ProductName, Logger: a.logger}
	if cfg.KeywordFetchFresh {
		opts.FetchFresh = true
		opts.Fetcher = scraper.New(scraper.NewHTTPLoader(fetchTimeout), scraper.Options{Logger: a.logger})
	}

	searcher, err := keyword.NewSearcher(articles, opts)
	if err != nil {
		return fmt.Errorf("build keyword index: %w", err)
	}
	a.Keyword = searcher
	a.closers = append(a.closers, searcher.Close)
	return nil
}

func (a *App) loadArticles(ctx context.Context) ([]keyword.Article, error) {
	if a.Articles != nil {
		articles, err := a.Articles.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("read article store: %w", err)
		}
		if len(articles) > 0 {
			return articles, nil
		}
	}

	articles, err := keyword.LoadJSON(a.Config.ArticlesJSON)
	if err != nil {
		return nil, err
	}
	if a.Articles != nil && len(articles) > 0 {
		if err := a.Articles.Upsert(ctx, articles); err != nil {
			a.logger.Printf("seed article store: %v", err)
		}
	}
	return articles, nil
}

// Clear removes all ingested knowledge from the vector store and the graph.
func (a *App) Clear(ctx context.Context) error {
	if a.vectors == nil && a.graph == nil {
		return errors.New("no knowledge store configured")
	}
	if a.vectors != nil {
		if err := a.vectors.Clear(ctx); err != nil {
			return fmt.Errorf("clear vector store: %w", err)
		}
	}
	if a.graph != nil {
		if err := a.graph.Clear(ctx); err != nil {
			return fmt.Errorf("clear knowledge graph: %w", err)
		}
	}
	return nil
}

// API returns the handler dependencies with absent components left nil.
func (a *App) API() api.Dependencies {
	deps := api.Dependencies{
		Chat:          a.Chat,
		Articles:      a.Keyword,
		Triage:        a.Triage,
		Events:        a.Events,
		Semantic:      a.Semantic,
		SemanticStore: a.Config.VectorStore,
		DataDir:       a.Config.DataDir,
	}
	if a.Tickets.Enabled() {
		deps.Tickets = a.Tickets
	}
	if a.vectors != nil {
		deps.Ingest = a.Ingest
	}
	if a.vectors != nil || a.graph != nil {
		deps.Clear = a
	}
	return deps
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
