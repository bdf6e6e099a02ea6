package graphrag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/graphrag/pkg/bus"
	"github.com/soundprediction/graphrag/pkg/community"
	"github.com/soundprediction/graphrag/pkg/config"
	"github.com/soundprediction/graphrag/pkg/docstore"
	"github.com/soundprediction/graphrag/pkg/embedder"
	"github.com/soundprediction/graphrag/pkg/extract"
	"github.com/soundprediction/graphrag/pkg/kgraph"
	"github.com/soundprediction/graphrag/pkg/llm"
	"github.com/soundprediction/graphrag/pkg/query"
	"github.com/soundprediction/graphrag/pkg/rendezvous"
	"github.com/soundprediction/graphrag/pkg/types"
	"github.com/soundprediction/graphrag/pkg/worker"
)

// Components holds the injectable collaborators of a Client. Tests and
// embedders construct these directly; production wiring goes through
// NewFromConfig.
type Components struct {
	Graph      kgraph.KnowledgeGraph
	Bus        bus.MessageBus
	Rendezvous *rendezvous.Store
	LLM        llm.Client
	Embedder   embedder.Client
	Logger     *slog.Logger

	Delimiters   extract.Delimiters
	Leiden       community.LeidenConfig
	QueryOptions query.Options
	ReportTopic  string
}

// Client is the main implementation of the GraphRAG interface.
type Client struct {
	graph        kgraph.KnowledgeGraph
	transport    bus.MessageBus
	meet         *rendezvous.Store
	llm          llm.Client
	embed        embedder.Client
	builder      *extract.Builder
	engine       *community.Engine
	orchestrator *query.Orchestrator
	worker       *worker.Worker
	log          *slog.Logger
}

// NewClient wires a client from explicit components.
func NewClient(c Components) (*Client, error) {
	if c.Graph == nil {
		return nil, fmt.Errorf("a knowledge graph is required")
	}
	if c.LLM == nil {
		return nil, fmt.Errorf("an llm client is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	engine := community.NewEngine(c.Graph, c.LLM, c.Embedder, c.Bus, community.EngineOptions{
		Leiden:      c.Leiden,
		ReportTopic: c.ReportTopic,
		Logger:      c.Logger,
	})

	client := &Client{
		graph:     c.Graph,
		transport: c.Bus,
		meet:      c.Rendezvous,
		llm:       c.LLM,
		embed:     c.Embedder,
		builder:   extract.NewBuilder(c.Graph, c.Delimiters, c.Logger),
		engine:    engine,
		log:       c.Logger,
	}
	if c.Bus != nil && c.Rendezvous != nil {
		opts := c.QueryOptions
		opts.Logger = c.Logger
		client.orchestrator = query.NewOrchestrator(c.Graph, c.Bus, c.Rendezvous, c.LLM, opts)
		client.worker = worker.New(c.Graph, c.LLM, c.Rendezvous, engine, c.Logger)
	}
	return client, nil
}

// NewFromConfig wires a client from the loaded configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	docs, graph, err := openStores(cfg, logger)
	if err != nil {
		return nil, err
	}

	transport, err := openBus(cfg, logger)
	if err != nil {
		return nil, err
	}

	model, err := openLLM(cfg, logger)
	if err != nil {
		return nil, err
	}

	embed, err := openEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	var meet *rendezvous.Store
	if docs != nil {
		meet = rendezvous.NewStore(docs, cfg.Store.RendezvousCollection)
	}

	return NewClient(Components{
		Graph:      graph,
		Bus:        transport,
		Rendezvous: meet,
		LLM:        model,
		Embedder:   embed,
		Logger:     logger,
		Leiden: community.LeidenConfig{
			MaxClusterSize: cfg.Community.MaxClusterSize,
			MaxLevels:      cfg.Community.MaxLevels,
			RandomSeed:     cfg.Community.RandomSeed,
		},
		QueryOptions: query.Options{
			Topic:           cfg.Bus.MapTopic,
			WarmUp:          time.Duration(cfg.Query.WarmUpSeconds) * time.Second,
			Interval:        time.Duration(cfg.Query.IntervalSeconds) * time.Second,
			MaxAttempts:     cfg.Query.MaxAttempts,
			CompletionRatio: cfg.Query.CompletionRatio,
			ScoreThreshold:  cfg.Query.ScoreThreshold,
			MaxResponses:    cfg.Query.MaxResponses,
		},
		ReportTopic: cfg.Bus.ReportTopic,
	})
}

func openStores(cfg *config.Config, logger *slog.Logger) (docstore.Store, kgraph.KnowledgeGraph, error) {
	opts := &kgraph.StoreOptions{
		NodeCollection:      cfg.Store.NodeCollection,
		EdgeCollection:      cfg.Store.EdgeCollection,
		CommunityCollection: cfg.Store.CommunityCollection,
		Strict:              cfg.Store.Strict,
		Logger:              logger,
	}
	switch cfg.Store.Driver {
	case "", "badger":
		docs, err := docstore.NewBadgerStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return docs, kgraph.NewStore(docs, opts), nil
	case "memory":
		docs := docstore.NewMemoryStore()
		return docs, kgraph.NewStore(docs, opts), nil
	case "neo4j":
		graph, err := kgraph.NewNeo4jGraph(cfg.Store.URI, cfg.Store.Username, cfg.Store.Password, cfg.Store.Database, cfg.Store.Strict)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open neo4j graph: %w", err)
		}
		// The rendezvous store still needs a document store.
		docs, err := docstore.NewBadgerStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return docs, graph, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openBus(cfg *config.Config, logger *slog.Logger) (bus.MessageBus, error) {
	switch cfg.Bus.Driver {
	case "", "nats":
		return bus.NewNATSBus(bus.NATSConfig{
			URL:           cfg.Bus.URL,
			MaxReconnects: cfg.Bus.MaxReconnects,
			ReconnectWait: cfg.Bus.ReconnectWait,
		}, logger)
	case "memory":
		return bus.NewMemoryBus(logger), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
	}
}

func openLLM(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	base, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, logger)
	if err != nil {
		return nil, err
	}

	var client llm.Client = base
	if cfg.CircuitBreaker.Enabled {
		client = llm.NewBreakerClient(client, llm.BreakerConfig{
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         cfg.CircuitBreaker.Interval,
			Timeout:          cfg.CircuitBreaker.Timeout,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, "llm", logger)
	}
	retry := llm.DefaultRetryConfig()
	if cfg.LLM.MaxRetries > 0 {
		retry.MaxRetries = cfg.LLM.MaxRetries
	}
	return llm.NewRetryClient(client, retry), nil
}

func openEmbedder(cfg *config.Config) (embedder.Client, error) {
	switch cfg.Embedding.Provider {
	case "", "openai":
		return embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedder.Config{
			Model:      cfg.Embedding.Model,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	case "embedeverything":
		return embedder.NewEmbedEverythingClient(embedder.Config{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// Ingest implements Ingestor.
func (c *Client) Ingest(ctx context.Context, stream, documentID string) (*extract.IngestResult, error) {
	return c.builder.Ingest(ctx, stream, documentID)
}

// BuildCommunities implements CommunityManager.
func (c *Client) BuildCommunities(ctx context.Context) ([]*types.CommunityData, error) {
	return c.engine.BuildCommunities(ctx)
}

// GenerateReports implements CommunityManager.
func (c *Client) GenerateReports(ctx context.Context) error {
	return c.engine.GenerateReports(ctx)
}

// DispatchReports implements CommunityManager.
func (c *Client) DispatchReports(ctx context.Context) (int, error) {
	return c.engine.DispatchReports(ctx)
}

// RefreshNodeEmbeddings implements CommunityManager.
func (c *Client) RefreshNodeEmbeddings(ctx context.Context) (int, error) {
	return c.engine.RefreshNodeEmbeddings(ctx)
}

// Answer implements Querier.
func (c *Client) Answer(ctx context.Context, userQuery string) (string, error) {
	if c.orchestrator == nil {
		return "", fmt.Errorf("query orchestration requires a bus and a rendezvous store")
	}
	return c.orchestrator.Answer(ctx, userQuery)
}

// Graph implements GraphAccessor.
func (c *Client) Graph() kgraph.KnowledgeGraph {
	return c.graph
}

// Worker returns the embedded map worker, or nil when the client was built
// without a bus and rendezvous store.
func (c *Client) Worker() *worker.Worker {
	return c.worker
}

// Bus returns the message bus the client was wired with.
func (c *Client) Bus() bus.MessageBus {
	return c.transport
}

// Rendezvous returns the rendezvous store the client was wired with.
func (c *Client) Rendezvous() *rendezvous.Store {
	return c.meet
}

// Close implements GraphRAG.
func (c *Client) Close() error {
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			c.log.Warn("failed to close bus", "error", err)
		}
	}
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			c.log.Warn("failed to close llm client", "error", err)
		}
	}
	if c.embed != nil {
		if err := c.embed.Close(); err != nil {
			c.log.Warn("failed to close embedder", "error", err)
		}
	}
	return c.graph.Close()
}

var _ GraphRAG = (*Client)(nil)
