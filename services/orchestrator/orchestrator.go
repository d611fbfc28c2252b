// Copyright (C) 2025 StudyMate
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the request-orchestration core of StudyMate.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, rate limiting, query classification, safety
// gating, course material retrieval, context assembly, LLM generation,
// response sanitization, and conversation storage.
//
// # Hosted Integration
//
// The orchestrator supports dependency injection via
// extensions.ServiceOptions, enabling hosted deployments to provide
// custom implementations of:
//   - AuthProvider: real authentication (OIDC, school SSO)
//   - ProfileProvider: student profiles from an SIS
//   - PreferenceProvider: stored learning preferences
//
// # Usage
//
// Local install (uses no-op defaults):
//
//	cfg := orchestrator.Config{Port: 8080, LLMBackend: "ollama"}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Shaswata28/StudyMate-sub001/pkg/extensions"
	"github.com/Shaswata28/StudyMate-sub001/services/llm"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/classifier"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/contextbuilder"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/conversation"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/datatypes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/middleware"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/ratelimit"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/retrieval"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/routes"
	"github.com/Shaswata28/StudyMate-sub001/services/orchestrator/services"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator service.
//
// # Description
//
// Service abstracts the orchestrator lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	// Callers must not modify the router after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration options.
//
// All fields are optional; New() applies defaults for zero values.
type Config struct {
	// Port is the HTTP server port. Default: 8080
	Port int

	// LLMBackend specifies the generation provider.
	// Valid values: "openai", "ollama". Default: "ollama"
	LLMBackend string

	// WeaviateURL is the Weaviate vector database URL. If empty,
	// retrieval is disabled and history is kept in memory only.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// StoreBackend selects conversation persistence.
	// Valid values: "memory", "weaviate". Default: "memory"
	// ("weaviate" requires WeaviateURL).
	StoreBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "studymate-otel-collector:4317"
	OTelEndpoint string

	// AllowedOrigins is the CORS allow-list. Empty disables CORS.
	AllowedOrigins []string

	// RateLimit is the per-user request budget per window.
	// Default: 15. Negative disables all requests; use with care.
	RateLimit int64

	// RatePeriod is the rate-limit window. Default: 60s.
	RatePeriod time.Duration

	// GenerationTimeout caps one generation call. Default: 30s.
	GenerationTimeout time.Duration

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug".
	GinMode string
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "memory"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "studymate-otel-collector:4317"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = ratelimit.DefaultLimit
	}
	if cfg.RatePeriod == 0 {
		cfg.RatePeriod = ratelimit.DefaultPeriod
	}
	if cfg.GenerationTimeout == 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// Thread-safe after construction; all fields are read-only after New()
// returns.
type service struct {
	config         Config
	opts           extensions.ServiceOptions
	router         *gin.Engine
	llmClient      llm.LLMClient
	weaviateClient *weaviate.Client
	store          conversation.Store
	pipeline       *services.TutorPipeline
	limiter        *ratelimit.Limiter
	sweeper        *conversation.Sweeper
	tracerCleanup  func(context.Context)
}

var _ Service = (*service)(nil)

// New creates an orchestrator Service with the given configuration.
//
// # Description
//
// Initializes all components in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Creates the Weaviate client if a URL is configured (not fatal)
//  4. Creates the LLM client for the chosen backend
//  5. Wires classifier, retriever, store, assembler, and pipeline
//  6. Sets up HTTP routes with middleware
//
// If opts is nil, extensions.DefaultOptions() is used.
//
// # Outputs
//
//   - Service: ready-to-run orchestrator
//   - error: non-nil if a required component fails to initialize
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, retrieval disabled",
			"error", err)
		s.weaviateClient = nil
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initPipeline(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
// Cleanup is automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	if s.sweeper != nil {
		if err := s.sweeper.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start retention sweeper: %w", err)
		}
		defer s.sweeper.Stop()
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting orchestrator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("studymate-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initWeaviate initializes the Weaviate vector database client.
//
// Returns nil error if WeaviateURL is empty; retrieval is an optional
// dependency.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")

	if weaviateURL == "" {
		slog.Info("Weaviate URL not configured, running without retrieval")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}

	s.weaviateClient, err = weaviate.NewClient(clientConf)
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	if err := datatypes.EnsureWeaviateSchema(context.Background(), s.weaviateClient); err != nil {
		return fmt.Errorf("failed to ensure Weaviate schema: %w", err)
	}
	slog.Info("Weaviate client initialized", "url", weaviateURL)

	return nil
}

// initLLMClient initializes the generation backend client.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to ollama", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOllamaClient()
	}

	return err
}

// initPipeline wires the per-turn components together.
func (s *service) initPipeline() error {
	cls, err := classifier.NewLLMClassifier(s.llmClient, classifier.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}

	retriever := retrieval.NewWeaviateRetriever(s.weaviateClient, retrieval.DefaultConfig())

	switch s.config.StoreBackend {
	case "weaviate":
		if s.weaviateClient == nil {
			slog.Warn("Weaviate store requested but client unavailable, using memory store")
			s.store = conversation.NewMemoryStore()
		} else {
			s.store = conversation.NewWeaviateStore(s.weaviateClient, slog.Default())
		}
	default:
		s.store = conversation.NewMemoryStore()
	}

	// The memory store has no backend TTL, so idle sessions are swept
	// in-process.
	if expirer, ok := s.store.(conversation.Expirer); ok {
		s.sweeper = conversation.NewSweeper(
			expirer, conversation.DefaultRetentionConfig(), slog.Default())
	}

	s.limiter = ratelimit.New(ratelimit.Config{
		Limit:  s.config.RateLimit,
		Period: s.config.RatePeriod,
	}, slog.Default())

	assembler := contextbuilder.New(contextbuilder.DefaultConfig())

	pipelineConfig := services.DefaultPipelineConfig()
	pipelineConfig.GenerationTimeout = s.config.GenerationTimeout

	s.pipeline = services.NewTutorPipeline(
		cls,
		retriever,
		s.llmClient,
		s.store,
		assembler,
		s.opts,
		pipelineConfig,
		slog.Default(),
	)

	return nil
}

// initRouter sets up the Gin HTTP router with middleware and routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("studymate-orchestrator"))
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(middleware.CORSMiddleware(s.config.AllowedOrigins))
	}

	routes.SetupRoutes(s.router, s.pipeline, s.store, s.limiter, s.opts, slog.Default())
}

// cleanup releases resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
