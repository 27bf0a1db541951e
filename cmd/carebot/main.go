// Command carebot is a post-discharge patient care assistant.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/carebot/internal/adapters/driven/ai"
	"github.com/custodia-labs/carebot/internal/adapters/driven/config/file"
	"github.com/custodia-labs/carebot/internal/adapters/driven/extractor/markup"
	"github.com/custodia-labs/carebot/internal/adapters/driven/extractor/pdf"
	"github.com/custodia-labs/carebot/internal/adapters/driven/extractor/plaintext"
	"github.com/custodia-labs/carebot/internal/adapters/driven/metrics/prom"
	patientfile "github.com/custodia-labs/carebot/internal/adapters/driven/patients/file"
	"github.com/custodia-labs/carebot/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/carebot/internal/adapters/driven/websearch"
	"github.com/custodia-labs/carebot/internal/adapters/driving/cli"
	"github.com/custodia-labs/carebot/internal/chunker"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/core/services"
	"github.com/custodia-labs/carebot/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// collectionName is the vector collection holding the reference library.
const collectionName = "medical_documents"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Services are built before cobra parses flags.
	logger.SetVerbose(hasVerboseFlag(os.Args[1:]))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("reading .env: %v", err)
	}

	configDir, err := file.DefaultDir()
	if err != nil {
		return err
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	// Assigned once the vector store is open; the validator reads it lazily.
	var b *backend
	validator := ai.NewConfigValidator(ai.WithCollectionDimension(func() int {
		if b == nil {
			return 0
		}
		return b.collectionDimension(ctx)
	}))
	settingsService := services.NewSettingsService(configStore, validator)

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	dataDir, err := sqlite.DefaultDataDir()
	if err != nil {
		return err
	}

	if audit, err := logger.OpenAuditFile(filepath.Join(dataDir, "audit.jsonl")); err != nil {
		logger.Warn("audit log disabled: %v", err)
	} else {
		defer audit.Close()
	}

	metrics := prom.New()
	cli.SetVersion(version)

	b = &backend{settings: settings, dataDir: dataDir, metrics: metrics}
	defer b.close()
	b.openAI(ctx)
	b.openIngestion(ctx)

	web, err := websearch.New(ctx, websearch.Config{
		APIKey:         settings.WebSearch.APIKey,
		SearchEngineID: settings.WebSearch.SearchEngineID,
		Timeout:        settings.WebSearch.Timeout,
	})
	if err != nil {
		logger.Warn("web search disabled: %v", err)
	}
	var searcher driven.WebSearcher
	if web != nil {
		searcher = web
	}
	retrieval := services.NewRetrievalService(b.embedder, b.vectors, searcher, settings.Retrieval, metrics)

	var patients driven.PatientStore
	if settings.PatientsFile != "" {
		store, err := patientfile.NewPatientStore(settings.PatientsFile)
		if err != nil {
			logger.Warn("patient records unavailable: %v", err)
		} else {
			patients = store
		}
	}

	sessions := services.NewSessionRegistry(settings.Session)
	defer sessions.Close()

	var conversation driving.ConversationService
	if patients != nil {
		conv := services.NewConversationService(patients, retrieval, b.llm, sessions, settings.Routing, metrics)
		if prompts, err := file.NewPromptStore(""); err != nil {
			logger.Info("custom prompts disabled: %v", err)
		} else {
			conv.SetPromptStore(prompts)
		}
		conversation = conv
	}

	svc := &cli.Services{
		Settings:           settingsService,
		Retrieval:          retrieval,
		Conversation:       conversation,
		Patients:           patients,
		SchedulerConfig:    settingsService.GetSchedulerConfig(),
		Metrics:            metrics.Handler(),
		Loader:             cli.DocumentLoader(services.LoadDocument),
		References:         services.ReferenceDocuments,
		RecoverCheckpoints: b.recoverCheckpoints,
		InboxDir:           settings.InboxDir,
	}
	if b.pipeline != nil {
		svc.Ingestion = b.pipeline
	}
	if b.checkpointDB != nil {
		var retrier services.FailedChunkRetrier
		if b.pipeline != nil && settings.Pipeline.FailedRetry == domain.RetryScheduled {
			retrier = b.pipeline
		}
		svc.Scheduler = services.NewScheduler(svc.SchedulerConfig, b.checkpointDB.SchedulerStore(), retrier, sessions)
	}
	cli.SetServices(svc)

	return cli.Execute(ctx)
}

func hasVerboseFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "-v" || arg == "--verbose" || arg == "--verbose=true" {
			return true
		}
	}
	return false
}

// backend owns the stores and providers behind the ingestion pipeline.
type backend struct {
	settings *domain.Settings
	dataDir  string
	metrics  *prom.Metrics

	providers    *ai.InitResult
	embedder     *services.EmbeddingClient
	llm          driven.LLMService
	checkpointDB *sqlite.Store
	vectorDB     *sqlite.Store
	vectors      driven.VectorStore
	chunker      *chunker.Chunker
	pipeline     *services.IngestionPipeline
}

// openAI creates the embedding client and the LLM. Failures leave them nil.
func (b *backend) openAI(ctx context.Context) {
	result, err := ai.Init(ctx, b.settings, false)
	if err != nil {
		logger.Info("embedding unavailable: %v", err)
		return
	}
	b.providers = result
	for _, w := range result.Warnings {
		logger.Info("%s", w)
	}
	b.llm = result.LLM

	embedder, err := services.NewEmbeddingClient(result.Embedding, b.settings.RateLimit, b.metrics)
	if err != nil {
		logger.Warn("embedding unavailable: %v", err)
		return
	}
	b.embedder = embedder
}

// openIngestion opens both databases and builds the pipeline. An unreadable
// checkpoint database is set aside and rebuilt from the vector store.
func (b *backend) openIngestion(ctx context.Context) {
	vectorDB, err := sqlite.OpenVectors(b.dataDir)
	if err != nil {
		logger.Warn("vector store unavailable: %v", err)
		return
	}
	b.vectorDB = vectorDB

	dimension := 0
	if b.embedder != nil {
		dimension = b.embedder.Dimensions()
	}
	vectors, err := vectorDB.VectorStore(ctx, collectionName, dimension, b.settings.Pipeline.StoreWriteCeiling)
	if err != nil {
		logger.Warn("vector collection unavailable: %v", err)
		return
	}
	b.vectors = vectors

	textChunker, err := chunker.New(chunker.FromSettings(b.settings.Chunking)...)
	if err != nil {
		logger.Warn("chunker misconfigured: %v", err)
		return
	}
	b.chunker = textChunker

	checkpointDB, err := sqlite.OpenCheckpoints(b.dataDir)
	var corrupt *domain.CheckpointCorruptionError
	switch {
	case errors.As(err, &corrupt):
		logger.Warn("%v; rebuilding it from the vector store", err)
		if err := b.rebuildCheckpoints(ctx); err != nil {
			logger.Warn("checkpoint recovery failed: %v; retry with 'carebot reconcile --rebuild'", err)
		}
		return
	case err != nil:
		logger.Warn("checkpoint store unavailable: %v", err)
		return
	}
	b.checkpointDB = checkpointDB

	if err := b.buildPipeline(); err != nil {
		logger.Info("ingestion disabled: %v", err)
	}
}

func (b *backend) buildPipeline() error {
	if b.embedder == nil {
		return domain.ErrEmbeddingUnavailable
	}

	if err := pdf.CheckAvailable(); err != nil {
		logger.Debug("pdf extraction unavailable: %v\n%s", err, pdf.InstallInstructions())
	}
	extractors := []driven.TextExtractor{plaintext.New(), markup.NewMarkdown(), markup.NewHTML(), pdf.New()}

	pipeline, err := services.NewIngestionPipeline(
		b.checkpointDB.CheckpointStore(),
		b.vectors,
		b.embedder,
		b.chunker,
		extractors,
		b.settings.Pipeline,
		b.metrics,
	)
	if err != nil {
		return err
	}
	b.pipeline = pipeline
	return nil
}

// recoverCheckpoints recreates the checkpoint database and rebuilds the
// pipeline on top of it.
func (b *backend) recoverCheckpoints(_ context.Context) (driving.IngestionService, error) {
	if b.vectors == nil || b.chunker == nil {
		return nil, errors.New("vector store unavailable")
	}
	if b.pipeline != nil {
		b.pipeline.Close()
		b.pipeline = nil
	}
	if b.checkpointDB != nil {
		b.checkpointDB.Close()
		b.checkpointDB = nil
	}

	checkpointDB, err := sqlite.RecreateCheckpoints(b.dataDir)
	if err != nil {
		return nil, err
	}
	b.checkpointDB = checkpointDB

	if err := b.buildPipeline(); err != nil {
		return nil, err
	}
	return b.pipeline, nil
}

// rebuildCheckpoints recreates the checkpoint database and reconciles it
// against the vector store. The checkpoints are rebuilt even when no
// pipeline can be built on top of them.
func (b *backend) rebuildCheckpoints(ctx context.Context) error {
	if _, err := b.recoverCheckpoints(ctx); err != nil {
		if b.checkpointDB == nil {
			return err
		}
		logger.Info("ingestion disabled: %v", err)
	}
	res, err := b.checkpointDB.CheckpointStore().Reconcile(ctx, b.vectors)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	logger.Info("Rebuilt checkpoints: %d promoted, %d adopted", res.Promoted, res.Adopted)
	return nil
}

// collectionDimension is the stored vector size, or 0 when unknown.
func (b *backend) collectionDimension(ctx context.Context) int {
	if b.vectors == nil {
		return 0
	}
	stats, err := b.vectors.Stats(ctx)
	if err != nil {
		logger.Debug("reading collection stats: %v", err)
		return 0
	}
	return stats.Dimension
}

func (b *backend) close() {
	closers := []io.Closer{}
	if b.pipeline != nil {
		closers = append(closers, b.pipeline)
	}
	if b.checkpointDB != nil {
		closers = append(closers, b.checkpointDB)
	}
	if b.vectorDB != nil {
		closers = append(closers, b.vectorDB)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Debug("close: %v", err)
		}
	}
	if b.providers != nil {
		b.providers.Close()
	}
}
