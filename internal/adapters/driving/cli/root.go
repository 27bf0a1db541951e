// Package cli implements the carebot command line.
package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Services wired by main. Any of them may be nil when its dependencies are
// not configured; commands report that instead of failing at startup.
var (
	settingsService     driving.SettingsService
	ingestionService    driving.IngestionService
	retrievalService    driving.RetrievalService
	conversationService driving.ConversationService
	patientStore        driven.PatientStore
	scheduler           driving.Scheduler
	schedulerConfig     domain.SchedulerConfig
	metricsHandler      http.Handler
	documentLoader      DocumentLoader
	referenceDocuments  func() ([]domain.Document, error)
	checkpointRecovery  func(ctx context.Context) (driving.IngestionService, error)
	inboxDir            string
)

// DocumentLoader reads a document from a path or reference source.
type DocumentLoader func(ctx context.Context, source string) (domain.Document, error)

// Services bundles everything the commands drive.
type Services struct {
	Settings        driving.SettingsService
	Ingestion       driving.IngestionService
	Retrieval       driving.RetrievalService
	Conversation    driving.ConversationService
	Patients        driven.PatientStore
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig
	Metrics         http.Handler
	Loader          DocumentLoader
	References      func() ([]domain.Document, error)

	// RecoverCheckpoints recreates an unreadable checkpoint database and
	// returns an ingestion service backed by the fresh one.
	RecoverCheckpoints func(ctx context.Context) (driving.IngestionService, error)

	InboxDir string
}

var rootCmd = &cobra.Command{
	Use:   "carebot",
	Short: "Post-discharge patient care assistant",
	Long: `carebot answers discharged patients' questions from their discharge
report and a local library of clinical reference documents, escalating to
web search when the library has no good answer and flagging urgent symptoms.

Reference documents are ingested into a local vector collection with
resumable, checkpointed jobs.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServices installs the services used by the commands.
func SetServices(s *Services) {
	settingsService = s.Settings
	ingestionService = s.Ingestion
	retrievalService = s.Retrieval
	conversationService = s.Conversation
	patientStore = s.Patients
	scheduler = s.Scheduler
	schedulerConfig = s.SchedulerConfig
	metricsHandler = s.Metrics
	documentLoader = s.Loader
	referenceDocuments = s.References
	checkpointRecovery = s.RecoverCheckpoints
	inboxDir = s.InboxDir
}

// SetVersion sets the version reported by "carebot version".
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// startScheduler runs the background scheduler for long-running commands.
// The returned function stops it.
func startScheduler(ctx context.Context) func() {
	if scheduler == nil || !schedulerConfig.Enabled {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := scheduler.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("scheduler stopped: %v", err)
		}
	}()

	return func() {
		cancel()
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop error: %v", err)
		}
	}
}

// commandContext returns the command's context, falling back to Background
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
