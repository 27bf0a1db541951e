package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

var errSettingsNotConfigured = errors.New("settings service not configured")

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change configuration",
	Long: `Show the effective configuration, or pick embedding and LLM providers.

Settings live in ~/.carebot/config.toml. API keys may instead come from the
environment or a .env file in the working directory.`,
	RunE: runSettingsShow,
}

func init() {
	settingsCmd.AddCommand(
		&cobra.Command{Use: "show", Short: "Show the effective settings", RunE: runSettingsShow},
		&cobra.Command{Use: "wizard", Short: "Pick the embedding and LLM providers interactively", RunE: runSettingsWizard},
		&cobra.Command{Use: "embedding", Short: "Pick the embedding provider", RunE: providerCommand(embeddingChoice)},
		&cobra.Command{Use: "llm", Short: "Pick the LLM that phrases answers", RunE: providerCommand(llmChoice)},
	)
	rootCmd.AddCommand(settingsCmd)
}

// settingRow is one "  Label: value" line of settings show.
type settingRow struct {
	label string
	value any
}

func printSection(cmd *cobra.Command, title string, rows ...settingRow) {
	cmd.Printf("[%s]\n", title)
	for _, r := range rows {
		cmd.Printf("  %s: %v\n", r.label, r.value)
	}
	cmd.Println()
}

func providerRows(provider domain.AIProvider, model, baseURL, apiKey string, configured bool) []settingRow {
	rows := []settingRow{{"Provider", provider.Description()}, {"Model", model}}
	if provider.IsLocal() {
		rows = append(rows, settingRow{"Base URL", baseURL})
	}
	if provider.RequiresAPIKey() {
		key := "(not set)"
		if apiKey != "" {
			key = maskAPIKey(apiKey)
		}
		rows = append(rows, settingRow{"API Key", key})
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	return append(rows, settingRow{"Status", status})
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	s, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	webSearch := "not configured"
	if s.WebSearch.IsConfigured() {
		webSearch = "configured (key " + maskAPIKey(s.WebSearch.APIKey) + ")"
	}

	printSection(cmd, "Embedding", providerRows(s.Embedding.Provider, s.Embedding.Model,
		s.Embedding.BaseURL, s.Embedding.APIKey, s.Embedding.IsConfigured())...)
	printSection(cmd, "LLM", providerRows(s.LLM.Provider, s.LLM.Model,
		s.LLM.BaseURL, s.LLM.APIKey, s.LLM.IsConfigured())...)
	printSection(cmd, "Chunking",
		settingRow{"Chunk size", fmt.Sprintf("%d bytes", s.Chunking.ChunkSize)},
		settingRow{"Overlap", fmt.Sprintf("%d bytes", s.Chunking.Overlap)},
		settingRow{"Snap window", fmt.Sprintf("%d bytes", s.Chunking.SnapWindow)})
	printSection(cmd, "Pipeline",
		settingRow{"Sub-batch size", s.Pipeline.SubBatchSize},
		settingRow{"Workers", s.Pipeline.Workers},
		settingRow{"Store write ceiling", s.Pipeline.StoreWriteCeiling},
		settingRow{"Failed chunk retry", s.Pipeline.FailedRetry},
		settingRow{"Rate limit", fmt.Sprintf("%d/min, %d attempts", s.RateLimit.RequestsPerMinute, s.RateLimit.MaxAttempts)})
	printSection(cmd, "Retrieval",
		settingRow{"Top K", s.Retrieval.TopK},
		settingRow{"Relevance threshold", fmt.Sprintf("%.2f", s.Retrieval.RelevanceThreshold)},
		settingRow{"Recency markers", strings.Join(s.Retrieval.RecencyMarkers, ", ")},
		settingRow{"Web search", webSearch})
	printSection(cmd, "Data",
		settingRow{"Patients file", valueOrUnset(s.PatientsFile)},
		settingRow{"Inbox", valueOrUnset(s.InboxDir)},
		settingRow{"Session idle timeout", s.Session.IdleTimeout})

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'carebot settings wizard' to fix configuration issues.")
		return nil
	}
	cmd.Println("Configuration is valid.")
	return nil
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Carebot setup")
	cmd.Println()
	cmd.Println("1. Embeddings are required to ingest and search reference documents.")
	if err := configureProvider(cmd, reader, embeddingChoice()); err != nil {
		return err
	}

	cmd.Println("2. An LLM is optional. Without one, answers are assembled from templates.")
	cmd.Print("Configure an LLM now? [Y/n]: ")
	switch strings.ToLower(readLine(reader)) {
	case "", "y", "yes":
		if err := configureProvider(cmd, reader, llmChoice()); err != nil {
			return err
		}
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		return nil
	}
	cmd.Println("All settings are valid and saved.")
	return nil
}

// providerChoice describes one provider slot the wizard can fill.
type providerChoice struct {
	label     string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	set       func(provider domain.AIProvider, model, apiKey string) error
	validate  func() error
}

func embeddingChoice() providerChoice {
	return providerChoice{
		label:     "Embedding",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		set:       settingsService.SetEmbeddingProvider,
		validate:  settingsService.ValidateEmbeddingConfig,
	}
}

func llmChoice() providerChoice {
	return providerChoice{
		label:     "LLM",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		set:       settingsService.SetLLMProvider,
		validate:  settingsService.ValidateLLMConfig,
	}
}

func providerCommand(choice func() providerChoice) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errSettingsNotConfigured
		}
		return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), choice())
	}
}

// configureProvider prompts for provider, model and key, saves them and
// pings the provider.
func configureProvider(cmd *cobra.Command, reader *bufio.Reader, c providerChoice) error {
	cmd.Printf("Select %s provider\n", c.label)
	for i, p := range c.providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	provider := c.providers[parseChoice(readLine(reader), len(c.providers), 1)-1]

	model := c.models[provider]
	cmd.Printf("Enter model name [%s]: ", model)
	if v := readLine(reader); v != "" {
		model = v
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := c.set(provider, model, apiKey); err != nil {
		return fmt.Errorf("saving %s provider: %w", c.label, err)
	}

	cmd.Print("Validating configuration... ")
	if err := c.validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s provider check: %w", c.label, err)
	}
	cmd.Println("OK")
	cmd.Printf("%s provider configured: %s (%s)\n\n", c.label, provider.Description(), model)
	return nil
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n') //nolint:errcheck // EOF reads as an empty answer
	return strings.TrimSpace(input)
}

// parseChoice returns the 1-based menu index, or def when input is empty
// or out of range.
func parseChoice(input string, n, def int) int {
	v, err := strconv.Atoi(input)
	if err != nil || v < 1 || v > n {
		return def
	}
	return v
}

// readPassword reads without echo on a terminal, otherwise from reader.
func readPassword(reader *bufio.Reader) string {
	if isTerminal() {
		if b, err := term.ReadPassword(int(os.Stdin.Fd())); err == nil {
			return string(b)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
