package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the reference collection",
	Long: `Retrieves the passages nearest to the query from the local reference
collection. Falls back to web search when no local passage is relevant or
the query asks for recent information.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 3, "maximum number of local results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	resp, err := retrievalService.Retrieve(commandContext(cmd), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}
	return outputSearchTable(cmd, resp)
}

type searchResultJSON struct {
	Text       string  `json:"text"`
	Source     string  `json:"source,omitempty"`
	Page       int     `json:"page,omitempty"`
	Provenance string  `json:"provenance"`
	Distance   float64 `json:"distance"`
	Relevance  float64 `json:"relevance"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.RetrievalResponse) error {
	out := struct {
		Query            string             `json:"query"`
		Results          []searchResultJSON `json:"results"`
		Escalated        bool               `json:"escalated"`
		EscalationReason string             `json:"escalation_reason,omitempty"`
		Degraded         bool               `json:"degraded"`
		Notes            []string           `json:"notes,omitempty"`
	}{
		Query:            resp.Query,
		Results:          make([]searchResultJSON, len(resp.Results)),
		Escalated:        resp.Escalated,
		EscalationReason: resp.EscalationReason,
		Degraded:         resp.Degraded,
		Notes:            resp.Notes,
	}
	for i, r := range resp.Results {
		out.Results[i] = searchResultJSON{
			Text:       r.Text,
			Source:     r.Source,
			Page:       r.Page,
			Provenance: string(r.Provenance),
			Distance:   r.Distance,
			Relevance:  r.Relevance(),
			Title:      r.Title,
			URL:        r.URL,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.RetrievalResponse) error {
	for _, note := range resp.Notes {
		cmd.Printf("Note: %s\n", note)
	}
	if resp.Escalated {
		cmd.Printf("Searched the web: %s\n", resp.EscalationReason)
	}

	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range resp.Results {
		if r.Provenance == domain.ProvenanceWeb {
			cmd.Printf("  [%d] %s (web)\n", i+1, r.Title)
			cmd.Printf("      %s\n", r.URL)
		} else {
			location := r.Source
			if r.Page > 0 {
				location = fmt.Sprintf("%s p.%d", r.Source, r.Page)
			}
			cmd.Printf("  [%d] %s (relevance %.2f)\n", i+1, location, r.Relevance())
		}
		cmd.Printf("      %s\n", snippet(r.Text, 200))
		cmd.Println()
	}
	return nil
}

// snippet flattens whitespace and truncates text to n runes.
func snippet(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "..."
}
