package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui"
	"github.com/custodia-labs/carebot/internal/core/domain"
)

var (
	chatName  string
	chatPlain bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the care assistant",
	Long: `Start a conversation as a discharged patient.

In a terminal this opens the interactive chat UI. With --plain, or when
input is piped, it reads one message per line and prints each answer.
Type 'quit' to end the session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatName, "name", "", "patient name (line mode only)")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use line mode even in a terminal")
	rootCmd.AddCommand(chatCmd)
}

// isTerminal reports whether stdin and stdout are both terminals.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runChat(cmd *cobra.Command, _ []string) error {
	if conversationService == nil {
		return errors.New("conversation service not configured")
	}

	ctx := commandContext(cmd)
	stop := startScheduler(ctx)
	defer stop()

	if !chatPlain && chatName == "" && isTerminal() {
		return runChatTUI(ctx)
	}
	return runChatLines(ctx, cmd)
}

func runChatTUI(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	app, err := tui.NewApp(tui.NewPorts(conversationService))
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	if err := app.WithContext(ctx).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

var quitWords = map[string]bool{"quit": true, "exit": true, "bye": true}

func runChatLines(ctx context.Context, cmd *cobra.Command) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	readLine := func(prompt string) (string, bool) {
		cmd.Print(prompt)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	session, err := greetLines(ctx, cmd, chatName, readLine)
	if err != nil || session == nil {
		return err
	}

	for {
		input, ok := readLine("> ")
		if !ok || quitWords[strings.ToLower(input)] {
			break
		}
		if input == "" {
			continue
		}

		reply, err := conversationService.Chat(ctx, session.SessionID, input)
		if err != nil {
			return fmt.Errorf("chat failed: %w", err)
		}
		printReply(cmd, reply)
	}

	if err := conversationService.End(ctx, session.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	cmd.Println("Take care!")
	return nil
}

// greetLines asks for a name until a patient is found. A nil session with a
// nil error means input ended.
func greetLines(
	ctx context.Context,
	cmd *cobra.Command,
	name string,
	readLine func(prompt string) (string, bool),
) (*domain.Session, error) {
	for {
		if name == "" {
			var ok bool
			cmd.Println("Hello! I'm your post-discharge care assistant.")
			name, ok = readLine("What's your full name? ")
			if !ok {
				return nil, nil
			}
		}

		session, greeting, err := conversationService.Greet(ctx, name)
		cmd.Println(greeting)
		switch {
		case err == nil:
			return session, nil
		case errors.Is(err, domain.ErrPatientNotFound), errors.Is(err, domain.ErrInvalidInput):
			name = ""
		default:
			return nil, err
		}
	}
}

func printReply(cmd *cobra.Command, reply *domain.Reply) {
	cmd.Println(reply.Message)
	for _, label := range replySources(reply.Sources) {
		cmd.Printf("  source: %s\n", label)
	}
	if reply.Degraded {
		cmd.Println("  (some reference sources were unavailable)")
	}
	cmd.Println()
}

func replySources(results []domain.RetrievalResult) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, r := range results {
		label := r.Source
		if r.URL != "" {
			label = r.URL
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}
