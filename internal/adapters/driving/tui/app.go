package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/views/login"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	loginView *login.View
	chatView  *chat.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// previousView is restored when help is closed.
	previousView messages.ViewType

	// err holds the last error that occurred.
	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		loginView:   login.NewView(s, ports.Conversation),
		chatView:    chat.NewView(s, km, ports.Conversation),
		currentView: messages.ViewLogin,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.loginView.WithContext(ctx)
	a.chatView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("carebot"),
		a.loginView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.loginView.SetDimensions(msg.Width, msg.Height)
		a.chatView.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.Greeted:
		a.loginView, cmd = a.loginView.Update(msg)
		if msg.Err != nil || msg.Session == nil {
			return a, cmd
		}
		a.currentView = messages.ViewChat
		return a, a.chatView.Start(msg.Session, msg.Greeting)

	case messages.ReplyReceived:
		if msg.Err != nil {
			a.err = msg.Err
		}
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.SessionEnded:
		if msg.Err != nil {
			a.err = msg.Err
		}
		a.loginView.Reset()
		a.currentView = messages.ViewLogin
		return a, a.loginView.Init()

	case messages.ViewChanged:
		a.currentView = msg.View
		if msg.View == messages.ViewLogin {
			a.loginView.Reset()
			return a, a.loginView.Init()
		}
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
		if a.currentView == messages.ViewChat {
			a.chatView, cmd = a.chatView.Update(msg)
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	switch a.currentView {
	case messages.ViewLogin:
		a.loginView, cmd = a.loginView.Update(msg)
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewHelp:
	}
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	keyStr := msg.String()

	if keymap.Matches(keyStr, a.keymap.Quit) {
		return a, tea.Quit
	}

	if a.currentView == messages.ViewHelp {
		if keymap.Matches(keyStr, a.keymap.Back) || keymap.Matches(keyStr, a.keymap.Help) {
			a.currentView = a.previousView
		}
		return a, nil
	}

	if keymap.Matches(keyStr, a.keymap.Help) {
		a.previousView = a.currentView
		a.currentView = messages.ViewHelp
		return a, nil
	}

	switch a.currentView {
	case messages.ViewLogin:
		if keymap.Matches(keyStr, a.keymap.Back) {
			return a, tea.Quit
		}
		a.loginView, cmd = a.loginView.Update(msg)
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewHelp:
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewChat:
		return a.chatView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewLogin:
		return a.loginView.View()
	default:
		return a.loginView.View()
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return `Help

Login:
  (type)      Enter your full name
  enter       Continue
  esc         Quit

Chat:
  (type)      Ask about medications, diet, symptoms
  enter       Send message
  pgup/pgdn   Scroll the conversation
  ctrl+e      End session

Anywhere:
  f1          Toggle help
  ctrl+c      Quit

If you have chest pain, trouble breathing or other
emergency symptoms, call your local emergency number.

[esc] back`
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions (for testing).
func (a *App) SetDimensions(width, height int) {
	a.Update(tea.WindowSizeMsg{Width: width, Height: height})
}
