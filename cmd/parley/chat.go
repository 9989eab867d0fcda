// Package main provides the parley CLI entry point.
// This file implements the interactive chat surface using bubbletea.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"parley/internal/dialogue"
	"parley/internal/store"
)

var chatUser string

func init() {
	rootCmd.Flags().StringVarP(&chatUser, "user", "u", "guest", "Username to chat as")
}

// runChat starts the interactive chat session for the configured user.
func runChat(ctx context.Context) error {
	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	profile, err := rt.store.GetOrCreateUser(ctx, chatUser)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	sess, err := rt.store.CreateSession(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	p := tea.NewProgram(newChatModel(rt, profile, sess), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}

	// The alt screen is wiped on exit, so repeat the farewell where it
	// stays visible.
	if m, ok := final.(chatModel); ok && m.exited {
		fmt.Printf("%s: %s\n", cfg.Persona.Name, dialogue.Goodbye)
	}
	return nil
}

// chatStyles holds the lipgloss styles for the chat surface.
type chatStyles struct {
	title     lipgloss.Style
	subtitle  lipgloss.Style
	you       lipgloss.Style
	assistant lipgloss.Style
	prompt    lipgloss.Style
	spinner   lipgloss.Style
	inputBox  lipgloss.Style
	help      lipgloss.Style
}

func defaultChatStyles() chatStyles {
	primary := lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	accent := lipgloss.AdaptiveColor{Light: "#0E8A74", Dark: "#2BD4AE"}
	muted := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}

	return chatStyles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		subtitle:  lipgloss.NewStyle().Foreground(muted),
		you:       lipgloss.NewStyle().Bold(true).Foreground(primary).MarginTop(1),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(accent).MarginTop(1),
		prompt:    lipgloss.NewStyle().Foreground(accent),
		spinner:   lipgloss.NewStyle().Foreground(accent),
		inputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		help: lipgloss.NewStyle().Foreground(muted).MarginTop(1),
	}
}

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    chatStyles
	renderer  *glamour.TermRenderer

	// Conversation state
	history       []dialogue.Utterance
	searchContext string
	thinking      bool
	exited        bool
	width         int
	height        int
	ready         bool

	// Backend
	rt      *runtime
	profile *store.Profile
	session *store.Session
}

// turnMsg carries a finished turn back into the update loop.
type turnMsg struct {
	res *dialogue.TurnResult
}

func newChatModel(rt *runtime, profile *store.Profile, sess *store.Session) chatModel {
	styles := defaultChatStyles()

	ti := textinput.New()
	ti.Placeholder = fmt.Sprintf("Say something to %s... (Enter to send, Ctrl+C to exit)", cfg.Persona.Name)
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.prompt

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  renderer,
		history:   []dialogue.Utterance{},
		rt:        rt,
		profile:   profile,
		session:   sess,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.thinking {
				return m.handleSubmit()
			}
		}

		if !m.thinking {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		statusHeight := 1
		inputHeight := 3
		footerHeight := 2
		vpHeight := msg.Height - headerHeight - statusHeight - inputHeight - footerHeight
		if vpHeight < 3 {
			vpHeight = 3
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = vpHeight
		}
		m.textinput.Width = msg.Width - 8

		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-8),
		)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.thinking {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case turnMsg:
		m.thinking = false
		m.history = msg.res.History
		m.searchContext = msg.res.SearchContext
		if msg.res.Exit {
			m.history = append(m.history, dialogue.Utterance{
				Role:    dialogue.RoleAssistant,
				Content: dialogue.Goodbye,
			})
			m.exited = true
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
			return m, tea.Quit
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	// The engine appends the user line itself, so hand it the history
	// as it stood before the local echo.
	prior := append([]dialogue.Utterance(nil), m.history...)

	m.history = append(m.history, dialogue.Utterance{
		Role:    dialogue.RoleUser,
		Content: input,
	})
	m.textinput.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.thinking = true

	return m, tea.Batch(
		m.spinner.Tick,
		m.takeTurn(input, prior),
	)
}

// takeTurn runs one turn in the background and persists the transcript.
// The profile is left nil so each turn sees the freshest stored facts.
func (m chatModel) takeTurn(input string, history []dialogue.Utterance) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetTurnTimeout())
		defer cancel()

		res := m.rt.engine.RunTurn(ctx, dialogue.TurnInput{
			Text:          input,
			UserID:        m.profile.ID,
			History:       history,
			SearchContext: m.searchContext,
		})

		reply := res.Reply
		if res.Exit {
			reply = dialogue.Goodbye
		}

		saveCtx, cancelSave := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelSave()
		if _, err := m.rt.store.AppendMessage(saveCtx, m.session.ID, dialogue.RoleUser, input); err == nil && reply != "" {
			_, _ = m.rt.store.AppendMessage(saveCtx, m.session.ID, dialogue.RoleAssistant, reply)
		}

		return turnMsg{res: res}
	}
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder

	for _, u := range m.history {
		if u.Role == dialogue.RoleUser {
			sb.WriteString(m.styles.you.Render("You") + "\n")
			sb.WriteString(u.Content)
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(m.styles.assistant.Render(cfg.Persona.Name) + "\n")
		sb.WriteString(m.safeRenderMarkdown(u.Content))
		sb.WriteString("\n")
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery.
func (m chatModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m chatModel) View() string {
	if !m.ready {
		return "Starting..."
	}

	status := ""
	if m.thinking {
		status = m.styles.spinner.Render(m.spinner.View()) + " Thinking..."
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		status,
		m.styles.inputBox.Render(m.textinput.View()),
		m.renderFooter(),
	)
}

func (m chatModel) renderHeader() string {
	title := m.styles.title.Render(cfg.Persona.Name)
	who := m.styles.subtitle.Render(fmt.Sprintf("chatting as %s", m.profile.Username))
	return lipgloss.JoinVertical(lipgloss.Left, title, who)
}

func (m chatModel) renderFooter() string {
	return m.styles.help.Render("Enter: send • Ctrl+C: exit")
}
