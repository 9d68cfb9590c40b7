package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// historyPayloadTurns bounds how many stored turns ride along with each
// question. The server trims further to its own history window.
const historyPayloadTurns = 20

// ChatCmd creates the interactive chat command.
func ChatCmd() *cobra.Command {
	var (
		resume  int64
		list    bool
		scope   []string
		allDocs bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the corpus",
		Long: `Starts an interactive session that keeps conversation context across
questions. History is stored locally, so a session can be resumed later.

Examples:
  # Start a new conversation over the whole corpus
  mmrag chat --all

  # List stored conversations
  mmrag chat --list

  # Resume conversation 3
  mmrag chat --resume 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if list {
				return runChatList(outputJSON)
			}
			if allDocs && len(scope) > 0 {
				return fmt.Errorf("--all and --scope are mutually exclusive")
			}
			return runChat(resume, scope, allDocs)
		},
	}

	cmd.Flags().Int64Var(&resume, "resume", 0, "Resume a stored conversation by ID")
	cmd.Flags().BoolVar(&list, "list", false, "List stored conversations")
	cmd.Flags().StringSliceVar(&scope, "scope", nil, "Restrict retrieval to these document IDs")
	cmd.Flags().BoolVar(&allDocs, "all", false, "Search every ingested document")

	return cmd
}

func runChatList(outputJSON bool) error {
	store, err := OpenChatStore("")
	if err != nil {
		return err
	}
	defer store.Close()

	convs, err := store.ListConversations(50)
	if err != nil {
		return err
	}

	if outputJSON {
		data := make([]map[string]interface{}, len(convs))
		for i, conv := range convs {
			data[i] = map[string]interface{}{
				"id":         conv.ID,
				"title":      conv.Title,
				"created_at": conv.CreatedAt,
			}
		}
		output, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(convs) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}
	for _, conv := range convs {
		fmt.Printf("%3d  %s  (%s)\n", conv.ID, conv.Title, conv.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runChat(resume int64, scope []string, allDocs bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if allDocs {
		scope, err = allDocumentIDs(api)
		if err != nil {
			return err
		}
	}

	store, err := OpenChatStore("")
	if err != nil {
		return err
	}
	defer store.Close()

	var convID int64
	var turns []StoredTurn
	if resume > 0 {
		conv, err := store.GetConversation(resume)
		if err != nil {
			return err
		}
		convID = conv.ID
		turns, err = store.Turns(convID)
		if err != nil {
			return err
		}
	} else {
		convID, err = store.CreateConversation("new conversation")
		if err != nil {
			return err
		}
	}

	model := newChatModel(api, store, convID, scope, turns)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// answerMsg delivers the outcome of one ask round trip.
type answerMsg struct {
	reply AskResponse
	err   error
}

type chatModel struct {
	api    *APIClient
	store  *ChatStore
	convID int64
	scope  []string

	input    textinput.Model
	viewport viewport.Model
	turns    []StoredTurn
	status   string
	waiting  bool
	ready    bool
}

func newChatModel(api *APIClient, store *ChatStore, convID int64, scope []string, turns []StoredTurn) chatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return chatModel{
		api:      api,
		store:    store,
		convID:   convID,
		scope:    scope,
		input:    ti,
		viewport: vp,
		turns:    turns,
		status:   "Ready. Esc or Ctrl+C to quit.",
	}
}

func (m chatModel) Init() tea.Cmd { return textinput.Blink }

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width-2)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter && !m.waiting {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}

			// History is everything said before this question.
			history := historyTurns(m.turns)

			if len(m.turns) == 0 {
				_ = m.store.RenameConversation(m.convID, truncateTitle(question))
			}
			m.turns = append(m.turns, StoredTurn{Role: "user", Content: question})
			if err := m.store.AppendTurn(m.convID, "user", question); err != nil {
				m.status = "Error: " + err.Error()
			}
			m.input.SetValue("")
			m.waiting = true
			m.status = "Thinking..."
			m.viewport.SetContent(m.renderTranscript())
			m.viewport.GotoBottom()
			return m, m.askCmd(question, history)
		}
		if msg.Type == tea.KeyUp || msg.Type == tea.KeyDown || msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		reply := msg.reply
		m.turns = append(m.turns, StoredTurn{Role: "assistant", Content: reply.Answer})
		if err := m.store.AppendTurn(m.convID, "assistant", reply.Answer); err != nil {
			m.status = "Error: " + err.Error()
		} else if reply.Mode == "chat" {
			m.status = "Answered without document context."
		} else {
			m.status = fmt.Sprintf("Answered from %d passages, %d cited.", reply.Retrieved, len(reply.Citations))
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(fmt.Sprintf("mmrag chat / conversation %d", m.convID))
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

// askCmd runs the request off the UI loop and reports back as a message.
func (m chatModel) askCmd(question string, history []HistoryTurn) tea.Cmd {
	api := m.api
	scope := m.scope
	return func() tea.Msg {
		resp, err := api.Post(apiPrefix+"/answers", AskRequest{
			Question: question,
			Scope:    scope,
			History:  history,
		})
		if err != nil {
			return answerMsg{err: err}
		}
		var reply AskResponse
		if err := json.Unmarshal(resp.Data, &reply); err != nil {
			return answerMsg{err: fmt.Errorf("failed to parse response: %w", err)}
		}
		return answerMsg{reply: reply}
	}
}

func (m chatModel) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No messages yet. Ask something about your documents."
	}
	wrap := lipgloss.NewStyle().Width(maxInt(20, m.viewport.Width-2))
	var b strings.Builder
	for i, turn := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if turn.Role == "user" {
			b.WriteString(userLabelStyle.Render("You"))
		} else {
			b.WriteString(assistantLabelStyle.Render("mmrag"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(turn.Content))
	}
	if m.waiting {
		b.WriteString("\n\n")
		b.WriteString(assistantLabelStyle.Render("mmrag"))
		b.WriteString("\n...")
	}
	return b.String()
}

func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= 60 {
		return s
	}
	return string(runes[:57]) + "..."
}

func historyTurns(turns []StoredTurn) []HistoryTurn {
	start := 0
	if len(turns) > historyPayloadTurns {
		start = len(turns) - historyPayloadTurns
	}
	out := make([]HistoryTurn, 0, len(turns)-start)
	for _, turn := range turns[start:] {
		out = append(out, HistoryTurn{Role: turn.Role, Content: turn.Content})
	}
	return out
}

var (
	headerStyle         = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
