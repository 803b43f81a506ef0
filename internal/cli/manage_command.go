package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tunegrab/internal/model"
	"tunegrab/internal/store"
)

type manageMode int

const (
	manageModeBrowse manageMode = iota
	manageModeEditGroup
	manageModeDeleteConfirm
)

type manageModel struct {
	storePath string
	records   []model.TuneRecord
	cursor    int
	width     int
	height    int
	mode      manageMode

	groupInput  textinput.Model
	editError   string
	groupFilter string

	confirmDeleteTitle string
	statusMessage      string
	fatalErr           error
}

type manageLoadedMsg struct {
	records []model.TuneRecord
	err     error
}

type manageSavedMsg struct {
	records []model.TuneRecord
	message string
	err     error
}

var (
	manageTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	manageMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	manageErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	manageOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	managePanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	manageSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func runManage(args []string) error {
	fs := flag.NewFlagSet("manage", flag.ContinueOnError)
	storePath := fs.String("store", store.DefaultPath, "record store path")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("manage requires an interactive terminal (TTY)")
	}

	m := manageModel{
		storePath: strings.TrimSpace(*storePath),
		mode:      manageModeBrowse,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("manage ui failed: %w", err)
	}
	if fm, ok := final.(manageModel); ok && fm.fatalErr != nil {
		return fm.fatalErr
	}
	return nil
}

func loadRecordsCmd(storePath string) tea.Cmd {
	return func() tea.Msg {
		records, err := store.New(storePath).Load()
		return manageLoadedMsg{records: records, err: err}
	}
}

func saveRecordsCmd(storePath string, records []model.TuneRecord, message string) tea.Cmd {
	return func() tea.Msg {
		st := store.New(storePath)
		lock, err := st.AcquireLock()
		if err != nil {
			return manageSavedMsg{err: err}
		}
		defer lock.Release()
		if err := st.Save(records); err != nil {
			return manageSavedMsg{err: err}
		}
		return manageSavedMsg{records: records, message: message}
	}
}

func (m manageModel) Init() tea.Cmd {
	return loadRecordsCmd(m.storePath)
}

func (m manageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case manageLoadedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err
			return m, tea.Quit
		}
		m.records = msg.records
		m.cursor = clampInt(m.cursor, 0, maxInt(len(m.visible())-1, 0))
		return m, nil
	case manageSavedMsg:
		if msg.err != nil {
			m.statusMessage = "save failed: " + msg.err.Error()
			return m, nil
		}
		m.records = msg.records
		m.cursor = clampInt(m.cursor, 0, maxInt(len(m.visible())-1, 0))
		m.statusMessage = msg.message
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case manageModeEditGroup:
			return m.updateEditGroup(msg)
		case manageModeDeleteConfirm:
			return m.updateDeleteConfirm(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

// visible returns store indexes of records matching the active group filter.
func (m manageModel) visible() []int {
	idx := make([]int, 0, len(m.records))
	for i, rec := range m.records {
		if m.groupFilter != "" && rec.Group != m.groupFilter {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

func (m manageModel) selectedIndex() (int, bool) {
	vis := m.visible()
	if len(vis) == 0 || m.cursor < 0 || m.cursor >= len(vis) {
		return 0, false
	}
	return vis[m.cursor], true
}

func (m manageModel) groups() []string {
	seen := map[string]bool{}
	var out []string
	for _, rec := range m.records {
		g := strings.TrimSpace(rec.Group)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

func (m manageModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.cursor = clampInt(m.cursor-1, 0, maxInt(len(m.visible())-1, 0))
	case "down", "j":
		m.cursor = clampInt(m.cursor+1, 0, maxInt(len(m.visible())-1, 0))
	case "g":
		m.groupFilter = nextGroupFilter(m.groupFilter, m.groups())
		m.cursor = 0
		if m.groupFilter == "" {
			m.statusMessage = "filter: all records"
		} else {
			m.statusMessage = "filter: group " + m.groupFilter
		}
	case "r":
		m.statusMessage = "reloading..."
		return m, loadRecordsCmd(m.storePath)
	case "e", "enter":
		i, ok := m.selectedIndex()
		if !ok {
			return m, nil
		}
		ti := textinput.New()
		ti.Placeholder = "group name (empty clears)"
		ti.SetValue(m.records[i].Group)
		ti.CursorEnd()
		ti.Focus()
		ti.Width = clampInt(m.width-8, 20, 120)
		m.groupInput = ti
		m.editError = ""
		m.mode = manageModeEditGroup
	case "p":
		i, ok := m.selectedIndex()
		if !ok {
			return m, nil
		}
		rec := &m.records[i]
		if rec.Status == model.StatusDone {
			m.statusMessage = "already done: " + rec.Title
			return m, nil
		}
		if err := model.TransitionStatus(rec, model.StatusPending, ""); err != nil {
			m.statusMessage = err.Error()
			return m, nil
		}
		return m, saveRecordsCmd(m.storePath, m.records, "marked pending: "+rec.Title)
	case "d":
		i, ok := m.selectedIndex()
		if !ok {
			return m, nil
		}
		m.confirmDeleteTitle = m.records[i].Title
		m.mode = manageModeDeleteConfirm
	}
	return m, nil
}

func (m manageModel) updateEditGroup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = manageModeBrowse
		return m, nil
	case "enter":
		i, ok := m.selectedIndex()
		if !ok {
			m.mode = manageModeBrowse
			return m, nil
		}
		m.records[i].Group = strings.TrimSpace(m.groupInput.Value())
		m.mode = manageModeBrowse
		return m, saveRecordsCmd(m.storePath, m.records, "group updated: "+m.records[i].Title)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.groupInput, cmd = m.groupInput.Update(msg)
	return m, cmd
}

func (m manageModel) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		i, ok := m.selectedIndex()
		if !ok {
			m.mode = manageModeBrowse
			return m, nil
		}
		title := m.records[i].Title
		m.records = append(m.records[:i], m.records[i+1:]...)
		m.cursor = clampInt(m.cursor, 0, maxInt(len(m.visible())-1, 0))
		m.mode = manageModeBrowse
		return m, saveRecordsCmd(m.storePath, m.records, "deleted: "+title)
	case "n", "esc":
		m.mode = manageModeBrowse
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m manageModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}
	switch m.mode {
	case manageModeEditGroup:
		return m.viewEditGroup()
	case manageModeDeleteConfirm:
		return m.viewDeleteConfirm()
	default:
		return m.viewBrowse()
	}
}

func (m manageModel) viewBrowse() string {
	listW := clampInt(m.width/2-2, 30, 70)
	detailW := maxInt(m.width-listW-6, 30)
	bodyH := maxInt(m.height-4, 6)

	left := managePanelStyle.Width(listW).Height(bodyH).Render(m.renderListPanel(listW-2, bodyH))
	right := managePanelStyle.Width(detailW).Height(bodyH).Render(m.renderDetailsPanel(detailW - 2))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	header := manageTitleStyle.Render("tunegrab manage") + manageMutedStyle.Render("  "+m.storePath)
	return header + "\n" + body + "\n" + m.renderStatusLine()
}

func (m manageModel) renderListPanel(width, height int) string {
	vis := m.visible()
	if len(vis) == 0 {
		if m.groupFilter != "" {
			return manageMutedStyle.Render("no records in group " + m.groupFilter)
		}
		return manageMutedStyle.Render("no records; run 'tunegrab resolve' first")
	}
	maxRows := maxInt(height-1, 1)
	start, end := listWindow(len(vis), m.cursor, maxRows)
	var b strings.Builder
	for row := start; row < end; row++ {
		rec := m.records[vis[row]]
		line := fmt.Sprintf("%s %s", statusMark(rec.Status), truncateRunes(rec.Title, width-4))
		if row == m.cursor {
			line = manageSelStyle.Render(line)
		}
		b.WriteString(line)
		if row < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m manageModel) renderDetailsPanel(width int) string {
	i, ok := m.selectedIndex()
	if !ok {
		return manageMutedStyle.Render("nothing selected")
	}
	rec := m.records[i]
	lines := []string{
		manageTitleStyle.Render(truncateRunes(rec.Title, width)),
		"",
		kv("status", defaultIfEmpty(rec.Status, "(none)")),
		kv("source_id", defaultIfEmpty(rec.SourceID, "(unresolved)")),
		kv("url", defaultIfEmpty(rec.URL, "(unresolved)")),
		kv("group", defaultIfEmpty(rec.Group, "(none)")),
		kv("destination", defaultIfEmpty(rec.Destination, "(not fetched)")),
	}
	if rec.ResolvedAt != "" {
		lines = append(lines, kv("resolved_at", rec.ResolvedAt))
	}
	if rec.FetchedAt != "" {
		lines = append(lines, kv("fetched_at", rec.FetchedAt))
	}
	if rec.LastError != "" {
		lines = append(lines, "", manageErrorStyle.Render(truncateRunes("last error: "+rec.LastError, width)))
	}
	for n, line := range lines {
		lines[n] = wrapOrTrim(line, width)
	}
	return strings.Join(lines, "\n")
}

func (m manageModel) renderStatusLine() string {
	help := manageMutedStyle.Render("↑/↓ move  e edit group  p mark pending  d delete  g filter  r reload  q quit")
	if m.statusMessage == "" {
		return help
	}
	style := manageOKStyle
	if strings.Contains(m.statusMessage, "failed") {
		style = manageErrorStyle
	}
	return style.Render(m.statusMessage) + "  " + help
}

func (m manageModel) viewEditGroup() string {
	i, _ := m.selectedIndex()
	title := ""
	if i < len(m.records) {
		title = m.records[i].Title
	}
	var b strings.Builder
	b.WriteString(manageTitleStyle.Render("Edit Group: "+truncateRunes(title, 50)) + "\n\n")
	b.WriteString(m.groupInput.View() + "\n\n")
	if m.editError != "" {
		b.WriteString(manageErrorStyle.Render(m.editError) + "\n")
	}
	b.WriteString(manageMutedStyle.Render("enter save, esc cancel"))
	boxW := clampInt(m.width-8, 36, 90)
	panel := managePanelStyle.Width(boxW).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func (m manageModel) viewDeleteConfirm() string {
	text := fmt.Sprintf(
		"Delete record '%s'?\n\nThis removes it from the store only.\nFetched files remain on disk.\n\nPress y or Enter to confirm, n or Esc to cancel.",
		truncateRunes(m.confirmDeleteTitle, 50),
	)
	boxW := clampInt(m.width-8, 36, 80)
	boxH := clampInt(m.height-6, 9, 14)
	panel := managePanelStyle.Width(boxW).Height(boxH).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func statusMark(s string) string {
	switch s {
	case model.StatusDone:
		return manageOKStyle.Render("●")
	case model.StatusFailed, model.StatusTimeout:
		return manageErrorStyle.Render("●")
	default:
		return manageMutedStyle.Render("○")
	}
}

// nextGroupFilter cycles "" -> groups[0] -> ... -> groups[n-1] -> "".
func nextGroupFilter(current string, groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	if current == "" {
		return groups[0]
	}
	for i, g := range groups {
		if g == current {
			if i+1 < len(groups) {
				return groups[i+1]
			}
			return ""
		}
	}
	return ""
}
