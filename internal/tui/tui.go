package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/tidwall/gjson"

	"soulvan-gateway/internal/governance"
	"soulvan-gateway/internal/stats"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

func fitToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return padToWidth(runewidth.Truncate(s, width, "..."), width)
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + fitToWidth(text, width-2) + "│"
}

// Summary is the part of a status snapshot the dashboard shows.
type Summary struct {
	Chain         string
	Blocks        int64
	Headers       int64
	BestHash      string
	Difficulty    float64
	Progress      float64
	NetworkHashPS float64
	PooledTx      int64
	Connections   int64
	Subversion    string
	AsOf          *time.Time
}

// SummaryFrom reads the dashboard figures out of the raw documents.
func SummaryFrom(snap stats.Snapshot) Summary {
	chain := gjson.ParseBytes(snap.BlockchainInfo)
	mining := gjson.ParseBytes(snap.MiningInfo)
	network := gjson.ParseBytes(snap.NetworkInfo)
	return Summary{
		Chain:         chain.Get("chain").String(),
		Blocks:        chain.Get("blocks").Int(),
		Headers:       chain.Get("headers").Int(),
		BestHash:      chain.Get("bestblockhash").String(),
		Difficulty:    chain.Get("difficulty").Float(),
		Progress:      chain.Get("verificationprogress").Float(),
		NetworkHashPS: mining.Get("networkhashps").Float(),
		PooledTx:      mining.Get("pooledtx").Int(),
		Connections:   network.Get("connections").Int(),
		Subversion:    network.Get("subversion").String(),
		AsOf:          snap.AsOf,
	}
}

// ProposalRow is one line of the proposals table.
type ProposalRow struct {
	Title    string
	Category string
	Votes    int
	Leader   string
}

// ProposalRows summarises proposals; the leader follows the same
// first-in-declared-order rule as the results tally.
func ProposalRows(list []governance.Proposal) []ProposalRow {
	rows := make([]ProposalRow, 0, len(list))
	for _, p := range list {
		row := ProposalRow{Title: p.Title, Category: string(p.Category), Leader: "-"}
		best := 0
		for _, opt := range p.Options {
			n := p.Votes[opt]
			row.Votes += n
			if n > best {
				best = n
				row.Leader = opt
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// StatsMsg is sent when a new snapshot arrives
type StatsMsg struct {
	Summary Summary
}

// ProposalsMsg replaces the proposals table
type ProposalsMsg struct {
	Rows []ProposalRow
}

// Model holds the TUI state
type Model struct {
	summary   Summary
	proposals []ProposalRow
	now       func() time.Time
	width     int
	height    int
}

// NewModel creates a new TUI model
func NewModel() Model {
	return Model{now: time.Now}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StatsMsg:
		m.summary = msg.Summary
		return m, nil

	case ProposalsMsg:
		m.proposals = msg.Rows
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	title := titleStyle.Render(fitToWidth(" soulvan gateway", m.width))
	return lipgloss.JoinVertical(lipgloss.Left, title, m.renderHeader(), m.renderProposals())
}

// renderHeader draws the chain, mining and network panels side by side.
func (m Model) renderHeader() string {
	s := m.summary
	colWidth := (m.width - 4) / 3
	rightColWidth := m.width - colWidth*2 - 4
	if colWidth < 3 || rightColWidth < 3 {
		return formatInfoLine("window too narrow", m.width)
	}

	left := []string{
		"CHAIN",
		fmt.Sprintf("network: %s", orNA(s.Chain)),
		fmt.Sprintf("blocks: %d / headers: %d", s.Blocks, s.Headers),
		fmt.Sprintf("best: %s", shortHash(s.BestHash)),
		fmt.Sprintf("sync: %.2f%%", s.Progress*100),
	}
	middle := []string{
		"MINING",
		fmt.Sprintf("difficulty: %s", formatSI(s.Difficulty, "")),
		fmt.Sprintf("hash rate: %s", formatSI(s.NetworkHashPS, "H/s")),
		fmt.Sprintf("mempool: %d tx", s.PooledTx),
	}
	right := []string{
		"NETWORK",
		fmt.Sprintf("peers: %d", s.Connections),
		fmt.Sprintf("node: %s", orNA(s.Subversion)),
		m.freshness(),
	}

	maxLines := len(left)
	if len(middle) > maxLines {
		maxLines = len(middle)
	}
	if len(right) > maxLines {
		maxLines = len(right)
	}

	var rows []string
	for i := 0; i < maxLines; i++ {
		rows = append(rows, fmt.Sprintf("│ %s │ %s │ %s │",
			fitToWidth(line(left, i), colWidth-2),
			fitToWidth(line(middle, i), colWidth-2),
			fitToWidth(line(right, i), rightColWidth-2)))
	}

	topBorder := fmt.Sprintf("┌%s┬%s┬%s┐",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))
	separator := fmt.Sprintf("├%s┴%s┴%s┤",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))

	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + separator
}

func (m Model) freshness() string {
	if m.summary.AsOf == nil {
		return "waiting for daemon"
	}
	age := m.now().Sub(*m.summary.AsOf).Truncate(time.Second)
	return fmt.Sprintf("updated %s ago", age)
}

// renderProposals lists the active proposals below the panels.
func (m Model) renderProposals() string {
	// title and panels take 8 lines, the footer 3
	available := m.height - 11
	var lines []string
	switch {
	case len(m.proposals) == 0:
		lines = append(lines, formatInfoLine("no active proposals", m.width))
	case available <= 0:
	default:
		rows := m.proposals
		if len(rows) > available {
			rows = rows[:available]
		}
		for _, r := range rows {
			text := fmt.Sprintf("%-18s %5d votes  leader: %-10s %s", r.Category, r.Votes, r.Leader, r.Title)
			lines = append(lines, formatInfoLine(text, m.width))
		}
	}
	if m.width < 2 {
		return strings.Join(lines, "\n")
	}
	bottomBorder := "└" + strings.Repeat("─", m.width-2) + "┘"
	out := append(lines, separatorLine(m.width), formatInfoLine("Category, Votes, Leader, Title  (q to quit)", m.width), bottomBorder)
	return strings.Join(out, "\n")
}

func line(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func shortHash(h string) string {
	if h == "" {
		return "N/A"
	}
	if len(h) > 16 {
		return h[:8] + "..." + h[len(h)-8:]
	}
	return h
}

// formatSI renders v with a metric prefix, e.g. 6.10 EH/s.
func formatSI(v float64, unit string) string {
	prefixes := []string{"", "k", "M", "G", "T", "P", "E", "Z"}
	i := 0
	for v >= 1000 && i < len(prefixes)-1 {
		v /= 1000
		i++
	}
	out := fmt.Sprintf("%.2f", v)
	if p := prefixes[i] + unit; p != "" {
		out += " " + p
	}
	return out
}

// Run starts the TUI program. It redraws on every snapshot from snaps and
// refreshes the proposals table from proposals at the same time. The program
// quits when snaps is closed.
func Run(ctx context.Context, snaps <-chan stats.Snapshot, proposals func() []governance.Proposal) error {
	p := tea.NewProgram(NewModel(), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for snap := range snaps {
			p.Send(StatsMsg{Summary: SummaryFrom(snap)})
			if proposals != nil {
				p.Send(ProposalsMsg{Rows: ProposalRows(proposals())})
			}
		}
		// Channel closed, quit TUI
		p.Quit()
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
