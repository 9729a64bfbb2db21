package tui

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulvan-gateway/internal/governance"
	"soulvan-gateway/internal/stats"
)

func TestSummaryFrom(t *testing.T) {
	at := time.Unix(1700000000, 0)
	s := SummaryFrom(stats.Snapshot{
		BlockchainInfo: json.RawMessage(`{"chain":"test","blocks":10,"headers":12,"bestblockhash":"abc","verificationprogress":0.5}`),
		MiningInfo:     json.RawMessage(`{"networkhashps":2500000,"pooledtx":3}`),
		NetworkInfo:    json.RawMessage(`{"connections":4,"subversion":"/Soulvan:2.0.0/"}`),
		AsOf:           &at,
	})
	assert.Equal(t, Summary{
		Chain: "test", Blocks: 10, Headers: 12, BestHash: "abc", Progress: 0.5,
		NetworkHashPS: 2500000, PooledTx: 3, Connections: 4, Subversion: "/Soulvan:2.0.0/", AsOf: &at,
	}, s)

	assert.Equal(t, Summary{}, SummaryFrom(stats.Snapshot{}))
}

func TestProposalRows(t *testing.T) {
	rows := ProposalRows([]governance.Proposal{
		{Title: "tie", Category: governance.CategoryFeatureProposals, Options: []string{"a", "b"}, Votes: map[string]int{"a": 2, "b": 2}},
		{Title: "b wins", Category: governance.CategoryTruckStyles, Options: []string{"neon", "chrome"}, Votes: map[string]int{"neon": 1, "chrome": 3}},
		{Title: "empty", Category: governance.CategoryMusicGenres, Options: []string{"jazz"}, Votes: map[string]int{"jazz": 0}},
	})
	assert.Equal(t, []ProposalRow{
		{Title: "tie", Category: "feature_proposals", Votes: 4, Leader: "a"},
		{Title: "b wins", Category: "truck_styles", Votes: 4, Leader: "chrome"},
		{Title: "empty", Category: "music_genres", Votes: 0, Leader: "-"},
	}, rows)
}

func TestFormatSI(t *testing.T) {
	specs := map[string]struct {
		v    float64
		unit string
		exp  string
	}{
		"small":      {v: 12, unit: "H/s", exp: "12.00 H/s"},
		"mega":       {v: 2.5e6, unit: "H/s", exp: "2.50 MH/s"},
		"exa":        {v: 6.1e20, unit: "H/s", exp: "610.00 EH/s"},
		"no unit":    {v: 1500, exp: "1.50 k"},
		"plain zero": {v: 0, exp: "0.00"},
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, spec.exp, formatSI(spec.v, spec.unit))
		})
	}
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "N/A", shortHash(""))
	assert.Equal(t, "abcd", shortHash("abcd"))
	assert.Equal(t, "00000000...89abcdef", shortHash("0000000000000000000123456789abcdef"))
}

func TestViewFitsWidth(t *testing.T) {
	at := time.Unix(1700000000, 0)
	m := NewModel()
	m.now = func() time.Time { return at.Add(3 * time.Second) }

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 90, Height: 30})
	updated, _ = updated.Update(StatsMsg{Summary: Summary{Chain: "main", Blocks: 42, AsOf: &at}})
	updated, _ = updated.Update(ProposalsMsg{Rows: []ProposalRow{{Title: strings.Repeat("very long title ", 10), Category: "feature_proposals", Votes: 1, Leader: "yes"}}})

	view := updated.View()
	require.Contains(t, view, "network: main")
	assert.Contains(t, view, "updated 3s ago")
	assert.Contains(t, view, "leader: yes")

	lines := strings.Split(view, "\n")
	for _, l := range lines[1:] {
		assert.Equal(t, 90, runewidth.StringWidth(l), l)
	}
}

func TestViewBeforeResize(t *testing.T) {
	assert.Equal(t, "Loading...", NewModel().View())
}

func TestQuitKeys(t *testing.T) {
	_, cmd := NewModel().Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
