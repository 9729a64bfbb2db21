package governance

import (
	"time"

	"soulvan-gateway/internal/errs"
)

type Category string

const (
	CategoryAvatarStyles     Category = "avatar_styles"
	CategoryMusicGenres      Category = "music_genres"
	CategoryTruckStyles      Category = "truck_styles"
	CategoryFeatureProposals Category = "feature_proposals"
)

// categoryLabels lists the permitted options per category. A nil list means
// the category accepts any label.
var categoryLabels = map[Category][]string{
	CategoryAvatarStyles:     {"cinematic", "neon", "cyberpunk", "anime", "realistic", "artistic"},
	CategoryMusicGenres:      {"trap", "afrobeats", "techno", "orchestral", "jazz", "reggaeton", "k-pop", "drill"},
	CategoryTruckStyles:      {"neon", "chrome", "stealth", "anime", "cyberpunk"},
	CategoryFeatureProposals: nil,
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c Category) allows(option string) bool {
	labels, ok := categoryLabels[c]
	if !ok {
		return false
	}
	if labels == nil {
		return true
	}
	for _, l := range labels {
		if l == option {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// StatusFilter selects proposals by status in List. The zero value behaves
// like FilterActive; FilterAll disables status filtering.
type StatusFilter string

const (
	FilterActive StatusFilter = "active"
	FilterClosed StatusFilter = "closed"
	FilterAll    StatusFilter = "all"
)

// ParseStatusFilter accepts "", "active", "closed" and "all".
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case "", FilterActive:
		return FilterActive, nil
	case FilterClosed, FilterAll:
		return StatusFilter(s), nil
	default:
		return "", errs.Validation("unknown status filter %q", s)
	}
}

func (f StatusFilter) matches(s Status) bool {
	switch f {
	case FilterAll:
		return true
	case FilterClosed:
		return s == StatusClosed
	default:
		return s == StatusActive
	}
}

type Proposal struct {
	ID          string         `json:"id"`
	Category    Category       `json:"category"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Options     []string       `json:"options"`
	Creator     string         `json:"creator"`
	CreatedAt   time.Time      `json:"createdAt"`
	Status      Status         `json:"status"`
	ClosedAt    *time.Time     `json:"closedAt,omitempty"`
	Votes       map[string]int `json:"votes"`
	Voters      []string       `json:"voters"`
}

func (p Proposal) clone() Proposal {
	out := p
	out.Options = append([]string(nil), p.Options...)
	out.Voters = append([]string{}, p.Voters...)
	out.Votes = make(map[string]int, len(p.Votes))
	for k, v := range p.Votes {
		out.Votes[k] = v
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		out.ClosedAt = &t
	}
	return out
}

// VoteRecord is one entry of the append-only vote ledger.
type VoteRecord struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposalId"`
	Option     string    `json:"option"`
	Voter      string    `json:"voter"`
	Timestamp  time.Time `json:"timestamp"`
}

type VoteReceipt struct {
	VoteID         string         `json:"voteId"`
	ProposalID     string         `json:"proposalId"`
	Option         string         `json:"option"`
	Success        bool           `json:"success"`
	CurrentResults map[string]int `json:"currentResults"`
}

type OptionResult struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Results struct {
	ProposalID string                  `json:"proposalId"`
	Title      string                  `json:"title"`
	TotalVotes int                     `json:"totalVotes"`
	Results    map[string]OptionResult `json:"results"`
	Options    []string                `json:"options"`
	Winner     *string                 `json:"winner"`
	Status     Status                  `json:"status"`
}

// VotingPower is a participation counter; every wallet weighs 1.
type VotingPower struct {
	Wallet         string  `json:"wallet"`
	VotingPower    int     `json:"votingPower"`
	DelegatedTo    *string `json:"delegatedTo"`
	ProposalsVoted int     `json:"proposalsVoted"`
}

type CreateRequest struct {
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
	Creator     string   `json:"creator"`
}
