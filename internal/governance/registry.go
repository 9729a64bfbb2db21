// Package governance implements the proposal and voting state machine.
//
// A proposal starts active and may be closed once. Each voter may vote once
// per proposal; the duplicate check and the tally update happen under one
// write lock, which keeps len(Voters) equal to the sum of the tally.
// Proposals and vote records live for the lifetime of the process.
package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"soulvan-gateway/internal/errs"
	"soulvan-gateway/internal/metrics"
)

// idLength is the number of hex characters kept from the SHA-256 digest.
const idLength = 16

type entry struct {
	proposal Proposal
	voted    map[string]struct{}
}

type Registry struct {
	mu           sync.RWMutex
	proposals    map[string]*entry
	order        []string
	ledger       []VoteRecord
	votesByVoter map[string]int

	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewRegistry(clk clock.Clock, m *metrics.Metrics) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		proposals:    make(map[string]*entry),
		votesByVoter: make(map[string]int),
		clock:        clk,
		metrics:      m,
	}
}

func hashID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])[:idLength]
}

func validateCreate(req CreateRequest) error {
	if !req.Category.Valid() {
		return errs.Validation("unsupported category %q", req.Category)
	}
	if strings.TrimSpace(req.Title) == "" {
		return errs.Validation("title is required")
	}
	if len(req.Options) == 0 {
		return errs.Validation("at least one option is required")
	}
	seen := make(map[string]struct{}, len(req.Options))
	for _, opt := range req.Options {
		if opt == "" {
			return errs.Validation("option labels must not be empty")
		}
		if _, dup := seen[opt]; dup {
			return errs.Validation("duplicate option %q", opt)
		}
		seen[opt] = struct{}{}
		if !req.Category.allows(opt) {
			return errs.Validation("option %q is not allowed in category %s", opt, req.Category)
		}
	}
	return nil
}

// Create registers a new active proposal.
func (r *Registry) Create(req CreateRequest) (Proposal, error) {
	if err := validateCreate(req); err != nil {
		return Proposal{}, err
	}

	now := r.clock.Now().UTC()
	p := Proposal{
		ID:          hashID(req.Title, now.Format(time.RFC3339Nano), req.Creator),
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Options:     append([]string(nil), req.Options...),
		Creator:     req.Creator,
		CreatedAt:   now,
		Status:      StatusActive,
		Votes:       make(map[string]int, len(req.Options)),
		Voters:      []string{},
	}
	for _, opt := range p.Options {
		p.Votes[opt] = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Ids are not collision-checked by construction; refuse rather than
	// overwrite so an existing proposal is never lost.
	if _, exists := r.proposals[p.ID]; exists {
		return Proposal{}, errs.InvalidState("proposal id %s already in use", p.ID)
	}
	r.proposals[p.ID] = &entry{proposal: p, voted: make(map[string]struct{})}
	r.order = append(r.order, p.ID)
	r.metrics.ProposalCreated()
	return p.clone(), nil
}

// Vote records one vote. The whole check-then-act sequence runs under the
// registry write lock.
func (r *Registry) Vote(proposalID, option, voter string) (VoteReceipt, error) {
	if voter == "" {
		return VoteReceipt{}, errs.Validation("voter is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.proposals[proposalID]
	if !ok {
		return VoteReceipt{}, errs.NotFound("proposal %s not found", proposalID)
	}
	p := &e.proposal
	if p.Status != StatusActive {
		return VoteReceipt{}, errs.InvalidState("proposal %s is not active", proposalID)
	}
	if _, valid := p.Votes[option]; !valid {
		return VoteReceipt{}, errs.InvalidOption("invalid option: %s", option)
	}
	if _, dup := e.voted[voter]; dup {
		return VoteReceipt{}, errs.DuplicateVote("wallet %s has already voted on this proposal", voter)
	}

	p.Votes[option]++
	p.Voters = append(p.Voters, voter)
	e.voted[voter] = struct{}{}

	rec := VoteRecord{
		ID:         hashID(proposalID, option, voter),
		ProposalID: proposalID,
		Option:     option,
		Voter:      voter,
		Timestamp:  r.clock.Now().UTC(),
	}
	r.ledger = append(r.ledger, rec)
	r.votesByVoter[voter]++
	r.metrics.VoteCast()

	tally := make(map[string]int, len(p.Votes))
	for k, v := range p.Votes {
		tally[k] = v
	}
	return VoteReceipt{
		VoteID:         rec.ID,
		ProposalID:     proposalID,
		Option:         option,
		Success:        true,
		CurrentResults: tally,
	}, nil
}

// Get returns a copy of the proposal.
func (r *Registry) Get(proposalID string) (Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.proposals[proposalID]
	if !ok {
		return Proposal{}, errs.NotFound("proposal %s not found", proposalID)
	}
	return e.proposal.clone(), nil
}

// List returns proposals in creation order. An empty category matches all.
func (r *Registry) List(category Category, status StatusFilter) []Proposal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Proposal, 0, len(r.order))
	for _, id := range r.order {
		p := r.proposals[id].proposal
		if category != "" && p.Category != category {
			continue
		}
		if !status.matches(p.Status) {
			continue
		}
		out = append(out, p.clone())
	}
	return out
}

// Results computes the current tally with percentages and the winner.
func (r *Registry) Results(proposalID string) (Results, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.proposals[proposalID]
	if !ok {
		return Results{}, errs.NotFound("proposal %s not found", proposalID)
	}
	return resultsOf(&e.proposal), nil
}

// Close moves an active proposal to closed and returns the final results.
// Closing twice is an InvalidState error.
func (r *Registry) Close(proposalID string) (Results, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.proposals[proposalID]
	if !ok {
		return Results{}, errs.NotFound("proposal %s not found", proposalID)
	}
	p := &e.proposal
	if p.Status == StatusClosed {
		return Results{}, errs.InvalidState("proposal %s is already closed", proposalID)
	}
	now := r.clock.Now().UTC()
	p.Status = StatusClosed
	p.ClosedAt = &now
	return resultsOf(p), nil
}

// VotingPower reports the fixed weight of 1 and the voter's participation.
func (r *Registry) VotingPower(voter string) VotingPower {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return VotingPower{
		Wallet:         voter,
		VotingPower:    1,
		ProposalsVoted: r.votesByVoter[voter],
	}
}

// Ledger returns a copy of the vote records of one proposal, or of all
// proposals when proposalID is empty.
func (r *Registry) Ledger(proposalID string) []VoteRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]VoteRecord, 0)
	for _, rec := range r.ledger {
		if proposalID == "" || rec.ProposalID == proposalID {
			out = append(out, rec)
		}
	}
	return out
}

// resultsOf must be called with the lock held.
func resultsOf(p *Proposal) Results {
	total := 0
	for _, opt := range p.Options {
		total += p.Votes[opt]
	}

	res := Results{
		ProposalID: p.ID,
		Title:      p.Title,
		TotalVotes: total,
		Results:    make(map[string]OptionResult, len(p.Options)),
		Options:    append([]string(nil), p.Options...),
		Status:     p.Status,
	}

	best := -1
	for _, opt := range p.Options {
		count := p.Votes[opt]
		pct := 0.0
		if total > 0 {
			// halves go to the even hundredth: 1 of 800 is 0.12
			pct = math.RoundToEven(float64(count)*10000/float64(total)) / 100
		}
		res.Results[opt] = OptionResult{Count: count, Percentage: pct}
		// Strictly greater keeps the first option in declared order on ties.
		if total > 0 && count > best {
			best = count
			winner := opt
			res.Winner = &winner
		}
	}
	return res
}
