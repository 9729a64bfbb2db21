package gate

import (
	"bytes"
	"context"
	"encoding/json"

	"soulvan-gateway/internal/errs"
	"soulvan-gateway/internal/governance"
)

type voteParams struct {
	ProposalID string `json:"proposalId"`
	Option     string `json:"option"`
	Voter      string `json:"voter"`
}

type proposalParams struct {
	ProposalID string `json:"proposalId"`
}

type listParams struct {
	Category governance.Category `json:"category"`
	Status   string              `json:"status"`
}

type powerParams struct {
	Wallet string `json:"wallet"`
}

// decodeParams accepts exactly one JSON object with known fields.
func decodeParams(raw json.RawMessage, dst interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errs.Validation("params must be a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Validation("invalid params: %v", err)
	}
	return nil
}

func (p proposalParams) validate() error {
	if p.ProposalID == "" {
		return errs.Validation("proposalId is required")
	}
	return nil
}

func (g *Gate) createProposal(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var req governance.CreateRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	p, err := g.gov.Create(req)
	if err != nil {
		return nil, err
	}
	g.log.Info("proposal created", "id", p.ID, "category", p.Category)
	return p, nil
}

func (g *Gate) vote(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p voteParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ProposalID == "" || p.Option == "" || p.Voter == "" {
		return nil, errs.Validation("proposalId, option and voter are required")
	}
	return g.gov.Vote(p.ProposalID, p.Option, p.Voter)
}

func (g *Gate) getProposal(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p proposalParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return g.gov.Get(p.ProposalID)
}

func (g *Gate) listProposals(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p listParams
	// list is the only method whose params may be omitted entirely
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
	}
	if p.Category != "" && !p.Category.Valid() {
		return nil, errs.Validation("unsupported category %q", p.Category)
	}
	status, err := governance.ParseStatusFilter(p.Status)
	if err != nil {
		return nil, err
	}
	return g.gov.List(p.Category, status), nil
}

func (g *Gate) results(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p proposalParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return g.gov.Results(p.ProposalID)
}

// votes returns the ledger entries of one proposal in the order they were cast.
func (g *Gate) votes(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p proposalParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if _, err := g.gov.Get(p.ProposalID); err != nil {
		return nil, err
	}
	return g.gov.Ledger(p.ProposalID), nil
}

func (g *Gate) closeProposal(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p proposalParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	res, err := g.gov.Close(p.ProposalID)
	if err != nil {
		return nil, err
	}
	g.log.Info("proposal closed", "id", p.ProposalID, "total_votes", res.TotalVotes)
	return res, nil
}

func (g *Gate) power(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p powerParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Wallet == "" {
		return nil, errs.Validation("wallet is required")
	}
	return g.gov.VotingPower(p.Wallet), nil
}

func (g *Gate) versionInfo(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return g.version, nil
}
