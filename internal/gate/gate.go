// Package gate decides what happens to every JSON-RPC call entering the
// gateway: extension methods go to the governance registry, mutating daemon
// methods are refused unless explicitly allowed, everything else is
// forwarded to the daemon unchanged.
//
// When no API key is configured every caller is authorized.
package gate

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"

	"golang.org/x/time/rate"

	"soulvan-gateway/internal/errs"
	"soulvan-gateway/internal/governance"
	"soulvan-gateway/internal/logger"
	"soulvan-gateway/internal/metrics"
	"soulvan-gateway/internal/rpcclient"
)

// ExtensionPrefix marks methods served by the gateway itself.
const ExtensionPrefix = "soulvan."

// mutatingMethods can change chain state: transaction and block submission,
// block generation and chain reorganization.
var mutatingMethods = map[string]struct{}{
	"sendrawtransaction":   {},
	"submitpackage":        {},
	"submitblock":          {},
	"submitheader":         {},
	"generate":             {},
	"generatetoaddress":    {},
	"generatetodescriptor": {},
	"generateblock":        {},
	"invalidateblock":      {},
	"reconsiderblock":      {},
	"preciousblock":        {},
}

type Class string

const (
	ClassExtension Class = "extension"
	ClassMutating  Class = "mutating"
	ClassForward   Class = "forward"
)

func Classify(method string) Class {
	if strings.HasPrefix(method, ExtensionPrefix) {
		return ClassExtension
	}
	if _, ok := mutatingMethods[method]; ok {
		return ClassMutating
	}
	return ClassForward
}

type Config struct {
	APIKey        string
	AllowMutating bool
	RateLimit     float64 // forwarded calls per second, 0 disables
	Version       string
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

type extensionFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

type Gate struct {
	apiKey        string
	allowMutating bool
	version       string
	upstream      rpcclient.Caller
	gov           *governance.Registry
	limiter       *rate.Limiter
	log           *logger.Logger
	metrics       *metrics.Metrics
	extensions    map[string]extensionFunc
}

func New(upstream rpcclient.Caller, gov *governance.Registry, cfg Config) *Gate {
	g := &Gate{
		apiKey:        cfg.APIKey,
		allowMutating: cfg.AllowMutating,
		version:       cfg.Version,
		upstream:      upstream,
		gov:           gov,
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
	}
	if g.log == nil {
		g.log = logger.Nop()
	}
	g.log = g.log.With("module", "gate")
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	g.extensions = map[string]extensionFunc{
		ExtensionPrefix + "proposal.create": g.createProposal,
		ExtensionPrefix + "vote":            g.vote,
		ExtensionPrefix + "proposal.get":    g.getProposal,
		ExtensionPrefix + "proposals.list":  g.listProposals,
		ExtensionPrefix + "results":         g.results,
		ExtensionPrefix + "proposal.close":  g.closeProposal,
		ExtensionPrefix + "votes":           g.votes,
		ExtensionPrefix + "power":           g.power,
		ExtensionPrefix + "version":         g.versionInfo,
	}
	return g
}

// AuthRequired reports whether callers must present the API key.
func (g *Gate) AuthRequired() bool {
	return g.apiKey != ""
}

// Authorize checks the credential taken from the X-API-Key header.
func (g *Gate) Authorize(credential string) error {
	if g.apiKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(g.apiKey)) != 1 {
		return errs.Unauthorized()
	}
	return nil
}

// Permit refuses mutating methods unless they were unlocked at start-up.
func (g *Gate) Permit(method string) error {
	if Classify(method) == ClassMutating && !g.allowMutating {
		return errs.Forbidden("Mutating blockchain RPC methods are disabled")
	}
	return nil
}

// Handle authorizes, classifies and routes one call. Extension results are
// Go values; forwarded results are the daemon's raw JSON.
func (g *Gate) Handle(ctx context.Context, method string, params json.RawMessage, credential string) (interface{}, error) {
	class := Classify(method)
	res, err := g.handle(ctx, class, method, params, credential)
	g.metrics.GateOutcome(string(class), outcome(err))
	if err != nil {
		g.log.Debug("rpc rejected", "method", method, "class", class, "err", err)
	}
	return res, err
}

func (g *Gate) handle(ctx context.Context, class Class, method string, params json.RawMessage, credential string) (interface{}, error) {
	if err := g.Authorize(credential); err != nil {
		return nil, err
	}
	if method == "" {
		return nil, errs.Validation("method is required")
	}

	switch class {
	case ClassExtension:
		fn, ok := g.extensions[method]
		if !ok {
			return nil, errs.MethodNotFound(method)
		}
		return fn(ctx, params)
	case ClassMutating:
		if err := g.Permit(method); err != nil {
			return nil, err
		}
	}

	if g.limiter != nil && !g.limiter.Allow() {
		return nil, errs.RateLimited()
	}
	return g.upstream.Call(ctx, method, params)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return errs.KindOf(err).String()
}
