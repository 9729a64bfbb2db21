// Package rpcclient is a synchronous JSON-RPC client for the upstream daemon.
//
// Every failure is returned as an *errs.Error of kind Upstream: daemon side
// errors keep their own code and message, transport failures use -32603.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	rpctypes "github.com/cometbft/cometbft/rpc/jsonrpc/types"

	"soulvan-gateway/internal/errs"
	"soulvan-gateway/internal/metrics"
	"soulvan-gateway/internal/version"
)

// maxResponseBytes bounds what is read from the daemon; getblock at
// verbosity 2 on a full block is a few megabytes.
const maxResponseBytes = 64 << 20

var emptyParams = json.RawMessage("[]")

// Caller is the subset used by the poller, the gate and the chain helpers.
type Caller interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

type Options struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	Metrics  *metrics.Metrics
}

type Client struct {
	url     string
	user    string
	pass    string
	http    *http.Client
	metrics *metrics.Metrics
	nextID  atomic.Int64
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:     opts.URL,
		user:    opts.User,
		pass:    opts.Password,
		http:    &http.Client{Timeout: timeout},
		metrics: opts.Metrics,
	}
}

// Call sends method with params (a JSON array or object, forwarded as is)
// and returns the raw result, which may be the JSON literal null.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	started := time.Now()
	res, err := c.call(ctx, method, params)
	c.metrics.ObserveUpstream(started, err)
	return res, err
}

// CallArgs marshals args as positional params.
func (c *Client) CallArgs(ctx context.Context, method string, args ...interface{}) (json.RawMessage, error) {
	if args == nil {
		args = []interface{}{}
	}
	params, err := json.Marshal(args)
	if err != nil {
		return nil, errs.Validation("encode params for %s: %v", method, err)
	}
	return c.Call(ctx, method, params)
}

func (c *Client) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(params)) == 0 {
		params = emptyParams
	}
	id := rpctypes.JSONRPCIntID(c.nextID.Add(1))
	body, err := json.Marshal(rpctypes.NewRPCRequest(id, method, params))
	if err != nil {
		return nil, errs.Validation("encode request %s: %v", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Transport(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.user != "" || c.pass != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Transport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errs.Transport(fmt.Errorf("read response: %w", err))
	}

	// Bitcoin-style daemons answer RPC errors with 404/500 and a JSON body,
	// so the envelope is decoded before the status is judged.
	var envelope rpctypes.RPCResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, errs.Transport(fmt.Errorf("upstream returned HTTP %d", resp.StatusCode))
		}
		return nil, errs.Transport(fmt.Errorf("decode response: %w", err))
	}
	if envelope.Error != nil {
		return nil, errs.Upstream(envelope.Error.Code, envelope.Error.Message)
	}
	if resp.StatusCode/100 != 2 {
		return nil, errs.Transport(fmt.Errorf("upstream returned HTTP %d", resp.StatusCode))
	}
	if len(envelope.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return envelope.Result, nil
}

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
