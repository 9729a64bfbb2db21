package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulvan-gateway/internal/errs"
)

type call struct {
	method string
	args   []interface{}
}

type fakeRPC struct {
	mu      sync.Mutex
	calls   []call
	answers map[string]string
	errors  map[string]error
}

func (f *fakeRPC) CallArgs(_ context.Context, method string, args ...interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, args: args})
	if err := f.errors[method]; err != nil {
		return nil, err
	}
	return json.RawMessage(f.answers[method]), nil
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func TestBlockByHeightUsesCacheForHash(t *testing.T) {
	rpc := &fakeRPC{answers: map[string]string{
		"getblockhash": `"00AB"`,
		"getblock":     `{"hash":"00ab","height":7}`,
	}}
	s, err := NewService(rpc, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		raw, err := s.BlockByHeight(context.Background(), 7, 1)
		require.NoError(t, err)
		assert.JSONEq(t, `{"hash":"00ab","height":7}`, string(raw))
	}
	assert.Equal(t, 3, rpc.count("getblockhash"))
	assert.Equal(t, 1, rpc.count("getblock"))

	_, err = s.Block(context.Background(), "00ab", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rpc.count("getblock"), "verbosity is part of the key")
}

func TestBlockByHeightErrors(t *testing.T) {
	specs := map[string]struct {
		rpc    *fakeRPC
		height int64
		exp    error
	}{
		"negative height": {rpc: &fakeRPC{}, height: -1, exp: errs.ErrValidation},
		"out of range": {
			rpc:    &fakeRPC{errors: map[string]error{"getblockhash": errs.Upstream(-8, "Block height out of range")}},
			height: 10,
			exp:    errs.ErrUpstream,
		},
		"null hash":  {rpc: &fakeRPC{answers: map[string]string{"getblockhash": `null`}}, exp: errs.ErrNotFound},
		"null block": {rpc: &fakeRPC{answers: map[string]string{"getblockhash": `"ff"`, "getblock": `null`}}, exp: errs.ErrNotFound},
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			s, err := NewService(spec.rpc, 0)
			require.NoError(t, err)
			_, err = s.BlockByHeight(context.Background(), spec.height, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, spec.exp), fmt.Sprintf("got %v", err))
		})
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	rpc := &fakeRPC{errors: map[string]error{"getblock": errs.Upstream(-5, "Block not found")}}
	s, err := NewService(rpc, 4)
	require.NoError(t, err)
	_, err = s.Block(context.Background(), "aa", 1)
	require.Error(t, err)
	_, err = s.Block(context.Background(), "aa", 1)
	require.Error(t, err)
	assert.Equal(t, 2, rpc.count("getblock"))
}

func TestSubmitAndTemplateArgs(t *testing.T) {
	rpc := &fakeRPC{answers: map[string]string{"submitblock": `null`, "getblocktemplate": `{"height":1}`}}
	s, err := NewService(rpc, 0)
	require.NoError(t, err)

	_, err = s.SubmitBlock(context.Background(), " ")
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Zero(t, rpc.count("submitblock"))

	_, err = s.SubmitBlock(context.Background(), "00ff")
	require.NoError(t, err)
	_, err = s.BlockTemplate(context.Background())
	require.NoError(t, err)

	require.Len(t, rpc.calls, 2)
	assert.Equal(t, []interface{}{"00ff"}, rpc.calls[0].args)
	rules, err := json.Marshal(rpc.calls[1].args)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"rules":["segwit"]}]`, string(rules))
}
