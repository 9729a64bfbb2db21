// Package chain wraps the read-only daemon calls behind the REST helper
// endpoints (/blockchain, /block, /mining).
package chain

import (
	"context"
	"encoding/json"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"soulvan-gateway/internal/errs"
	"soulvan-gateway/internal/rpcclient"
)

const DefaultBlockCacheSize = 256

// ArgsCaller is implemented by *rpcclient.Client.
type ArgsCaller interface {
	CallArgs(ctx context.Context, method string, args ...interface{}) (json.RawMessage, error)
}

type blockKey struct {
	hash      string
	verbosity int
}

// Service answers chain queries. Blocks fetched by hash never change, so
// they are kept in an LRU keyed by hash and verbosity; height lookups always
// go upstream because a reorg can move a height to another block.
type Service struct {
	rpc    ArgsCaller
	blocks *lru.Cache[blockKey, json.RawMessage]
}

func NewService(rpc ArgsCaller, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultBlockCacheSize
	}
	blocks, err := lru.New[blockKey, json.RawMessage](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{rpc: rpc, blocks: blocks}, nil
}

func (s *Service) BlockchainInfo(ctx context.Context) (json.RawMessage, error) {
	return s.rpc.CallArgs(ctx, "getblockchaininfo")
}

func (s *Service) BestBlockHash(ctx context.Context) (json.RawMessage, error) {
	return s.rpc.CallArgs(ctx, "getbestblockhash")
}

func (s *Service) MiningInfo(ctx context.Context) (json.RawMessage, error) {
	return s.rpc.CallArgs(ctx, "getmininginfo")
}

// BlockTemplate asks for a segwit-aware template.
func (s *Service) BlockTemplate(ctx context.Context) (json.RawMessage, error) {
	return s.rpc.CallArgs(ctx, "getblocktemplate", map[string]interface{}{"rules": []string{"segwit"}})
}

// SubmitBlock does not check policy; callers gate it first.
func (s *Service) SubmitBlock(ctx context.Context, blockHex string) (json.RawMessage, error) {
	if strings.TrimSpace(blockHex) == "" {
		return nil, errs.Validation("Missing block hex")
	}
	return s.rpc.CallArgs(ctx, "submitblock", blockHex)
}

func (s *Service) Block(ctx context.Context, hash string, verbosity int) (json.RawMessage, error) {
	key := blockKey{hash: strings.ToLower(hash), verbosity: verbosity}
	if raw, ok := s.blocks.Get(key); ok {
		return raw, nil
	}
	raw, err := s.rpc.CallArgs(ctx, "getblock", hash, verbosity)
	if err != nil {
		return nil, err
	}
	if rpcclient.IsNull(raw) {
		return nil, errs.NotFound("Block not found")
	}
	s.blocks.Add(key, raw)
	return raw, nil
}

// BlockByHeight resolves the hash at height and then fetches the block.
func (s *Service) BlockByHeight(ctx context.Context, height int64, verbosity int) (json.RawMessage, error) {
	if height < 0 {
		return nil, errs.Validation("height must not be negative")
	}
	rawHash, err := s.rpc.CallArgs(ctx, "getblockhash", height)
	if err != nil {
		return nil, err
	}
	var hash string
	if err := json.Unmarshal(rawHash, &hash); err != nil || hash == "" {
		return nil, errs.NotFound("Block not found")
	}
	return s.Block(ctx, hash, verbosity)
}
