// Package stats keeps the latest upstream status documents and serves them
// to the REST layer and to stream subscribers.
package stats

import (
	"encoding/json"
	"sync"
	"time"
)

// Field identifies one of the three independently refreshed documents.
type Field int

const (
	FieldBlockchain Field = iota
	FieldMining
	FieldNetwork
)

// Fields lists every field in poll order.
var Fields = []Field{FieldBlockchain, FieldMining, FieldNetwork}

func (f Field) String() string {
	switch f {
	case FieldBlockchain:
		return "blockchainInfo"
	case FieldMining:
		return "miningInfo"
	case FieldNetwork:
		return "networkInfo"
	default:
		return "unknown"
	}
}

// Method is the upstream RPC that fills the field.
func (f Field) Method() string {
	switch f {
	case FieldBlockchain:
		return "getblockchaininfo"
	case FieldMining:
		return "getmininginfo"
	case FieldNetwork:
		return "getnetworkinfo"
	default:
		return ""
	}
}

// FieldTimes records when each field was last replaced.
type FieldTimes struct {
	BlockchainInfo *time.Time `json:"blockchainInfo"`
	MiningInfo     *time.Time `json:"miningInfo"`
	NetworkInfo    *time.Time `json:"networkInfo"`
}

// Snapshot is a copy of the cache. Fields never fetched encode as null.
type Snapshot struct {
	BlockchainInfo json.RawMessage `json:"blockchainInfo"`
	MiningInfo     json.RawMessage `json:"miningInfo"`
	NetworkInfo    json.RawMessage `json:"networkInfo"`
	AsOf           *time.Time      `json:"asOf"`
	Updated        FieldTimes      `json:"updated"`
}

// Empty reports whether no field has been fetched yet.
func (s Snapshot) Empty() bool {
	return s.AsOf == nil
}

// Reader is what consumers of the cache depend on.
type Reader interface {
	Snapshot() Snapshot
}

// Source is a Reader that also announces writes.
type Source interface {
	Reader
	// Changed returns a channel closed by the next write.
	Changed() <-chan struct{}
}

// Cache is written by the poller only and read by everybody else. The lock
// covers the copy or swap of a field, never upstream I/O.
type Cache struct {
	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}
}

func NewCache() *Cache {
	return &Cache{changed: make(chan struct{})}
}

// Set replaces one field. raw is copied so callers may reuse their buffer.
func (c *Cache) Set(f Field, raw json.RawMessage, at time.Time) {
	doc := append(json.RawMessage(nil), raw...)
	ts := at

	c.mu.Lock()
	defer c.mu.Unlock()
	switch f {
	case FieldBlockchain:
		c.snap.BlockchainInfo = doc
		c.snap.Updated.BlockchainInfo = &ts
	case FieldMining:
		c.snap.MiningInfo = doc
		c.snap.Updated.MiningInfo = &ts
	case FieldNetwork:
		c.snap.NetworkInfo = doc
		c.snap.Updated.NetworkInfo = &ts
	default:
		return
	}
	c.snap.AsOf = &ts
	if c.changed != nil {
		close(c.changed)
	}
	c.changed = make(chan struct{})
}

func (c *Cache) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.changed == nil {
		c.changed = make(chan struct{})
	}
	return c.changed
}

// Snapshot returns the current documents. Stored documents and timestamps
// are never mutated after Set, so sharing them with the copy is safe.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}
