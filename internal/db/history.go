package db

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"soulvan-gateway/internal/models"
	"soulvan-gateway/internal/stats"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// History records poll snapshots. A History over a nil *gorm.DB is valid and
// does nothing, which is how persistence is switched off.
type History struct {
	db *gorm.DB
}

func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

func (h *History) Enabled() bool {
	return h != nil && h.db != nil
}

// Record implements stats.Recorder.
func (h *History) Record(ctx context.Context, snap stats.Snapshot) error {
	if !h.Enabled() || snap.Empty() {
		return nil
	}
	sample := SampleFrom(snap)
	if err := h.db.WithContext(ctx).Create(&sample).Error; err != nil {
		return fmt.Errorf("record stats sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]models.StatsSample, error) {
	if !h.Enabled() {
		return nil, nil
	}
	limit = ClampLimit(limit)
	var samples []models.StatsSample
	err := h.db.WithContext(ctx).
		Order("sampled_at DESC").
		Limit(limit).
		Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("load stats history: %w", err)
	}
	return samples, nil
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// SampleFrom pulls the charted figures out of the opaque status documents.
// Missing fields read as zero.
func SampleFrom(snap stats.Snapshot) models.StatsSample {
	chain := gjson.ParseBytes(snap.BlockchainInfo)
	mining := gjson.ParseBytes(snap.MiningInfo)
	network := gjson.ParseBytes(snap.NetworkInfo)

	s := models.StatsSample{
		Chain:         chain.Get("chain").String(),
		Blocks:        chain.Get("blocks").Int(),
		BestBlockHash: chain.Get("bestblockhash").String(),
		Difficulty:    chain.Get("difficulty").Float(),
		NetworkHashPS: mining.Get("networkhashps").Float(),
		Connections:   int(network.Get("connections").Int()),
	}
	if s.Difficulty == 0 {
		s.Difficulty = mining.Get("difficulty").Float()
	}
	if snap.AsOf != nil {
		s.SampledAt = snap.AsOf.UTC()
	}
	return s
}
