package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulvan-gateway/internal/config"
	"soulvan-gateway/internal/logger"
	"soulvan-gateway/internal/models"
	"soulvan-gateway/internal/stats"
)

func TestSampleFrom(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	specs := map[string]struct {
		snap stats.Snapshot
		exp  models.StatsSample
	}{
		"all fields": {
			snap: stats.Snapshot{
				BlockchainInfo: json.RawMessage(`{"chain":"main","blocks":840000,"bestblockhash":"00ab","difficulty":8.3e13}`),
				MiningInfo:     json.RawMessage(`{"networkhashps":6.1e20}`),
				NetworkInfo:    json.RawMessage(`{"connections":12}`),
				AsOf:           &at,
			},
			exp: models.StatsSample{
				Chain: "main", Blocks: 840000, BestBlockHash: "00ab", Difficulty: 8.3e13,
				NetworkHashPS: 6.1e20, Connections: 12, SampledAt: at,
			},
		},
		"difficulty from mining info": {
			snap: stats.Snapshot{
				BlockchainInfo: json.RawMessage(`{"blocks":5}`),
				MiningInfo:     json.RawMessage(`{"difficulty":2.5}`),
			},
			exp: models.StatsSample{Blocks: 5, Difficulty: 2.5},
		},
		"nothing fetched yet": {
			snap: stats.Snapshot{},
			exp:  models.StatsSample{},
		},
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, spec.exp, SampleFrom(spec.snap))
		})
	}
}

func TestClampLimit(t *testing.T) {
	specs := map[string]struct {
		in, exp int
	}{
		"zero":     {in: 0, exp: DefaultHistoryLimit},
		"negative": {in: -3, exp: DefaultHistoryLimit},
		"in range": {in: 10, exp: 10},
		"too big":  {in: 5000, exp: MaxHistoryLimit},
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, spec.exp, ClampLimit(spec.in))
		})
	}
}

func TestDisabledHistory(t *testing.T) {
	h := NewHistory(nil)
	assert.False(t, h.Enabled())
	require.NoError(t, h.Record(context.Background(), stats.Snapshot{BlockchainInfo: json.RawMessage(`{}`)}))
	samples, err := h.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestOpenWithoutDatabase(t *testing.T) {
	db, err := Open(config.Config{}, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.NoError(t, AutoMigrate(nil))
}

func TestOpenUnsupportedDialect(t *testing.T) {
	_, err := Open(config.Config{DBDialect: "sqlite", DBDsn: "file.db"}, logger.Nop())
	assert.Error(t, err)
}
