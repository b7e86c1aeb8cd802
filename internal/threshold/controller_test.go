package threshold

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/xbtalert/internal/config"
)

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	s, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"), nil)
	require.NoError(t, err)
	return s
}

func TestPassesComparesAgainstCurrentThreshold(t *testing.T) {
	store := newTestStore(t)
	c := NewController(store, nil)

	assert.True(t, c.Passes(decimal.NewFromInt(1000)))
	assert.False(t, c.Passes(decimal.NewFromInt(1)))
}

func TestRefreshClampsToConfiguredBand(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Update(func(cfg *config.Config) {
		cfg.BotOwner = 999
		cfg.DynamicThreshold.Enabled = true
		cfg.DynamicThreshold.Base = 300
		cfg.DynamicThreshold.Multiplier = 1
		cfg.DynamicThreshold.Min = 100
		cfg.DynamicThreshold.Max = 500
	}))

	fetch := func(ctx context.Context) (decimal.Decimal, error) {
		return decimal.NewFromInt(10000), nil // would blow past max
	}
	c := NewController(store, fetch)
	c.refresh(context.Background(), store.Get())

	assert.True(t, c.Threshold().Equal(decimal.NewFromInt(500)))
}
