package supervisor

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/xbtalert/internal/aggregate"
	"github.com/sawpanic/xbtalert/internal/alert"
	"github.com/sawpanic/xbtalert/internal/availability"
	"github.com/sawpanic/xbtalert/internal/config"
	"github.com/sawpanic/xbtalert/internal/model"
	"github.com/sawpanic/xbtalert/internal/normalize"
	"github.com/sawpanic/xbtalert/internal/threshold"
	"github.com/sawpanic/xbtalert/internal/venue"
)

type fakeAdapter struct {
	runs int32
}

func (f *fakeAdapter) Run(ctx context.Context) {
	atomic.AddInt32(&f.runs, 1)
	<-ctx.Done()
}

func (f *fakeAdapter) State() venue.State { return venue.StateSubscribed }

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeAdapter) {
	t.Helper()
	store, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Update(func(cfg *config.Config) {
		cfg.ValueRequire = 1
		cfg.BotToken = "123:ABC"
		cfg.ActiveChatIDs = []int64{999}
		cfg.BotOwner = 999
		cfg.DynamicThreshold.Enabled = false
	}))

	probe := availability.NewProbe([]string{"nonkyc"}, func(ctx context.Context, v string) bool { return true },
		time.Hour, time.Hour, nil)
	controller := threshold.NewController(store, nil)
	normalizer := normalize.NewNormalizer("USDT", nil, nil, time.Hour)
	engine := aggregate.NewEngine(0, nil, nil)
	dispatcher := alert.NewDispatcher("", "", alert.NewMetrics(prometheus.NewRegistry()))

	fa := &fakeAdapter{}
	sup := New(store, probe, controller, normalizer, engine, dispatcher,
		map[string]VenueAdapter{"nonkyc": fa}, WithSweepInterval(10*time.Millisecond))
	return sup, fa
}

func TestStartSpawnsAdaptersAndStopCancelsThem(t *testing.T) {
	sup, fa := newTestSupervisor(t)
	sup.Start(context.Background())
	require.True(t, sup.Running())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&fa.runs) == 1
	}, time.Second, 10*time.Millisecond)

	sup.Stop()
	require.False(t, sup.Running())
}

func TestInjectSyntheticTradeReachesEngine(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.Start(context.Background())
	defer sup.Stop()

	ok := sup.InjectSyntheticTrade(context.Background(), model.TradeEvent{
		Venue:       "nonkyc",
		Pair:        model.Pair{Base: "XBT", Quote: "USDT"},
		Side:        model.SideBuy,
		Price:       decimal.NewFromInt(100),
		Quantity:    decimal.NewFromInt(1),
		Gross:       decimal.NewFromInt(100),
		EventTimeMs: time.Now().UnixMilli(),
	})
	require.True(t, ok)
}
