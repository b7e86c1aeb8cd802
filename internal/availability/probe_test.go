package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbePublishesTransitionOnChange(t *testing.T) {
	var mu sync.Mutex
	available := true
	check := func(ctx context.Context, venue string) bool {
		mu.Lock()
		defer mu.Unlock()
		return available
	}

	p := NewProbe([]string{"nonkyc"}, check, 10*time.Millisecond, time.Minute, nil)
	transitions := p.Transitions()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case tr := <-transitions:
		assert.Equal(t, "nonkyc", tr.Venue)
		assert.True(t, tr.Available)
	case <-time.After(time.Second):
		t.Fatal("expected initial transition")
	}

	mu.Lock()
	available = false
	mu.Unlock()

	select {
	case tr := <-transitions:
		assert.False(t, tr.Available)
	case <-time.After(time.Second):
		t.Fatal("expected lost transition")
	}
}

func TestIsAvailableReflectsLastProbe(t *testing.T) {
	check := func(ctx context.Context, venue string) bool { return true }
	p := NewProbe([]string{"coinex"}, check, time.Hour, time.Minute, nil)

	assert.False(t, p.IsAvailable(context.Background(), "coinex"))

	p.probeAll(context.Background())
	require.True(t, p.IsAvailable(context.Background(), "coinex"))
}
