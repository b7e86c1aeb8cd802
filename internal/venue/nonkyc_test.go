package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/xbtalert/internal/model"
)

func TestNonKYCDecodeUpdateTrades(t *testing.T) {
	p := NewNonKYCProtocol("XBT_USDT", model.Pair{Base: "XBT", Quote: "USDT"}, 3)

	msg := []byte(`{"method":"updateTrades","params":{"symbol":"XBT_USDT","data":[{"price":"61000.5","quantity":"0.01","side":"buy","timestamp":1700000000000}]}}`)
	events, err := p.Decode(msg)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.SideBuy, events[0].Side)
	assert.Equal(t, "61000.5", events[0].Price.String())
}

func TestNonKYCDecodeIgnoresUnknownMethod(t *testing.T) {
	p := NewNonKYCProtocol("XBT_USDT", model.Pair{Base: "XBT", Quote: "USDT"}, 3)
	events, err := p.Decode([]byte(`{"method":"pong","params":{}}`))
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestNonKYCSubscribeFramesIncludesOrderbook(t *testing.T) {
	p := NewNonKYCProtocol("XBT_USDT", model.Pair{Base: "XBT", Quote: "USDT"}, 3)
	frames, err := p.SubscribeFrames()
	require.NoError(t, err)
	require.Len(t, frames, 2)
}
