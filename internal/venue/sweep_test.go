package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepDetectorFlagsConsumedLevels(t *testing.T) {
	d := sweepDetector{minLevels: 2}

	_, ok := d.observe(1, [][2]string{
		{"61000", "0.5"},
		{"61001", "0.3"},
		{"61002", "0.2"},
	})
	require.False(t, ok)

	trade, ok := d.observe(2, [][2]string{
		{"61002", "0.2"},
	})
	require.True(t, ok)
	assert.True(t, trade.Synthetic)
	assert.Equal(t, "0.8", trade.Quantity.String())
}

func TestSweepDetectorIgnoresStaleOrOutOfOrderSequence(t *testing.T) {
	d := sweepDetector{minLevels: 1}

	d.observe(5, [][2]string{{"61000", "1"}})
	_, ok := d.observe(5, [][2]string{})
	assert.False(t, ok, "equal sequence should not be treated as progress")

	_, ok = d.observe(3, [][2]string{})
	assert.False(t, ok, "lower sequence should not be treated as progress")
}

func TestSweepDetectorRequiresMinimumLevels(t *testing.T) {
	d := sweepDetector{minLevels: 5}

	d.observe(1, [][2]string{{"61000", "1"}, {"61001", "1"}})
	_, ok := d.observe(2, [][2]string{})
	assert.False(t, ok)
}
