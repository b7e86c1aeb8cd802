package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	s, err := Load(path, nil)
	require.NoError(t, err)

	cfg := s.Get()
	assert.Equal(t, 300.0, cfg.ValueRequire)
	assert.True(t, cfg.DynamicThreshold.Enabled)
	assert.FileExists(t, path)
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "config.yaml"), nil)
	require.NoError(t, err)

	err = s.Update(func(c *Config) {
		c.ValueRequire = -5
	})
	require.Error(t, err)

	// previous document preserved
	assert.Equal(t, 300.0, s.Get().ValueRequire)
}

func TestUpdatePersistsValidPatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	s, err := Load(path, nil)
	require.NoError(t, err)

	err = s.Update(func(c *Config) {
		c.ValueRequire = 500
		c.ActiveChatIDs = append(c.ActiveChatIDs, 12345)
		c.BotOwner = 999
	})
	require.NoError(t, err)
	assert.Equal(t, 500.0, s.Get().ValueRequire)

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 500.0, reloaded.Get().ValueRequire)
	assert.Equal(t, []int64{12345}, reloaded.Get().ActiveChatIDs)
}

func TestValidateDynamicThresholdBand(t *testing.T) {
	cfg := Default()
	cfg.BotOwner = 999
	cfg.DynamicThreshold.Min = 500
	cfg.DynamicThreshold.Max = 100

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_threshold")
}

func TestValidateBotTokenShape(t *testing.T) {
	cfg := Default()
	cfg.BotToken = "not-a-token"

	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateRejectsNonPositiveBotOwner(t *testing.T) {
	cfg := Default()
	cfg.BotOwner = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_owner")
}

type recordingAudit struct {
	calls []Config
}

func (r *recordingAudit) RecordRevision(cfg Config) error {
	r.calls = append(r.calls, cfg)
	return nil
}

func TestUpdateInvokesAuditSink(t *testing.T) {
	dir := t.TempDir()
	audit := &recordingAudit{}
	s, err := Load(filepath.Join(dir, "config.yaml"), audit)
	require.NoError(t, err)

	require.NoError(t, s.Update(func(c *Config) { c.ValueRequire = 777; c.BotOwner = 999 }))
	require.Len(t, audit.calls, 1)
	assert.Equal(t, 777.0, audit.calls[0].ValueRequire)
}
