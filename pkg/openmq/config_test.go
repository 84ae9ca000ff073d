package openmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	var cfg ConnectionConfig
	cfg.normalize()

	d := DefaultConfig()
	assert.Equal(t, d.Host, cfg.Host)
	assert.Equal(t, d.Port, cfg.Port)
	assert.Equal(t, d.Transport, cfg.Transport)
	assert.Equal(t, d.AckTimeout, cfg.AckTimeout)
	assert.Equal(t, d.DupsOKLimit, cfg.DupsOKLimit)
	assert.Equal(t, d.PrefetchMaxMsgCount, cfg.PrefetchMaxMsgCount)
}

func TestNormalizeKeepsOverrides(t *testing.T) {
	cfg := ConnectionConfig{Host: "broker.internal", Port: 7677, Transport: "tls", DupsOKLimit: 3}
	cfg.normalize()

	assert.Equal(t, "broker.internal", cfg.Host)
	assert.Equal(t, 7677, cfg.Port)
	assert.Equal(t, "tls", cfg.Transport)
	assert.Equal(t, 3, cfg.DupsOKLimit)
}
