package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.Session.NonceTTL)
	assert.Equal(t, 24*time.Hour, cfg.Session.SessionTTL)
	assert.Equal(t, "localhost:3000", cfg.SIWE.Domain)
	assert.Equal(t, 0, cfg.Allowlist().Len())
}

func TestLoadAllowlist(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"SUPER_ADMIN_ADDRESSES": "0xAbC0000000000000000000000000000000000001, 0xdef0000000000000000000000000000000000002",
	}))
	require.NoError(t, err)

	list := cfg.Allowlist()
	assert.Equal(t, 2, list.Len())
	assert.True(t, list.Contains("0xabc0000000000000000000000000000000000001"))
	assert.True(t, list.Contains("0xDEF0000000000000000000000000000000000002"))
}

func TestProductionRequiresSigningKey(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV": "production",
	}))
	assert.Error(t, err)
}
