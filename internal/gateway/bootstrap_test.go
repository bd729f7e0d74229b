package gateway_test

import (
	"testing"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/gateway"
	_ "github.com/nulzo/polychat/internal/llm/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openaiConfig(id string) config.ProviderConfig {
	return config.ProviderConfig{
		ID:        id,
		Type:      "openai",
		Name:      "Provider " + id,
		Model:     "gpt-4o-mini",
		APIKeyEnv: "POLYCHAT_TEST_BOOTSTRAP_KEY",
		Enabled:   true,
	}
}

func TestNewRegistry(t *testing.T) {
	disabled := openaiConfig("off")
	disabled.Enabled = false

	reg, err := gateway.NewRegistry([]config.ProviderConfig{openaiConfig("one"), disabled, openaiConfig("two")}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	_, ok := reg.Lookup("off")
	assert.False(t, ok)

	e, ok := reg.Lookup("two")
	require.True(t, ok)
	assert.Equal(t, "openai", e.Provider.Type())
}

func TestNewRegistry_RejectsBadEntries(t *testing.T) {
	tests := []struct {
		name      string
		providers []config.ProviderConfig
	}{
		{"duplicate id", []config.ProviderConfig{openaiConfig("x"), openaiConfig("x")}},
		{"unknown type", []config.ProviderConfig{{ID: "y", Type: "carrier-pigeon", Name: "Y", Enabled: true}}},
		{"missing name", []config.ProviderConfig{{ID: "z", Type: "openai", Enabled: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gateway.NewRegistry(tt.providers, zap.NewNop())
			assert.Error(t, err)
		})
	}
}
