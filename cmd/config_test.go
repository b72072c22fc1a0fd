package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/ae-columns/internal/config"
)

func TestRunConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analytics.APIToken = "super-secret-9876"

	tests := []struct {
		name        string
		debug       bool
		asJSON      bool
		contains    []string
		notContains []string
	}{
		{
			name: "text",
			contains: []string{
				"Active Configuration:",
				"Dataset: events",
				"Blobs: 5",
				"Doubles: 3",
				"Account ID: test-account",
				"API Token: *************9876",
				"Listen Address: :8787",
				"Rate Limit: 5.0 req/s (burst 10)",
				"Level: info",
			},
			notContains: []string{"super-secret", "Raw Configuration"},
		},
		{
			name:        "debug appends masked json",
			debug:       true,
			contains:    []string{"Active Configuration:", "Raw Configuration (JSON):", `"api_token": "*************9876"`},
			notContains: []string{"super-secret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			c.Debug.Enabled = tt.debug

			var buf bytes.Buffer
			require.NoError(t, runConfig(&buf, &c, tt.asJSON))

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}

			for _, s := range tt.notContains {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestRunConfigJSON(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	require.NoError(t, runConfig(&buf, cfg, true))

	var decoded config.Config
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "events", decoded.Dataset)
	assert.Equal(t, "******oken", decoded.Analytics.APIToken)
	assert.Equal(t, "test-token", cfg.Analytics.APIToken, "the active config is not modified")
}
