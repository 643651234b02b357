package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_RangeChecks(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown consensus rule",
			mutate:  func(c *Config) { c.Consensus.Rule = "made_up_rule" },
			wantErr: "consensus.rule must be one of",
		},
		{
			name:    "threshold above 1",
			mutate:  func(c *Config) { c.Consensus.Threshold = 1.5 },
			wantErr: "consensus.threshold must be between 0 and 1",
		},
		{
			name:    "max_rounds above cap",
			mutate:  func(c *Config) { c.Adversarial.MaxRounds = 4 },
			wantErr: "adversarial.max_rounds must be between 1 and 3",
		},
		{
			name:    "half_life not positive",
			mutate:  func(c *Config) { c.Reputation.HalfLifeDays = 0 },
			wantErr: "reputation.half_life_days must be greater than 0",
		},
		{
			name:    "parallelism zero",
			mutate:  func(c *Config) { c.Pool.Parallelism = 0 },
			wantErr: "pool.parallelism must be at least 1",
		},
		{
			name:    "per_source above 2s ceiling",
			mutate:  func(c *Config) { c.Timeouts.PerSource = 3 * time.Second },
			wantErr: "timeouts.per_source must be between 0 (exclusive) and 2s",
		},
		{
			name:    "per_agent exceeds per_request",
			mutate:  func(c *Config) { c.Timeouts.PerAgent = 40 * time.Second },
			wantErr: "must not exceed timeouts.per_request",
		},
		{
			name:    "debate deadline shorter than base deadline",
			mutate:  func(c *Config) { c.Timeouts.PerRequestDebate = 10 * time.Second },
			wantErr: "must be at least timeouts.per_request",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, RuleWeightedLabelConfidence, cfg.Consensus.Rule)
	assert.Equal(t, 0.7, cfg.Consensus.Threshold)
}

func TestLoad_EnvOverridesThreshold(t *testing.T) {
	t.Setenv("CONSENSUSNET_CONSENSUS_THRESHOLD", "0.85")
	t.Setenv("CONSENSUSNET_POOL_PARALLELISM", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Consensus.Threshold)
	assert.Equal(t, 8, cfg.Pool.Parallelism)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/consensusnet.yaml")
	require.Error(t, err)
}
