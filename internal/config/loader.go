package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file at path, starting from Default(), overlays
// a .env file in the working directory (if present) and the process
// environment, validates
// the result, and returns it. An empty path returns Default() with only the
// environment overlay applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %q: %w", path, err)
		}
	}

	if err := overlayEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: applying environment overlay: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}

// overlayEnv applies a .env file (if present, ignored if missing) and then
// the process environment on top of cfg, for the handful of options that
// are commonly tuned per-deployment rather than per-file.
func overlayEnv(cfg *Config) error {
	_ = godotenv.Load() // missing .env is not an error

	if v, ok := os.LookupEnv("CONSENSUSNET_CONSENSUS_RULE"); ok {
		cfg.Consensus.Rule = ConsensusRule(v)
	}
	if v, ok := lookupFloat("CONSENSUSNET_CONSENSUS_THRESHOLD"); ok {
		cfg.Consensus.Threshold = v
	}
	if v, ok := lookupInt("CONSENSUSNET_ADVERSARIAL_MAX_ROUNDS"); ok {
		cfg.Adversarial.MaxRounds = v
	}
	if v, ok := lookupFloat("CONSENSUSNET_ADVERSARIAL_CHALLENGE_FILTER"); ok {
		cfg.Adversarial.ChallengeFilter = v
	}
	if v, ok := lookupFloat("CONSENSUSNET_REPUTATION_HALF_LIFE_DAYS"); ok {
		cfg.Reputation.HalfLifeDays = v
	}
	if v, ok := lookupInt("CONSENSUSNET_REPUTATION_UPDATE_AFTER_USES"); ok {
		cfg.Reputation.UpdateAfterUses = v
	}
	if v, ok := lookupFloat("CONSENSUSNET_ESCALATION_EVIDENCE_QUALITY_THRESHOLD"); ok {
		cfg.Escalation.EvidenceQualityThreshold = v
	}
	if v, ok := lookupInt("CONSENSUSNET_POOL_PARALLELISM"); ok {
		cfg.Pool.Parallelism = v
	}
	if v, ok := lookupFloat("CONSENSUSNET_SOURCE_CREDIBILITY_UPDATE_WEIGHT"); ok {
		cfg.Source.CredibilityUpdateWeight = v
	}
	if v, ok := os.LookupEnv("CONSENSUSNET_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("CONSENSUSNET_LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	if v, ok := lookupDuration("CONSENSUSNET_TIMEOUT_PER_REQUEST"); ok {
		cfg.Timeouts.PerRequest = v
	}
	if v, ok := lookupDuration("CONSENSUSNET_TIMEOUT_PER_REQUEST_DEBATE"); ok {
		cfg.Timeouts.PerRequestDebate = v
	}

	return nil
}

func lookupFloat(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupDuration(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
