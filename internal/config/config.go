// Package config defines ConsensusNet's configuration surface: one struct
// per concern, YAML + env tags, and an exhaustive Validate() that rejects
// out-of-range values at load time with a precise error, matching the
// teacher's internal/config package style.
package config

import (
	"fmt"
	"time"
)

// ConsensusRule selects the aggregation rule used by the Consensus Engine.
type ConsensusRule string

const (
	RuleWeightedLabelConfidence ConsensusRule = "weighted_label_confidence"
	RuleSimpleMajority          ConsensusRule = "simple_majority"
	RuleReputationWeighted      ConsensusRule = "reputation_weighted"
	RuleConfidenceWeighted      ConsensusRule = "confidence_weighted"
)

// Config is the immutable, fully-validated configuration value loaded once
// at startup and handed out to subcomponents as narrow views.
type Config struct {
	Consensus   ConsensusConfig   `yaml:"consensus"`
	Adversarial AdversarialConfig `yaml:"adversarial"`
	Reputation  ReputationConfig  `yaml:"reputation"`
	Escalation  EscalationConfig  `yaml:"escalation"`
	Pool        PoolConfig        `yaml:"pool"`
	Source      SourceConfig      `yaml:"source"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ConsensusConfig controls verdict aggregation.
type ConsensusConfig struct {
	Rule      ConsensusRule `yaml:"rule" env:"CONSENSUSNET_CONSENSUS_RULE"`
	Threshold float64       `yaml:"threshold" env:"CONSENSUSNET_CONSENSUS_THRESHOLD"`
}

// AdversarialConfig controls the debate engine.
type AdversarialConfig struct {
	MaxRounds       int     `yaml:"max_rounds" env:"CONSENSUSNET_ADVERSARIAL_MAX_ROUNDS"`
	ChallengeFilter float64 `yaml:"challenge_filter" env:"CONSENSUSNET_ADVERSARIAL_CHALLENGE_FILTER"`
	DisagreementMax float64 `yaml:"disagreement_max" env:"CONSENSUSNET_ADVERSARIAL_DISAGREEMENT_MAX"`
}

// ReputationConfig controls the EWMA reputation update.
type ReputationConfig struct {
	HalfLifeDays    float64 `yaml:"half_life_days" env:"CONSENSUSNET_REPUTATION_HALF_LIFE_DAYS"`
	UpdateAfterUses int     `yaml:"update_after_uses" env:"CONSENSUSNET_REPUTATION_UPDATE_AFTER_USES"`
	Alpha           float64 `yaml:"alpha" env:"CONSENSUSNET_REPUTATION_ALPHA"`
}

// EscalationConfig controls model-tier escalation.
type EscalationConfig struct {
	EvidenceQualityThreshold float64 `yaml:"evidence_quality_threshold" env:"CONSENSUSNET_ESCALATION_EVIDENCE_QUALITY_THRESHOLD"`
	LowConfidenceThreshold   float64 `yaml:"low_confidence_threshold" env:"CONSENSUSNET_ESCALATION_LOW_CONFIDENCE_THRESHOLD"`
}

// PoolConfig controls the Agent Pool Manager's scheduling.
type PoolConfig struct {
	Parallelism    int `yaml:"parallelism" env:"CONSENSUSNET_POOL_PARALLELISM"`
	QueueDepth     int `yaml:"queue_depth" env:"CONSENSUSNET_POOL_QUEUE_DEPTH"`
	MultiModeAgents int `yaml:"multi_mode_agents" env:"CONSENSUSNET_POOL_MULTI_MODE_AGENTS"`
}

// SourceConfig controls source-credibility adaptation.
type SourceConfig struct {
	CredibilityUpdateWeight float64 `yaml:"credibility_update_weight" env:"CONSENSUSNET_SOURCE_CREDIBILITY_UPDATE_WEIGHT"`
}

// TimeoutConfig holds the layered deadlines from spec §5.
type TimeoutConfig struct {
	PerSource        time.Duration `yaml:"per_source" env:"CONSENSUSNET_TIMEOUT_PER_SOURCE"`
	PerAgent         time.Duration `yaml:"per_agent" env:"CONSENSUSNET_TIMEOUT_PER_AGENT"`
	PerRequest       time.Duration `yaml:"per_request" env:"CONSENSUSNET_TIMEOUT_PER_REQUEST"`
	PerRequestDebate time.Duration `yaml:"per_request_debate" env:"CONSENSUSNET_TIMEOUT_PER_REQUEST_DEBATE"`
	EvidenceTotal    time.Duration `yaml:"evidence_total" env:"CONSENSUSNET_TIMEOUT_EVIDENCE_TOTAL"`
}

// LoggingConfig controls the logrus logger used throughout the core.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CONSENSUSNET_LOG_LEVEL"`
	Format string `yaml:"format" env:"CONSENSUSNET_LOG_FORMAT"`
}

// Default returns the configuration populated with every spec.md §6 default.
func Default() *Config {
	return &Config{
		Consensus: ConsensusConfig{
			Rule:      RuleWeightedLabelConfidence,
			Threshold: 0.7,
		},
		Adversarial: AdversarialConfig{
			MaxRounds:       3,
			ChallengeFilter: 0.3,
			DisagreementMax: 0.3,
		},
		Reputation: ReputationConfig{
			HalfLifeDays:    30,
			UpdateAfterUses: 10,
			Alpha:           0.1,
		},
		Escalation: EscalationConfig{
			EvidenceQualityThreshold: 0.65,
			LowConfidenceThreshold:   0.55,
		},
		Pool: PoolConfig{
			Parallelism:     4,
			QueueDepth:      32,
			MultiModeAgents: 3,
		},
		Source: SourceConfig{
			CredibilityUpdateWeight: 0.3,
		},
		Timeouts: TimeoutConfig{
			PerSource:        2 * time.Second,
			PerAgent:         10 * time.Second,
			PerRequest:       30 * time.Second,
			PerRequestDebate: 60 * time.Second,
			EvidenceTotal:    8 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects any field outside its declared range, returning the
// first violation found with a precise message.
func (c *Config) Validate() error {
	switch c.Consensus.Rule {
	case RuleWeightedLabelConfidence, RuleSimpleMajority, RuleReputationWeighted, RuleConfidenceWeighted:
	default:
		return fmt.Errorf("consensus.rule must be one of weighted_label_confidence, simple_majority, reputation_weighted, confidence_weighted, got %q", c.Consensus.Rule)
	}
	if c.Consensus.Threshold < 0 || c.Consensus.Threshold > 1 {
		return fmt.Errorf("consensus.threshold must be between 0 and 1, got %v", c.Consensus.Threshold)
	}

	if c.Adversarial.MaxRounds < 1 || c.Adversarial.MaxRounds > 3 {
		return fmt.Errorf("adversarial.max_rounds must be between 1 and 3, got %d", c.Adversarial.MaxRounds)
	}
	if c.Adversarial.ChallengeFilter < 0 || c.Adversarial.ChallengeFilter > 1 {
		return fmt.Errorf("adversarial.challenge_filter must be between 0 and 1, got %v", c.Adversarial.ChallengeFilter)
	}
	if c.Adversarial.DisagreementMax < 0 || c.Adversarial.DisagreementMax > 1 {
		return fmt.Errorf("adversarial.disagreement_max must be between 0 and 1, got %v", c.Adversarial.DisagreementMax)
	}

	if c.Reputation.HalfLifeDays <= 0 {
		return fmt.Errorf("reputation.half_life_days must be greater than 0, got %v", c.Reputation.HalfLifeDays)
	}
	if c.Reputation.UpdateAfterUses < 1 {
		return fmt.Errorf("reputation.update_after_uses must be at least 1, got %d", c.Reputation.UpdateAfterUses)
	}
	if c.Reputation.Alpha <= 0 || c.Reputation.Alpha > 1 {
		return fmt.Errorf("reputation.alpha must be between 0 (exclusive) and 1, got %v", c.Reputation.Alpha)
	}

	if c.Escalation.EvidenceQualityThreshold < 0 || c.Escalation.EvidenceQualityThreshold > 1 {
		return fmt.Errorf("escalation.evidence_quality_threshold must be between 0 and 1, got %v", c.Escalation.EvidenceQualityThreshold)
	}
	if c.Escalation.LowConfidenceThreshold < 0 || c.Escalation.LowConfidenceThreshold > 1 {
		return fmt.Errorf("escalation.low_confidence_threshold must be between 0 and 1, got %v", c.Escalation.LowConfidenceThreshold)
	}

	if c.Pool.Parallelism < 1 {
		return fmt.Errorf("pool.parallelism must be at least 1, got %d", c.Pool.Parallelism)
	}
	if c.Pool.QueueDepth < 1 {
		return fmt.Errorf("pool.queue_depth must be at least 1, got %d", c.Pool.QueueDepth)
	}
	if c.Pool.MultiModeAgents < 1 {
		return fmt.Errorf("pool.multi_mode_agents must be at least 1, got %d", c.Pool.MultiModeAgents)
	}

	if c.Source.CredibilityUpdateWeight < 0 || c.Source.CredibilityUpdateWeight > 1 {
		return fmt.Errorf("source.credibility_update_weight must be between 0 and 1, got %v", c.Source.CredibilityUpdateWeight)
	}

	if c.Timeouts.PerSource <= 0 || c.Timeouts.PerSource > 2*time.Second {
		return fmt.Errorf("timeouts.per_source must be between 0 (exclusive) and 2s, got %v", c.Timeouts.PerSource)
	}
	if c.Timeouts.PerAgent <= 0 {
		return fmt.Errorf("timeouts.per_agent must be greater than 0, got %v", c.Timeouts.PerAgent)
	}
	if c.Timeouts.PerRequest <= 0 {
		return fmt.Errorf("timeouts.per_request must be greater than 0, got %v", c.Timeouts.PerRequest)
	}
	if c.Timeouts.PerRequestDebate < c.Timeouts.PerRequest {
		return fmt.Errorf("timeouts.per_request_debate (%v) must be at least timeouts.per_request (%v)", c.Timeouts.PerRequestDebate, c.Timeouts.PerRequest)
	}
	if c.Timeouts.EvidenceTotal <= 0 {
		return fmt.Errorf("timeouts.evidence_total must be greater than 0, got %v", c.Timeouts.EvidenceTotal)
	}
	if c.Timeouts.PerAgent > c.Timeouts.PerRequest {
		return fmt.Errorf("timeouts.per_agent (%v) must not exceed timeouts.per_request (%v)", c.Timeouts.PerAgent, c.Timeouts.PerRequest)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of text, json, got %q", c.Logging.Format)
	}

	return nil
}
