// Command consensusnet is the CLI entrypoint over internal/service.Submit:
// it wires the Agent Pool, Consensus Engine, and Debate Engine behind a
// single "verify" subcommand, grounded on the teacher's cobra-driven
// Toolkit CLI (one root command, flag-configured subcommands).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/clock"
	"github.com/consensusnet/core/internal/config"
	"github.com/consensusnet/core/internal/messagebus"
	"github.com/consensusnet/core/internal/pool"
	"github.com/consensusnet/core/internal/registry"
	"github.com/consensusnet/core/internal/reputation"
	"github.com/consensusnet/core/internal/service"
	"github.com/consensusnet/core/internal/sink"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "consensusnet",
		Short: "Multi-agent fact verification over a trust-weighted consensus engine",
		Long: `consensusnet runs a claim through a pool of verification agents, aggregates
their verdicts by consensus, and escalates to adversarial debate when the
pool disagrees or evidence quality is low.`,
	}
	root.AddCommand(verifyCmd())
	return root
}

func verifyCmd() *cobra.Command {
	var (
		configPath string
		modeFlag   string
		domainFlag string
		agentCount int
	)

	cmd := &cobra.Command{
		Use:   "verify [claim text]",
		Short: "Submit a claim for verification",
		Long: `Submit a claim for verification. The claim text is taken from the first
argument, or read from stdin if no argument is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := claimText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			mode := pool.Mode(modeFlag)
			switch mode {
			case pool.ModeSingle, pool.ModeMulti, pool.ModeAdversarial:
			default:
				return fmt.Errorf("mode must be one of single, multi, adversarial, got %q", modeFlag)
			}

			logger := newLogger(cfg)
			svc := buildService(cfg, logger, agentCount)

			hints := claim.Hints{}
			if domainFlag != "" {
				hints.DomainOverride = claim.Domain(domainFlag)
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.PerRequestDebate+5*time.Second)
			defer cancel()

			result, err := svc.Submit(ctx, text, mode, hints)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML configuration file (defaults are used if omitted)")
	cmd.Flags().StringVar(&modeFlag, "mode", "single", "dispatch mode: single, multi, adversarial")
	cmd.Flags().StringVar(&domainFlag, "domain", "", "override the inferred claim domain (science, health, news, tech, general)")
	cmd.Flags().IntVar(&agentCount, "agents", 3, "number of demo agents to register in the pool")

	return cmd
}

func claimText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read claim text from stdin: %w", err)
	}
	return string(data), nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// buildService wires a pool of demo agents (see demo_backend.go) behind the
// service façade. A production deployment replaces demoBackend/demoSource
// with real model-provider and evidence-source adapters; the core is
// agnostic to both behind modelrouter.Backend and evidence.Source.
func buildService(cfg *config.Config, logger *logrus.Logger, agentCount int) *service.Service {
	bus := messagebus.New(logger, clock.Real{}, 64)
	repStore := reputation.New(clock.Real{}, cfg.Reputation.HalfLifeDays, cfg.Reputation.Alpha)
	reg := registry.New(logger, repStore, 3)
	credStore := reputation.NewCredibilityStore(cfg.Source.CredibilityUpdateWeight)

	provider := newDemoAgentProvider(logger, reg, agentCount, credStore)
	poolMgr := pool.New(logger, reg, provider, cfg.Pool.Parallelism, cfg.Pool.QueueDepth, cfg.Timeouts.PerAgent, cfg.Pool.MultiModeAgents)

	router := newDemoRouter(logger, cfg)
	debateEngine := service.NewDebateEngine(cfg, router, logger, bus)

	return service.New(cfg, logger, bus, reg, repStore, credStore, poolMgr, debateEngine, sink.NoopSink{})
}

func printResult(w io.Writer, result service.Result) error {
	view := struct {
		Label           string             `json:"label"`
		Confidence      float64            `json:"confidence"`
		Reasoning       string             `json:"reasoning"`
		Sources         []string           `json:"sources"`
		EvidenceQuality float64            `json:"evidence_quality"`
		AgentsConsulted []string           `json:"agents_consulted"`
		Consensus       service.ConsensusView `json:"consensus"`
		Debated         bool               `json:"debated"`
		Partial         bool               `json:"partial"`
		ElapsedMS       int64              `json:"elapsed_ms"`
	}{
		Label:           string(result.Verdict.Label),
		Confidence:      result.Verdict.Confidence,
		Reasoning:       result.Verdict.Reasoning,
		Sources:         result.Verdict.Sources,
		EvidenceQuality: result.EvidenceQuality,
		AgentsConsulted: result.AgentsConsulted,
		Consensus:       result.Consensus,
		Debated:         result.Debate != nil,
		Partial:         result.Partial,
		ElapsedMS:       result.Elapsed.Milliseconds(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
