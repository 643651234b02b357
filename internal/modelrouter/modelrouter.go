// Package modelrouter selects a model tier (cheap, reasoning, local) for a
// verification call and drives ModelBackend.Complete through the tier
// ladder with the retry/fallback policy of spec §4.4.
package modelrouter

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/consensuserr"
)

// Tier is an abstract class of language-model backend.
type Tier string

const (
	TierCheap     Tier = "cheap"
	TierReasoning Tier = "reasoning"
	TierLocal     Tier = "local"
)

// ErrorKind classifies a ModelBackend failure.
type ErrorKind string

const (
	ErrorTransient   ErrorKind = "transient"
	ErrorRateLimited ErrorKind = "rate_limited"
	ErrorPermanent   ErrorKind = "permanent"
)

// BackendError is returned by a ModelBackend when Complete fails.
type BackendError struct {
	Kind ErrorKind
	Err  error
}

func (e *BackendError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

// Completion is the result of one successful model call.
type Completion struct {
	Text       string
	TokensIn   int
	TokensOut  int
	Latency    time.Duration
}

// Backend is the consumed interface the core is agnostic across: the
// concrete provider SDK lives entirely behind this boundary.
type Backend interface {
	Complete(ctx context.Context, tier Tier, prompt string, deadline time.Time) (Completion, error)
}

// SelectionInput is the tuple the tier choice is a deterministic function
// of (spec §4.4).
type SelectionInput struct {
	Complexity         claim.Complexity
	EvidenceQuality    float64
	PrivacyFlag        bool
	PreviousTier       Tier // zero value if this is not a retry
	PreviousConfidence float64
}

// Router chooses tiers and drives calls through them.
type Router struct {
	logger                   logrus.FieldLogger
	backend                  Backend
	evidenceQualityThreshold float64 // cheap requires >= this (default 0.8)
	reasoningFloor           float64 // stored only; tier selection does not read it
	lowConfidenceThreshold   float64 // cheap-tier confidence below this triggers escalation
}

// New constructs a Router. evidenceQualityThreshold is the cheap/reasoning
// boundary from spec §4.4 (0.8 by default): any evidence quality below it
// selects reasoning. reasoningFloor (0.65 by default) is stored but not
// consulted, so quality below it also selects reasoning.
// lowConfidenceThreshold is the escalation.low_confidence_threshold
// configuration option (default 0.55).
func New(logger logrus.FieldLogger, backend Backend, evidenceQualityThreshold, reasoningFloor, lowConfidenceThreshold float64) *Router {
	return &Router{
		logger:                   logger,
		backend:                  backend,
		evidenceQualityThreshold: evidenceQualityThreshold,
		reasoningFloor:           reasoningFloor,
		lowConfidenceThreshold:   lowConfidenceThreshold,
	}
}

// Select deterministically picks a tier from (complexity, evidence_quality,
// privacy_flag, previous_tier_if_retry). Escalation never downgrades: a
// retry whose previous confidence is below lowConfidenceThreshold escalates
// exactly one step past the previous tier, and any other retry keeps the
// higher of the base tier and the previous tier.
func (r *Router) Select(in SelectionInput) Tier {
	if in.PrivacyFlag {
		return TierLocal
	}

	base := r.baseTier(in.Complexity, in.EvidenceQuality)

	if in.PreviousTier == "" {
		return base
	}

	// Retry: never downgrade past what was already tried, and escalate if
	// the previous attempt's confidence was low.
	if rank(base) < rank(in.PreviousTier) {
		base = in.PreviousTier
	}
	if in.PreviousConfidence < r.lowConfidenceThreshold {
		return escalate(in.PreviousTier)
	}
	return base
}

func (r *Router) baseTier(complexity claim.Complexity, evidenceQuality float64) Tier {
	if evidenceQuality >= r.evidenceQualityThreshold && complexity != claim.ComplexityComplex {
		return TierCheap
	}
	return TierReasoning
}

func rank(t Tier) int {
	switch t {
	case TierCheap:
		return 0
	case TierReasoning:
		return 1
	case TierLocal:
		return 2
	default:
		return 0
	}
}

// escalate returns the next tier up the ladder, never past local. At most
// one escalation per verification is enforced by the caller (Verify),
// which only ever supplies a single PreviousTier.
func escalate(t Tier) Tier {
	switch t {
	case TierCheap:
		return TierReasoning
	default:
		return TierLocal
	}
}

// Complete calls the backend for the given tier, retrying once on a
// transient error with jitter, falling through to the next tier on
// rate_limited, and falling through all the way to local on permanent.
func (r *Router) Complete(ctx context.Context, tier Tier, prompt string, deadline time.Time) (Completion, Tier, error) {
	current := tier
	for {
		completion, err := r.backend.Complete(ctx, current, prompt, deadline)
		if err == nil {
			return completion, current, nil
		}

		var be *BackendError
		kind := ErrorPermanent
		if asBackendError(err, &be) {
			kind = be.Kind
		}

		switch kind {
		case ErrorTransient:
			r.logger.WithFields(logrus.Fields{"tier": current}).Warnf("transient model error, retrying once: %v", err)
			select {
			case <-time.After(jitter()):
			case <-ctx.Done():
				return Completion{}, current, consensuserr.Wrap(consensuserr.Cancelled, ctx.Err(), "model call cancelled during retry backoff")
			}
			completion, err2 := r.backend.Complete(ctx, current, prompt, deadline)
			if err2 == nil {
				return completion, current, nil
			}
			err = err2
			fallthrough
		case ErrorRateLimited:
			next := escalate(current)
			if next == current {
				return Completion{}, current, consensuserr.Wrap(consensuserr.ModelUnavailable, err, "all model tiers exhausted")
			}
			r.logger.WithFields(logrus.Fields{"from": current, "to": next}).Warnf("falling through tier after error: %v", err)
			current = next
		case ErrorPermanent:
			if current == TierLocal {
				return Completion{}, current, consensuserr.Wrap(consensuserr.ModelUnavailable, err, "all model tiers exhausted")
			}
			current = TierLocal
		default:
			return Completion{}, current, consensuserr.Wrap(consensuserr.Internal, err, "unrecognized model backend error kind")
		}

		if ctx.Err() != nil {
			return Completion{}, current, consensuserr.Wrap(consensuserr.Cancelled, ctx.Err(), "model call cancelled")
		}
	}
}

func asBackendError(err error, target **BackendError) bool {
	for err != nil {
		if be, ok := err.(*BackendError); ok {
			*target = be
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func jitter() time.Duration {
	return time.Duration(50+rand.Intn(100)) * time.Millisecond
}
