package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// RunReferral invokes the referral builder on the terminal stage. On the
// first successful build it marks the referral complete and performs the
// session's single physician match; later turns at this stage refresh the
// package but never re-match.
func RunReferral(ctx context.Context, in *GraphState, gateway contractx.Gateway, matcher contractx.PhysicianMatcher) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.Failed {
		return in, nil
	}

	resp, err := gateway.Invoke(ctx, contractx.InvocationRequest{
		Agent:       contractx.AgentReferralBuilder,
		UserMessage: in.nextUserMessage(),
		History:     append([]statex.Message(nil), in.Session.History...),
		Context:     in.stageContext(),
	})
	if err != nil {
		return in.failStage(contractx.AgentReferralBuilder, err), nil
	}

	fields, err := decodeStructured(resp.Structured)
	if err != nil {
		return in.failStage(contractx.AgentReferralBuilder, err), nil
	}

	firstBuild := !in.Session.Referral.Complete
	mergeReferral(&in.Session.Referral, fields)
	in.Session.Referral.Complete = true
	in.ReferralCompleted = firstBuild

	if firstBuild {
		matchPhysician(ctx, in, matcher)
	}

	in.Narrative = resp.Narrative
	in.Agent = contractx.AgentReferralBuilder
	return in, nil
}

// matchPhysician runs at most once per session. A matcher error degrades to
// "no physician" rather than failing the referral narrative.
func matchPhysician(ctx context.Context, in *GraphState, matcher contractx.PhysicianMatcher) {
	if matcher == nil {
		return
	}

	phys, err := matcher.Match(ctx, in.Session.Triage.UrgencyScore, in.Session.Guidance.RecommendedSetting)
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", in.SessionID).
			Msg("physician match failed, continuing without a match")
		return
	}
	if phys == nil {
		return
	}
	if err := in.Session.SetPhysician(phys); err != nil {
		// Complete was false, so the slot must have been empty.
		log.Error().Err(err).Str("session_id", in.SessionID).Msg("physician slot conflict")
	}
}
