package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// RunTriage invokes the triage agent, merges its assessment, maintains the
// clarification limiter, and decides whether the turn cascades into
// clinical guidance. An invocation failure ends the cascade with the
// fallback narrative; nothing of the failed stage is merged.
func RunTriage(ctx context.Context, in *GraphState, gateway contractx.Gateway) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	resp, err := gateway.Invoke(ctx, contractx.InvocationRequest{
		Agent:       contractx.AgentTriage,
		UserMessage: in.nextUserMessage(),
		History:     append([]statex.Message(nil), in.Session.History...),
		Context:     in.stageContext(),
	})
	if err != nil {
		return in.failStage(contractx.AgentTriage, err), nil
	}

	fields, err := decodeStructured(resp.Structured)
	if err != nil {
		return in.failStage(contractx.AgentTriage, err), nil
	}

	triage := &in.Session.Triage
	prevAttempts := triage.ClarificationAttempts
	mergeTriage(triage, fields)

	// The predicate sees the attempt count accumulated before this
	// invocation; only afterwards does the counter reset or grow. Three
	// unclear exchanges in a row therefore force the handoff on the third.
	advance := AdvanceToGuidance(*triage)
	if triage.HandoffReady || advance {
		triage.ClarificationAttempts = 0
	} else {
		triage.ClarificationAttempts = prevAttempts + 1
	}

	in.Narrative = resp.Narrative
	in.Agent = contractx.AgentTriage
	in.AdvanceToGuidance = advance

	if advance {
		next, ok := in.Session.Stage.Next()
		if !ok {
			return nil, fmt.Errorf("%w: no stage after %s", contractx.ErrValidation, in.Session.Stage)
		}
		if err := in.Session.Advance(next, in.Now); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// failStage records an invocation failure: the cascade stops, the caller
// gets the fallback narrative, and any stage advance already applied this
// turn is kept.
func (g *GraphState) failStage(agent contractx.AgentKind, err error) *GraphState {
	log.Warn().
		Err(err).
		Str("session_id", g.SessionID).
		Str("agent", string(agent)).
		Msg("agent invocation failed, aborting cascade")

	g.Failed = true
	g.Narrative = FallbackNarrative
	g.Agent = agent
	g.AdvanceToGuidance = false
	g.AdvanceToReferral = false
	return g
}
