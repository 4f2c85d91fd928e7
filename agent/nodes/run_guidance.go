package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// RunGuidance invokes the clinical guidance agent and decides whether the
// turn cascades into the referral builder. When it runs as a cascade after
// triage, the user message is the empty placeholder and a failure leaves
// the session at clinical_guidance with the guidance record unpopulated —
// forward progress is never rolled back.
func RunGuidance(ctx context.Context, in *GraphState, gateway contractx.Gateway) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.Failed {
		return in, nil
	}

	resp, err := gateway.Invoke(ctx, contractx.InvocationRequest{
		Agent:       contractx.AgentClinicalGuidance,
		UserMessage: in.nextUserMessage(),
		History:     append([]statex.Message(nil), in.Session.History...),
		Context:     in.stageContext(),
	})
	if err != nil {
		return in.failStage(contractx.AgentClinicalGuidance, err), nil
	}

	fields, err := decodeStructured(resp.Structured)
	if err != nil {
		return in.failStage(contractx.AgentClinicalGuidance, err), nil
	}

	mergeGuidance(&in.Session.Guidance, fields)

	in.Narrative = resp.Narrative
	in.Agent = contractx.AgentClinicalGuidance
	in.AdvanceToReferral = AdvanceToReferral(in.Session.Guidance)

	if in.AdvanceToReferral {
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
