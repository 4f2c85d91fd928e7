package contract

import (
	"encoding/json"

	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// AgentKind identifies the specialized agent that handles a pipeline stage.
type AgentKind string

const (
	AgentTriage           AgentKind = "triage"
	AgentClinicalGuidance AgentKind = "clinical_guidance"
	AgentReferralBuilder  AgentKind = "referral_builder"
)

// AgentForStage maps a pipeline stage to the agent that owns it.
func AgentForStage(stage statex.Stage) AgentKind {
	switch stage {
	case statex.StageClinicalGuidance:
		return AgentClinicalGuidance
	case statex.StageReferralBuilder:
		return AgentReferralBuilder
	default:
		return AgentTriage
	}
}

// StageContext is the read-only snapshot of earlier stages' records passed to
// each invocation. Later stages see everything accumulated before them.
type StageContext struct {
	Language string                `json:"language,omitempty"`
	Triage   statex.TriageRecord   `json:"triage"`
	Guidance statex.GuidanceRecord `json:"guidance,omitempty"`
}

// InvocationRequest is one call to the agent invocation gateway. UserMessage
// may be empty for cascaded invocations, where the agent acts on accumulated
// context rather than new user text.
type InvocationRequest struct {
	Agent       AgentKind        `json:"agent"`
	UserMessage string           `json:"user_message,omitempty"`
	History     []statex.Message `json:"history"`
	Context     StageContext     `json:"context"`
}

// InvocationResponse carries the narrative shown to the patient and the raw
// structured-output document validated field by field at the merge boundary.
type InvocationResponse struct {
	Narrative  string          `json:"narrative"`
	Structured json.RawMessage `json:"structured_output,omitempty"`
}

// TurnResult is delivered to the turn result sink after each processed turn.
type TurnResult struct {
	Narrative string               `json:"narrative"`
	Agent     AgentKind            `json:"responding_agent"`
	Session   *statex.SessionState `json:"session"`
}
