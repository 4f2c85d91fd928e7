package clinician

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	llmx "github.com/carebridge-ai/virtual-triage/agent/llm"
	promptx "github.com/carebridge-ai/virtual-triage/agent/prompt"
)

// Gateway is the agent invocation gateway: one structured-output runner per
// agent kind, all failure modes collapsed into ErrInvocationFailed so the
// orchestrator sees a single outcome.
type Gateway struct {
	runners map[contractx.AgentKind]compose.Runnable[map[string]any, clinicianLLMOutput]
}

var _ contractx.Gateway = (*Gateway)(nil)

func NewGateway(ctx context.Context, cfg llmx.Config) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()
	specs := []struct {
		kind   contractx.AgentKind
		prompt string
	}{
		{contractx.AgentTriage, prompts.Triage},
		{contractx.AgentClinicalGuidance, prompts.ClinicalGuidance},
		{contractx.AgentReferralBuilder, prompts.ReferralBuilder},
	}

	runners := make(map[contractx.AgentKind]compose.Runnable[map[string]any, clinicianLLMOutput], len(specs))
	for _, spec := range specs {
		modelCfg := cfg.OpenRouterFor(spec.kind)
		chatModel, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create model for agent=%s: %v", contractx.ErrInvocationFailed, spec.kind, err)
		}
		runner, err := compileClinicianGraph(ctx, chatModel, spec.prompt, fmt.Sprintf("clinician.%s", spec.kind))
		if err != nil {
			return nil, fmt.Errorf("%w: compile graph for agent=%s: %v", contractx.ErrInvocationFailed, spec.kind, err)
		}
		runners[spec.kind] = runner
	}

	return &Gateway{runners: runners}, nil
}

func (g *Gateway) Invoke(ctx context.Context, req contractx.InvocationRequest) (contractx.InvocationResponse, error) {
	runner, ok := g.runners[req.Agent]
	if !ok {
		return contractx.InvocationResponse{}, fmt.Errorf("%w: unknown agent=%q", contractx.ErrValidation, req.Agent)
	}

	history := make([]map[string]string, 0, len(req.History))
	for _, msg := range req.History {
		history = append(history, map[string]string{
			"role": string(msg.Role),
			"text": msg.Text,
		})
	}

	payload := map[string]any{
		"user_message":         req.UserMessage,
		"conversation_history": history,
		"context":              req.Context,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.InvocationResponse{}, fmt.Errorf("%w: marshal invocation payload: %v", contractx.ErrValidation, err)
	}

	out, err := runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.InvocationResponse{}, fmt.Errorf("%w: agent=%s: %v", contractx.ErrInvocationFailed, req.Agent, err)
	}

	narrative := strings.TrimSpace(out.Narrative)
	if narrative == "" {
		return contractx.InvocationResponse{}, fmt.Errorf("%w: agent=%s returned empty narrative", contractx.ErrInvocationFailed, req.Agent)
	}

	return contractx.InvocationResponse{
		Narrative:  narrative,
		Structured: out.Structured,
	}, nil
}
