package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	nodex "github.com/carebridge-ai/virtual-triage/agent/nodes"
)

// The turn graph mirrors the pipeline: the entry branch routes to the
// session's current stage, and each stage node's outgoing branch either
// cascades into the next stage or finalizes. A transition therefore happens
// at most once per stage per turn, and the cascade depth is bounded by the
// branch topology itself rather than by the stage enum's finiteness.
func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	if err := graph.AddLambdaNode("run_triage",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunTriage(ctx, in, o.gateway)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_triage: %w", err)
	}

	if err := graph.AddLambdaNode("run_guidance",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunGuidance(ctx, in, o.gateway)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_guidance: %w", err)
	}

	if err := graph.AddLambdaNode("run_referral",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunReferral(ctx, in, o.gateway, o.matcher)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_referral: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeTurn(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	stageNodes := map[contractx.AgentKind]string{
		contractx.AgentTriage:           "run_triage",
		contractx.AgentClinicalGuidance: "run_guidance",
		contractx.AgentReferralBuilder:  "run_referral",
	}

	dispatch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil || in.Session == nil {
				return "", fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
			}
			return stageNodes[contractx.AgentForStage(in.Session.Stage)], nil
		},
		map[string]bool{
			"run_triage":   true,
			"run_guidance": true,
			"run_referral": true,
		},
	)

	afterTriage := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in != nil && !in.Failed && in.AdvanceToGuidance {
				return "run_guidance", nil
			}
			return "finalize", nil
		},
		map[string]bool{
			"run_guidance": true,
			"finalize":     true,
		},
	)

	afterGuidance := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in != nil && !in.Failed && in.AdvanceToReferral {
				return "run_referral", nil
			}
			return "finalize", nil
		},
		map[string]bool{
			"run_referral": true,
			"finalize":     true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_request"); err != nil {
		return nil, fmt.Errorf("add edge start->validate_request: %w", err)
	}
	if err := graph.AddEdge("validate_request", "load_session"); err != nil {
		return nil, fmt.Errorf("add edge validate_request->load_session: %w", err)
	}
	if err := graph.AddBranch("load_session", dispatch); err != nil {
		return nil, fmt.Errorf("add dispatch branch: %w", err)
	}
	if err := graph.AddBranch("run_triage", afterTriage); err != nil {
		return nil, fmt.Errorf("add triage branch: %w", err)
	}
	if err := graph.AddBranch("run_guidance", afterGuidance); err != nil {
		return nil, fmt.Errorf("add guidance branch: %w", err)
	}
	if err := graph.AddEdge("run_referral", "finalize"); err != nil {
		return nil, fmt.Errorf("add edge run_referral->finalize: %w", err)
	}
	if err := graph.AddEdge("finalize", compose.END); err != nil {
		return nil, fmt.Errorf("add edge finalize->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
