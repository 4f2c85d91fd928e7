package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// FinalizeTurn commits the turn. Exactly one assistant entry is appended per
// successful turn, carrying the last narrative of the cascade; failed turns
// keep only the user entry plus whatever stage advance already happened.
// The commit is version-checked so a turn that raced a session reset is
// discarded instead of resurrecting replaced state.
func FinalizeTurn(ctx context.Context, in *GraphState, store statex.Store) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	if !in.Failed {
		if err := in.Session.AppendAssistant(in.Narrative); err != nil {
			return GraphOutput{}, fmt.Errorf("%w: empty narrative from agent=%s", contractx.ErrSchemaViolation, in.Agent)
		}
	}

	stored, err := store.Load(ctx, in.SessionID)
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		return GraphOutput{}, contractx.ErrSessionSuperseded
	case err != nil:
		return GraphOutput{}, err
	case stored.Version != in.LoadedVersion:
		return GraphOutput{}, contractx.ErrSessionSuperseded
	}

	in.Session.Version++
	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		return GraphOutput{}, fmt.Errorf("state validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Session); err != nil {
		return GraphOutput{}, err
	}

	return GraphOutput{
		Narrative:         in.Narrative,
		Agent:             in.Agent,
		Session:           in.Session.Clone(),
		ReferralCompleted: in.ReferralCompleted,
	}, nil
}
