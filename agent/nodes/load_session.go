package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// LoadSession fetches the session and appends the patient utterance. Unknown
// sessions are an error: sessions are created explicitly, never implicitly
// by a turn.
func LoadSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	in.Session = st
	in.LoadedVersion = st.Version

	if err := st.AppendUser(in.Text); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return in, nil
}
