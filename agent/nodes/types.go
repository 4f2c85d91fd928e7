package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

var (
	ErrInvalidUtterance = errors.New("utterance is empty")
	ErrInvalidSession   = errors.New("session id is empty")
)

// FallbackNarrative is returned when an agent invocation fails mid-turn. It
// is shown to the patient but never recorded in the conversation history.
const FallbackNarrative = "I'm sorry, I wasn't able to process that just now. " +
	"Please repeat that in a moment and we'll continue."

type GraphInput struct {
	SessionID string
	Text      string
}

type GraphOutput struct {
	Narrative string
	Agent     contractx.AgentKind
	Session   *statex.SessionState
	// ReferralCompleted marks the turn on which the referral package was
	// first assembled, so downstream sinks fire exactly once per session.
	ReferralCompleted bool
}

// GraphState is threaded through the turn graph. Stage runner nodes mutate
// Session in pipeline order; Failed short-circuits the cascade to finalize.
type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session *statex.SessionState
	// Version observed at load time, re-checked before commit so a turn
	// racing a session reset is discarded rather than applied.
	LoadedVersion int64

	// The patient's text is delivered to the first stage invoked this turn;
	// cascaded stages receive an empty placeholder.
	TextDelivered bool

	Narrative string
	Agent     contractx.AgentKind
	Failed    bool

	AdvanceToGuidance bool
	AdvanceToReferral bool
	ReferralCompleted bool
}

// ValidateRequest rejects blank input before any state is touched or any
// agent invoked.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidUtterance
	}
	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
	}, nil
}

// nextUserMessage returns the text for the next stage invocation and marks
// it delivered, so cascaded invocations receive the empty placeholder.
func (g *GraphState) nextUserMessage() string {
	if g.TextDelivered {
		return ""
	}
	g.TextDelivered = true
	return g.Text
}

// stageContext snapshots the prior-stage records for an invocation. The
// clone keeps agents from observing later in-turn mutations.
func (g *GraphState) stageContext() contractx.StageContext {
	snap := g.Session.Clone()
	return contractx.StageContext{
		Language: snap.Language,
		Triage:   snap.Triage,
		Guidance: snap.Guidance,
	}
}
