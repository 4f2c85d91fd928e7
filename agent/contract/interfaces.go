package contract

import (
	"context"

	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// Gateway invokes a specialized agent. All transport, timeout, and payload
// failures surface as errors wrapping ErrInvocationFailed.
type Gateway interface {
	Invoke(ctx context.Context, req InvocationRequest) (InvocationResponse, error)
}

// PhysicianMatcher resolves a physician from the triage urgency and the
// recommended care setting. A nil physician with a nil error means no match.
type PhysicianMatcher interface {
	Match(ctx context.Context, urgencyScore int, recommendedSetting string) (*statex.Physician, error)
}

// ReferralArchiver persists a completed referral package. Failures are
// non-fatal for the turn and only logged by the caller.
type ReferralArchiver interface {
	SaveReferral(ctx context.Context, st *statex.SessionState) error
}

// ReferralNotifier publishes a referral-complete event to a downstream
// consumer (EHR intake queue, care coordination webhook).
type ReferralNotifier interface {
	NotifyReferral(ctx context.Context, result TurnResult) error
}
