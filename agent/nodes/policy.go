package orchestratornode

import (
	"strings"

	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// Transition predicates are pure so they can be tested without any gateway.
// Each is evaluated at most once per stage per turn, after that stage's
// structured output has been merged.

// AdvanceToGuidance reports whether triage has gathered enough signal to
// hand off: an explicit handoff, any red flag, strong urgency, or repeated
// failure to extract a clean chief complaint (the clarification limiter).
//
// The clarification counter it observes is the count accumulated before the
// current invocation; the caller updates the counter afterwards. That makes
// the forced advance land on the third consecutive unclear exchange.
func AdvanceToGuidance(t statex.TriageRecord) bool {
	if t.HandoffReady {
		return true
	}
	if len(t.RedFlags) > 0 {
		return true
	}
	if t.UrgencyScore >= 4 {
		return true
	}
	return t.ClarificationAttempts >= 2
}

// AdvanceToReferral requires both the referral decision and a populated
// summary, guarding against advancing on a half-filled structured output.
func AdvanceToReferral(g statex.GuidanceRecord) bool {
	return g.ReferralRequired && strings.TrimSpace(g.GuidanceSummary) != ""
}
