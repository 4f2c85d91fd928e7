package orchestratornode

import (
	"testing"

	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

func TestAdvanceToGuidance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		triage statex.TriageRecord
		want   bool
	}{
		{
			name:   "nothing gathered yet",
			triage: statex.TriageRecord{},
			want:   false,
		},
		{
			name:   "explicit handoff",
			triage: statex.TriageRecord{HandoffReady: true},
			want:   true,
		},
		{
			name:   "red flag forces advance",
			triage: statex.TriageRecord{RedFlags: []string{"chest pain"}},
			want:   true,
		},
		{
			name:   "urgency four forces advance",
			triage: statex.TriageRecord{UrgencyScore: 4},
			want:   true,
		},
		{
			name:   "urgency three alone does not",
			triage: statex.TriageRecord{UrgencyScore: 3},
			want:   false,
		},
		{
			name:   "one prior clarification does not",
			triage: statex.TriageRecord{ClarificationAttempts: 1},
			want:   false,
		},
		{
			name:   "two prior clarifications force advance",
			triage: statex.TriageRecord{ClarificationAttempts: 2},
			want:   true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := AdvanceToGuidance(tc.triage); got != tc.want {
				t.Fatalf("AdvanceToGuidance() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAdvanceToReferral(t *testing.T) {
	t.Parallel()

	if AdvanceToReferral(statex.GuidanceRecord{}) {
		t.Fatal("empty guidance must not advance")
	}
	if AdvanceToReferral(statex.GuidanceRecord{ReferralRequired: true, GuidanceSummary: "  "}) {
		t.Fatal("referral without summary must not advance")
	}
	if AdvanceToReferral(statex.GuidanceRecord{ReferralRequired: false, GuidanceSummary: "self-care at home"}) {
		t.Fatal("summary without referral decision must not advance")
	}
	if !AdvanceToReferral(statex.GuidanceRecord{ReferralRequired: true, GuidanceSummary: "needs urgent care"}) {
		t.Fatal("referral with summary must advance")
	}
}
