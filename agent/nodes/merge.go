package orchestratornode

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

// Structured outputs merge with full-field replacement: every field present
// in the response overwrites the stored value, and fields absent (or of the
// wrong shape) reset to the schema's zero value instead of keeping stale
// data. A single malformed field degrades to its default rather than
// aborting the turn. The clarification counter is orchestrator-owned and is
// never written here.

const (
	urgencyMin = 0
	urgencyMax = 5
)

// decodeStructured parses the raw structured-output document. An empty
// payload merges as all-defaults; an unparsable one is an invocation
// failure, not a merge concern.
func decodeStructured(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: structured output is not an object: %v", contractx.ErrInvocationFailed, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func mergeTriage(t *statex.TriageRecord, fields map[string]any) {
	attempts := t.ClarificationAttempts

	t.Symptoms = stringListField(fields, "symptoms")
	t.ChiefComplaint = stringField(fields, "chief_complaint")
	t.UrgencyScore = clampedIntField(fields, "urgency_score")
	t.RedFlags = stringListField(fields, "red_flags")
	t.Assessment = stringField(fields, "assessment")
	t.HandoffReady = boolField(fields, "handoff_ready")
	t.ClarifyingQuestion = stringField(fields, "clarifying_question")

	codes := objectField(fields, "medical_codes")
	t.MedicalCodes = statex.MedicalCodes{
		Snomed: stringListField(codes, "snomed_codes"),
		ICD10:  stringListField(codes, "icd_codes"),
	}

	t.ClarificationAttempts = attempts
}

func mergeGuidance(g *statex.GuidanceRecord, fields map[string]any) {
	g.ReferralRequired = boolField(fields, "referral_required")
	g.RecommendedSetting = stringField(fields, "recommended_setting")
	g.GuidanceSummary = stringField(fields, "guidance_summary")
	g.NextSteps = stringListField(fields, "next_steps")
}

func mergeReferral(r *statex.ReferralRecord, fields map[string]any) {
	r.Disposition = stringField(fields, "disposition")
	r.UrgencyScore = clampedIntField(fields, "urgency_score")
	r.HistoryOfPresentIllness = stringField(fields, "history_of_present_illness")
	r.ReferralNotes = stringField(fields, "referral_notes")
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func stringListField(fields map[string]any, key string) []string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func boolField(fields map[string]any, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		return false
	}
	return b
}

// clampedIntField reads a JSON number and clamps it to the urgency range.
// Out-of-range scores are clamped, not rejected.
func clampedIntField(fields map[string]any, key string) int {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	n := int(f)
	if n < urgencyMin {
		return urgencyMin
	}
	if n > urgencyMax {
		return urgencyMax
	}
	return n
}

func objectField(fields map[string]any, key string) map[string]any {
	v, ok := fields[key]
	if !ok {
		return map[string]any{}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return obj
}
