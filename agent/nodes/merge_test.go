package orchestratornode

import (
	"encoding/json"
	"errors"
	"testing"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

func TestDecodeStructured(t *testing.T) {
	t.Parallel()

	fields, err := decodeStructured(nil)
	if err != nil {
		t.Fatalf("decodeStructured(nil) error = %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("empty payload must decode to empty map, got %v", fields)
	}

	if _, err := decodeStructured(json.RawMessage(`[1,2,3]`)); !errors.Is(err, contractx.ErrInvocationFailed) {
		t.Fatalf("expected ErrInvocationFailed for non-object, got %v", err)
	}
}

func TestMergeTriageFullFieldReplacement(t *testing.T) {
	t.Parallel()

	triage := statex.TriageRecord{
		Symptoms:              []string{"cough", "fever"},
		ChiefComplaint:        "persistent cough",
		UrgencyScore:          3,
		RedFlags:              []string{"hemoptysis"},
		Assessment:            "possible bronchitis",
		ClarifyingQuestion:    "any blood?",
		ClarificationAttempts: 1,
	}

	fields := map[string]any{
		"symptoms":        []any{"cough"},
		"chief_complaint": "dry cough",
		"urgency_score":   float64(2),
		"assessment":      "improving",
		"handoff_ready":   true,
		"medical_codes": map[string]any{
			"snomed_codes": []any{"49727002"},
			"icd_codes":    []any{"R05"},
		},
	}
	mergeTriage(&triage, fields)

	if len(triage.Symptoms) != 1 || triage.Symptoms[0] != "cough" {
		t.Fatalf("symptoms = %v, want [cough]", triage.Symptoms)
	}
	// Fields absent from the response reset to their zero value.
	if triage.RedFlags != nil {
		t.Fatalf("red flags must reset when absent, got %v", triage.RedFlags)
	}
	if triage.ClarifyingQuestion != "" {
		t.Fatalf("clarifying question must reset when absent, got %q", triage.ClarifyingQuestion)
	}
	if triage.ChiefComplaint != "dry cough" || triage.UrgencyScore != 2 {
		t.Fatalf("unexpected merge: %+v", triage)
	}
	if !triage.HandoffReady {
		t.Fatal("handoff_ready not merged")
	}
	if len(triage.MedicalCodes.Snomed) != 1 || triage.MedicalCodes.Snomed[0] != "49727002" {
		t.Fatalf("snomed codes = %v", triage.MedicalCodes.Snomed)
	}
	// The counter is owned by the orchestrator, not the agent.
	if triage.ClarificationAttempts != 1 {
		t.Fatalf("clarification attempts = %d, want 1", triage.ClarificationAttempts)
	}
}

func TestMergeTriageMalformedFieldsDefault(t *testing.T) {
	t.Parallel()

	triage := statex.TriageRecord{UrgencyScore: 4}
	fields := map[string]any{
		"symptoms":      "not-a-list",
		"urgency_score": "high",
		"handoff_ready": "yes",
		"medical_codes": []any{"wrong shape"},
	}
	mergeTriage(&triage, fields)

	if triage.Symptoms != nil {
		t.Fatalf("malformed symptoms must default, got %v", triage.Symptoms)
	}
	if triage.UrgencyScore != 0 {
		t.Fatalf("malformed urgency must default, got %d", triage.UrgencyScore)
	}
	if triage.HandoffReady {
		t.Fatal("malformed handoff_ready must default to false")
	}
	if triage.MedicalCodes.Snomed != nil || triage.MedicalCodes.ICD10 != nil {
		t.Fatalf("malformed medical_codes must default, got %+v", triage.MedicalCodes)
	}
}

func TestMergeTriageClampsUrgency(t *testing.T) {
	t.Parallel()

	triage := statex.TriageRecord{}
	mergeTriage(&triage, map[string]any{"urgency_score": float64(11)})
	if triage.UrgencyScore != 5 {
		t.Fatalf("urgency = %d, want clamp to 5", triage.UrgencyScore)
	}

	mergeTriage(&triage, map[string]any{"urgency_score": float64(-3)})
	if triage.UrgencyScore != 0 {
		t.Fatalf("urgency = %d, want clamp to 0", triage.UrgencyScore)
	}
}

func TestMergeGuidance(t *testing.T) {
	t.Parallel()

	guidance := statex.GuidanceRecord{
		ReferralRequired: true,
		NextSteps:        []string{"go to ED"},
	}
	mergeGuidance(&guidance, map[string]any{
		"referral_required":   false,
		"recommended_setting": "Self-care",
		"guidance_summary":    "rest and hydrate",
	})

	if guidance.ReferralRequired {
		t.Fatal("referral_required not replaced")
	}
	if guidance.RecommendedSetting != "Self-care" || guidance.GuidanceSummary != "rest and hydrate" {
		t.Fatalf("unexpected merge: %+v", guidance)
	}
	if guidance.NextSteps != nil {
		t.Fatalf("next steps must reset when absent, got %v", guidance.NextSteps)
	}
}

func TestMergeReferralDoesNotTouchComplete(t *testing.T) {
	t.Parallel()

	referral := statex.ReferralRecord{Complete: true}
	mergeReferral(&referral, map[string]any{
		"disposition":                "Emergency Department",
		"urgency_score":              float64(5),
		"history_of_present_illness": "acute chest pain for 2 hours",
		"referral_notes":             "rule out ACS",
	})

	if referral.Disposition != "Emergency Department" || referral.UrgencyScore != 5 {
		t.Fatalf("unexpected merge: %+v", referral)
	}
	if !referral.Complete {
		t.Fatal("merge must not clear the completion marker")
	}
}
