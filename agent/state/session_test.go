package state

import (
	"errors"
	"testing"
	"time"
)

func TestStageOrderAndNext(t *testing.T) {
	t.Parallel()

	if StageTriage.Order() != 0 || StageClinicalGuidance.Order() != 1 || StageReferralBuilder.Order() != 2 {
		t.Fatalf("unexpected stage ordering: %d %d %d",
			StageTriage.Order(), StageClinicalGuidance.Order(), StageReferralBuilder.Order())
	}
	if Stage("bogus").Order() != -1 {
		t.Fatalf("unknown stage must order -1, got %d", Stage("bogus").Order())
	}

	next, ok := StageTriage.Next()
	if !ok || next != StageClinicalGuidance {
		t.Fatalf("StageTriage.Next() = %s, %v", next, ok)
	}
	next, ok = StageClinicalGuidance.Next()
	if !ok || next != StageReferralBuilder {
		t.Fatalf("StageClinicalGuidance.Next() = %s, %v", next, ok)
	}
	if _, ok := StageReferralBuilder.Next(); ok {
		t.Fatal("terminal stage must have no next")
	}
}

func TestAdvanceMonotonic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	st := NewSessionState("s1", "en", now)

	if err := st.Advance(StageClinicalGuidance, now); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if st.Stage != StageClinicalGuidance {
		t.Fatalf("stage = %s, want clinical_guidance", st.Stage)
	}

	// Same-stage advance is a no-op.
	if err := st.Advance(StageClinicalGuidance, now); err != nil {
		t.Fatalf("same-stage Advance() error = %v", err)
	}

	err := st.Advance(StageTriage, now)
	if !errors.Is(err, ErrStageRegression) {
		t.Fatalf("expected ErrStageRegression, got %v", err)
	}
	if st.Stage != StageClinicalGuidance {
		t.Fatalf("rejected advance must not mutate stage, got %s", st.Stage)
	}

	err = st.Advance(Stage("nope"), now)
	if !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
}

func TestAppendHistory(t *testing.T) {
	t.Parallel()

	st := NewSessionState("s1", "en", time.Now())

	if err := st.AppendUser("I have a headache"); err != nil {
		t.Fatalf("AppendUser() error = %v", err)
	}
	if err := st.AppendAssistant("How long has it lasted?"); err != nil {
		t.Fatalf("AppendAssistant() error = %v", err)
	}
	if err := st.AppendUser("   "); !errors.Is(err, ErrEmptyUtterance) {
		t.Fatalf("expected ErrEmptyUtterance, got %v", err)
	}

	if len(st.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(st.History))
	}
	if st.History[0].Role != RoleUser || st.History[1].Role != RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", st.History[0].Role, st.History[1].Role)
	}
}

func TestSetPhysicianOnce(t *testing.T) {
	t.Parallel()

	st := NewSessionState("s1", "en", time.Now())
	first := &Physician{ID: "phys-1", Name: "Dr. A"}
	second := &Physician{ID: "phys-2", Name: "Dr. B"}

	if err := st.SetPhysician(first); err != nil {
		t.Fatalf("SetPhysician() error = %v", err)
	}
	if err := st.SetPhysician(second); !errors.Is(err, ErrPhysicianConflict) {
		t.Fatalf("expected ErrPhysicianConflict, got %v", err)
	}
	if st.Physician.ID != "phys-1" {
		t.Fatalf("physician = %s, want phys-1", st.Physician.ID)
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	st := NewSessionState("s1", "en", time.Now())
	st.Triage.Symptoms = []string{"cough"}
	st.Triage.RedFlags = []string{"chest pain"}
	st.Guidance.NextSteps = []string{"rest"}
	st.Physician = &Physician{ID: "phys-1"}
	if err := st.AppendUser("hello"); err != nil {
		t.Fatalf("AppendUser() error = %v", err)
	}

	cp := st.Clone()
	cp.Triage.Symptoms[0] = "fever"
	cp.History[0].Text = "mutated"
	cp.Physician.ID = "phys-2"

	if st.Triage.Symptoms[0] != "cough" {
		t.Fatal("clone shares symptoms slice")
	}
	if st.History[0].Text != "hello" {
		t.Fatal("clone shares history slice")
	}
	if st.Physician.ID != "phys-1" {
		t.Fatal("clone shares physician pointer")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	st := NewSessionState("s1", "en", time.Now())
	if err := st.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	st.Triage.UrgencyScore = 9
	if err := st.Validate(); err == nil {
		t.Fatal("expected urgency range error")
	}
	st.Triage.UrgencyScore = 3

	st.Referral.Complete = true
	if err := st.Validate(); err == nil {
		t.Fatal("expected error for completed referral before terminal stage")
	}
	if err := st.Advance(StageReferralBuilder, time.Now()); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("Validate() at terminal stage error = %v", err)
	}
}
