package physician

import (
	"context"
	"testing"
)

const testRoster = `[
  {"id": "em-1", "name": "Dr. E", "specialty": "Emergency Medicine", "location": "ED", "urgency_min": 4, "urgency_max": 5},
  {"id": "uc-1", "name": "Dr. U", "specialty": "Urgent Care", "location": "Clinic", "urgency_min": 2, "urgency_max": 4},
  {"id": "pc-1", "name": "Dr. P", "specialty": "Primary Care", "location": "Practice", "urgency_min": 1, "urgency_max": 3},
  {"id": "ca-1", "name": "Dr. C", "specialty": "Cardiology", "location": "Institute", "urgency_min": 2, "urgency_max": 5}
]`

func TestNewDirectoryLoadsEmbeddedRoster(t *testing.T) {
	t.Parallel()

	dir, err := NewDirectory()
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	if dir.Len() == 0 {
		t.Fatal("embedded roster is empty")
	}
}

func TestMatchPrefersSettingSpecialty(t *testing.T) {
	t.Parallel()

	dir, err := newDirectoryFrom([]byte(testRoster))
	if err != nil {
		t.Fatalf("newDirectoryFrom() error = %v", err)
	}

	phys, err := dir.Match(context.Background(), 5, "Emergency Department")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if phys == nil || phys.ID != "em-1" {
		t.Fatalf("Match() = %+v, want em-1", phys)
	}

	phys, err = dir.Match(context.Background(), 3, "Specialist")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if phys == nil || phys.ID != "ca-1" {
		t.Fatalf("Match() = %+v, want cardiology for specialist setting", phys)
	}

	// Self-care maps to primary care.
	phys, err = dir.Match(context.Background(), 1, "Self-care")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if phys == nil || phys.ID != "pc-1" {
		t.Fatalf("Match() = %+v, want pc-1", phys)
	}
}

func TestMatchFallsBackToFirstEligible(t *testing.T) {
	t.Parallel()

	dir, err := newDirectoryFrom([]byte(testRoster))
	if err != nil {
		t.Fatalf("newDirectoryFrom() error = %v", err)
	}

	// Unknown setting: first urgency-eligible entry wins.
	phys, err := dir.Match(context.Background(), 4, "Telehealth")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if phys == nil || phys.ID != "em-1" {
		t.Fatalf("Match() = %+v, want first eligible em-1", phys)
	}
}

func TestMatchNoEligiblePhysician(t *testing.T) {
	t.Parallel()

	dir, err := newDirectoryFrom([]byte(`[
	  {"id": "em-1", "name": "Dr. E", "specialty": "Emergency Medicine", "location": "ED", "urgency_min": 4, "urgency_max": 5}
	]`))
	if err != nil {
		t.Fatalf("newDirectoryFrom() error = %v", err)
	}

	phys, err := dir.Match(context.Background(), 1, "Primary Care")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if phys != nil {
		t.Fatalf("expected no match, got %+v", phys)
	}
}

func TestNewDirectoryFromRejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	if _, err := newDirectoryFrom([]byte(`[{"id": "", "name": "Dr. X"}]`)); err == nil {
		t.Fatal("expected error for entry without id")
	}
	if _, err := newDirectoryFrom([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}
