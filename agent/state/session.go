package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage is one of the three sequential pipeline phases. A session only ever
// moves forward: triage -> clinical_guidance -> referral_builder.
type Stage string

const (
	StageTriage           Stage = "triage"
	StageClinicalGuidance Stage = "clinical_guidance"
	StageReferralBuilder  Stage = "referral_builder"
)

var stageOrder = map[Stage]int{
	StageTriage:           0,
	StageClinicalGuidance: 1,
	StageReferralBuilder:  2,
}

// Order returns the pipeline position of the stage, or -1 for unknown stages.
func (s Stage) Order() int {
	order, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return order
}

// Next returns the following stage and false once the pipeline is terminal.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageTriage:
		return StageClinicalGuidance, true
	case StageClinicalGuidance:
		return StageReferralBuilder, true
	default:
		return s, false
	}
}

func (s Stage) Valid() bool {
	return s.Order() >= 0
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one utterance in the conversation history.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// MedicalCodes holds the coded-terminology sets produced by triage.
type MedicalCodes struct {
	Snomed []string `json:"snomed_codes,omitempty"`
	ICD10  []string `json:"icd_codes,omitempty"`
}

// TriageRecord is the accumulated output of the triage agent.
type TriageRecord struct {
	Symptoms              []string     `json:"symptoms,omitempty"`
	ChiefComplaint        string       `json:"chief_complaint,omitempty"`
	UrgencyScore          int          `json:"urgency_score"`
	RedFlags              []string     `json:"red_flags,omitempty"`
	Assessment            string       `json:"assessment,omitempty"`
	MedicalCodes          MedicalCodes `json:"medical_codes"`
	HandoffReady          bool         `json:"handoff_ready"`
	ClarifyingQuestion    string       `json:"clarifying_question,omitempty"`
	ClarificationAttempts int          `json:"clarification_attempts"`
}

// GuidanceRecord is the care-setting determination from the guidance agent.
type GuidanceRecord struct {
	ReferralRequired   bool     `json:"referral_required"`
	RecommendedSetting string   `json:"recommended_setting,omitempty"`
	GuidanceSummary    string   `json:"guidance_summary,omitempty"`
	NextSteps          []string `json:"next_steps,omitempty"`
}

// ReferralRecord is the referral package assembled on the terminal stage.
// Complete flips to true exactly once and is never reset.
type ReferralRecord struct {
	Disposition             string `json:"disposition,omitempty"`
	UrgencyScore            int    `json:"urgency_score"`
	HistoryOfPresentIllness string `json:"history_of_present_illness,omitempty"`
	ReferralNotes           string `json:"referral_notes,omitempty"`
	Complete                bool   `json:"complete"`
}

// Physician is a directory entry matched against urgency and care setting.
type Physician struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Specialty    string `json:"specialty"`
	Location     string `json:"location"`
	UrgencyMin   int    `json:"urgency_min"`
	UrgencyMax   int    `json:"urgency_max"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// SessionState is the per-conversation source of truth. It is owned by the
// orchestrator: only turn processing mutates it, one turn at a time.
type SessionState struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`

	Stage   Stage     `json:"stage"`
	History []Message `json:"history,omitempty"`

	Triage    TriageRecord   `json:"triage"`
	Guidance  GuidanceRecord `json:"guidance"`
	Referral  ReferralRecord `json:"referral"`
	Physician *Physician     `json:"physician,omitempty"`

	// Version increments on every committed turn. A turn whose loaded
	// version no longer matches the stored one is discarded instead of
	// overwriting a reset session.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrInvalidStage      = errors.New("invalid stage")
	ErrStageRegression   = errors.New("stage cannot move backwards")
	ErrInvalidRole       = errors.New("invalid history role")
	ErrEmptyUtterance    = errors.New("utterance is empty")
	ErrNilSession        = errors.New("session state is nil")
	ErrPhysicianConflict = errors.New("physician already selected")
)

func NewSessionState(sessionID, language string, now time.Time) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		Language:  strings.TrimSpace(language),
		Stage:     StageTriage,
		Version:   1,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Advance moves the session to a later stage. Same-stage calls are no-ops;
// any attempt to move backwards is rejected.
func (s *SessionState) Advance(to Stage, now time.Time) error {
	if s == nil {
		return ErrNilSession
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, to)
	}
	if to.Order() < s.Stage.Order() {
		return fmt.Errorf("%w: %s -> %s", ErrStageRegression, s.Stage, to)
	}
	if to == s.Stage {
		return nil
	}
	s.Stage = to
	s.Touch(now)
	return nil
}

// AppendUser records a patient utterance. The history is append-only.
func (s *SessionState) AppendUser(text string) error {
	return s.append(RoleUser, text)
}

// AppendAssistant records the narrative shown to the patient for this turn.
func (s *SessionState) AppendAssistant(text string) error {
	return s.append(RoleAssistant, text)
}

func (s *SessionState) append(role Role, text string) error {
	if s == nil {
		return ErrNilSession
	}
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyUtterance
	}
	s.History = append(s.History, Message{Role: role, Text: text})
	return nil
}

// SetPhysician records the matched physician. It may only happen once.
func (s *SessionState) SetPhysician(p *Physician) error {
	if s == nil {
		return ErrNilSession
	}
	if s.Physician != nil {
		return ErrPhysicianConflict
	}
	s.Physician = p
	return nil
}

// Clone returns a deep copy, used for context snapshots and store fakes.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.History = append([]Message(nil), s.History...)
	cp.Triage.Symptoms = append([]string(nil), s.Triage.Symptoms...)
	cp.Triage.RedFlags = append([]string(nil), s.Triage.RedFlags...)
	cp.Triage.MedicalCodes.Snomed = append([]string(nil), s.Triage.MedicalCodes.Snomed...)
	cp.Triage.MedicalCodes.ICD10 = append([]string(nil), s.Triage.MedicalCodes.ICD10...)
	cp.Guidance.NextSteps = append([]string(nil), s.Guidance.NextSteps...)
	if s.Physician != nil {
		phys := *s.Physician
		cp.Physician = &phys
	}
	return &cp
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return errors.New("session id is empty")
	}
	if !s.Stage.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, s.Stage)
	}
	if s.Triage.UrgencyScore < 0 || s.Triage.UrgencyScore > 5 {
		return fmt.Errorf("triage urgency out of range: %d", s.Triage.UrgencyScore)
	}
	if s.Triage.ClarificationAttempts < 0 {
		return fmt.Errorf("clarification attempts negative: %d", s.Triage.ClarificationAttempts)
	}
	for _, m := range s.History {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
		}
	}
	if s.Stage.Order() < StageReferralBuilder.Order() && s.Referral.Complete {
		return errors.New("referral completed before referral_builder stage")
	}
	return nil
}
