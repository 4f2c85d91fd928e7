package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/triage.txt
	triageRaw string

	//go:embed template/clinical_guidance.txt
	clinicalGuidanceRaw string

	//go:embed template/referral_builder.txt
	referralBuilderRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Triage           string
	ClinicalGuidance string
	ReferralBuilder  string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Triage:           strings.TrimSpace(triageRaw),
		ClinicalGuidance: strings.TrimSpace(clinicalGuidanceRaw),
		ReferralBuilder:  strings.TrimSpace(referralBuilderRaw),
	}
}
