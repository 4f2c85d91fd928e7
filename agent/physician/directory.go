package physician

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

//go:embed data/physicians.json
var directoryRaw []byte

// Care settings map to a preferred specialty; an eligible physician in the
// preferred specialty wins, otherwise the first urgency-eligible entry does.
var preferredSpecialty = map[string]string{
	"primary care":         "Primary Care",
	"self-care":            "Primary Care",
	"urgent care":          "Urgent Care",
	"emergency department": "Emergency Medicine",
	"specialist":           "Cardiology",
}

type directoryEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Specialty    string `json:"specialty"`
	Location     string `json:"location"`
	UrgencyMin   int    `json:"urgency_min"`
	UrgencyMax   int    `json:"urgency_max"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
}

// Directory is the in-process physician roster, loaded once at startup.
type Directory struct {
	physicians []statex.Physician
}

var _ contractx.PhysicianMatcher = (*Directory)(nil)

// NewDirectory loads the embedded roster.
func NewDirectory() (*Directory, error) {
	return newDirectoryFrom(directoryRaw)
}

func newDirectoryFrom(raw []byte) (*Directory, error) {
	var entries []directoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("physician: parse directory: %w", err)
	}

	physicians := make([]statex.Physician, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.Name) == "" {
			return nil, fmt.Errorf("physician: directory entry missing id or name: %+v", entry)
		}
		physicians = append(physicians, statex.Physician{
			ID:           entry.ID,
			Name:         entry.Name,
			Specialty:    entry.Specialty,
			Location:     entry.Location,
			UrgencyMin:   entry.UrgencyMin,
			UrgencyMax:   entry.UrgencyMax,
			ContactPhone: entry.ContactPhone,
			ContactEmail: entry.ContactEmail,
		})
	}

	return &Directory{physicians: physicians}, nil
}

// Match picks the best physician for the urgency score and recommended care
// setting. No eligible physician is not an error; the referral package is
// simply delivered without a named recipient.
func (d *Directory) Match(ctx context.Context, urgencyScore int, recommendedSetting string) (*statex.Physician, error) {
	if len(d.physicians) == 0 {
		return nil, nil
	}

	preferred := preferredSpecialty[strings.ToLower(strings.TrimSpace(recommendedSetting))]

	var eligible []statex.Physician
	for _, p := range d.physicians {
		if p.UrgencyMin <= urgencyScore && urgencyScore <= p.UrgencyMax {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	if preferred != "" {
		for _, p := range eligible {
			if strings.EqualFold(p.Specialty, preferred) {
				match := p
				return &match, nil
			}
		}
	}

	match := eligible[0]
	return &match, nil
}

// Len reports the roster size.
func (d *Directory) Len() int {
	return len(d.physicians)
}
