package referral

import (
	"context"
	"errors"
	"strings"
	"time"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	qstashx "github.com/carebridge-ai/virtual-triage/pkg/qstash"
)

type NotifierConfig struct {
	// Destination is the webhook the care coordination service listens on.
	Destination string `split_words:"true" required:"true"`
}

// Notifier publishes a referral-completed event through QStash so downstream
// coordination runs outside the patient-facing turn.
type Notifier struct {
	client      *qstashx.Client
	destination string
}

var _ contractx.ReferralNotifier = (*Notifier)(nil)

func NewNotifier(client *qstashx.Client, cfg NotifierConfig) (*Notifier, error) {
	if client == nil {
		return nil, errors.New("referral: qstash client is required")
	}
	destination := strings.TrimSpace(cfg.Destination)
	if destination == "" {
		return nil, errors.New("referral: notifier destination is required")
	}
	return &Notifier{client: client, destination: destination}, nil
}

type referralEvent struct {
	Event         string    `json:"event"`
	SessionID     string    `json:"session_id"`
	Disposition   string    `json:"disposition"`
	UrgencyScore  int       `json:"urgency_score"`
	RedFlags      []string  `json:"red_flags,omitempty"`
	PhysicianID   string    `json:"physician_id,omitempty"`
	PhysicianName string    `json:"physician_name,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

func (n *Notifier) NotifyReferral(ctx context.Context, result contractx.TurnResult) error {
	st := result.Session
	if st == nil {
		return errors.New("referral: notify called without session")
	}

	event := referralEvent{
		Event:        "referral.completed",
		SessionID:    st.SessionID,
		Disposition:  st.Referral.Disposition,
		UrgencyScore: st.Referral.UrgencyScore,
		RedFlags:     st.Triage.RedFlags,
		CompletedAt:  time.Now().UTC(),
	}
	if st.Physician != nil {
		event.PhysicianID = st.Physician.ID
		event.PhysicianName = st.Physician.Name
	}

	return n.client.Publish(ctx, n.destination, event)
}
