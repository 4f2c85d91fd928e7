package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

type ArchiveConfig struct {
	DSN     string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"5s"`
}

// referralPackage is the persisted form of a completed referral. Sessions
// expire from the store; the archive is the durable record handed to care
// coordination.
type referralPackage struct {
	bun.BaseModel `bun:"table:referral_packages"`

	ID                      int64     `bun:"id,pk,autoincrement"`
	SessionID               string    `bun:"session_id,notnull,unique"`
	Disposition             string    `bun:"disposition"`
	UrgencyScore            int       `bun:"urgency_score"`
	ChiefComplaint          string    `bun:"chief_complaint"`
	Assessment              string    `bun:"assessment"`
	Symptoms                []string  `bun:"symptoms,array"`
	RedFlags                []string  `bun:"red_flags,array"`
	HistoryOfPresentIllness string    `bun:"history_of_present_illness"`
	ReferralNotes           string    `bun:"referral_notes"`
	PhysicianID             string    `bun:"physician_id"`
	PhysicianName           string    `bun:"physician_name"`
	CreatedAt               time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Archive persists completed referral packages to Postgres.
type Archive struct {
	db      *bun.DB
	timeout time.Duration
}

var _ contractx.ReferralArchiver = (*Archive)(nil)

func NewArchive(cfg ArchiveConfig) (*Archive, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("referral: archive dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &Archive{db: db, timeout: timeout}, nil
}

// Init creates the archive table if it does not exist.
func (a *Archive) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.db.NewCreateTable().
		Model((*referralPackage)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("referral: create archive table: %w", err)
	}
	return nil
}

// SaveReferral upserts the session's referral package. Re-completion of the
// same session overwrites the archived row rather than duplicating it.
func (a *Archive) SaveReferral(ctx context.Context, st *statex.SessionState) error {
	if st == nil {
		return statex.ErrNilSession
	}

	row := &referralPackage{
		SessionID:               st.SessionID,
		Disposition:             st.Referral.Disposition,
		UrgencyScore:            st.Referral.UrgencyScore,
		ChiefComplaint:          st.Triage.ChiefComplaint,
		Assessment:              st.Triage.Assessment,
		Symptoms:                st.Triage.Symptoms,
		RedFlags:                st.Triage.RedFlags,
		HistoryOfPresentIllness: st.Referral.HistoryOfPresentIllness,
		ReferralNotes:           st.Referral.ReferralNotes,
		CreatedAt:               time.Now().UTC(),
	}
	if st.Physician != nil {
		row.PhysicianID = st.Physician.ID
		row.PhysicianName = st.Physician.Name
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("disposition = EXCLUDED.disposition").
		Set("urgency_score = EXCLUDED.urgency_score").
		Set("history_of_present_illness = EXCLUDED.history_of_present_illness").
		Set("referral_notes = EXCLUDED.referral_notes").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("referral: archive package for session=%s: %w", st.SessionID, err)
	}
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
