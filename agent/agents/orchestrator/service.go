package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/carebridge-ai/virtual-triage/agent/contract"
	nodex "github.com/carebridge-ai/virtual-triage/agent/nodes"
	statex "github.com/carebridge-ai/virtual-triage/agent/state"
)

var (
	ErrInvalidUtterance = nodex.ErrInvalidUtterance
	ErrInvalidSession   = nodex.ErrInvalidSession
	ErrSessionNotFound  = statex.ErrStateNotFound
	ErrSessionBusy      = contractx.ErrSessionBusy
)

const defaultTurnTimeout = 60 * time.Second

type Config struct {
	// TurnTimeout bounds the whole turn, including cascaded invocations.
	TurnTimeout time.Duration
	// Archiver and Notifier are optional sinks fired once per session when
	// the referral package is first completed.
	Archiver contractx.ReferralArchiver
	Notifier contractx.ReferralNotifier
}

// Orchestrator owns the per-session state machine: it drives one turn end to
// end, cascading through pipeline stages within the turn, and guarantees at
// most one in-flight turn per session.
type Orchestrator struct {
	store   statex.Store
	gateway contractx.Gateway
	matcher contractx.PhysicianMatcher

	archiver contractx.ReferralArchiver
	notifier contractx.ReferralNotifier

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	turnTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(
	store statex.Store,
	gateway contractx.Gateway,
	matcher contractx.PhysicianMatcher,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if gateway == nil {
		return nil, errors.New("agent gateway is required")
	}

	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}

	o := &Orchestrator{
		store:       store,
		gateway:     gateway,
		matcher:     matcher,
		archiver:    cfg.Archiver,
		notifier:    cfg.Notifier,
		turnTimeout: turnTimeout,
		now:         time.Now,
		inflight:    make(map[string]struct{}),
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// StartSession creates a fresh session at the triage stage.
func (o *Orchestrator) StartSession(ctx context.Context, language string) (*statex.SessionState, error) {
	st := statex.NewSessionState(uuid.NewString(), language, o.now())
	if err := o.store.Save(ctx, st); err != nil {
		return nil, err
	}
	log.Info().Str("session_id", st.SessionID).Str("language", st.Language).Msg("session started")
	return st.Clone(), nil
}

// GetSession returns a snapshot of the current session state.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*statex.SessionState, error) {
	return o.store.Load(ctx, sessionID)
}

// EndSession discards the session. A turn in flight for it will find the
// stored version gone at commit time and be dropped.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	return o.store.Delete(ctx, sessionID)
}

// HandleTurn processes one finalized utterance. Voice-transcribed and typed
// text arrive here identically. A second turn for the same session while one
// is in flight is rejected with ErrSessionBusy, never queued.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID string, text string) (contractx.TurnResult, error) {
	if !o.acquire(sessionID) {
		return contractx.TurnResult{}, ErrSessionBusy
	}
	defer o.release(sessionID)

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		return contractx.TurnResult{}, err
	}

	result := contractx.TurnResult{
		Narrative: out.Narrative,
		Agent:     out.Agent,
		Session:   out.Session,
	}

	if out.ReferralCompleted {
		o.deliverReferral(ctx, result)
	}
	return result, nil
}

// deliverReferral feeds the completed package to the optional sinks. Sink
// failures degrade to log lines; the patient-facing turn already succeeded.
func (o *Orchestrator) deliverReferral(ctx context.Context, result contractx.TurnResult) {
	if o.archiver != nil {
		if err := o.archiver.SaveReferral(ctx, result.Session); err != nil {
			log.Warn().Err(err).Str("session_id", result.Session.SessionID).Msg("referral archive failed")
		}
	}
	if o.notifier != nil {
		if err := o.notifier.NotifyReferral(ctx, result); err != nil {
			log.Warn().Err(err).Str("session_id", result.Session.SessionID).Msg("referral notification failed")
		}
	}
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[sessionID]; busy {
		return false
	}
	o.inflight[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, sessionID)
}
