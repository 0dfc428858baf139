// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package session runs the conversational turn loop: one signal in, one
// reconciliation against the profile store, one ranking pass, one product
// out. The controller owns everything scoped to a conversation: the
// seen-set, the turn counter, the clarification state, and the stack of
// constraints hardened during the session, which is what gets relaxed first
// when hard filters empty the candidate set.
//
// Each session processes one turn at a time; turns for different sessions
// run concurrently. Profile writes go through store.Update, so a duplicated
// or racing turn retries against the fresh version instead of losing data.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcalloway/prefero/internal/catalog"
	"github.com/jcalloway/prefero/internal/journal"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
	"github.com/jcalloway/prefero/internal/rank"
	"github.com/jcalloway/prefero/internal/reconcile"
	"github.com/jcalloway/prefero/internal/store"
)

// presentDepth is how many ranked products a turn carries: the head plus the
// fallbacks an out-of-band rejection (stock, shipping) may need.
const presentDepth = 5

var (
	// ErrSessionNotFound marks lookups of unknown or already swept
	// sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionEnded marks turns against a terminal session.
	ErrSessionEnded = errors.New("session ended")

	errNothingToRelax = errors.New("no hard constraint to relax")
)

// Deps are the collaborators a Controller drives. Store, Reconciler, Engine,
// and Source are required; Recorder and Notifier may be nil.
type Deps struct {
	Store      store.Store
	Reconciler *reconcile.Reconciler
	Engine     *rank.Engine
	Source     catalog.Source
	Recorder   *journal.Recorder
	Notifier   Notifier
}

// Controller is the session registry and turn loop.
type Controller struct {
	cfg        Config
	store      store.Store
	reconciler *reconcile.Reconciler
	engine     *rank.Engine
	source     catalog.Source
	recorder   *journal.Recorder
	notifier   Notifier

	mu       sync.RWMutex
	sessions map[string]*session

	nowFunc func() time.Time
}

// hardenedConstraint is one entry of the per-session relaxation stack.
type hardenedConstraint struct {
	category  string
	attribute string
}

type session struct {
	mu sync.Mutex

	id       string
	userID   string
	category string
	state    State
	turns    int

	seen              map[string]struct{}
	hardenedStack     []hardenedConstraint
	lastProductID     string
	lastGoodProductID string
	clarification     *Clarification

	createdAt  time.Time
	lastActive time.Time
}

// NewController creates a Controller.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if deps.Store == nil || deps.Reconciler == nil || deps.Engine == nil || deps.Source == nil {
		return nil, fmt.Errorf("session controller requires store, reconciler, engine, and source")
	}
	return &Controller{
		cfg:        cfg,
		store:      deps.Store,
		reconciler: deps.Reconciler,
		engine:     deps.Engine,
		source:     deps.Source,
		recorder:   deps.Recorder,
		notifier:   deps.Notifier,
		sessions:   make(map[string]*session),
		nowFunc:    time.Now,
	}, nil
}

// Open starts a session for the user in a category.
func (c *Controller) Open(ctx context.Context, userID, category string) (*Snapshot, error) {
	userID = strings.TrimSpace(userID)
	category = prefs.NormalizeValue(category)
	if userID == "" {
		return nil, fmt.Errorf("user_id required")
	}
	if category == "" {
		return nil, fmt.Errorf("category required")
	}

	now := c.nowFunc().UTC()
	sess := &session{
		id:         uuid.NewString(),
		userID:     userID,
		category:   category,
		state:      StateAwaitingIntent,
		seen:       make(map[string]struct{}),
		createdAt:  now,
		lastActive: now,
	}

	c.mu.Lock()
	full := len(c.sessions) >= c.cfg.MaxSessions
	c.mu.Unlock()
	if full {
		// Expired sessions may be holding slots.
		c.Sweep(ctx)
	}

	c.mu.Lock()
	if len(c.sessions) >= c.cfg.MaxSessions {
		c.mu.Unlock()
		return nil, fmt.Errorf("session capacity %d reached", c.cfg.MaxSessions)
	}
	c.sessions[sess.id] = sess
	tracked := len(c.sessions)
	c.mu.Unlock()

	metrics.RecordSessionOpened()
	metrics.SetActiveSessions(tracked)
	if c.recorder != nil {
		c.recorder.RecordSessionState(ctx, userID, sess.id, "", StateAwaitingIntent.String(), "session opened")
	}
	c.notify(Event{
		Type: EventOpened, SessionID: sess.id, UserID: userID,
		Category: category, State: StateAwaitingIntent, Timestamp: now,
	})
	logger := logging.Ctx(ctx)
	logger.Info().
		Str("session_id", sess.id).
		Str("user_id", userID).
		Str("category", category).
		Msg("Session opened")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// Get returns a snapshot of the session.
func (c *Controller) Get(sessionID string) (*Snapshot, error) {
	sess, err := c.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// End terminates the session explicitly. Ending an ended session is a no-op.
func (c *Controller) End(ctx context.Context, sessionID, reason string) (*Snapshot, error) {
	sess, err := c.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "explicit exit"
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateEnded {
		now := c.nowFunc().UTC()
		sess.lastActive = now
		c.settle(ctx, sess, sess.state, StateEnded, reason)
		metrics.RecordSessionEnded("explicit")
		c.notify(Event{
			Type: EventEnded, SessionID: sess.id, UserID: sess.userID,
			Category: sess.category, State: StateEnded, Turn: sess.turns,
			Reason: reason, Timestamp: now,
		})
		logger := logging.Ctx(ctx)
		logger.Info().
			Str("session_id", sess.id).
			Str("user_id", sess.userID).
			Str("reason", reason).
			Msg("Session ended")
	}
	return sess.snapshotLocked(), nil
}

// TurnOptions adjusts turn processing.
type TurnOptions struct {
	// Explain includes human-readable scoring fragments in the turn, the
	// "why this?" answer.
	Explain bool
}

// Turn is the outcome of one processed signal.
type Turn struct {
	SessionID string `json:"session_id"`

	// State the session rests in after the turn.
	State State `json:"state"`

	// Number of this turn within the session, starting at 1.
	Number int `json:"turn"`

	// Result of the reconciliation.
	Result *reconcile.Result `json:"result,omitempty"`

	// Product presented this turn, absent on clarification-only turns.
	Product *rank.ScoredProduct `json:"product,omitempty"`

	// Alternates are the next-ranked fallbacks behind the head.
	Alternates []rank.ScoredProduct `json:"alternates,omitempty"`

	// Explanations are the "why this?" fragments, present when requested.
	Explanations []string `json:"explanations,omitempty"`

	// Clarification prompt, present when the session entered CLARIFYING.
	Clarification *Clarification `json:"clarification,omitempty"`

	// RelaxedConstraints lists attribute keys whose hard constraints were
	// loosened this turn to un-empty the candidate set.
	RelaxedConstraints []string `json:"relaxed_constraints,omitempty"`

	// TotalCandidates and Excluded mirror the ranking pass.
	TotalCandidates int `json:"total_candidates"`
	Excluded        int `json:"excluded"`
}

// ProcessTurn drives one turn: reconcile the signal, rank the category, and
// present the head. Malformed signals skip the turn and leave the session
// untouched; conflicting signals move it to CLARIFYING.
func (c *Controller) ProcessTurn(ctx context.Context, sessionID string, sig *prefs.Signal, opts TurnOptions) (*Turn, error) {
	start := time.Now()

	sess, err := c.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == StateEnded {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionEnded)
	}
	if sig == nil {
		return nil, fmt.Errorf("%w: nil signal", prefs.ErrMalformedSignal)
	}

	now := c.nowFunc().UTC()
	sess.lastActive = now

	// Signals are immutable to their producer; work on a copy.
	sigCopy := *sig
	sig = &sigCopy

	// The conversation implies what the transport may omit.
	if strings.TrimSpace(sig.UserID) == "" {
		sig.UserID = sess.userID
	}
	if strings.TrimSpace(sig.Category) == "" {
		sig.Category = sess.category
	}
	if sig.UserID != sess.userID {
		logger := logging.Ctx(ctx)
		logger.Warn().
			Str("session_id", sess.id).
			Str("signal_user", sig.UserID).
			Msg("Signal user does not match session, turn skipped")
		return nil, fmt.Errorf("%w: signal user %q does not match session user %q",
			prefs.ErrMalformedSignal, sig.UserID, sess.userID)
	}

	// The user may move to another category mid-conversation.
	if cat := prefs.NormalizeValue(sig.Category); cat != sess.category {
		logger := logging.Ctx(ctx)
		logger.Debug().
			Str("session_id", sess.id).
			Str("from", sess.category).
			Str("to", cat).
			Msg("Session switched category")
		sess.category = cat
	}

	// Override is the user's confirmed answer to a conflict prompt, and
	// only for the exact pair that conflicted.
	answeringConflict := sess.state == StateClarifying &&
		sess.clarification != nil &&
		sess.clarification.Reason == ReasonConflict &&
		prefs.ParseAttribute(sig.Attribute).Key == sess.clarification.Attribute &&
		prefs.NormalizeValue(sig.Value) == sess.clarification.Value

	prior := sess.state
	sess.state = StatePresenting

	var res *reconcile.Result
	profile, err := store.Update(ctx, c.store, sess.userID, c.cfg.UpdateRetries, func(p *prefs.UserProfile) error {
		r, aerr := c.reconciler.Apply(ctx, p, sig, reconcile.Options{
			SessionID: sess.id,
			Override:  answeringConflict,
		})
		res = r
		return aerr
	})
	if err != nil {
		switch {
		case errors.Is(err, prefs.ErrMalformedSignal):
			sess.state = prior
			metrics.RecordMalformedSignal()
			logger := logging.Ctx(ctx)
			logger.Warn().
				Err(err).
				Str("session_id", sess.id).
				Msg("Malformed signal, turn skipped")
			return nil, err
		case errors.Is(err, prefs.ErrConflictingConstraint):
			sess.turns++
			clar := &Clarification{
				Reason:    ReasonConflict,
				Attribute: res.Attribute.Key,
				Value:     res.Value,
				Prompt: fmt.Sprintf("%q goes against the firm %s preference on file. Keep the rule, or change it?",
					res.Value, res.Attribute.Key),
			}
			sess.clarification = clar
			c.settle(ctx, sess, prior, StateClarifying, "signal contradicts a hard constraint")
			metrics.RecordSignal(string(res.Outcome))
			metrics.RecordClarification(string(ReasonConflict))
			metrics.RecordTurn(time.Since(start))
			c.notify(Event{
				Type: EventClarification, SessionID: sess.id, UserID: sess.userID,
				Category: sess.category, State: sess.state, Turn: sess.turns,
				Reason: string(ReasonConflict), Timestamp: now,
			})
			return &Turn{
				SessionID:     sess.id,
				State:         sess.state,
				Number:        sess.turns,
				Result:        res,
				Clarification: clar,
			}, nil
		default:
			sess.state = prior
			return nil, fmt.Errorf("turn reconciliation for session %s: %w", sess.id, err)
		}
	}

	sess.turns++
	sess.clarification = nil
	metrics.RecordSignal(string(res.Outcome))
	metrics.RecordPromotions(res.PromotedHard, res.PromotedLongTerm)
	for range res.TransferredTo {
		metrics.RecordTransfer()
	}
	if res.PromotedHard {
		sess.hardenedStack = append(sess.hardenedStack, hardenedConstraint{
			category:  res.Category,
			attribute: res.Attribute.Key,
		})
	}

	resp, relaxed, err := c.rankWithRelaxation(ctx, sess, profile)
	if err != nil {
		// The signal is applied either way; the session stays usable.
		c.settle(ctx, sess, prior, StateAwaitingSignal, "nothing presentable")
		return nil, fmt.Errorf("session %s: %w", sess.id, err)
	}

	head := resp.Products[0]
	sess.seen[head.Product.ProductID] = struct{}{}
	sess.lastProductID = head.Product.ProductID

	turn := &Turn{
		SessionID:          sess.id,
		Number:             sess.turns,
		Result:             res,
		Product:            &head,
		RelaxedConstraints: relaxed,
		TotalCandidates:    resp.TotalCandidates,
		Excluded:           resp.Excluded,
	}
	if len(resp.Products) > 1 {
		turn.Alternates = resp.Products[1:]
	}
	if opts.Explain {
		turn.Explanations = explanationFragments(head.Matches)
	}

	// A ranking the profile cannot split is the other clarification
	// trigger, judged on pre-noise scores so exploration jitter neither
	// fakes nor hides a tie. Skipped right after an answered prompt to
	// give the answer a turn to bite.
	if prior != StateClarifying && sess.turns >= c.cfg.ClarificationMinTurns && len(resp.Products) >= 2 {
		if math.Abs(resp.Products[0].Base-resp.Products[1].Base) <= c.cfg.ClarificationBand {
			clar := &Clarification{
				Reason:     ReasonIndistinguishable,
				ProductIDs: []string{resp.Products[0].Product.ProductID, resp.Products[1].Product.ProductID},
				Prompt:     "These two are neck and neck. What matters more to you right now?",
			}
			sess.clarification = clar
			turn.Clarification = clar
			c.settle(ctx, sess, prior, StateClarifying, "top candidates indistinguishable")
			turn.State = sess.state
			metrics.RecordClarification(string(ReasonIndistinguishable))
			metrics.RecordTurn(time.Since(start))
			c.notify(Event{
				Type: EventClarification, SessionID: sess.id, UserID: sess.userID,
				Category: sess.category, State: sess.state, Turn: sess.turns,
				Product: turn.Product, Reason: string(ReasonIndistinguishable), Timestamp: now,
			})
			return turn, nil
		}
	}

	c.settle(ctx, sess, prior, StateAwaitingSignal, "product presented")
	turn.State = sess.state
	metrics.RecordTurn(time.Since(start))
	c.notify(Event{
		Type: EventTurn, SessionID: sess.id, UserID: sess.userID,
		Category: sess.category, State: sess.state, Turn: sess.turns,
		Product: turn.Product, Timestamp: now,
	})

	logger := logging.Ctx(ctx)
	logger.Debug().
		Str("session_id", sess.id).
		Str("user_id", sess.userID).
		Int("turn", sess.turns).
		Str("product_id", head.Product.ProductID).
		Float64("score", head.Score).
		Str("outcome", string(res.Outcome)).
		Msg("Turn processed")

	return turn, nil
}

// rankWithRelaxation ranks the session's category and, when hard constraints
// filter out everything, loosens them newest-first until a candidate
// survives or nothing is left to loosen.
func (c *Controller) rankWithRelaxation(ctx context.Context, sess *session, profile *prefs.UserProfile) (*rank.Response, []string, error) {
	candidates, err := c.source.Products(ctx, sess.category)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog fetch for %s: %w", sess.category, err)
	}
	if len(candidates) > c.cfg.CandidateBatchSize {
		candidates = candidates[:c.cfg.CandidateBatchSize]
	}

	var relaxed []string
	for {
		resp, rankErr := c.engine.Rank(ctx, rank.Request{
			Profile:    profile,
			SessionID:  sess.id,
			Category:   sess.category,
			Candidates: candidates,
			Seen:       sess.seen,
			Limit:      presentDepth,
			RequestID:  logging.RequestIDFromContext(ctx),
		})
		if rankErr == nil {
			return resp, relaxed, nil
		}
		if !errors.Is(rankErr, prefs.ErrNoCandidates) {
			return nil, relaxed, rankErr
		}

		attr, updated, relaxErr := c.relaxOne(ctx, sess)
		if relaxErr != nil {
			return nil, relaxed, relaxErr
		}
		if attr == "" {
			// Nothing left to loosen; NoCandidates stands.
			return nil, relaxed, rankErr
		}
		profile = updated
		relaxed = append(relaxed, attr)
	}
}

// relaxOne loosens one hard constraint in the session's category: the newest
// one this session hardened when the stack has one, otherwise the most
// recently updated hard preference on the profile. Returns the relaxed
// attribute key, empty when there was nothing to relax.
func (c *Controller) relaxOne(ctx context.Context, sess *session) (string, *prefs.UserProfile, error) {
	var fromStack string
	for i := len(sess.hardenedStack) - 1; i >= 0; i-- {
		if sess.hardenedStack[i].category == sess.category {
			fromStack = sess.hardenedStack[i].attribute
			sess.hardenedStack = append(sess.hardenedStack[:i], sess.hardenedStack[i+1:]...)
			break
		}
	}

	var key string
	updated, err := store.Update(ctx, c.store, sess.userID, c.cfg.UpdateRetries, func(p *prefs.UserProfile) error {
		key = ""
		if fromStack != "" && c.reconciler.RelaxHard(ctx, p, sess.category, fromStack, sess.id) {
			key = fromStack
			return nil
		}
		if k, ok := c.reconciler.RelaxMostRecentHard(ctx, p, sess.category, sess.id); ok {
			key = k
			return nil
		}
		return errNothingToRelax
	})
	if err != nil {
		if errors.Is(err, errNothingToRelax) {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("relaxing constraints for %s: %w", sess.userID, err)
	}
	metrics.RecordRelaxation()
	return key, updated, nil
}

// NoteInteraction folds a recorded product sentiment into the live session:
// the product joins the seen-set, the profile's selection and rejection
// tallies move, and a selection event on a well-received product completes
// the session.
func (c *Controller) NoteInteraction(ctx context.Context, sessionID string, interaction *prefs.Interaction, selected bool) (*Snapshot, error) {
	if err := interaction.Validate(); err != nil {
		return nil, err
	}

	sess, err := c.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == StateEnded {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionEnded)
	}
	if interaction.UserID != sess.userID {
		return nil, fmt.Errorf("interaction user %q does not match session user %q", interaction.UserID, sess.userID)
	}

	now := c.nowFunc().UTC()
	sess.lastActive = now

	// Tallies land in the product's own category; brand feeds the
	// per-brand rejection tie-break.
	category := sess.category
	var brand string
	if p, found, perr := c.source.Product(ctx, interaction.ProductID); perr != nil {
		return nil, fmt.Errorf("product lookup for %s: %w", interaction.ProductID, perr)
	} else if found {
		category = p.Category
		brand = p.Brand
	}

	_, err = store.Update(ctx, c.store, sess.userID, c.cfg.UpdateRetries, func(p *prefs.UserProfile) error {
		cat := p.EnsureCategory(category, now)
		if interaction.Sentiment == prefs.SentimentGood {
			cat.RecordSelection(now)
		} else {
			cat.RecordRejection(brand, now)
		}
		c.reconciler.Recompute(p, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording interaction for %s: %w", sess.userID, err)
	}

	sess.seen[interaction.ProductID] = struct{}{}
	if interaction.Sentiment == prefs.SentimentGood {
		sess.lastGoodProductID = interaction.ProductID
	}

	if selected {
		if interaction.Sentiment != prefs.SentimentGood && sess.lastGoodProductID != interaction.ProductID {
			return nil, fmt.Errorf("selection of %s without a good interaction", interaction.ProductID)
		}
		c.settle(ctx, sess, sess.state, StateEnded, "purchase completed")
		metrics.RecordSessionEnded("purchase")
		c.notify(Event{
			Type: EventEnded, SessionID: sess.id, UserID: sess.userID,
			Category: sess.category, State: StateEnded, Turn: sess.turns,
			Reason: "purchase", Timestamp: now,
		})
		logger := logging.Ctx(ctx)
		logger.Info().
			Str("session_id", sess.id).
			Str("user_id", sess.userID).
			Str("product_id", interaction.ProductID).
			Msg("Session completed with a selection")
	}

	return sess.snapshotLocked(), nil
}

// Sweep drops sessions idle past the TTL, ending live ones on the way out.
// Returns how many were removed.
func (c *Controller) Sweep(ctx context.Context) int {
	now := c.nowFunc().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, sess := range c.sessions {
		// A session mid-turn is active by definition.
		if !sess.mu.TryLock() {
			continue
		}
		idle := now.Sub(sess.lastActive) > c.cfg.TTL
		if idle && sess.state != StateEnded {
			c.settle(ctx, sess, sess.state, StateEnded, "session expired")
			metrics.RecordSessionEnded("expired")
			c.notify(Event{
				Type: EventEnded, SessionID: sess.id, UserID: sess.userID,
				Category: sess.category, State: StateEnded, Turn: sess.turns,
				Reason: "expired", Timestamp: now,
			})
		}
		sess.mu.Unlock()

		if idle {
			delete(c.sessions, id)
			removed++
		}
	}

	metrics.SetActiveSessions(len(c.sessions))
	if removed > 0 {
		logger := logging.Ctx(ctx)
		logger.Debug().Int("removed", removed).Msg("Expired sessions swept")
	}
	return removed
}

// Len returns how many sessions are tracked.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Controller) lookup(sessionID string) (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	return sess, nil
}

// settle moves the session to its resting state, journaling real edges. The
// transient presenting state stays out of the trail.
func (c *Controller) settle(ctx context.Context, sess *session, from, to State, reason string) {
	sess.state = to
	if from == to {
		return
	}
	if c.recorder != nil {
		c.recorder.RecordSessionState(ctx, sess.userID, sess.id, from.String(), to.String(), reason)
	}
}

func (c *Controller) notify(ev Event) {
	if c.notifier != nil {
		c.notifier.Notify(ev)
	}
}

// snapshotLocked builds a Snapshot. Caller holds s.mu.
func (s *session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		SessionID:     s.id,
		UserID:        s.userID,
		Category:      s.category,
		State:         s.state,
		Turns:         s.turns,
		SeenCount:     len(s.seen),
		LastProductID: s.lastProductID,
		CreatedAt:     s.createdAt,
		LastActiveAt:  s.lastActive,
	}
	if s.clarification != nil {
		clar := *s.clarification
		clar.ProductIDs = append([]string(nil), s.clarification.ProductIDs...)
		snap.Clarification = &clar
	}
	return snap
}

// explanationFragments renders the "why this?" strings from score matches.
func explanationFragments(matches []rank.Match) []string {
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		var b strings.Builder
		switch {
		case m.Bucket == "preferred" && m.Hard:
			fmt.Fprintf(&b, "meets your firm %s requirement: %s", m.Attribute, m.Value)
		case m.Bucket == "preferred":
			fmt.Fprintf(&b, "matches the %s you like: %s", m.Attribute, m.Value)
		default:
			fmt.Fprintf(&b, "carries a %s you tend to avoid: %s", m.Attribute, m.Value)
		}
		if m.Transferred {
			b.WriteString(" (carried over from your other shopping)")
		}
		out = append(out, b.String())
	}
	return out
}
