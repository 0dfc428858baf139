// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// Package rank orders catalog candidates against a user profile. Hard
// constraints filter, soft preferences score, and a seeded exploration term
// keeps presentations from going stale without sacrificing reproducibility.
//
// Ranking is read-only: the profile is never mutated, so a clone taken at
// turn start stays valid for the whole pass.
package rank

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jcalloway/prefero/internal/catalog"
	"github.com/jcalloway/prefero/internal/logging"
	"github.com/jcalloway/prefero/internal/metrics"
	"github.com/jcalloway/prefero/internal/prefs"
)

// Engine ranks candidates. Safe for concurrent use; the exploration RNG is
// the only shared state and sits behind a mutex.
type Engine struct {
	config Config
	rng    *rand.Rand
	rngMu  sync.Mutex
}

// New creates a ranking engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rank config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}

	return &Engine{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // exploration noise, not cryptography
	}, nil
}

// Request is one ranking pass.
type Request struct {
	// Profile to rank against. Required; a fresh profile ranks on
	// tie-breaks alone.
	Profile *prefs.UserProfile

	// SessionID gates which session-scoped preferences apply.
	SessionID string

	// Category being shopped.
	Category string

	// Candidates from the catalog, unordered.
	Candidates []catalog.Product

	// Seen products are excluded outright; a turn never re-presents.
	Seen map[string]struct{}

	// Limit caps the returned list. Zero means the configured default.
	Limit int

	// RequestID for tracing.
	RequestID string
}

// Match explains one preference hit on a product.
type Match struct {
	// Attribute key that matched.
	Attribute string `json:"attribute"`

	// Value that matched.
	Value string `json:"value"`

	// Bucket is preferred or avoided.
	Bucket string `json:"bucket"`

	// Hard marks a filter-class preference.
	Hard bool `json:"hard,omitempty"`

	// Transferred marks a preference inherited from another category.
	Transferred bool `json:"transferred,omitempty"`

	// Contribution is the signed score term this match added.
	Contribution float64 `json:"contribution"`
}

// ScoredProduct is one ranked candidate with its explanation.
type ScoredProduct struct {
	// Product is the candidate.
	Product catalog.Product `json:"product"`

	// Score is the final ordering score including exploration noise.
	Score float64 `json:"score"`

	// Base is the preference score before noise. Clarification checks
	// compare bases: noise is exploration, not evidence.
	Base float64 `json:"base_score"`

	// Matches lists the preference hits behind the score, attribute order.
	Matches []Match `json:"matches,omitempty"`
}

// Response is an ordered ranking.
type Response struct {
	// Products best first.
	Products []ScoredProduct `json:"products"`

	// TotalCandidates counts the input.
	TotalCandidates int `json:"total_candidates"`

	// Excluded counts candidates removed by hard constraints or the seen
	// set.
	Excluded int `json:"excluded"`

	// Metadata carries timing and tracing.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata carries timing and tracing information.
type ResponseMetadata struct {
	RequestID string    `json:"request_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Category  string    `json:"category"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Rank filters and orders the request's candidates.
//
// Returns prefs.ErrNoCandidates when the category has no products or hard
// filtering removed every one; the session controller reacts by relaxing the
// most recently hardened constraint.
func (e *Engine) Rank(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Profile == nil {
		return nil, fmt.Errorf("profile required")
	}
	category := prefs.NormalizeValue(req.Category)
	if category == "" {
		return nil, fmt.Errorf("category required")
	}
	if len(req.Candidates) == 0 {
		return nil, fmt.Errorf("category %s is empty: %w", category, prefs.ErrNoCandidates)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	visible := visiblePreferences(req.Profile, category, req.SessionID)

	// Candidates are processed in ID order so noise assignment, and with it
	// the whole ranking, reproduces for a given seed.
	candidates := make([]catalog.Product, len(req.Candidates))
	copy(candidates, req.Candidates)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ProductID < candidates[j].ProductID
	})

	kept := make([]ScoredProduct, 0, len(candidates))
	excluded := 0
	for i := range candidates {
		p := &candidates[i]
		if reason := excludeReason(p, visible, req.Seen); reason != "" {
			excluded++
			continue
		}
		base, matches := scoreProduct(p, visible)
		kept = append(kept, ScoredProduct{Product: *p, Score: base, Base: base, Matches: matches})
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("hard constraints excluded all %d candidates in %s: %w",
			len(candidates), category, prefs.ErrNoCandidates)
	}

	e.addExplorationNoise(kept)

	cat := req.Profile.Category(category)
	sort.Slice(kept, func(i, j int) bool {
		return rankedLess(&kept[i], &kept[j], cat)
	})

	if len(kept) > limit {
		kept = kept[:limit]
	}

	resp := &Response{
		Products:        kept,
		TotalCandidates: len(candidates),
		Excluded:        excluded,
		Metadata: ResponseMetadata{
			RequestID: req.RequestID,
			SessionID: req.SessionID,
			Category:  category,
			LatencyMS: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		},
	}

	metrics.RecordRank(time.Since(start), resp.TotalCandidates)
	logger := logging.Ctx(ctx)
	logger.Debug().
		Str("user_id", req.Profile.UserID).
		Str("category", category).
		Int("candidates", resp.TotalCandidates).
		Int("excluded", excluded).
		Int("returned", len(kept)).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("Ranking complete")

	return resp, nil
}

// visiblePreferences collects the preferences that apply to this category and
// session, sorted by attribute key for stable scoring order.
func visiblePreferences(profile *prefs.UserProfile, category, sessionID string) []*prefs.AttributePreference {
	cat := profile.Category(category)
	if cat == nil {
		return nil
	}

	keys := make([]string, 0, len(cat.Attributes))
	for key := range cat.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	visible := make([]*prefs.AttributePreference, 0, len(keys))
	for _, key := range keys {
		if pref := cat.Attributes[key]; pref.VisibleTo(sessionID) {
			visible = append(visible, pref)
		}
	}
	return visible
}

// excludeReason reports why a candidate must not be presented, or "".
func excludeReason(p *catalog.Product, visible []*prefs.AttributePreference, seen map[string]struct{}) string {
	if _, ok := seen[p.ProductID]; ok {
		return "already presented"
	}

	for _, pref := range visible {
		if pref.WeightClass != prefs.WeightHard {
			continue
		}
		key := pref.Attribute.Key

		for _, value := range sortedValues(pref.Avoided) {
			if p.HasValue(key, value) {
				return fmt.Sprintf("carries avoided %s %q", key, value)
			}
		}

		// A hard preferred set is a requirement, but only judged on
		// attributes the product actually states; missing data is not a
		// violation. Price is always stated.
		if len(pref.Preferred) == 0 || !p.HasAttribute(key) {
			continue
		}
		matched := false
		for _, value := range sortedValues(pref.Preferred) {
			if p.HasValue(key, value) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("outside required %s", key)
		}
	}
	return ""
}

// scoreProduct sums the signed strength*confidence terms over every
// preference hit.
func scoreProduct(p *catalog.Product, visible []*prefs.AttributePreference) (float64, []Match) {
	var score float64
	var matches []Match

	for _, pref := range visible {
		key := pref.Attribute.Key
		hard := pref.WeightClass == prefs.WeightHard
		transferred := pref.Origin == prefs.OriginTransferred

		for _, value := range sortedValues(pref.Preferred) {
			if !p.HasValue(key, value) {
				continue
			}
			c := pref.Preferred[value].Strength * pref.Confidence
			score += c
			matches = append(matches, Match{
				Attribute: key, Value: value, Bucket: "preferred",
				Hard: hard, Transferred: transferred, Contribution: c,
			})
		}
		for _, value := range sortedValues(pref.Avoided) {
			if !p.HasValue(key, value) {
				continue
			}
			c := pref.Avoided[value].Strength * pref.Confidence
			score -= c
			matches = append(matches, Match{
				Attribute: key, Value: value, Bucket: "avoided",
				Hard: hard, Transferred: transferred, Contribution: -c,
			})
		}
	}
	return score, matches
}

// addExplorationNoise perturbs scores by a bounded term proportional to the
// score spread. Identical bases stay identical, so exploration never
// overrides the tie-break chain on a flat field.
func (e *Engine) addExplorationNoise(items []ScoredProduct) {
	if e.config.ExplorationAmplitude <= 0 || len(items) < 2 {
		return
	}

	lo, hi := items[0].Base, items[0].Base
	for i := 1; i < len(items); i++ {
		if items[i].Base < lo {
			lo = items[i].Base
		}
		if items[i].Base > hi {
			hi = items[i].Base
		}
	}
	span := hi - lo
	if span <= 0 {
		return
	}

	amp := e.config.ExplorationAmplitude * span
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	for i := range items {
		items[i].Score = items[i].Base + (e.rng.Float64()*2-1)*amp
	}
}

// rankedLess orders by score, then by the tie-break chain: fewer recorded
// rejections for the product's brand, higher interest over the product's
// stated attributes, catalog freshness, ascending product ID.
func rankedLess(a, b *ScoredProduct, cat *prefs.CategoryProfile) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	ra, rb := brandRejections(cat, &a.Product), brandRejections(cat, &b.Product)
	if ra != rb {
		return ra < rb
	}

	ia, ib := interestSum(cat, &a.Product), interestSum(cat, &b.Product)
	if ia != ib {
		return ia > ib
	}

	if !a.Product.AddedAt.Equal(b.Product.AddedAt) {
		return a.Product.AddedAt.After(b.Product.AddedAt)
	}
	return a.Product.ProductID < b.Product.ProductID
}

func brandRejections(cat *prefs.CategoryProfile, p *catalog.Product) int64 {
	if cat == nil || p.Brand == "" {
		return 0
	}
	return cat.RejectionsByBrand[p.Brand]
}

func interestSum(cat *prefs.CategoryProfile, p *catalog.Product) int64 {
	if cat == nil {
		return 0
	}
	var sum int64
	for key, pref := range cat.Attributes {
		if pref.Interest > 0 && p.HasAttribute(key) {
			sum += pref.Interest
		}
	}
	return sum
}

func sortedValues(m map[string]*prefs.ValueEntry) []string {
	values := make([]string, 0, len(m))
	for v := range m {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
