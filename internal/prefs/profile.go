// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

package prefs

import (
	"fmt"
	"time"
)

// Scope controls whether a preference applies only to the session that
// produced it or persists across sessions.
type Scope string

const (
	// ScopeSession preferences are visible only to the session that created
	// them. They never leak into other sessions for the same user.
	ScopeSession Scope = "session"

	// ScopeLongTerm preferences persist across sessions. Promotion happens
	// when confidence crosses the configured threshold.
	ScopeLongTerm Scope = "long_term"
)

// IsValid reports whether the scope is one of the declared constants.
func (s Scope) IsValid() bool {
	return s == ScopeSession || s == ScopeLongTerm
}

// WeightClass controls how a preference participates in ranking.
type WeightClass string

const (
	// WeightSoft preferences adjust the ranking score but never exclude.
	WeightSoft WeightClass = "soft"

	// WeightHard preferences act as filters: violation means exclusion.
	WeightHard WeightClass = "hard"
)

// IsValid reports whether the weight class is one of the declared constants.
func (w WeightClass) IsValid() bool {
	return w == WeightSoft || w == WeightHard
}

// Origin records how a preference entered the profile.
type Origin string

const (
	// OriginDirect preferences come from a signal in their own category,
	// including transparency drawer edits by the user.
	OriginDirect Origin = "direct"

	// OriginInferred preferences are derived from behavior patterns rather
	// than an explicit statement.
	OriginInferred Origin = "inferred"

	// OriginTransferred preferences were propagated from another category.
	// Their confidence is capped and they cannot harden until a direct
	// signal in their own category corroborates them.
	OriginTransferred Origin = "transferred"
)

// IsValid reports whether the origin is one of the declared constants.
func (o Origin) IsValid() bool {
	return o == OriginDirect || o == OriginInferred || o == OriginTransferred
}

// ValueEntry is one value inside a preference bucket with its learned
// strength and reinforcement history.
type ValueEntry struct {
	// Strength in [0,1]. Updated with an exponential approach to 1 so
	// repeated reinforcement saturates instead of overshooting.
	Strength float64 `json:"strength"`

	// Reinforcements counts every signal that touched this entry.
	Reinforcements int `json:"reinforcements"`

	// Streak counts consecutive reinforcements at or above the hard
	// promotion strength floor. A contradiction or a weak signal resets it.
	Streak int `json:"streak"`

	// FirstSeen is when the value entered the bucket.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is the most recent reinforcement.
	LastSeen time.Time `json:"last_seen"`
}

// Clone returns a copy of the entry.
func (e *ValueEntry) Clone() *ValueEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// AttributePreference is the atomic unit of learning: everything the engine
// believes about one attribute within one category.
type AttributePreference struct {
	// Attribute identifies the dimension, known kind or opaque extension.
	Attribute Attribute `json:"attribute"`

	// Preferred maps value to its entry. Values here raise a candidate's
	// score on match.
	Preferred map[string]*ValueEntry `json:"preferred"`

	// Avoided maps value to its entry. Values here lower a candidate's
	// score, or exclude it outright at hard weight.
	Avoided map[string]*ValueEntry `json:"avoided"`

	// Scope is session or long_term.
	Scope Scope `json:"scope"`

	// SessionID pins session-scoped preferences to the session that created
	// them. Empty once promoted to long_term.
	SessionID string `json:"session_id,omitempty"`

	// WeightClass is soft (scoring term) or hard (filter).
	WeightClass WeightClass `json:"weight_class"`

	// Confidence in [0,1]: rises with reinforcement, decays with
	// contradiction or inactivity.
	Confidence float64 `json:"confidence"`

	// Origin is direct, inferred, or transferred.
	Origin Origin `json:"origin"`

	// Interest counts question-polarity signals about this attribute. Used
	// only as a ranking tie-break, never as a bucket entry.
	Interest int64 `json:"interest,omitempty"`

	// CreatedAt is when the preference first appeared.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the most recent mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAttributePreference creates an empty preference for attr with session
// scope and soft weight, the defaults every new preference starts from.
func NewAttributePreference(attr Attribute, sessionID string, now time.Time) *AttributePreference {
	return &AttributePreference{
		Attribute:   attr,
		Preferred:   make(map[string]*ValueEntry),
		Avoided:     make(map[string]*ValueEntry),
		Scope:       ScopeSession,
		SessionID:   sessionID,
		WeightClass: WeightSoft,
		Origin:      OriginDirect,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of the preference.
func (p *AttributePreference) Clone() *AttributePreference {
	if p == nil {
		return nil
	}
	c := *p
	c.Preferred = make(map[string]*ValueEntry, len(p.Preferred))
	for v, e := range p.Preferred {
		c.Preferred[v] = e.Clone()
	}
	c.Avoided = make(map[string]*ValueEntry, len(p.Avoided))
	for v, e := range p.Avoided {
		c.Avoided[v] = e.Clone()
	}
	return &c
}

// VisibleTo reports whether the preference applies in the given session.
// Long-term preferences apply everywhere; session-scoped ones only inside
// the session that created them.
func (p *AttributePreference) VisibleTo(sessionID string) bool {
	if p.Scope == ScopeLongTerm {
		return true
	}
	return p.SessionID != "" && p.SessionID == sessionID
}

// Validate checks the preference invariants.
func (p *AttributePreference) Validate() error {
	if !p.Scope.IsValid() {
		return fmt.Errorf("attribute %s: invalid scope %q", p.Attribute.Key, p.Scope)
	}
	if !p.WeightClass.IsValid() {
		return fmt.Errorf("attribute %s: invalid weight class %q", p.Attribute.Key, p.WeightClass)
	}
	if !p.Origin.IsValid() {
		return fmt.Errorf("attribute %s: invalid origin %q", p.Attribute.Key, p.Origin)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("attribute %s: confidence %f outside [0,1]", p.Attribute.Key, p.Confidence)
	}
	for value, entry := range p.Preferred {
		if entry.Strength < 0 || entry.Strength > 1 {
			return fmt.Errorf("attribute %s: preferred %q strength %f outside [0,1]", p.Attribute.Key, value, entry.Strength)
		}
		if _, dup := p.Avoided[value]; dup {
			return fmt.Errorf("attribute %s: value %q present in both buckets", p.Attribute.Key, value)
		}
	}
	for value, entry := range p.Avoided {
		if entry.Strength < 0 || entry.Strength > 1 {
			return fmt.Errorf("attribute %s: avoided %q strength %f outside [0,1]", p.Attribute.Key, value, entry.Strength)
		}
	}
	return nil
}

// CategoryProfile holds everything learned about one product category.
type CategoryProfile struct {
	// Category is the category name ("shoe", "tshirt").
	Category string `json:"category"`

	// Attributes maps attribute key to its preference.
	Attributes map[string]*AttributePreference `json:"attributes"`

	// Size is the user's scalar size in this category, when known.
	Size string `json:"size,omitempty"`

	// Confidence is the recency-weighted average of attribute confidences.
	Confidence float64 `json:"confidence"`

	// Selections counts good interactions in this category. Monotonic.
	Selections int64 `json:"selections"`

	// Rejections counts bad interactions in this category. Monotonic.
	Rejections int64 `json:"rejections"`

	// RejectionsByBrand tallies rejections per brand for the ranking
	// tie-break. Monotonic per key.
	RejectionsByBrand map[string]int64 `json:"rejections_by_brand,omitempty"`

	// LastInteraction is the most recent signal or interaction.
	LastInteraction time.Time `json:"last_interaction"`
}

// NewCategoryProfile creates an empty category profile.
func NewCategoryProfile(category string, now time.Time) *CategoryProfile {
	return &CategoryProfile{
		Category:          category,
		Attributes:        make(map[string]*AttributePreference),
		RejectionsByBrand: make(map[string]int64),
		LastInteraction:   now,
	}
}

// Preference returns the preference for the attribute key, or nil.
func (c *CategoryProfile) Preference(key string) *AttributePreference {
	return c.Attributes[key]
}

// EnsurePreference returns the preference for attr, creating it when absent.
func (c *CategoryProfile) EnsurePreference(attr Attribute, sessionID string, now time.Time) *AttributePreference {
	if p, ok := c.Attributes[attr.Key]; ok {
		return p
	}
	p := NewAttributePreference(attr, sessionID, now)
	c.Attributes[attr.Key] = p
	return p
}

// RecordRejection bumps the monotonic rejection counters.
func (c *CategoryProfile) RecordRejection(brand string, now time.Time) {
	c.Rejections++
	if brand != "" {
		if c.RejectionsByBrand == nil {
			c.RejectionsByBrand = make(map[string]int64)
		}
		c.RejectionsByBrand[brand]++
	}
	c.LastInteraction = now
}

// RecordSelection bumps the monotonic selection counter.
func (c *CategoryProfile) RecordSelection(now time.Time) {
	c.Selections++
	c.LastInteraction = now
}

// Clone returns a deep copy of the category profile.
func (c *CategoryProfile) Clone() *CategoryProfile {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Attributes = make(map[string]*AttributePreference, len(c.Attributes))
	for k, p := range c.Attributes {
		cp.Attributes[k] = p.Clone()
	}
	cp.RejectionsByBrand = make(map[string]int64, len(c.RejectionsByBrand))
	for k, v := range c.RejectionsByBrand {
		cp.RejectionsByBrand[k] = v
	}
	return &cp
}

// Validate checks the category invariants.
func (c *CategoryProfile) Validate() error {
	if c.Category == "" {
		return fmt.Errorf("category profile missing category name")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("category %s: confidence %f outside [0,1]", c.Category, c.Confidence)
	}
	if c.Selections < 0 || c.Rejections < 0 {
		return fmt.Errorf("category %s: negative interaction counter", c.Category)
	}
	for key, p := range c.Attributes {
		if key != p.Attribute.Key {
			return fmt.Errorf("category %s: attribute stored under %q but keyed %q", c.Category, key, p.Attribute.Key)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", c.Category, err)
		}
	}
	return nil
}

// UserProfile is the root of one user's preference model. The Version field
// belongs to the store layer: every successful put bumps it, and a put with
// a stale version fails with ErrVersionConflict.
type UserProfile struct {
	// UserID identifies the user. Unique per profile.
	UserID string `json:"user_id"`

	// Categories maps category name to its profile.
	Categories map[string]*CategoryProfile `json:"categories"`

	// Confidence is the recency-weighted average of category confidences.
	Confidence float64 `json:"confidence"`

	// TotalSelections counts good interactions across categories. Monotonic.
	TotalSelections int64 `json:"total_selections"`

	// TotalRejections counts bad interactions across categories. Monotonic.
	TotalRejections int64 `json:"total_rejections"`

	// CreatedAt is when the profile was first created.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is bumped on every successful store write.
	LastUpdated time.Time `json:"last_updated"`

	// Version is the optimistic concurrency counter.
	Version uint64 `json:"version"`
}

// NewUserProfile creates an empty profile for userID.
func NewUserProfile(userID string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:      userID,
		Categories:  make(map[string]*CategoryProfile),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Category returns the profile for the category name, or nil.
func (u *UserProfile) Category(name string) *CategoryProfile {
	return u.Categories[name]
}

// EnsureCategory returns the category profile, creating it lazily on first
// reference.
func (u *UserProfile) EnsureCategory(name string, now time.Time) *CategoryProfile {
	if c, ok := u.Categories[name]; ok {
		return c
	}
	c := NewCategoryProfile(name, now)
	u.Categories[name] = c
	return c
}

// TouchedCategories returns the names of all categories the user has touched,
// excluding the given one. Used by cross-category transfer.
func (u *UserProfile) TouchedCategories(except string) []string {
	names := make([]string, 0, len(u.Categories))
	for name := range u.Categories {
		if name != except {
			names = append(names, name)
		}
	}
	return names
}

// Clone returns a deep copy of the profile. Ranking passes work against a
// clone so concurrent writes never affect an in-flight turn.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	c.Categories = make(map[string]*CategoryProfile, len(u.Categories))
	for name, cat := range u.Categories {
		c.Categories[name] = cat.Clone()
	}
	return &c
}

// Validate checks every invariant in the profile tree.
func (u *UserProfile) Validate() error {
	if u.UserID == "" {
		return fmt.Errorf("profile missing user_id")
	}
	if u.Confidence < 0 || u.Confidence > 1 {
		return fmt.Errorf("profile %s: confidence %f outside [0,1]", u.UserID, u.Confidence)
	}
	if u.TotalSelections < 0 || u.TotalRejections < 0 {
		return fmt.Errorf("profile %s: negative interaction counter", u.UserID)
	}
	for name, cat := range u.Categories {
		if name != cat.Category {
			return fmt.Errorf("profile %s: category stored under %q but named %q", u.UserID, name, cat.Category)
		}
		if err := cat.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", u.UserID, err)
		}
	}
	return nil
}

// clamp01 bounds v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp01 bounds v to [0,1]. Exported for the packages that apply strength
// and confidence arithmetic.
func Clamp01(v float64) float64 {
	return clamp01(v)
}
