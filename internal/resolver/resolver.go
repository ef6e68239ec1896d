// Package resolver implements the three-tier rule-source resolution chain:
// rule store (keyed by program id) → compile-time firm preset → explicit
// custom Rules. Whichever tier succeeds first wins; tiers are never mixed.
package resolver

import (
	"context"
	"errors"
	"log"

	"compliance-monitor/internal/rules"
)

// ErrRuleSourceUnavailable is returned when none of the three tiers produce
// a Rules value.
var ErrRuleSourceUnavailable = errors.New("resolver: no rule source available for this firm/program")

// SourceTag records which tier produced a resolved Rules, for audit.
type SourceTag string

const (
	SourceDB     SourceTag = "db"
	SourcePreset SourceTag = "preset"
	SourceCustom SourceTag = "custom"
)

// Store is the read-only interface this package needs from the rule store.
// *pkg/store.DB satisfies it; tests substitute a counting fake to verify
// tier ordering.
type Store interface {
	LookupRules(ctx context.Context, firm, programID string) (rules.Rules, bool, error)
}

// Preset is the interface this package needs from the compile-time preset
// registry.
type Preset interface {
	Lookup(firm, programID string) (rules.Rules, bool)
}

// Resolver holds the two collaborators needed by tiers 1 and 2. The custom
// tier needs nothing beyond what's passed to Resolve.
type Resolver struct {
	store   Store
	presets Preset
}

// New constructs a Resolver. store may be nil, in which case the database
// tier is always treated as a miss (useful for the review-API-without-a-store
// configuration, and for tests of the preset/custom tiers alone).
func New(store Store, presets Preset) *Resolver {
	return &Resolver{store: store, presets: presets}
}

// Resolve implements the strict three-tier lookup. inlineCustom is used
// verbatim as the third tier when supplied; pass a nil pointer when the
// caller has no custom Rules to offer.
func (r *Resolver) Resolve(ctx context.Context, firm, programID string, inlineCustom *rules.Rules) (rules.Rules, SourceTag, error) {
	if programID != "" && r.store != nil {
		resolved, found, err := r.store.LookupRules(ctx, firm, programID)
		if err != nil {
			log.Printf("resolver: store lookup for (%s, %s) failed, treating as tier miss: %v", firm, programID, err)
		} else if found {
			return resolved, SourceDB, nil
		}
	}

	if r.presets != nil {
		if resolved, found := r.presets.Lookup(firm, programID); found {
			return resolved, SourcePreset, nil
		}
	}

	if inlineCustom != nil {
		return *inlineCustom, SourceCustom, nil
	}

	return rules.Rules{}, "", ErrRuleSourceUnavailable
}
