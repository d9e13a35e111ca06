package platform

import (
	"strings"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// Set is the resolved platform set a policy restricts vendoring to. It is
// built once per run by Resolve and then shared read-only across the whole
// selection pass.
//
// Wildcard patterns are expanded against the known tier-1/tier-2 triple
// universe so that cfg() expressions can be evaluated member-by-member; the
// original patterns are kept as well so plain-triple target strings outside
// the universe still match.
type Set struct {
	all      bool
	triples  []Triple
	patterns []Pattern
}

// Resolve builds a Set from triple patterns and an optional tier. Tier
// targets are unioned (OR) with the explicit patterns; this is the
// documented interpretation of combining --tier with --platform.
//
// Specifying two or more exact (wildcard-free) patterns is rejected:
// multiple disjoint concrete platforms are not a supported configuration.
// An empty pattern list with no tier means "match everything".
func Resolve(patterns []string, tier Tier) (*Set, error) {
	if len(patterns) == 0 && tier == TierNone {
		return &Set{all: true}, nil
	}

	var (
		parsed []Pattern
		exact  []string
	)
	for _, raw := range patterns {
		p, err := ParsePattern(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
		if !p.HasWildcard() {
			exact = append(exact, raw)
		}
	}
	if len(exact) > 1 {
		return nil, errors.New(errors.ErrCodeConfigPlatform,
			"multiple exact platforms requested (%s): filtering for several disjoint concrete targets is not supported, use wildcard patterns or --tier instead",
			strings.Join(exact, ", "))
	}

	s := &Set{}
	seen := make(map[string]bool)
	add := func(t Triple) {
		key := t.String()
		if !seen[key] {
			seen[key] = true
			s.triples = append(s.triples, t)
		}
	}

	for _, p := range parsed {
		if !p.HasWildcard() {
			add(Triple{Arch: p.Arch, Vendor: p.Vendor, OS: p.OS, Env: p.Env})
			continue
		}
		s.patterns = append(s.patterns, p)
		for _, t := range knownTriples {
			if p.Matches(t) {
				add(t)
			}
		}
	}
	for _, t := range tier.Targets() {
		add(t)
	}
	return s, nil
}

// All reports whether the set matches every target unconditionally.
func (s *Set) All() bool { return s.all }

// Triples returns the concrete members of the set in resolution order.
func (s *Set) Triples() []Triple { return s.triples }

// Matches reports whether a dependency's target restriction is satisfiable
// by at least one member of the set. The target is either a plain triple
// string ("x86_64-pc-windows-gnu") or a cfg expression ("cfg(windows)").
// An empty target means the edge is unconditional and always matches.
func (s *Set) Matches(target string) (bool, error) {
	target = strings.TrimSpace(target)
	if target == "" || s.all {
		return true, nil
	}

	if strings.HasPrefix(target, "cfg(") {
		expr, err := ParseCfg(target)
		if err != nil {
			return false, err
		}
		for _, t := range s.triples {
			if expr.Eval(t) {
				return true, nil
			}
		}
		return false, nil
	}

	for _, t := range s.triples {
		if t.String() == target {
			return true, nil
		}
	}
	for _, p := range s.patterns {
		if p.MatchesString(target) {
			return true, nil
		}
	}
	return false, nil
}
