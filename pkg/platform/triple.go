// Package platform resolves target-triple patterns and platform tiers into a
// set of concrete compilation targets, and evaluates the target-conditional
// expressions (`cfg(...)` or plain triples) that dependency edges carry.
//
// A target triple is the structured identifier rustc uses for a compilation
// target: architecture-vendor-os[-environment], e.g.
// "x86_64-unknown-linux-gnu" or "aarch64-apple-darwin". Patterns may replace
// whole segments with "*", so "*-unknown-linux-gnu" covers every architecture
// on GNU/Linux.
package platform

import (
	"strings"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// Triple is a parsed target triple. Env is empty for three-segment triples
// such as "x86_64-apple-darwin".
type Triple struct {
	Arch   string
	Vendor string
	OS     string
	Env    string
}

// ParseTriple parses a concrete triple of the form arch-vendor-os or
// arch-vendor-os-env. Wildcard segments are rejected; use ParsePattern for
// patterns.
func ParseTriple(s string) (Triple, error) {
	p, err := ParsePattern(s)
	if err != nil {
		return Triple{}, err
	}
	if p.HasWildcard() {
		return Triple{}, errors.New(errors.ErrCodeConfigPlatform, "wildcard segment in concrete triple %q", s)
	}
	return Triple{Arch: p.Arch, Vendor: p.Vendor, OS: p.OS, Env: p.Env}, nil
}

// String reassembles the triple into its canonical dashed form.
func (t Triple) String() string {
	parts := []string{t.Arch, t.Vendor, t.OS}
	if t.Env != "" {
		parts = append(parts, t.Env)
	}
	return strings.Join(parts, "-")
}

// TargetOS returns the value of the cfg key `target_os` for this triple.
// The os segment maps almost directly; the one notable exception is that
// rustc spells the Darwin segment "macos" in cfg space.
func (t Triple) TargetOS() string {
	if t.OS == "darwin" {
		return "macos"
	}
	return t.OS
}

// TargetFamily returns "windows" or "unix", matching the bare `windows` and
// `unix` cfg predicates. Every non-Windows target in the supported tier
// tables is a Unix family member.
func (t Triple) TargetFamily() string {
	if t.OS == "windows" {
		return "windows"
	}
	return "unix"
}

// Pattern is a triple pattern where any segment may be the wildcard "*".
// A nil env wildcard matches both three- and four-segment triples.
type Pattern struct {
	Arch   string
	Vendor string
	OS     string
	Env    string // empty means "no env segment", "*" matches any

	raw      string
	segments int
}

// ParsePattern parses a triple pattern with optional "*" wildcard segments.
func ParsePattern(s string) (Pattern, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 && len(parts) != 4 {
		return Pattern{}, errors.New(errors.ErrCodeConfigPlatform, "invalid target triple %q: want 3 or 4 dash-separated segments", s)
	}
	for _, part := range parts {
		if part == "" {
			return Pattern{}, errors.New(errors.ErrCodeConfigPlatform, "invalid target triple %q: empty segment", s)
		}
	}
	p := Pattern{
		Arch:     parts[0],
		Vendor:   parts[1],
		OS:       parts[2],
		raw:      s,
		segments: len(parts),
	}
	if len(parts) == 4 {
		p.Env = parts[3]
	}
	return p, nil
}

// String returns the pattern as originally written.
func (p Pattern) String() string { return p.raw }

// HasWildcard reports whether any segment of the pattern is "*".
func (p Pattern) HasWildcard() bool {
	return p.Arch == "*" || p.Vendor == "*" || p.OS == "*" || p.Env == "*"
}

// Matches reports whether the concrete triple t satisfies the pattern.
// Segment counts must agree unless the env segment is wildcarded.
func (p Pattern) Matches(t Triple) bool {
	if !segMatch(p.Arch, t.Arch) || !segMatch(p.Vendor, t.Vendor) || !segMatch(p.OS, t.OS) {
		return false
	}
	switch {
	case p.segments == 3:
		return t.Env == ""
	case p.Env == "*":
		return true
	default:
		return p.Env == t.Env
	}
}

// MatchesString parses s as a triple and applies the pattern. Unparsable
// strings never match.
func (p Pattern) MatchesString(s string) bool {
	t, err := ParseTriple(s)
	if err != nil {
		return false
	}
	return p.Matches(t)
}

func segMatch(pat, seg string) bool {
	return pat == "*" || pat == seg
}
