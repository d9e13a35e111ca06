// Package policy assembles the immutable filtering policy a vendoring run
// operates under.
//
// Policy values are merged once from two loosely-typed sources — the
// `[package.metadata.vendor-filter]` table in Cargo.toml and explicit
// command-line flags, flags winning — and compiled into a canonical Policy
// before any graph or filesystem work starts. The core never re-reads
// configuration mid-pipeline.
package policy

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sievetools/cratesieve/pkg/errors"
	"github.com/sievetools/cratesieve/pkg/graph"
	"github.com/sievetools/cratesieve/pkg/platform"
)

// DepKinds selects which dependency-edge kinds the traversal keeps.
type DepKinds string

// The supported keep-dep-kinds selectors.
const (
	DepKindsAll      DepKinds = "all"
	DepKindsNormal   DepKinds = "normal"
	DepKindsBuild    DepKinds = "build"
	DepKindsDev      DepKinds = "dev"
	DepKindsNoNormal DepKinds = "no-normal"
	DepKindsNoBuild  DepKinds = "no-build"
	DepKindsNoDev    DepKinds = "no-dev"
)

// ParseDepKinds validates a keep-dep-kinds value. Empty means "all".
func ParseDepKinds(s string) (DepKinds, error) {
	switch DepKinds(s) {
	case "":
		return DepKindsAll, nil
	case DepKindsAll, DepKindsNormal, DepKindsBuild, DepKindsDev,
		DepKindsNoNormal, DepKindsNoBuild, DepKindsNoDev:
		return DepKinds(s), nil
	default:
		return "", errors.New(errors.ErrCodeConfigDepKinds,
			"unsupported keep-dep-kinds %q: want all, normal, build, dev, no-normal, no-build, or no-dev", s)
	}
}

// Allows reports whether edges of the given kind are kept.
func (k DepKinds) Allows(kind graph.DepKind) bool {
	switch k {
	case DepKindsAll, "":
		return true
	case DepKindsNormal:
		return kind == graph.KindNormal
	case DepKindsBuild:
		return kind == graph.KindBuild
	case DepKindsDev:
		return kind == graph.KindDev
	case DepKindsNoNormal:
		return kind != graph.KindNormal
	case DepKindsNoBuild:
		return kind != graph.KindBuild
	case DepKindsNoDev:
		return kind != graph.KindDev
	default:
		return false
	}
}

// ExcludeRule removes a sub-path glob from crates whose name matches.
// Crate is an exact crate name or "*" for every crate. Path is a glob
// resolved against the crate root, supporting `*` and recursive `**`.
type ExcludeRule struct {
	Crate string
	Path  string
}

// ParseExcludeRule parses the "crate#path" rule syntax used by both the
// --exclude-crate-path flag and the exclude-crate-paths config key.
func ParseExcludeRule(s string) (ExcludeRule, error) {
	crate, path, found := strings.Cut(s, "#")
	if !found || crate == "" || path == "" {
		return ExcludeRule{}, errors.New(errors.ErrCodeConfigExclude,
			"invalid exclude rule %q: want \"crate#path\" (crate may be *)", s)
	}
	if !doublestar.ValidatePattern(path) {
		return ExcludeRule{}, errors.New(errors.ErrCodeConfigExclude,
			"invalid exclude rule %q: bad path glob %q", s, path)
	}
	return ExcludeRule{Crate: crate, Path: path}, nil
}

// AppliesTo reports whether the rule targets the named crate.
func (r ExcludeRule) AppliesTo(name string) bool {
	return r.Crate == "*" || r.Crate == name
}

// String returns the rule in its crate#path spelling.
func (r ExcludeRule) String() string { return r.Crate + "#" + r.Path }

// Policy is the compiled, immutable filter policy for one run.
type Policy struct {
	// Platforms is the resolved platform set edges are tested against.
	Platforms *platform.Set
	// AllFeatures disables feature gating entirely.
	AllFeatures bool
	// KeepDepKinds selects the edge kinds the traversal follows.
	KeepDepKinds DepKinds
	// Exclude lists the crate sub-path exclusion rules.
	Exclude []ExcludeRule
}

// Input is the pre-compilation policy surface shared by the config file
// and the flag layer. Nil pointer fields mean "not specified here".
type Input struct {
	Platforms         []string
	Tier              *string
	AllFeatures       *bool
	KeepDepKinds      *string
	ExcludeCratePaths []string
}

// Merge overlays override onto base, field by field. Specified override
// fields win; platform and exclude lists replace rather than append, so a
// flag-provided list fully supersedes the file-declared one.
func Merge(base, override Input) Input {
	out := base
	if len(override.Platforms) > 0 {
		out.Platforms = override.Platforms
	}
	if override.Tier != nil {
		out.Tier = override.Tier
	}
	if override.AllFeatures != nil {
		out.AllFeatures = override.AllFeatures
	}
	if override.KeepDepKinds != nil {
		out.KeepDepKinds = override.KeepDepKinds
	}
	if len(override.ExcludeCratePaths) > 0 {
		out.ExcludeCratePaths = override.ExcludeCratePaths
	}
	return out
}

// Compile validates the merged input and produces the immutable Policy.
func Compile(in Input) (*Policy, error) {
	tierStr := ""
	if in.Tier != nil {
		tierStr = *in.Tier
	}
	tier, err := platform.ParseTier(tierStr)
	if err != nil {
		return nil, err
	}

	set, err := platform.Resolve(in.Platforms, tier)
	if err != nil {
		return nil, err
	}

	kindsStr := ""
	if in.KeepDepKinds != nil {
		kindsStr = *in.KeepDepKinds
	}
	kinds, err := ParseDepKinds(kindsStr)
	if err != nil {
		return nil, err
	}

	rules := make([]ExcludeRule, 0, len(in.ExcludeCratePaths))
	for _, raw := range in.ExcludeCratePaths {
		rule, err := ParseExcludeRule(raw)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	p := &Policy{
		Platforms:    set,
		KeepDepKinds: kinds,
		Exclude:      rules,
	}
	if in.AllFeatures != nil {
		p.AllFeatures = *in.AllFeatures
	}
	return p, nil
}
