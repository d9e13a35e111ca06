package selector

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/sievetools/cratesieve/pkg/graph"
	"github.com/sievetools/cratesieve/pkg/policy"
)

// testGraph builds a graph from a compact description: each entry maps a
// package name to its outgoing edges. Versions default to 1.0.0.
type testPkg struct {
	version  string
	features map[string][]string
	deps     []graph.Dependency
}

func buildGraph(t *testing.T, pkgs map[string]testPkg, roots ...string) *graph.Graph {
	t.Helper()
	var nodes []*graph.Package
	for name, tp := range pkgs {
		version := tp.version
		if version == "" {
			version = "1.0.0"
		}
		v, err := semver.NewVersion(version)
		if err != nil {
			t.Fatalf("version %q: %v", version, err)
		}
		nodes = append(nodes, &graph.Package{
			ID:           graph.ID(name),
			Name:         name,
			Version:      v,
			Source:       "registry+https://github.com/rust-lang/crates.io-index",
			Dependencies: tp.deps,
			Features:     tp.features,
		})
	}
	var rootIDs []graph.ID
	for _, r := range roots {
		rootIDs = append(rootIDs, graph.ID(r))
	}
	g, err := graph.New(nodes, rootIDs)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	return g
}

func compile(t *testing.T, in policy.Input) *policy.Policy {
	t.Helper()
	p, err := policy.Compile(in)
	if err != nil {
		t.Fatalf("policy.Compile: %v", err)
	}
	return p
}

func names(pkgs []*graph.Package) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Name
	}
	return out
}

func assertSelected(t *testing.T, got []*graph.Package, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("selected %v, want %v", names(got), want)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("selected %v, want %v", names(got), want)
		}
	}
}

func strPtr(s string) *string { return &s }

// The canonical filtering scenario: A is a plain normal dependency, B is
// windows-only, C is dev-only. A Linux no-dev policy keeps only A.
func TestSelectPlatformAndKindGating(t *testing.T) {
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{
			{Name: "a", Pkg: "a", Kind: graph.KindNormal},
			{Name: "b", Pkg: "b", Kind: graph.KindNormal, Target: "cfg(windows)"},
			{Name: "c", Pkg: "c", Kind: graph.KindDev},
		}},
		"a": {}, "b": {}, "c": {},
	}, "root")

	p := compile(t, policy.Input{
		Platforms:    []string{"x86_64-unknown-linux-gnu"},
		KeepDepKinds: strPtr("no-dev"),
	})

	selected, err := Select(g, p)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, selected, "a", "root")
}

func TestSelectKeepsTransitivelyReachable(t *testing.T) {
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{{Name: "a", Pkg: "a", Kind: graph.KindNormal}}},
		"a":    {deps: []graph.Dependency{{Name: "b", Pkg: "b", Kind: graph.KindNormal}}},
		"b":    {deps: []graph.Dependency{{Name: "c", Pkg: "c", Kind: graph.KindNormal}}},
		"c":    {},
	}, "root")

	selected, err := Select(g, compile(t, policy.Input{}))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, selected, "a", "b", "c", "root")
}

func TestSelectPrunesDevOnlySubtree(t *testing.T) {
	// dev-only reaches "devdep" which reaches "shared"; "shared" is also a
	// normal dependency and must survive no-dev pruning.
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{
			{Name: "devdep", Pkg: "devdep", Kind: graph.KindDev},
			{Name: "shared", Pkg: "shared", Kind: graph.KindNormal},
		}},
		"devdep": {deps: []graph.Dependency{
			{Name: "devonly", Pkg: "devonly", Kind: graph.KindNormal},
			{Name: "shared", Pkg: "shared", Kind: graph.KindNormal},
		}},
		"devonly": {},
		"shared":  {},
	}, "root")

	selected, err := Select(g, compile(t, policy.Input{KeepDepKinds: strPtr("no-dev")}))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, selected, "root", "shared")
}

func TestSelectDevOnlySelector(t *testing.T) {
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{
			{Name: "normal", Pkg: "normal", Kind: graph.KindNormal},
			{Name: "devdep", Pkg: "devdep", Kind: graph.KindDev},
		}},
		"normal": {},
		"devdep": {},
	}, "root")

	selected, err := Select(g, compile(t, policy.Input{KeepDepKinds: strPtr("dev")}))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, selected, "devdep", "root")
}

func TestSelectRetainsAllVersions(t *testing.T) {
	v1 := testPkg{version: "1.0.0"}
	v2 := testPkg{version: "2.0.0"}
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{
			{Name: "dep", Pkg: "dep-v1", Kind: graph.KindNormal},
			{Name: "mid", Pkg: "mid", Kind: graph.KindNormal},
		}},
		"mid":    {deps: []graph.Dependency{{Name: "dep", Pkg: "dep-v2", Kind: graph.KindNormal}}},
		"dep-v1": v1,
		"dep-v2": v2,
	}, "root")
	// Give both versions the same crate name.
	for _, id := range []graph.ID{"dep-v1", "dep-v2"} {
		pkg, _ := g.Package(id)
		pkg.Name = "dep"
	}

	selected, err := Select(g, compile(t, policy.Input{}))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, selected, "dep", "dep", "mid", "root")
	if selected[0].Version.String() != "1.0.0" || selected[1].Version.String() != "2.0.0" {
		t.Errorf("versions not ordered: %s, %s", selected[0].Version, selected[1].Version)
	}
}

func TestSelectFeatureGating(t *testing.T) {
	deps := map[string]testPkg{
		"root": {
			features: map[string][]string{"default": {}, "extras": {"dep:optdep"}},
			deps: []graph.Dependency{
				{Name: "optdep", Pkg: "optdep", Kind: graph.KindNormal, Optional: true, RequiredFeatures: []string{"optdep"}},
			},
		},
		"optdep": {},
	}

	t.Run("OptionalEdgeSkippedByDefault", func(t *testing.T) {
		g := buildGraph(t, deps, "root")
		selected, err := Select(g, compile(t, policy.Input{}))
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		assertSelected(t, selected, "root")
	})

	t.Run("AllFeaturesSkipsGating", func(t *testing.T) {
		g := buildGraph(t, deps, "root")
		all := true
		selected, err := Select(g, compile(t, policy.Input{AllFeatures: &all}))
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		assertSelected(t, selected, "optdep", "root")
	})

	t.Run("DefaultFeatureEnablesOptional", func(t *testing.T) {
		withDefault := map[string]testPkg{
			"root": {
				features: map[string][]string{"default": {"extras"}, "extras": {"dep:optdep"}},
				deps: []graph.Dependency{
					{Name: "optdep", Pkg: "optdep", Kind: graph.KindNormal, Optional: true, RequiredFeatures: []string{"optdep"}},
				},
			},
			"optdep": {},
		}
		g := buildGraph(t, withDefault, "root")
		selected, err := Select(g, compile(t, policy.Input{}))
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		assertSelected(t, selected, "optdep", "root")
	})
}

func TestSelectFeaturePropagationFixpoint(t *testing.T) {
	// root enables feature "extra" on mid via the edge, which in turn
	// un-gates mid's optional dependency. The fixpoint revisit of mid has
	// to pick it up.
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{
			{Name: "mid", Pkg: "mid", Kind: graph.KindNormal, EnablesFeatures: []string{"extra"}},
		}},
		"mid": {
			features: map[string][]string{"extra": {"dep:leaf"}},
			deps: []graph.Dependency{
				{Name: "leaf", Pkg: "leaf", Kind: graph.KindNormal, Optional: true, RequiredFeatures: []string{"leaf"}},
			},
		},
		"leaf": {},
	}, "root")

	selected, err := Select(g, compile(t, policy.Input{}))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, selected, "leaf", "mid", "root")
}

func TestSelectUnsatisfiableTargetEverywhere(t *testing.T) {
	// B is reachable twice, both times behind cfg(windows). A Linux-only
	// policy must drop it; a tier-2 policy (which contains Windows) keeps it.
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{
			{Name: "a", Pkg: "a", Kind: graph.KindNormal},
			{Name: "b", Pkg: "b", Kind: graph.KindNormal, Target: "cfg(windows)"},
		}},
		"a": {deps: []graph.Dependency{
			{Name: "b", Pkg: "b", Kind: graph.KindNormal, Target: `cfg(target_os = "windows")`},
		}},
		"b": {},
	}, "root")

	linux, err := Select(g, compile(t, policy.Input{Platforms: []string{"x86_64-unknown-linux-gnu"}}))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, linux, "a", "root")

	tier := "2"
	tier2, err := Select(g, compile(t, policy.Input{Tier: &tier}))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	assertSelected(t, tier2, "a", "b", "root")
}

func TestSelectBadTargetExpression(t *testing.T) {
	g := buildGraph(t, map[string]testPkg{
		"root": {deps: []graph.Dependency{
			{Name: "a", Pkg: "a", Kind: graph.KindNormal, Target: "cfg(unclosed"},
		}},
		"a": {},
	}, "root")

	// With a restricted platform set the malformed expression must surface.
	if _, err := Select(g, compile(t, policy.Input{Platforms: []string{"x86_64-unknown-linux-gnu"}})); err == nil {
		t.Error("malformed target expression should fail selection")
	}
}
