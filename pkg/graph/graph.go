// Package graph models the resolved dependency graph cratesieve filters.
//
// The graph is externally supplied: an upstream resolution step (cargo
// metadata) produces packages, resolved edges, and per-package source
// locations, and this package only loads and indexes them. Nothing here
// resolves versions or downloads sources.
package graph

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// ID is a package's unique source id, e.g.
// "registry+https://github.com/rust-lang/crates.io-index#serde@1.0.200".
// Two versions of the same crate have distinct IDs and are independent
// graph nodes.
type ID string

// DepKind classifies a dependency edge.
type DepKind string

// The three cargo dependency kinds.
const (
	KindNormal DepKind = "normal"
	KindBuild  DepKind = "build"
	KindDev    DepKind = "dev"
)

// Dependency is a resolved outgoing edge of a package.
type Dependency struct {
	// Name of the target crate as the declaring package spells it.
	Name string
	// Pkg is the resolved target package id.
	Pkg ID
	// Kind is normal, build, or dev.
	Kind DepKind
	// Target is the optional target-conditional restriction: a plain
	// triple or a cfg() expression. Empty means unconditional.
	Target string
	// Optional marks dependencies that are only pulled in by features.
	Optional bool
	// RequiredFeatures lists features of the declaring package that must
	// all be active for this edge to exist. Populated for optional
	// dependencies with the crate's implicit feature name.
	RequiredFeatures []string
	// EnablesFeatures lists features the edge activates on the target.
	EnablesFeatures []string
	// UsesDefaultFeatures reports whether the edge activates the target's
	// default feature set.
	UsesDefaultFeatures bool
}

// Package is a node in the resolved graph.
type Package struct {
	ID      ID
	Name    string
	Version *semver.Version
	// Source identifies where the package came from (registry URL).
	// Empty for local path dependencies, which are never vendored.
	Source string
	// SourceDir is the directory holding the already-fetched sources.
	SourceDir string
	// Dependencies are the resolved outgoing edges.
	Dependencies []Dependency
	// Features maps declared feature names to the features they enable.
	Features map[string][]string
}

// Vendorable reports whether the package is copied into the vendor tree.
// Workspace members and path dependencies live in the source checkout and
// are not mirrored.
func (p *Package) Vendorable() bool { return p.Source != "" }

// Graph is the immutable resolved dependency graph.
type Graph struct {
	packages map[ID]*Package
	roots    []ID
}

// New assembles a graph from packages and root ids. Every root and every
// edge target must reference a known package.
func New(packages []*Package, roots []ID) (*Graph, error) {
	g := &Graph{packages: make(map[ID]*Package, len(packages)), roots: roots}
	for _, p := range packages {
		g.packages[p.ID] = p
	}
	for _, root := range roots {
		if _, ok := g.packages[root]; !ok {
			return nil, errors.New(errors.ErrCodeGraphMissingPkg, "root package %s not present in graph", root)
		}
	}
	for _, p := range g.packages {
		for _, dep := range p.Dependencies {
			if _, ok := g.packages[dep.Pkg]; !ok {
				return nil, errors.New(errors.ErrCodeGraphMissingPkg, "package %s depends on %s which is not present in graph", p.ID, dep.Pkg)
			}
		}
	}
	return g, nil
}

// Package returns the node with the given id.
func (g *Graph) Package(id ID) (*Package, bool) {
	p, ok := g.packages[id]
	return p, ok
}

// Roots returns the traversal roots (workspace members).
func (g *Graph) Roots() []ID { return g.roots }

// Len returns the number of packages in the graph.
func (g *Graph) Len() int { return len(g.packages) }

// Sorted returns all packages ordered by (name, version, id). The id
// tiebreak only matters for pathological graphs with duplicate
// name/version pairs from different sources.
func (g *Graph) Sorted() []*Package {
	return SortPackages(g.packagesSlice())
}

func (g *Graph) packagesSlice() []*Package {
	out := make([]*Package, 0, len(g.packages))
	for _, p := range g.packages {
		out = append(out, p)
	}
	return out
}

// SortPackages orders packages by (name, version, id) in place and returns
// the slice. This is the canonical deterministic output ordering.
func SortPackages(pkgs []*Package) []*Package {
	sort.Slice(pkgs, func(i, j int) bool {
		a, b := pkgs[i], pkgs[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if c := a.Version.Compare(b.Version); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	return pkgs
}
