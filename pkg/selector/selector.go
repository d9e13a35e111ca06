// Package selector walks the resolved dependency graph and computes the
// set of packages a policy retains.
//
// An edge survives when its kind passes the keep-dep-kinds selector, its
// target-conditional restriction (if any) is satisfiable by the resolved
// platform set, and — unless all-features is on — every feature it demands
// is active on the declaring package. A package is selected when at least
// one non-pruned path from a workspace root reaches it. Multiple versions
// of the same crate are independent nodes and are all retained when
// independently reachable.
package selector

import (
	"strings"

	"github.com/sievetools/cratesieve/pkg/graph"
	"github.com/sievetools/cratesieve/pkg/policy"
)

// Select traverses g from its roots under p and returns the retained
// packages ordered by (name, version).
//
// Feature activation flows along retained edges: an edge can enable
// features on its target, which may in turn un-gate optional edges the
// target declares, so nodes are revisited until activation reaches a
// fixpoint. Feature sets only ever grow, which bounds the iteration.
func Select(g *graph.Graph, p *policy.Policy) ([]*graph.Package, error) {
	s := &selection{
		graph:    g,
		policy:   p,
		included: make(map[graph.ID]bool),
		enabled:  make(map[graph.ID]map[string]bool),
	}

	for _, root := range g.Roots() {
		// Roots get their default feature set; explicitly requested
		// features arrive pre-resolved in the metadata.
		s.enable(root, "default")
		s.included[root] = true
		s.queue = append(s.queue, root)
	}

	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		if err := s.visit(id); err != nil {
			return nil, err
		}
	}

	selected := make([]*graph.Package, 0, len(s.included))
	for id := range s.included {
		pkg, _ := g.Package(id)
		selected = append(selected, pkg)
	}
	return graph.SortPackages(selected), nil
}

type selection struct {
	graph    *graph.Graph
	policy   *policy.Policy
	included map[graph.ID]bool
	enabled  map[graph.ID]map[string]bool
	queue    []graph.ID
}

func (s *selection) visit(id graph.ID) error {
	pkg, ok := s.graph.Package(id)
	if !ok {
		return nil
	}
	effective := effectiveFeatures(pkg, s.enabled[id])

	for _, dep := range pkg.Dependencies {
		if !s.policy.KeepDepKinds.Allows(dep.Kind) {
			continue
		}
		ok, err := s.policy.Platforms.Matches(dep.Target)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !s.policy.AllFeatures && !featuresSatisfied(dep.RequiredFeatures, effective) {
			continue
		}

		grew := false
		if s.enable(dep.Pkg, "") {
			grew = true
		}
		if dep.UsesDefaultFeatures && s.enable(dep.Pkg, "default") {
			grew = true
		}
		for _, f := range dep.EnablesFeatures {
			if s.enable(dep.Pkg, f) {
				grew = true
			}
		}
		if !s.included[dep.Pkg] {
			s.included[dep.Pkg] = true
			grew = true
		}
		if grew {
			s.queue = append(s.queue, dep.Pkg)
		}
	}
	return nil
}

// enable records a feature activation on a package. Empty feature names
// only ensure the activation map exists. Returns true when the set grew.
func (s *selection) enable(id graph.ID, feature string) bool {
	set := s.enabled[id]
	if set == nil {
		set = make(map[string]bool)
		s.enabled[id] = set
	}
	if feature == "" || set[feature] {
		return false
	}
	set[feature] = true
	return true
}

func featuresSatisfied(required []string, effective map[string]bool) bool {
	for _, f := range required {
		if !effective[f] {
			return false
		}
	}
	return true
}

// effectiveFeatures closes the explicitly activated features over the
// package's feature table. Feature entries may reference other features
// ("std"), optional dependencies ("dep:serde"), or features of a
// dependency ("serde/derive", "serde?/derive"); the latter two activate
// the named optional dependency's implicit feature locally.
func effectiveFeatures(pkg *graph.Package, activated map[string]bool) map[string]bool {
	out := make(map[string]bool, len(activated))
	var visit func(f string)
	visit = func(f string) {
		if out[f] {
			return
		}
		out[f] = true
		for _, entry := range pkg.Features[f] {
			switch {
			case strings.HasPrefix(entry, "dep:"):
				out[strings.TrimPrefix(entry, "dep:")] = true
			case strings.Contains(entry, "/"):
				name, _, _ := strings.Cut(entry, "/")
				out[strings.TrimSuffix(name, "?")] = true
			default:
				visit(entry)
			}
		}
	}
	for f := range activated {
		// A "default" activation on a package without a default feature
		// is a no-op, not an error.
		if f == "default" {
			if _, ok := pkg.Features["default"]; !ok {
				continue
			}
		}
		visit(f)
	}
	return out
}
