package graph

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// The cargo-metadata wire structures (format version 1). Only the fields
// the filtering engine consumes are decoded.
type metadataDoc struct {
	Packages         []metadataPackage `json:"packages"`
	WorkspaceMembers []string          `json:"workspace_members"`
	Resolve          *metadataResolve  `json:"resolve"`
}

type metadataPackage struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Source       string              `json:"source"`
	ManifestPath string              `json:"manifest_path"`
	Dependencies []metadataDep       `json:"dependencies"`
	Features     map[string][]string `json:"features"`
}

type metadataDep struct {
	Name                string   `json:"name"`
	Kind                string   `json:"kind"` // "" (normal), "build", "dev"
	Target              string   `json:"target"`
	Optional            bool     `json:"optional"`
	Features            []string `json:"features"`
	UsesDefaultFeatures bool     `json:"uses_default_features"`
}

type metadataResolve struct {
	Nodes []metadataNode `json:"nodes"`
}

type metadataNode struct {
	ID   string            `json:"id"`
	Deps []metadataNodeDep `json:"deps"`
}

type metadataNodeDep struct {
	Name     string            `json:"name"`
	Pkg      string            `json:"pkg"`
	DepKinds []metadataDepKind `json:"dep_kinds"`
}

type metadataDepKind struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// LoadMetadataFile reads cargo-metadata JSON from a file.
func LoadMetadataFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGraphMetadata, err, "open metadata %s", path)
	}
	defer f.Close()
	return LoadMetadata(f)
}

// LoadMetadata decodes cargo-metadata JSON (format version 1) into a Graph.
// The resolve section supplies the precise edge targets, so two versions of
// one crate stay distinct nodes. Packages lacking both a source and a
// readable manifest path are rejected.
func LoadMetadata(r io.Reader) (*Graph, error) {
	var doc metadataDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGraphMetadata, err, "decode cargo metadata")
	}
	if doc.Resolve == nil {
		return nil, errors.New(errors.ErrCodeGraphMetadata, "cargo metadata has no resolve section; run without --no-deps")
	}

	declared := make(map[ID]metadataPackage, len(doc.Packages))
	packages := make([]*Package, 0, len(doc.Packages))
	byID := make(map[ID]*Package, len(doc.Packages))
	for _, mp := range doc.Packages {
		version, err := semver.NewVersion(mp.Version)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeGraphMetadata, err, "package %s has invalid version %q", mp.Name, mp.Version)
		}
		if mp.ManifestPath == "" {
			return nil, errors.New(errors.ErrCodeGraphSourcePath, "package %s %s has no manifest path", mp.Name, mp.Version)
		}
		p := &Package{
			ID:        ID(mp.ID),
			Name:      mp.Name,
			Version:   version,
			Source:    mp.Source,
			SourceDir: filepath.Dir(mp.ManifestPath),
			Features:  mp.Features,
		}
		declared[p.ID] = mp
		packages = append(packages, p)
		byID[p.ID] = p
	}

	for _, node := range doc.Resolve.Nodes {
		p, ok := byID[ID(node.ID)]
		if !ok {
			return nil, errors.New(errors.ErrCodeGraphMissingPkg, "resolve node %s has no package entry", node.ID)
		}
		decl := declared[p.ID]
		for _, nd := range node.Deps {
			target, ok := byID[ID(nd.Pkg)]
			if !ok {
				return nil, errors.New(errors.ErrCodeGraphMissingPkg, "package %s depends on %s which is not in the metadata", p.ID, nd.Pkg)
			}
			for _, dk := range nd.DepKinds {
				dep := Dependency{
					Name:   target.Name,
					Pkg:    target.ID,
					Kind:   parseKind(dk.Kind),
					Target: dk.Target,
				}
				// The declared dependency table carries optionality and
				// feature data the resolve section lacks.
				if d, ok := findDeclared(decl.Dependencies, target.Name, dk.Kind, dk.Target); ok {
					dep.Optional = d.Optional
					dep.EnablesFeatures = d.Features
					dep.UsesDefaultFeatures = d.UsesDefaultFeatures
					if d.Optional {
						// Cargo exposes an optional dependency through an
						// implicit feature named after the crate.
						dep.RequiredFeatures = []string{target.Name}
					}
				}
				p.Dependencies = append(p.Dependencies, dep)
			}
		}
	}

	roots := make([]ID, 0, len(doc.WorkspaceMembers))
	for _, m := range doc.WorkspaceMembers {
		roots = append(roots, ID(m))
	}
	return New(packages, roots)
}

func parseKind(s string) DepKind {
	switch s {
	case "build":
		return KindBuild
	case "dev":
		return KindDev
	default:
		// cargo metadata encodes normal as null/"".
		return KindNormal
	}
}

// findDeclared matches a resolved edge back to its declared dependency
// entry. Crate names in declarations may use dashes where the package name
// uses underscores, so the comparison normalizes both.
func findDeclared(deps []metadataDep, name, kind, target string) (metadataDep, bool) {
	want := normalizeName(name)
	for _, d := range deps {
		if normalizeName(d.Name) != want {
			continue
		}
		if parseKind(d.Kind) != parseKind(kind) {
			continue
		}
		if d.Target != "" && target != "" && d.Target != target {
			continue
		}
		return d, true
	}
	return metadataDep{}, false
}

func normalizeName(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
