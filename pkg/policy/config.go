package policy

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// The manifest key holding file-declared policy: [package.metadata.vendor-filter].
type manifestFile struct {
	Package struct {
		Metadata struct {
			VendorFilter *fileConfig `toml:"vendor-filter"`
		} `toml:"metadata"`
	} `toml:"package"`
	Workspace struct {
		Metadata struct {
			VendorFilter *fileConfig `toml:"vendor-filter"`
		} `toml:"metadata"`
	} `toml:"workspace"`
}

type fileConfig struct {
	Platforms         []string `toml:"platforms"`
	Tier              *string  `toml:"tier"`
	AllFeatures       *bool    `toml:"all-features"`
	KeepDepKinds      *string  `toml:"keep-dep-kinds"`
	ExcludeCratePaths []string `toml:"exclude-crate-paths"`
}

// LoadManifestConfig reads the vendor-filter table from a Cargo.toml. Both
// [package.metadata.vendor-filter] and, for virtual workspace manifests,
// [workspace.metadata.vendor-filter] are recognized, the package-level
// table winning when both exist. A manifest without either table yields a
// zero Input.
func LoadManifestConfig(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, errors.Wrap(errors.ErrCodeConfig, err, "read manifest %s", path)
	}

	var m manifestFile
	if err := toml.Unmarshal(data, &m); err != nil {
		return Input{}, errors.Wrap(errors.ErrCodeConfig, err, "parse manifest %s", path)
	}

	cfg := m.Package.Metadata.VendorFilter
	if cfg == nil {
		cfg = m.Workspace.Metadata.VendorFilter
	}
	if cfg == nil {
		return Input{}, nil
	}
	return Input{
		Platforms:         cfg.Platforms,
		Tier:              cfg.Tier,
		AllFeatures:       cfg.AllFeatures,
		KeepDepKinds:      cfg.KeepDepKinds,
		ExcludeCratePaths: cfg.ExcludeCratePaths,
	}, nil
}
