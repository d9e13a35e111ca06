package platform

import (
	"github.com/sievetools/cratesieve/pkg/errors"
)

// Tier is a rustc platform support tier. Only the curated tiers with host
// tools are selectable; tier 2 is a superset of tier 1.
// See https://doc.rust-lang.org/nightly/rustc/platform-support.html
type Tier int

// Selectable tiers. TierNone means no tier restriction was requested.
const (
	TierNone Tier = 0
	Tier1    Tier = 1
	Tier2    Tier = 2
)

// tier1Targets lists "tier 1 with host tools" triples.
var tier1Targets = []string{
	"aarch64-unknown-linux-gnu",
	"i686-pc-windows-gnu",
	"i686-pc-windows-msvc",
	"i686-unknown-linux-gnu",
	"x86_64-apple-darwin",
	"x86_64-pc-windows-gnu",
	"x86_64-pc-windows-msvc",
	"x86_64-unknown-linux-gnu",
}

// tier2Targets lists the additional "tier 2 with host tools" triples.
var tier2Targets = []string{
	"aarch64-apple-darwin",
	"aarch64-pc-windows-msvc",
	"aarch64-unknown-linux-musl",
	"arm-unknown-linux-gnueabi",
	"arm-unknown-linux-gnueabihf",
	"armv7-unknown-linux-gnueabihf",
	"mips-unknown-linux-gnu",
	"mips64-unknown-linux-gnuabi64",
	"mips64el-unknown-linux-gnuabi64",
	"mipsel-unknown-linux-gnu",
	"powerpc-unknown-linux-gnu",
	"powerpc64-unknown-linux-gnu",
	"powerpc64le-unknown-linux-gnu",
	"riscv64gc-unknown-linux-gnu",
	"s390x-unknown-linux-gnu",
	"x86_64-unknown-freebsd",
	"x86_64-unknown-illumos",
	"x86_64-unknown-linux-musl",
	"x86_64-unknown-netbsd",
}

// knownTriples is the parsed union of both tier tables, loaded once at
// process start. Wildcard patterns are expanded against this universe.
var knownTriples = func() []Triple {
	all := make([]Triple, 0, len(tier1Targets)+len(tier2Targets))
	for _, s := range tier1Targets {
		t, err := ParseTriple(s)
		if err != nil {
			panic(err)
		}
		all = append(all, t)
	}
	for _, s := range tier2Targets {
		t, err := ParseTriple(s)
		if err != nil {
			panic(err)
		}
		all = append(all, t)
	}
	return all
}()

// ParseTier converts the CLI/config value ("1" or "2") into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "":
		return TierNone, nil
	case "1":
		return Tier1, nil
	case "2":
		return Tier2, nil
	default:
		return TierNone, errors.New(errors.ErrCodeConfigTier, "invalid tier %q: supported tiers are 1 and 2", s)
	}
}

// Targets returns the triples belonging to the tier. Tier 2 includes all of
// tier 1. TierNone has no targets.
func (t Tier) Targets() []Triple {
	switch t {
	case Tier1:
		return knownTriples[:len(tier1Targets)]
	case Tier2:
		return knownTriples
	default:
		return nil
	}
}

// String returns the tier's numeric spelling.
func (t Tier) String() string {
	switch t {
	case Tier1:
		return "1"
	case Tier2:
		return "2"
	default:
		return "none"
	}
}
