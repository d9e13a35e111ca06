package platform

import (
	"testing"

	"github.com/sievetools/cratesieve/pkg/errors"
)

func TestResolveRejectsMultipleExactPlatforms(t *testing.T) {
	_, err := Resolve([]string{"x86_64-unknown-linux-gnu", "aarch64-unknown-linux-gnu"}, TierNone)
	if err == nil {
		t.Fatal("expected error for two exact platforms")
	}
	if !errors.Is(err, errors.ErrCodeConfigPlatform) {
		t.Errorf("error code = %s, want %s", errors.GetCode(err), errors.ErrCodeConfigPlatform)
	}
}

func TestResolveAllowsWildcardsAlongsideExact(t *testing.T) {
	s, err := Resolve([]string{"x86_64-unknown-linux-gnu", "*-apple-darwin"}, TierNone)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.All() {
		t.Error("restricted set should not report All")
	}

	for _, target := range []string{"x86_64-unknown-linux-gnu", "aarch64-apple-darwin", "x86_64-apple-darwin"} {
		ok, err := s.Matches(target)
		if err != nil {
			t.Fatalf("Matches(%q): %v", target, err)
		}
		if !ok {
			t.Errorf("Matches(%q) = false, want true", target)
		}
	}
	if ok, _ := s.Matches("x86_64-pc-windows-msvc"); ok {
		t.Error("windows triple should not match")
	}
}

func TestResolveEmptyMeansEverything(t *testing.T) {
	s, err := Resolve(nil, TierNone)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !s.All() {
		t.Error("empty restriction should match everything")
	}
	for _, target := range []string{"cfg(windows)", "cfg(unix)", "sparc64-unknown-openbsd", ""} {
		if ok, err := s.Matches(target); err != nil || !ok {
			t.Errorf("Matches(%q) = %v, %v; want true", target, ok, err)
		}
	}
}

func TestResolveTierUnionsWithPlatforms(t *testing.T) {
	// Tier and explicit platforms combine as a union: a tier 1 set plus an
	// explicit musl triple matches both, which neither alone would.
	s, err := Resolve([]string{"x86_64-unknown-linux-musl"}, Tier1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tests := []struct {
		target string
		want   bool
	}{
		{"x86_64-unknown-linux-musl", true}, // explicit platform
		{"x86_64-pc-windows-msvc", true},    // tier 1 member
		{"aarch64-unknown-linux-gnu", true}, // tier 1 member
		{"x86_64-unknown-freebsd", false},   // tier 2 only
	}
	for _, tt := range tests {
		if ok, err := s.Matches(tt.target); err != nil || ok != tt.want {
			t.Errorf("Matches(%q) = %v, %v; want %v", tt.target, ok, err, tt.want)
		}
	}
}

func TestSetMatchesCfgExpressions(t *testing.T) {
	linuxOnly, err := Resolve([]string{"x86_64-unknown-linux-gnu"}, TierNone)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tier2, err := Resolve(nil, Tier2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tests := []struct {
		name   string
		set    *Set
		target string
		want   bool
	}{
		{"LinuxSetMatchesUnix", linuxOnly, "cfg(unix)", true},
		{"LinuxSetRejectsWindows", linuxOnly, "cfg(windows)", false},
		{"LinuxSetMatchesTargetOS", linuxOnly, `cfg(target_os = "linux")`, true},
		{"LinuxSetRejectsMacOS", linuxOnly, `cfg(target_os = "macos")`, false},
		{"Tier2MatchesWindows", tier2, "cfg(windows)", true},
		{"Tier2MatchesMusl", tier2, `cfg(target_env = "musl")`, true},
		{"Unconditional", linuxOnly, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.set.Matches(tt.target)
			if err != nil {
				t.Fatalf("Matches(%q): %v", tt.target, err)
			}
			if ok != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.target, ok, tt.want)
			}
		})
	}
}

func TestSetMatchesInvalidCfgIsError(t *testing.T) {
	s, err := Resolve([]string{"x86_64-unknown-linux-gnu"}, TierNone)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := s.Matches("cfg(not(unix"); err == nil {
		t.Error("malformed cfg expression should surface an error")
	}
}

func TestWildcardExpansionCoversKnownTriples(t *testing.T) {
	s, err := Resolve([]string{"*-unknown-linux-gnu"}, TierNone)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// cfg evaluation relies on the expanded members, so a Linux-gnu
	// wildcard must still satisfy cfg(unix).
	if ok, _ := s.Matches("cfg(unix)"); !ok {
		t.Error("wildcard linux-gnu set should satisfy cfg(unix)")
	}
	if ok, _ := s.Matches("cfg(windows)"); ok {
		t.Error("wildcard linux-gnu set should not satisfy cfg(windows)")
	}
}
