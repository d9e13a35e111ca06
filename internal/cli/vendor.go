package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sievetools/cratesieve/pkg/archive"
	"github.com/sievetools/cratesieve/pkg/errors"
	"github.com/sievetools/cratesieve/pkg/graph"
	"github.com/sievetools/cratesieve/pkg/policy"
	"github.com/sievetools/cratesieve/pkg/selector"
	"github.com/sievetools/cratesieve/pkg/vendor"
)

// vendorOpts holds the command-line flags for a vendoring run.
type vendorOpts struct {
	manifestPath string   // workspace Cargo.toml
	sync         []string // additional workspace manifests
	platforms    []string // --platform values
	tier         string   // --tier value
	allFeatures  bool     // --all-features
	keepDepKinds string   // --keep-dep-kinds value
	excludes     []string // --exclude-crate-path values
	format       string   // --format value
	prefix       string   // archive entry prefix
	output       string   // destination override
}

// runVendor is the whole pipeline: policy compilation, graph resolution
// per manifest, selection, staging, then directory publish or archive.
func runVendor(ctx context.Context, opts *vendorOpts, flags policy.Input) error {
	logger := loggerFromContext(ctx)

	format, err := archive.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	fileInput, err := policy.LoadManifestConfig(opts.manifestPath)
	if err != nil {
		return err
	}
	pol, err := policy.Compile(policy.Merge(fileInput, flags))
	if err != nil {
		return err
	}

	selected, total, err := selectAcrossManifests(ctx, opts, pol)
	if err != nil {
		return err
	}
	logger.Debug("selection complete", "kept", len(selected), "resolved", total)

	dest := opts.output
	if dest == "" {
		if format == archive.FormatDir {
			dest = "vendor"
		} else {
			dest = format.DefaultFileName()
		}
	}

	prog := newProgress(logger)
	staging, err := vendor.Stage(ctx, selected, pol, dest, vendor.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer staging.Discard()
	prog.done(fmt.Sprintf("Staged %d crates", len(staging.Crates)))

	excludedPaths := 0
	for _, crate := range staging.Crates {
		excludedPaths += len(crate.Excluded)
	}

	if format == archive.FormatDir {
		if err := publishDir(staging, dest); err != nil {
			return err
		}
	} else {
		if err := writeArchive(ctx, staging, dest, format, opts); err != nil {
			return err
		}
	}

	printSuccess("Vendored %d crates", len(staging.Crates))
	printStats(len(staging.Crates), total-len(selected), excludedPaths)
	if dest != "-" {
		printFile(dest)
	}

	if format == archive.FormatDir {
		fmt.Println()
		printDetail("To use the vendored sources, add this to .cargo/config.toml:")
		fmt.Println()
		if err := vendor.WriteReplacementStanza(os.Stdout, dest); err != nil {
			return err
		}
	}
	return nil
}

// selectAcrossManifests resolves and filters the graph of the main
// manifest and every --sync manifest, merging the kept crates by
// package id. Returns the merged selection in (name, version) order and
// the total number of distinct resolved packages, for reporting.
func selectAcrossManifests(ctx context.Context, opts *vendorOpts, pol *policy.Policy) ([]*graph.Package, int, error) {
	logger := loggerFromContext(ctx)

	kept := make(map[graph.ID]*graph.Package)
	resolved := make(map[graph.ID]struct{})
	for _, manifest := range append([]string{opts.manifestPath}, opts.sync...) {
		prog := newProgress(logger)
		g, err := graph.FromCargo(ctx, manifest)
		if err != nil {
			return nil, 0, err
		}
		prog.done(fmt.Sprintf("Resolved %d packages from %s", g.Len(), manifest))

		for _, pkg := range g.Sorted() {
			resolved[pkg.ID] = struct{}{}
		}
		pkgs, err := selector.Select(g, pol)
		if err != nil {
			return nil, 0, err
		}
		for _, pkg := range pkgs {
			kept[pkg.ID] = pkg
		}
	}

	merged := make([]*graph.Package, 0, len(kept))
	for _, pkg := range kept {
		merged = append(merged, pkg)
	}
	return graph.SortPackages(merged), len(resolved), nil
}

// publishDir replaces any stale vendor directory at dest with the
// staged tree. The window with no directory at dest is the instant
// between the remove and the rename.
func publishDir(staging *vendor.Staging, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "remove stale output %s", dest)
	}
	return staging.Publish(dest)
}

// writeArchive packages the staged tree. dest "-" streams to stdout;
// otherwise the archive is written next to dest and moved into place
// only once complete, so an interrupted run never leaves a truncated
// archive under the final name.
func writeArchive(ctx context.Context, staging *vendor.Staging, dest string, format archive.Format, opts *vendorOpts) error {
	epoch, err := archive.ResolveEpoch(ctx, filepath.Dir(opts.manifestPath))
	if err != nil {
		return err
	}
	aopts := archive.Options{Format: format, Prefix: opts.prefix, Epoch: epoch}

	if dest == "-" {
		return archive.Build(ctx, os.Stdout, staging.Dir, aopts)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "create archive %s", tmp)
	}
	if err := archive.Build(ctx, f, staging.Dir, aopts); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeFilesystem, err, "flush archive %s", tmp)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeFilesystem, err, "publish archive %s", dest)
	}
	return nil
}
