package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sievetools/cratesieve/pkg/buildinfo"
	"github.com/sievetools/cratesieve/pkg/policy"
)

// Execute runs the cratesieve CLI and returns an error if the run fails.
//
// cratesieve is a single command rather than a command tree: every run
// performs the same select-stage-publish pipeline, shaped by flags and
// by the `[package.metadata.vendor-filter]` table in the workspace
// manifest. Flags override the manifest table field by field.
//
// Logging goes to stderr at info level, or debug with --verbose (-v);
// the logger rides the command context so the pipeline can report
// progress without owning an output stream.
func Execute(ctx context.Context) error {
	var opts vendorOpts
	var verbose bool

	root := &cobra.Command{
		Use:   "cratesieve",
		Short: "cratesieve vendors a filtered subset of a Cargo dependency graph",
		Long: `cratesieve produces a filtered, locally-vendored mirror of a Cargo
project's resolved dependency graph.

Crates are selected by target platform, platform tier, dependency kind,
and feature activation; selected crates can additionally have sub-paths
pruned, with each crate's .cargo-checksum.json rewritten to stay
consistent. The result is a vendor directory or a reproducible
tar/tar.gz/tar.zstd archive.

Examples:
  cratesieve --platform x86_64-unknown-linux-gnu
  cratesieve --tier 2 --keep-dep-kinds no-dev
  cratesieve --exclude-crate-path '*#tests' --format tar.zstd
  cratesieve --platform 'cfg(unix)' --all-features --output vendor-unix`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVendor(cmd.Context(), &opts, flagInput(cmd, &opts))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.Flags().StringArrayVar(&opts.platforms, "platform", nil, "target triple or pattern to vendor for (repeatable; * wildcards per segment)")
	root.Flags().StringVar(&opts.tier, "tier", "", "vendor for all tier \"1\" or \"2\" targets (unioned with --platform)")
	root.Flags().BoolVar(&opts.allFeatures, "all-features", false, "ignore feature gating when following dependency edges")
	root.Flags().StringVar(&opts.keepDepKinds, "keep-dep-kinds", "", "dependency kinds to keep: all, normal, build, dev, no-normal, no-build, no-dev")
	root.Flags().StringArrayVar(&opts.excludes, "exclude-crate-path", nil, "sub-path to delete from matching crates, as \"crate#glob\" (repeatable; crate may be *)")
	root.Flags().StringVar(&opts.format, "format", "dir", "output format: dir, tar, tar.gz, or tar.zstd")
	root.Flags().StringVar(&opts.prefix, "prefix", "", "path prefix for archive entries, e.g. \"vendor/\"")
	root.Flags().StringArrayVar(&opts.sync, "sync", nil, "additional workspace Cargo.toml whose dependencies join the vendor set (repeatable)")
	root.Flags().StringVar(&opts.manifestPath, "manifest-path", "Cargo.toml", "path to the workspace Cargo.toml")
	root.Flags().StringVarP(&opts.output, "output", "o", "", "destination path (default vendor, vendor.tar, vendor.tar.gz, or vendor.tar.zstd; \"-\" streams an archive to stdout)")

	return root.ExecuteContext(ctx)
}

// flagInput converts the flags the user actually set into a policy
// input. Unset flags stay nil so the manifest-table values survive the
// merge; set flags replace them wholesale.
func flagInput(cmd *cobra.Command, opts *vendorOpts) policy.Input {
	var in policy.Input
	if cmd.Flags().Changed("platform") {
		in.Platforms = opts.platforms
	}
	if cmd.Flags().Changed("tier") {
		in.Tier = &opts.tier
	}
	if cmd.Flags().Changed("all-features") {
		in.AllFeatures = &opts.allFeatures
	}
	if cmd.Flags().Changed("keep-dep-kinds") {
		in.KeepDepKinds = &opts.keepDepKinds
	}
	if cmd.Flags().Changed("exclude-crate-path") {
		in.ExcludeCratePaths = opts.excludes
	}
	return in
}
