// Package archive produces byte-reproducible tarballs of a vendor tree.
//
// Reproducibility means two runs over identical input trees emit
// identical bytes: entries are written in sorted path order, every
// header carries the resolved epoch instead of filesystem mtimes, and
// ownership and the other volatile header fields are cleared. The
// compressed formats pipe the tar stream through the system gzip or
// zstd binary rather than an in-process encoder, matching the streams
// cargo-based tooling produces.
package archive

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// Format selects the archive output encoding.
type Format string

// The supported archive formats.
const (
	FormatTar     Format = "tar"
	FormatTarGz   Format = "tar.gz"
	FormatTarZstd Format = "tar.zstd"
	FormatDir     Format = "dir"
)

// ParseFormat validates a --format value. Empty means plain directory
// output (no archive).
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatDir:
		return FormatDir, nil
	case FormatTar, FormatTarGz, FormatTarZstd:
		return Format(s), nil
	default:
		return "", errors.New(errors.ErrCodeConfigFormat,
			"unsupported format %q: want dir, tar, tar.gz, or tar.zstd", s)
	}
}

// DefaultFileName returns the conventional output file name for the
// format, e.g. "vendor.tar.gz".
func (f Format) DefaultFileName() string {
	return "vendor." + string(f)
}

// Options configures one archive build.
type Options struct {
	// Format is the output encoding; FormatDir is rejected here, the
	// caller handles directory output without the archive layer.
	Format Format
	// Prefix is prepended to every entry path, e.g. "vendor/".
	Prefix string
	// Epoch is the unix timestamp stamped on every entry.
	Epoch int64
}

// Build archives the tree rooted at vendorDir into w.
func Build(ctx context.Context, w io.Writer, vendorDir string, opts Options) error {
	switch opts.Format {
	case FormatTar:
		return writeTar(w, vendorDir, opts)
	case FormatTarGz, FormatTarZstd:
		return compressTar(ctx, w, vendorDir, opts)
	default:
		return errors.New(errors.ErrCodeArchive, "format %q is not an archive format", opts.Format)
	}
}

// entry is one archive member, captured before writing so the full list
// can be sorted.
type entry struct {
	rel  string
	info fs.FileInfo
	link string
}

func writeTar(w io.Writer, vendorDir string, opts Options) error {
	entries, err := collectEntries(vendorDir)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(w)
	epoch := time.Unix(opts.Epoch, 0).UTC()
	for _, e := range entries {
		hdr, err := tar.FileInfoHeader(e.info, e.link)
		if err != nil {
			return errors.Wrap(errors.ErrCodeArchive, err, "header for %s", e.rel)
		}
		hdr.Name = opts.Prefix + e.rel
		if e.info.IsDir() {
			hdr.Name += "/"
		}
		// Strip everything that varies between hosts and runs.
		hdr.ModTime = epoch
		hdr.AccessTime = time.Time{}
		hdr.ChangeTime = time.Time{}
		hdr.Uid = 0
		hdr.Gid = 0
		hdr.Uname = ""
		hdr.Gname = ""
		// With the time fields normalized above the writer picks plain
		// USTAR for every typical entry; PAX only appears for long paths,
		// and then without time-bearing records.
		hdr.Mode = int64(e.info.Mode().Perm())

		if err := tw.WriteHeader(hdr); err != nil {
			return errors.Wrap(errors.ErrCodeArchive, err, "write header for %s", e.rel)
		}
		if e.info.Mode().IsRegular() {
			if err := copyFileInto(tw, filepath.Join(vendorDir, filepath.FromSlash(e.rel))); err != nil {
				return err
			}
		}
	}
	if err := tw.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "finalize archive")
	}
	return nil
}

// collectEntries walks the tree and returns its members sorted by slash
// path. The root directory itself is not an entry.
func collectEntries(vendorDir string) ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(vendorDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == vendorDir {
			return nil
		}
		rel, err := filepath.Rel(vendorDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		e := entry{rel: filepath.ToSlash(rel), info: info}
		if info.Mode()&fs.ModeSymlink != 0 {
			e.link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "walk vendor tree %s", vendorDir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}

func copyFileInto(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "open %s", path)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "archive %s", path)
	}
	return nil
}
