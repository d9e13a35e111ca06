package archive

import (
	"context"
	"io"
	"os/exec"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// compressorFor returns the external compressor invocation for a
// compressed format. gzip runs with -n so no name or timestamp leaks
// into the stream.
func compressorFor(format Format) (name string, args []string, err error) {
	switch format {
	case FormatTarGz:
		return "gzip", []string{"-n"}, nil
	case FormatTarZstd:
		return "zstd", []string{"-q"}, nil
	default:
		return "", nil, errors.New(errors.ErrCodeArchive, "format %q has no compressor", format)
	}
}

// compressTar streams the tar archive through the external compressor:
// tar bytes flow into the compressor's stdin while its stdout flows
// into w. Neither side ever holds the whole archive in memory.
func compressTar(ctx context.Context, w io.Writer, vendorDir string, opts Options) error {
	name, args, err := compressorFor(opts.Format)
	if err != nil {
		return err
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveCompressor, err,
			"%s output needs the %s binary on PATH", opts.Format, name)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = w
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveCompressor, err, "pipe to %s", name)
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(errors.ErrCodeArchiveCompressor, err, "start %s", name)
	}

	produceErr := writeTar(stdin, vendorDir, opts)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if produceErr != nil {
		return produceErr
	}
	if closeErr != nil {
		return errors.Wrap(errors.ErrCodeArchiveCompressor, closeErr, "close pipe to %s", name)
	}
	if waitErr != nil {
		return errors.Wrap(errors.ErrCodeArchiveCompressor, waitErr, "%s exited with an error", name)
	}
	return nil
}
