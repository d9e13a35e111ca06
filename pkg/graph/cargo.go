package graph

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// FromCargo resolves the graph for one workspace by invoking
// `cargo metadata --format-version 1` against the given manifest.
// cargo performs version resolution and reports where each crate's
// fetched sources live; no network access happens here beyond what
// cargo itself may do to refresh the lockfile.
func FromCargo(ctx context.Context, manifestPath string) (*Graph, error) {
	cmd := exec.CommandContext(ctx, "cargo", "metadata", "--format-version", "1", "--manifest-path", manifestPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, errors.Wrap(errors.ErrCodeGraphMetadata, err, "cargo metadata for %s: %s", manifestPath, msg)
		}
		return nil, errors.Wrap(errors.ErrCodeGraphMetadata, err, "cargo metadata for %s", manifestPath)
	}
	return LoadMetadata(bytes.NewReader(out))
}
