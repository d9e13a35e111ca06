package archive

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sievetools/cratesieve/pkg/errors"
)

// EpochEnv is the standard reproducible-builds timestamp override. See
// https://reproducible-builds.org/docs/source-date-epoch/.
const EpochEnv = "SOURCE_DATE_EPOCH"

// ResolveEpoch determines the timestamp stamped on every archive entry.
// SOURCE_DATE_EPOCH wins when set; otherwise the commit time of the
// checkout at repoDir is used, so rebuilding the same commit yields the
// same archive. With neither source available the build fails rather
// than fall back to wall-clock time.
func ResolveEpoch(ctx context.Context, repoDir string) (int64, error) {
	if v := os.Getenv(EpochEnv); v != "" {
		epoch, err := strconv.ParseInt(v, 10, 64)
		if err != nil || epoch < 0 {
			return 0, errors.New(errors.ErrCodeArchiveEpoch, "invalid %s %q: want a non-negative unix timestamp", EpochEnv, v)
		}
		return epoch, nil
	}

	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "log", "-1", "--format=%ct")
	out, err := cmd.Output()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeArchiveEpoch, err,
			"cannot determine archive timestamp: %s is unset and %s is not a git checkout", EpochEnv, repoDir)
	}
	epoch, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeArchiveEpoch, err, "unparsable git commit timestamp %q", strings.TrimSpace(string(out)))
	}
	return epoch, nil
}
