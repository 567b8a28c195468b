// Package dockerfile decides which Dockerfile a build uses, writing inline
// Dockerfile content to a temporary file when needed.
package dockerfile

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mkoepf/ghcrpush/internal/config"
)

// TempPrefix starts the name of every temporary Dockerfile.
const TempPrefix = "dbp"

// LineSeparator joins inline Dockerfile lines.
var LineSeparator = lineSeparator()

// Materialize returns the Dockerfile to build with and a cleanup func that
// is always safe to call. With inline content the content is written to a
// fresh file in the OS temp dir and cleanup removes it.
func Materialize(cfg *config.BuildConfig) (string, func(), error) {
	if len(cfg.InlineDockerfile) == 0 {
		return cfg.DockerfilePath, func() {}, nil
	}

	path, err := WriteTemp(os.TempDir(), cfg.InlineDockerfile)
	if err != nil {
		return "", func() {}, err
	}

	return path, func() { _ = os.Remove(path) }, nil
}

// WriteTemp writes lines to a new file in dir. The file is created
// exclusively; a name collision is retried with a new random suffix.
func WriteTemp(dir string, lines []string) (string, error) {
	content := strings.Join(lines, LineSeparator)

	for attempt := 0; attempt < 10; attempt++ {
		path := filepath.Join(dir, TempFilename(time.Now(), os.Getpid(), rand.Uint32()))

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create temporary Dockerfile: %w", err)
		}

		if _, err := f.WriteString(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write temporary Dockerfile: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to write temporary Dockerfile: %w", err)
		}

		return path, nil
	}

	return "", fmt.Errorf("failed to create temporary Dockerfile in %s: too many name collisions", dir)
}

// TempFilename returns dbp<year><month><day>-<pid>-<random in base 36>.
func TempFilename(now time.Time, pid int, random uint32) string {
	return fmt.Sprintf("%s%d%d%d-%d-%s",
		TempPrefix, now.Year(), int(now.Month()), now.Day(), pid,
		strconv.FormatUint(uint64(random), 36))
}

func lineSeparator() string {
	if os.PathSeparator == '\\' {
		return "\r\n"
	}
	return "\n"
}
