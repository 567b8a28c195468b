package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sethvargo/go-githubactions"
	"github.com/sirupsen/logrus"
)

// newAction returns an Actions toolkit writing workflow commands to w.
func newAction(w io.Writer) *githubactions.Action {
	return githubactions.New(githubactions.WithWriter(w))
}

// Mask registers secret with the Actions runner so it is redacted from the
// job log. Outside of Actions it does nothing.
func Mask(log *logrus.Logger, secret string) {
	if secret == "" || !InActions() {
		return
	}
	var lines []string
	for _, line := range strings.Split(secret, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	a := newAction(log.Out)
	for _, l := range lines {
		a.AddMask(l)
	}
}

// SetOutput appends a step output to the file named by GITHUB_OUTPUT. It is a
// no-op when the variable is unset.
func SetOutput(name, value string) {
	if os.Getenv("GITHUB_OUTPUT") == "" {
		return
	}
	newAction(io.Discard).SetOutput(name, value)
}
