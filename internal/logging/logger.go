package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mkoepf/ghcrpush/internal/display"
	"github.com/sirupsen/logrus"
)

// InActions reports whether the process runs inside a GitHub Actions job.
func InActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// NewLogger returns the step logger writing to out. Quiet mode drops
// everything below warning level.
func NewLogger(out io.Writer, quiet bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&WorkflowFormatter{Actions: InActions()})
	log.SetLevel(logrus.InfoLevel)
	if quiet {
		log.SetLevel(logrus.WarnLevel)
	}
	if os.Getenv("RUNNER_DEBUG") == "1" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// WorkflowFormatter renders log entries either as GitHub workflow commands
// (::warning::, ::error::, ::debug::) or as coloured terminal lines.
type WorkflowFormatter struct {
	Actions bool
}

// Format implements logrus.Formatter
func (f *WorkflowFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	msg := entry.Message
	if fields := formatFields(entry.Data); fields != "" {
		msg += " " + fields
	}

	if f.Actions {
		action := newAction(&b)
		switch entry.Level {
		case logrus.DebugLevel, logrus.TraceLevel:
			action.Debugf("%s", msg)
		case logrus.WarnLevel:
			action.Warningf("%s", msg)
		case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
			action.Errorf("%s", msg)
		default:
			b.WriteString(msg + "\n")
		}
		return b.Bytes(), nil
	}

	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		b.WriteString(display.ColorDebug("debug: " + msg))
	case logrus.WarnLevel:
		b.WriteString(display.ColorWarning("warning: ") + msg)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		b.WriteString(display.ColorError("error: ") + msg)
	default:
		b.WriteString(msg)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatFields(data logrus.Fields) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return "(" + strings.Join(parts, " ") + ")"
}
