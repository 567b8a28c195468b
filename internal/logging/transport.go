package logging

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// loggingRoundTripper is an http.RoundTripper that writes one JSON line per
// API call.
type loggingRoundTripper struct {
	transport http.RoundTripper
	log       *logrus.Logger
}

// NewLoggingRoundTripper wraps transport so that every request is logged to output
func NewLoggingRoundTripper(transport http.RoundTripper, output io.Writer) *loggingRoundTripper {
	log := logrus.New()
	log.SetOutput(output)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetLevel(logrus.InfoLevel)

	return &loggingRoundTripper{
		transport: transport,
		log:       log,
	}
}

// RoundTrip implements http.RoundTripper
func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	caller := getCallerInfo()

	resp, err := t.transport.RoundTrip(req)

	// Sub-millisecond calls still count as 1ms
	durationMs := time.Since(start).Milliseconds()
	if durationMs == 0 && err == nil {
		durationMs = 1
	}

	category, path := categorizeAPICall(req.URL.String())

	fields := logrus.Fields{
		"category":    category,
		"method":      req.Method,
		"url":         req.URL.String(),
		"path":        path,
		"duration_ms": durationMs,
		"caller":      caller,
	}
	if req.Body != nil && req.ContentLength > 0 {
		fields["request_bytes"] = req.ContentLength
	}

	entry := t.log.WithTime(start).WithFields(fields)
	if err != nil {
		entry.WithError(err).Error("api call failed")
		return resp, err
	}

	entry = entry.WithField("status", resp.StatusCode)
	if resp.ContentLength > 0 {
		entry = entry.WithField("response_bytes", resp.ContentLength)
	}
	entry.Info("api call")

	return resp, err
}

// categorizeAPICall splits a request URL into a coarse API category
// ("github", "registry" or "other") and its path.
func categorizeAPICall(rawURL string) (category, path string) {
	hostAndPath := rawURL
	if idx := strings.Index(hostAndPath, "://"); idx >= 0 {
		hostAndPath = hostAndPath[idx+3:]
	}

	host := hostAndPath
	path = "/"
	if idx := strings.Index(hostAndPath, "/"); idx >= 0 {
		host = hostAndPath[:idx]
		path = hostAndPath[idx:]
	}

	switch {
	case host == "api.github.com" || strings.HasPrefix(path, "/api/v3/"):
		return "github", path
	case strings.HasPrefix(path, "/v2/") || host == "ghcr.io":
		return "registry", path
	default:
		return "other", path
	}
}

// getCallerInfo returns file:line:function of the first frame outside
// net/http and this package.
func getCallerInfo() string {
	pcs := make([]uintptr, 20)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "net/http") &&
			!strings.Contains(frame.Function, "internal/logging") &&
			!strings.Contains(frame.File, "net/http") {
			file := frame.File
			if idx := strings.LastIndex(file, "/"); idx >= 0 {
				file = file[idx+1:]
			}
			fn := frame.Function
			if idx := strings.LastIndex(fn, "."); idx >= 0 {
				fn = fn[idx+1:]
			}
			return fmt.Sprintf("%s:%d:%s", file, frame.Line, fn)
		}
		if !more {
			break
		}
	}

	return "unknown"
}
