package display

import (
	"github.com/fatih/color"
)

// Color definitions for the step log
var (
	colorTag     = color.New(color.FgGreen, color.Bold)
	colorDigest  = color.New(color.Faint)
	colorHeader  = color.New(color.Bold)
	colorSuccess = color.New(color.FgGreen)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed)
	colorDebug   = color.New(color.Faint)
)

// ColorTag applies green bold styling to a single image tag.
func ColorTag(tag string) string {
	return colorTag.Sprint(tag)
}

// ColorDigest applies dim styling to digest strings.
func ColorDigest(digest string) string {
	return colorDigest.Sprint(digest)
}

// ColorHeader applies bold styling to step headers.
func ColorHeader(header string) string {
	return colorHeader.Sprint(header)
}

// ColorSuccess applies green styling for success messages.
func ColorSuccess(msg string) string {
	return colorSuccess.Sprint(msg)
}

// ColorWarning applies yellow styling for warnings.
func ColorWarning(msg string) string {
	return colorWarning.Sprint(msg)
}

// ColorError applies red styling for error messages.
func ColorError(msg string) string {
	return colorError.Sprint(msg)
}

// ColorDebug applies dim styling for debug output.
func ColorDebug(msg string) string {
	return colorDebug.Sprint(msg)
}
