// Package logx centralizes this repository's logrus setup. Every
// long-lived component (link manager analog, device session, sync
// controller) takes a *logrus.Entry rather than reaching for a global
// logger, mirroring the teacher's LogText interface injection
// (appdrivers/loggable.go) — tests inject a discard logger instead of
// a real one.
package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger used by cmd/openwhoop. Output goes to
// stderr so stdout stays available for any future machine-readable
// output (the orchestrator's use-cases only ever write to stderr on
// failure, per spec §7).
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// Discard returns a logger that drops everything, for use in tests
// that don't want log noise but do want a real *logrus.Entry to pass
// around.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(discardWriter{})
	return logrus.NewEntry(log)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
