// Package sylog provides the leveled logger shared by every stage of the
// bootstrap process. The level taxonomy and the STARTER_MESSAGELEVEL
// environment variable mirror the ones used by the bootstrap's C side
// (see cmd/starter/c/include/message.h) so a single verbosity knob controls
// both halves of the process.
package sylog

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

type level int

const (
	FatalLevel   level = -4
	ErrorLevel   level = -3
	WarnLevel    level = -2
	LogLevel     level = -1
	InfoLevel    level = 1
	VerboseLevel level = 2
	Verbose2Level level = 3
	Verbose3Level level = 4
	DebugLevel   level = 5
)

const messageLevelEnv = "STARTER_MESSAGELEVEL"

var current level

func init() {
	current = InfoLevel
	if v := os.Getenv(messageLevelEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			current = level(n)
		}
	}
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

// SetLevel overrides the process verbosity level read from
// STARTER_MESSAGELEVEL at package init.
func SetLevel(l int) {
	current = level(l)
}

func enabled(l level) bool {
	return l <= current
}

func logf(l level, prefix string, format string, args ...interface{}) {
	if !enabled(l) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	entry := logrus.WithField("euid", os.Geteuid()).WithField("pid", os.Getpid())
	switch {
	case l == FatalLevel:
		entry.Fatal(prefix + msg)
	case l == ErrorLevel:
		entry.Error(prefix + msg)
	case l == WarnLevel:
		entry.Warn(prefix + msg)
	default:
		entry.Info(prefix + msg)
	}
}

func Fatalf(format string, args ...interface{}) {
	logf(FatalLevel, "FATAL: ", format, args...)
	os.Exit(1)
}

func Errorf(format string, args ...interface{}) {
	logf(ErrorLevel, "ERROR: ", format, args...)
}

func Warningf(format string, args ...interface{}) {
	logf(WarnLevel, "WARNING: ", format, args...)
}

func Logf(format string, args ...interface{}) {
	logf(LogLevel, "", format, args...)
}

func Infof(format string, args ...interface{}) {
	logf(InfoLevel, "", format, args...)
}

func Verbosef(format string, args ...interface{}) {
	logf(VerboseLevel, "VERBOSE: ", format, args...)
}

func Debugf(format string, args ...interface{}) {
	logf(DebugLevel, "DEBUG: ", format, args...)
}
