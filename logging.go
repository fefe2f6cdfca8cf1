package transport

import (
	stdlog "log"
	"log/syslog"
	"os"
	"strings"

	"github.com/op/go-logging"
)

// pkgLog is the module-wide logger for anything not scoped to one remote
// (transport-level accept-loop failures, control-response bookkeeping).
// Anything tied to a specific RemoteEndPoint should log through
// remoteEndPoint.log() instead, so its trace id becomes part of the
// logger's identity rather than a string glued onto every message.
var pkgLog = logging.MustGetLogger("transport")

var syslogFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} %{module} ▶ %{message}`,
)
var stderrFormat = logging.MustStringFormatter(
	`%{color}%{module} ▶ %{message}%{color:reset}`,
)

// remoteModuleName is the go-logging module name a remote's sub-logger
// registers under. remoteEndPoint.log() and SetupLogging's
// TRANSPORT_DEBUG_TRACE handling must agree on the exact string, so it's
// factored out here rather than inlined at both call sites.
func remoteModuleName(traceID string) string {
	return "transport.remote." + traceID
}

// SetupLogging wires pkgLog, and every per-remote sub-logger minted by
// remoteEndPoint.log(), to a syslog backend when available, falling back to
// colored stderr. defaultLevel applies module-wide unless the
// TRANSPORT_LOG_LEVEL environment variable names a known level.
//
// TRANSPORT_DEBUG_TRACE additionally names a comma-separated list of trace
// ids (or id prefixes aren't matched — full ids only) whose sub-logger
// should run at DEBUG regardless of defaultLevel, for turning up verbosity
// on one misbehaving remote without drowning the log in every other
// remote's chatter.
func SetupLogging(prefix string, defaultLevel logging.Level, trySyslog bool) *logging.Logger {
	var backend logging.Backend
	if trySyslog {
		var err error
		backend, err = logging.NewSyslogBackendPriority(prefix, syslog.LOG_NOTICE)
		if err == nil {
			logging.SetFormatter(syslogFormat)
			if syslogBackend, ok := backend.(*logging.SyslogBackend); ok {
				stdlog.SetOutput(syslogBackend.Writer)
			}
		} else {
			backend = nil
		}
	}
	if backend == nil {
		backend = logging.NewLogBackend(os.Stderr, prefix, 0)
		logging.SetFormatter(stderrFormat)
	}

	leveled := logging.AddModuleLevel(backend)
	level := defaultLevel
	switch os.Getenv("TRANSPORT_LOG_LEVEL") {
	case "CRITICAL":
		level = logging.CRITICAL
	case "ERROR":
		level = logging.ERROR
	case "WARNING":
		level = logging.WARNING
	case "NOTICE":
		level = logging.NOTICE
	case "INFO":
		level = logging.INFO
	case "DEBUG":
		level = logging.DEBUG
	}
	// The "" module is go-logging's fallback: GetLevel(module) consults it
	// whenever no entry exists for the specific module name, which is every
	// remote's sub-logger unless traced below.
	leveled.SetLevel(level, "")

	for _, traceID := range strings.Split(os.Getenv("TRANSPORT_DEBUG_TRACE"), ",") {
		if traceID == "" {
			continue
		}
		leveled.SetLevel(logging.DEBUG, remoteModuleName(traceID))
	}

	logging.SetBackend(leveled)
	return pkgLog
}
