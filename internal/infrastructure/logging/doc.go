// Package logging wraps log/slog for pinctl Core.
//
// Every record carries service and version attributes. The handler is
// chosen from config:
//
//	logging:
//	  level: "info"      # debug | info | warn | error
//	  format: "json"     # json | text
//	  output: "stdout"   # stdout | stderr
//
// Components accept a *Logger (or a narrower Logger interface of their
// own) and fall back to Discard() when none is set. Tests write to a
// buffer through NewWithWriter.
//
// The gateway token and JWT secret must never reach a log line.
package logging
