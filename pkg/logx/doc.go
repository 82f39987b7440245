// Package logx wraps zerolog behind a small fixed-field logger API with
// hot-swappable sinks (console, file). Component loggers are derived via
// With(String("comp", ...)) and stay live across config reloads.
package logx
