package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Global logger instance
var std = newStd()

func newStd() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Initialize sets up the global logger level based on input string (e.g., "debug", "info", "warn", "error")
func Initialize(level string) {
	switch level {
	case "debug", "DEBUG":
		std.SetLevel(logrus.DebugLevel)
		std.SetReportCaller(true)
	case "warn", "WARN", "warning", "WARNING":
		std.SetLevel(logrus.WarnLevel)
	case "error", "ERROR":
		std.SetLevel(logrus.ErrorLevel)
	default:
		std.SetLevel(logrus.InfoLevel)
	}
}

// UseJSON switches the output to JSON lines.
func UseJSON() {
	std.SetFormatter(&logrus.JSONFormatter{})
}

// With returns an entry carrying the given fields, for call sites that log
// several lines about the same request.
func With(fields map[string]any) *logrus.Entry {
	return std.WithFields(logrus.Fields(fields))
}

// Package-level helpers
func Debug(format string, v ...interface{}) { std.Debugf(format, v...) }
func Info(format string, v ...interface{})  { std.Infof(format, v...) }
func Warn(format string, v ...interface{})  { std.Warnf(format, v...) }
func Error(format string, v ...interface{}) { std.Errorf(format, v...) }
