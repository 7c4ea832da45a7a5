// Package events defines the worker telemetry variants (Boot,
// BootFailure, UncaughtException, MemoryLimit) and a small fan-out
// broker subscribers can attach to without blocking publication.
package events
