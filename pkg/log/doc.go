/*
Package log provides structured logging for edgerun using zerolog.

Init configures the global Logger once at process start (level, JSON vs
console output). Every other package pulls a child logger scoped to its
own component via WithComponent, WithWorkerKey or WithServicePath rather
than writing to the global Logger directly, so every line carries enough
context to correlate a breach, a boot, or a dropped request back to the
worker it happened on.
*/
package log
