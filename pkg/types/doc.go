/*
Package types defines the core data structures shared by edgerun's worker
lifecycle and supervision subsystem.

It holds the WorkerKey fingerprint, the WorkerInitOpts/WorkerLimits passed
to a booting engine, and the RequestMsg/Reply pair a request transport
carries between the pool and a worker's request inbox. It has no
dependencies on any other edgerun package so that engine, supervisor,
worker and pool can all depend on it without cycles.
*/
package types
