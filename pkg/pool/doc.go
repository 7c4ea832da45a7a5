/*
Package pool implements the Worker Pool: the single source of truth for
"which workers exist right now."

# Commands

The pool accepts exactly three commands, each with its own channel so a
slow SendRequest never head-of-line blocks a Create:

  - Create(ctx, opts) — fingerprint opts with ComputeKey, reuse an
    existing registry entry when the fingerprint already exists and
    ForceCreate is false, otherwise boot a fresh worker.Host and register
    it under the fingerprint once boot succeeds.
  - SendRequest(ctx, key, req) — look the key up and forward the request
    to that worker's inbox; ErrNotFound if no such worker is registered.
  - Shutdown(key) — evict a worker from the registry. This is also how
    pool implements worker.ShutdownNotifier: a worker.Host calls it on
    itself once its engine's Run loop returns, so a crashed or
    voluntarily-exited worker can never linger as a registry entry routed
    to a dead Host.

# Why a boot doesn't block the actor loop

Booting an engine can take real wall-clock time — construct() loads and
compiles a program before the worker can accept its first request — and
serializing Create against SendRequest/Shutdown is fine, but serializing
the *boot itself* is not: it would stall every other command in flight
for as long as the slowest construct() call takes. handleCreate kicks the
boot off in its own goroutine and folds the outcome back in through
bootDoneCh, so the registry map is only ever touched from the one run()
goroutine even though booting happens concurrently with everything else
the pool is doing.

# Reuse and force-create semantics

ComputeKey (key.go) is deliberately pure and side-effect-free: given the
same ServicePath and ForceCreate=false it always derives the same
WorkerKey, which is what lets handleCreate answer "does this already
exist" with a plain map lookup instead of scanning by ServicePath.
ForceCreate salts the hash with the current instant specifically so two
forced creates of the same path never collide and always land as
distinct registry entries — see key.go's doc comment for the salt's
resolution.
*/
package pool
