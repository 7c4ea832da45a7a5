// Package worker boots the Worker Host and Events Worker variants: one
// goroutine, one locked OS thread, one engine, driven until it exits.
package worker
