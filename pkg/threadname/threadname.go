// Package threadname names the calling OS thread on platforms that support
// it, purely so operator tooling (top -H, /proc/<pid>/task/<tid>/comm) can
// tell worker threads apart. It has no effect on scheduling.
package threadname
