// Package supervisor implements an Armed/Killed state machine: one
// supervisor per user worker, terminating the engine on the first
// wall-clock, CPU-burst, or memory breach.
package supervisor
