/*
Package metrics exposes edgerun's Prometheus metrics and HTTP health probes.

All metrics are package-level prometheus collectors registered at init
time and exposed through Handler() at /metrics. WorkersActive and
WorkerBootDuration track the pool's lifecycle; SupervisorBreachesTotal and
PoolEvictionsTotal track forced terminations; RequestsInFlight,
RequestDuration and RequestsTotal track traffic through the transport.

HealthHandler, ReadyHandler and LivenessHandler back the /health, /ready
and /live endpoints of the metrics server that serve starts. RegisterComponent lets the pool and
engine constructor report their own status; GetReadiness refuses ready
until both have checked in healthy.
*/
package metrics
